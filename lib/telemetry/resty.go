package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type instrumentResty struct {
	tel       API
	tracer    trace.Tracer
	idcounter *uint64
}

// InstrumentResty reports a "→ METHOD path" line before and a "← STATUS path" line after
// every request made by `client`, and wraps each request in a span from `tracerName`.
func InstrumentResty(client *resty.Client, tel API, tracerName string) {
	var idcounter uint64
	i := instrumentResty{
		tel:       tel,
		tracer:    otel.Tracer(tracerName),
		idcounter: &idcounter,
	}

	client.OnBeforeRequest(i.onBeforeRequest)
	client.OnAfterResponse(i.onAfterResponse)
	client.OnError(i.onError)
}

type reqCtxKeyType int

var reqCtxKey reqCtxKeyType

type reqCtx struct {
	id uint64
	// the url as the caller wrote it, resty replaces req.URL with the resolved one
	// once the base url is applied.
	path      string
	startTime time.Time
}

func (i instrumentResty) onBeforeRequest(_ *resty.Client, req *resty.Request) error {
	ctx, span := i.tracer.Start(req.Context(), fmt.Sprintf("http %s", req.Method))

	id := atomic.AddUint64(i.idcounter, 1)
	span.SetAttributes(
		attribute.Int64("request.id", int64(id)),
		attribute.String("request.path", req.URL),
	)
	ctx = context.WithValue(ctx, reqCtxKey, reqCtx{
		id:        id,
		path:      req.URL,
		startTime: time.Now(),
	})
	i.tel.ReportInfo(fmt.Sprintf("→ %s %s", req.Method, req.URL))

	req.SetContext(ctx)
	return nil
}

func requestInfo(ctx context.Context, fallbackPath string) reqCtx {
	info, ok := ctx.Value(reqCtxKey).(reqCtx)
	if !ok {
		return reqCtx{path: fallbackPath, startTime: time.Now()}
	}
	return info
}

func (i instrumentResty) onAfterResponse(_ *resty.Client, res *resty.Response) error {
	ctx := res.Request.Context()
	info := requestInfo(ctx, res.Request.URL)
	duration := time.Since(info.startTime)

	span := trace.SpanFromContext(ctx)
	defer span.End()
	span.SetAttributes(
		attribute.Int("response.status", res.StatusCode()),
		attribute.String("response.duration", duration.String()),
	)
	if !res.IsSuccess() {
		span.SetStatus(codes.Error, res.Status())
	}

	i.tel.ReportInfo(fmt.Sprintf("← %d %s", res.StatusCode(), info.path))
	i.tel.ReportDebug("response", info.id, duration.String(), res.Status())

	return nil
}

func (i instrumentResty) onError(req *resty.Request, err error) {
	ctx := req.Context()
	info := requestInfo(ctx, req.URL)

	span := trace.SpanFromContext(ctx)
	defer span.End()
	span.RecordError(err)
	span.SetStatus(codes.Error, "request failed")

	i.tel.ReportDebug(
		fmt.Sprintf("← error %s", info.path),
		info.id,
		time.Since(info.startTime).String(),
		err,
	)
}
