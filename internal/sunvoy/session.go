package sunvoy

import (
	"context"
	"fmt"
	"sunvoy-scraper/lib/telemetry"

	"go.opentelemetry.io/otel/codes"
)

const (
	report_sessions_read_token  = "sessions.read-token"
	report_sessions_probe       = "sessions.probe"
	report_sessions_write_token = "sessions.write-token"
)

// TokenStore persists the session token between runs. An empty token with a nil
// error means nothing is stored.
type TokenStore interface {
	ReadToken(ctx context.Context) (Token, error)
	WriteToken(ctx context.Context, token Token) error
}

// Sessions hands out clients bound to a live session, reusing the stored token while
// the site still accepts it and logging in again when it does not.
type Sessions struct {
	store TokenStore
	opts  ClientOptions
	creds Credentials
	tel   telemetry.API
}

func NewSessions(store TokenStore, opts ClientOptions, creds Credentials, tel telemetry.API) *Sessions {
	return &Sessions{
		store: store,
		opts:  opts,
		creds: creds,
		tel:   tel,
	}
}

// Ensure returns a client with a working session. The stored token is probed with a
// current user fetch, any failure of that probe counts as an expired session. It logs
// in at most once and does not retry a failed login.
func (s *Sessions) Ensure(ctx context.Context) (*Client, error) {
	ctx, span := tracer.Start(ctx, "sessions:Ensure")
	defer span.End()

	tel := telemetry.NewScopedAPI("sessions", s.tel)

	token, err := s.store.ReadToken(ctx)
	if err != nil {
		tel.ReportWarning(report_sessions_read_token, err)
		token = ""
	}

	if !token.IsEmpty() {
		client := NewClient(s.opts, token, s.tel)
		_, err := client.FetchCurrentUser(ctx)
		if err == nil {
			tel.ReportInfo("using existing session")
			return client, nil
		}
		tel.ReportWarning(report_sessions_probe, fmt.Errorf("stored session expired, logging in again: %w", err))
	}

	token, err = Login(ctx, s.opts, s.creds, s.tel)
	if err != nil {
		span.SetStatus(codes.Error, "login failed")
		return nil, err
	}

	err = s.store.WriteToken(ctx, token)
	if err != nil {
		tel.ReportBroken(report_sessions_write_token, err)
		span.SetStatus(codes.Error, "failed to persist token")
		return nil, fmt.Errorf("persist session token: %w", err)
	}
	tel.ReportInfo("new session created")

	return NewClient(s.opts, token, s.tel), nil
}
