package sunvoy

import (
	"context"
	"fmt"
	"sunvoy-scraper/lib/restyutil"
	"sunvoy-scraper/lib/telemetry"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

const (
	report_client_fetch_current_user = "client.fetch-current-user"
	report_client_fetch_all_users    = "client.fetch-all-users"
)

const (
	DefaultBaseUrl = "https://challenge.sunvoy.com"
	settingsPage   = "/settings"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
)

// endpoints are tried strictly in this order, the first valid answer wins
var (
	currentUserEndpoints = []string{"/internal/me", "/api/users/me", "/me", "/settings/me", "/user"}
	allUsersEndpoints    = []string{"/internal/users", "/api/users", "/users", "/admin/users", "/v1/users", "/data/users"}
)

type ClientOptions struct {
	BaseUrl string
	// defaults to 30 seconds
	Timeout time.Duration
	// zero means unlimited
	RequestsPerSecond float64
	CloudflareBypass  bool
	// if set, every request/response pair is written to it
	HttpDump restyutil.Output
}

func newHttpClient(opts ClientOptions, tel telemetry.API) *resty.Client {
	baseUrl := opts.BaseUrl
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(baseUrl)
	httpClient.SetTimeout(timeout)
	httpClient.SetHeader("user-agent", userAgent)
	// the session cookie is managed by hand, a jar would add its own cookies on top
	httpClient.SetCookieJar(nil)
	if opts.CloudflareBypass {
		httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)
	}

	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
		httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return rateLimiter.Wait(req.Context())
		})
	}

	telemetry.InstrumentResty(httpClient, telemetry.NewScopedAPI("http", tel), "sunvoy-scraper/http")
	restyutil.RecordExchanges(httpClient, opts.HttpDump)

	return httpClient
}

// Client reads user data from the site on behalf of one session.
type Client struct {
	http      *resty.Client
	token     Token
	tel       telemetry.API
	extractor Extractor
}

// NewClient creates a client that sends `token` as its Cookie header, an empty token
// makes unauthenticated requests.
func NewClient(opts ClientOptions, token Token, tel telemetry.API) *Client {
	return &Client{
		http:      newHttpClient(opts, tel),
		token:     token,
		tel:       telemetry.NewScopedAPI("sunvoy_client", tel),
		extractor: NewExtractor(tel),
	}
}

func (c *Client) Token() Token {
	return c.token
}

func (c *Client) get(ctx context.Context, endpoint, accept string) (*resty.Response, error) {
	res, err := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		SetHeader("Cookie", c.token.String()).
		Get(endpoint)
	if err != nil {
		return nil, &TransportError{Endpoint: endpoint, Err: err}
	}
	if !res.IsSuccess() {
		return nil, &TransportError{Endpoint: endpoint, Status: res.StatusCode()}
	}
	return res, nil
}

func (c *Client) getJson(ctx context.Context, endpoint string) (any, error) {
	res, err := c.get(ctx, endpoint, "application/json")
	if err != nil {
		return nil, err
	}
	var value any
	err = decodeJSON(res.Body(), &value)
	if err != nil {
		return nil, &ShapeMismatchError{Endpoint: endpoint, Reason: fmt.Sprintf("invalid json: %v", err)}
	}
	return value, nil
}

func (c *Client) getHtml(ctx context.Context, endpoint string) ([]byte, error) {
	res, err := c.get(ctx, endpoint, "text/html")
	if err != nil {
		return nil, err
	}
	return res.Body(), nil
}

// cascade tries every endpoint in order and returns the first answer `accept` takes.
// Failures are reported and skipped, it only reports false once every endpoint is
// exhausted.
func cascade[T any](
	ctx context.Context,
	c *Client,
	reportId string,
	endpoints []string,
	accept func(any) (T, bool),
	expected string,
) (T, bool) {
	var zero T
	for _, endpoint := range endpoints {
		value, err := c.getJson(ctx, endpoint)
		if err == nil {
			result, ok := accept(value)
			if ok {
				return result, true
			}
			err = &ShapeMismatchError{Endpoint: endpoint, Reason: expected}
		}
		c.tel.ReportWarning(reportId, fmt.Errorf("endpoint failed: %w", err))
	}
	return zero, false
}

func acceptCurrentUser(v any) (RawUser, bool) {
	value, ok := CurrentUserTarget.accept(v)
	if !ok {
		return nil, false
	}
	return value.(RawUser), true
}

// acceptUserList takes any array, including an empty one. Items that are objects
// become records, anything else is kept as an empty record so it fails validation.
func acceptUserList(v any) ([]RawUser, bool) {
	list, ok := v.([]any)
	if !ok {
		return nil, false
	}
	users := make([]RawUser, 0, len(list))
	for _, item := range list {
		obj, _ := item.(map[string]any)
		users = append(users, RawUser(obj))
	}
	return users, true
}

// FetchCurrentUser returns the logged in user, from the first json endpoint that
// answers with an object carrying an id, or else from the settings page html.
func (c *Client) FetchCurrentUser(ctx context.Context) (RawUser, error) {
	ctx, span := tracer.Start(ctx, "client:FetchCurrentUser")
	defer span.End()

	user, ok := cascade(
		ctx, c, report_client_fetch_current_user,
		currentUserEndpoints, acceptCurrentUser,
		"expected an object with an id",
	)
	if ok {
		return user, nil
	}

	c.tel.ReportInfo("json endpoints exhausted, falling back to html", settingsPage)
	html, err := c.getHtml(ctx, settingsPage)
	if err != nil {
		c.tel.ReportBroken(report_client_fetch_current_user, err)
		span.SetStatus(codes.Error, "failed to fetch settings page")
		return nil, err
	}
	user, err = c.extractor.CurrentUser(ctx, html, settingsPage)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return user, nil
}

// FetchAllUsers returns every user, from the first json endpoint that answers with an
// array (an empty one counts), or else from the settings page html where at least one
// user has to be found.
func (c *Client) FetchAllUsers(ctx context.Context) ([]RawUser, error) {
	ctx, span := tracer.Start(ctx, "client:FetchAllUsers")
	defer span.End()

	users, ok := cascade(
		ctx, c, report_client_fetch_all_users,
		allUsersEndpoints, acceptUserList,
		"expected an array",
	)
	if ok {
		c.tel.ReportCount(report_client_fetch_all_users, int64(len(users)))
		return users, nil
	}

	c.tel.ReportInfo("json endpoints exhausted, falling back to html", settingsPage)
	html, err := c.getHtml(ctx, settingsPage)
	if err != nil {
		c.tel.ReportBroken(report_client_fetch_all_users, err)
		span.SetStatus(codes.Error, "failed to fetch settings page")
		return nil, err
	}
	users, err = c.extractor.Users(ctx, html, settingsPage)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.tel.ReportCount(report_client_fetch_all_users, int64(len(users)))
	return users, nil
}
