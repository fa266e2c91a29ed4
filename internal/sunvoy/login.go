package sunvoy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sunvoy-scraper/lib/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_login_fetch_page  = "login.fetch-page"
	report_login_submit_form = "login.submit-form"
	report_login_find_cookie = "login.find-cookie"
)

const loginPage = "/login"

// Credentials are the account the scraper logs in as.
type Credentials struct {
	Email    string
	Password string
}

// csrfToken finds the anti-forgery token of the login form, "" if there is none.
func csrfToken(doc *goquery.Document) string {
	token := strings.TrimSpace(doc.Find(`input[name="_token"]`).First().AttrOr("value", ""))
	if token != "" {
		return token
	}
	return strings.TrimSpace(doc.Find(`meta[name="csrf-token"]`).First().AttrOr("content", ""))
}

// cookiePairs renders the cookies a response set as a Cookie request header.
func cookiePairs(res *resty.Response) string {
	var pairs []string
	for _, c := range res.Cookies() {
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

func setCookieHeader(header http.Header) string {
	return strings.Join(header.Values("Set-Cookie"), "; ")
}

// Login performs the form login and returns the sunvoy_session cookie as a Token.
//
// The session cookie is looked for in the raw Set-Cookie headers of the final
// response, then of every redirect hop (latest first), then of the login page itself,
// so a cookie that was only set on an intermediate redirect is not lost.
func Login(ctx context.Context, opts ClientOptions, creds Credentials, tel telemetry.API) (Token, error) {
	ctx, span := tracer.Start(ctx, "login:Login")
	defer span.End()

	tel = telemetry.NewScopedAPI("login", tel)
	loginError := func(err error) error {
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("login failed: %w", err)
	}

	httpClient := newHttpClient(opts, tel)

	var hops []string
	httpClient.SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
		if len(via) >= 10 {
			return fmt.Errorf("stopped after %d redirects", len(via))
		}
		if req.Response != nil {
			if header := setCookieHeader(req.Response.Header); header != "" {
				hops = append(hops, header)
			}
		}
		return nil
	}))

	tel.ReportInfo("fetching login page")
	res, err := httpClient.R().
		SetContext(ctx).
		SetHeader("Accept", "text/html").
		Get(loginPage)
	if err != nil {
		err = &TransportError{Endpoint: loginPage, Err: err}
		tel.ReportBroken(report_login_fetch_page, err)
		return "", loginError(err)
	}
	initialSetCookie := setCookieHeader(res.Header())
	initialCookie := cookiePairs(res)

	values := url.Values{}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body()))
	if err != nil {
		tel.ReportWarning(report_login_fetch_page, fmt.Errorf("parse login page: %w", err))
	} else if token := csrfToken(doc); token != "" {
		values.Set("_token", token)
	}
	values.Set("email", creds.Email)
	values.Set("password", creds.Password)

	tel.ReportInfo("submitting login form")
	req := httpClient.R().
		SetContext(ctx).
		SetFormDataFromValues(values)
	if initialCookie != "" {
		req.SetHeader("Cookie", initialCookie)
	}
	res, err = req.Post(loginPage)
	if err != nil {
		err = &TransportError{Endpoint: loginPage, Err: err}
		tel.ReportBroken(report_login_submit_form, err)
		return "", loginError(err)
	}

	parts := []string{setCookieHeader(res.Header())}
	for i := len(hops) - 1; i >= 0; i-- {
		parts = append(parts, hops[i])
	}
	parts = append(parts, initialSetCookie)

	token, ok := parseSessionCookie(strings.Join(parts, "; "))
	if !ok {
		err := fmt.Errorf("%w: sunvoy_session cookie not found", ErrAuthentication)
		tel.ReportBroken(report_login_find_cookie, err, res.StatusCode())
		return "", loginError(err)
	}

	tel.ReportInfo("received sunvoy_session cookie")
	return token, nil
}
