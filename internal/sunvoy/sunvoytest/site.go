// Package sunvoytest provides a fake sunvoy site for tests.
package sunvoytest

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
)

type Route struct {
	// defaults to 200
	Status int
	Body   string
	Header http.Header
	// if set, requests whose Cookie header does not contain it get a 401
	Cookie string
}

// JSON is a 200 route with a json body.
func JSON(body string) Route {
	return Route{
		Body:   body,
		Header: http.Header{"Content-Type": {"application/json"}},
	}
}

// HTML is a 200 route with an html body.
func HTML(body string) Route {
	return Route{
		Body:   body,
		Header: http.Header{"Content-Type": {"text/html; charset=utf-8"}},
	}
}

// Authenticated returns a copy of `route` that only answers requests carrying `cookie`.
func Authenticated(route Route, cookie string) Route {
	route.Cookie = cookie
	return route
}

// Status is an empty route answering with `status`.
func Status(status int) Route {
	return Route{Status: status}
}

type Request struct {
	Method string
	Path   string
	Cookie string
	// true even when the Cookie header was sent empty
	HasCookie bool
	Accept    string
	// only set for POST requests
	ContentType string
	Form        url.Values
}

// Site answers requests from a table of routes keyed by method and path, anything
// else is a 404. Every request is recorded.
type Site struct {
	*httptest.Server

	mu       sync.Mutex
	routes   map[string]Route
	requests []Request
}

func NewSite(t testing.TB) *Site {
	s := &Site{routes: map[string]Route{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Server.Close)
	return s
}

func routeKey(method, path string) string {
	return method + " " + path
}

func (s *Site) Handle(method, path string, route Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[routeKey(method, path)] = route
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	req := Request{
		Method: r.Method,
		Path:   r.URL.Path,
		Cookie: r.Header.Get("Cookie"),
		Accept: r.Header.Get("Accept"),
	}
	_, req.HasCookie = r.Header["Cookie"]
	if r.Method == http.MethodPost {
		req.ContentType = r.Header.Get("Content-Type")
		err := r.ParseForm()
		if err == nil {
			req.Form = r.PostForm
		}
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	route, ok := s.routes[routeKey(r.Method, r.URL.Path)]
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if route.Cookie != "" && !strings.Contains(req.Cookie, route.Cookie) {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	for key, values := range route.Header {
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	status := route.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	w.Write([]byte(route.Body))
}

func (s *Site) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Paths lists the paths requested with `method`, in order.
func (s *Site) Paths(method string) []string {
	var paths []string
	for _, req := range s.Requests() {
		if req.Method == method {
			paths = append(paths, req.Path)
		}
	}
	return paths
}

func (s *Site) Count(method, path string) int {
	n := 0
	for _, req := range s.Requests() {
		if req.Method == method && req.Path == path {
			n++
		}
	}
	return n
}
