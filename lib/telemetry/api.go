package telemetry

import (
	"fmt"
)

// API is an abstraction over logging, it is what every component receives instead of
// calling slog directly so that tests can assert on what was reported.
type API interface {
	// ReportBroken reports a component that failed in a way that cannot be recovered from
	// at the component's own layer.
	//
	// `id` identifies the component, not the specific line that failed. It is formatted as
	// `<struct or intf>.<method>`, all lowercase, with dashes between words,
	// ex. `client.fetch-current-user`. Scope it to a package with NewScopedAPI.
	ReportBroken(id string, params ...any)

	// ReportWarning reports a failure that was recovered from, like an endpoint in a cascade
	// that did not answer. For what value to provide as `id` refer to ReportBroken.
	ReportWarning(id string, params ...any)

	// ReportInfo reports a normal progress event the operator should see.
	ReportInfo(msg string, params ...any)

	// ReportDebug reports some debug information that will be ignored unless verbose.
	ReportDebug(msg string, params ...any)

	// ReportCount reports the amount of something at the current time.
	ReportCount(id string, count int64)
}

// ScopedAPI attaches a namespace to every id or message it reports, kind of like
// creating a "sub" logger with a prefix.
type ScopedAPI struct {
	namespace string
	inner     API
}

// NewScopedAPI creates a ScopedAPI out of a given namespace and another api.
func NewScopedAPI(namespace string, inner API) ScopedAPI {
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(fmt.Sprintf("%s: %s", s.namespace, id), params...)
}

func (s ScopedAPI) ReportInfo(msg string, params ...any) {
	s.inner.ReportInfo(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(fmt.Sprintf("%s: %s", s.namespace, msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(fmt.Sprintf("%s: %s", s.namespace, id), count)
}
