package testutil

import (
	"strings"
	"sync"
)

const (
	LevelBroken  = "broken"
	LevelWarning = "warning"
	LevelInfo    = "info"
	LevelDebug   = "debug"
	LevelCount   = "count"
)

type Report struct {
	Level string
	// the id, or the message for info and debug reports
	ID     string
	Params []any
}

// RecordingAPI implements telemetry.API by keeping every report in memory so tests
// can assert on what a component reported.
type RecordingAPI struct {
	mu      sync.Mutex
	reports []Report
}

func (r *RecordingAPI) record(level, id string, params []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, Report{Level: level, ID: id, Params: params})
}

func (r *RecordingAPI) ReportBroken(id string, params ...any) {
	r.record(LevelBroken, id, params)
}

func (r *RecordingAPI) ReportWarning(id string, params ...any) {
	r.record(LevelWarning, id, params)
}

func (r *RecordingAPI) ReportInfo(msg string, params ...any) {
	r.record(LevelInfo, msg, params)
}

func (r *RecordingAPI) ReportDebug(msg string, params ...any) {
	r.record(LevelDebug, msg, params)
}

func (r *RecordingAPI) ReportCount(id string, count int64) {
	r.record(LevelCount, id, []any{count})
}

// Reports returns every report of `level`, or all of them if `level` is "".
func (r *RecordingAPI) Reports(level string) []Report {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Report
	for _, report := range r.reports {
		if level == "" || report.Level == level {
			out = append(out, report)
		}
	}
	return out
}

// Contains reports whether any report of `level` has an id or message containing `substr`.
func (r *RecordingAPI) Contains(level, substr string) bool {
	for _, report := range r.Reports(level) {
		if strings.Contains(report.ID, substr) {
			return true
		}
	}
	return false
}
