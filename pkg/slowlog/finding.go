package slowlog

import (
	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/notifier"
)

// Finding is one heuristic result for one logged query.
// This is the stable public type; internal representations may evolve
// independently without breaking consumers.
type Finding struct {
	Name         string  `json:"name"`          // Heuristic name, e.g. "Slow query"
	Level        string  `json:"level"`         // debug, info, warning, error, critical
	Date         string  `json:"date"`          // Log date, YYMMDD
	Time         string  `json:"time"`          // Log time, H:MM:SS
	UserHost     string  `json:"user_host"`
	QuerySeconds float64 `json:"query_seconds"`
	LockSeconds  float64 `json:"lock_seconds"`
	RowsSent     int64   `json:"rows_sent"`
	RowsExamined int64   `json:"rows_examined"`
	Query        string  `json:"query"`   // Full statement including ';'
	Summary      string  `json:"summary"` // Single-line statement, <=120 runes
}

func findingFromModel(f model.Finding) Finding {
	h := f.Header
	return Finding{
		Name:         f.Name,
		Level:        f.Level.String(),
		Date:         h.Date,
		Time:         h.Time,
		UserHost:     h.UserHost,
		QuerySeconds: h.QuerySeconds,
		LockSeconds:  h.LockSeconds,
		RowsSent:     h.RowsSent,
		RowsExamined: h.RowsExamined,
		Query:        f.Event.Query,
		Summary:      notifier.Summarize(f.Event.Query),
	}
}
