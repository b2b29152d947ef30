// Package heuristic scores parsed slow query records against numeric
// thresholds. Each heuristic computes one metric from a header and maps it
// onto a notification level through five ascending boundaries.
package heuristic

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/crimson-sun/slowlog/internal/model"
)

// Ranges holds the five lower boundaries of the debug, info, warning, error
// and critical ranges. Each range is half-open: [B0,B1) is debug and
// [B4,+inf) is critical. Metrics below B0 produce no finding.
type Ranges [5]float64

// Validate checks that the boundaries are non-decreasing.
func (r Ranges) Validate() error {
	for i := 1; i < len(r); i++ {
		if r[i] < r[i-1] {
			return fmt.Errorf("boundaries must be ascending, got %v", r[:])
		}
	}
	return nil
}

// Evaluate maps metric onto a level, checking the critical range first.
// The second result is false when metric is below every boundary.
func (r Ranges) Evaluate(metric float64) (model.Level, bool) {
	if metric >= r[4] {
		return model.Critical, true
	}
	for lvl := model.Error; lvl >= model.Debug; lvl-- {
		lo, hi := r[lvl], r[lvl+1]
		if metric >= lo && metric < hi {
			return lvl, true
		}
	}
	return model.Debug, false
}

// ParseRanges reads five comma separated numbers, e.g. "10,100,1000,1e4,1e5".
func ParseRanges(s string) (Ranges, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return Ranges{}, fmt.Errorf("want 5 boundaries, got %d", len(parts))
	}
	var r Ranges
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Ranges{}, fmt.Errorf("boundary %d: %w", i, err)
		}
		r[i] = v
	}
	if err := r.Validate(); err != nil {
		return Ranges{}, err
	}
	return r, nil
}

// Heuristic is a named scoring rule.
type Heuristic interface {
	Name() string
	Evaluate(h model.LogHeader, e model.QueryEvent) (model.Level, bool)
}

// Metric computes the scalar a heuristic scores.
type Metric func(h model.LogHeader, e model.QueryEvent) float64

// Threshold is a Heuristic driven by a Metric and a set of Ranges.
type Threshold struct {
	name   string
	key    string
	metric Metric
	ranges Ranges
}

// New creates a threshold heuristic. key is the short identifier used for
// configuration overrides.
func New(name, key string, ranges Ranges, metric Metric) *Threshold {
	return &Threshold{name: name, key: key, metric: metric, ranges: ranges}
}

func (t *Threshold) Name() string { return t.name }

// Key returns the configuration key, e.g. "slow_query".
func (t *Threshold) Key() string { return t.key }

// Ranges returns the configured boundaries.
func (t *Threshold) Ranges() Ranges { return t.ranges }

func (t *Threshold) Evaluate(h model.LogHeader, e model.QueryEvent) (model.Level, bool) {
	return t.ranges.Evaluate(t.metric(h, e))
}

// Configuration keys for the built-in heuristics.
const (
	KeySlowQuery     = "slow_query"
	KeyRowsSent      = "rows_sent"
	KeyRowsExamined  = "rows_examined"
	KeyExaminedRatio = "examined_ratio"
	KeyLockTime      = "lock_time"
)

// QuerySeconds is the slow query metric.
func QuerySeconds(h model.LogHeader, _ model.QueryEvent) float64 { return h.QuerySeconds }

// LockSeconds is the lock wait metric.
func LockSeconds(h model.LogHeader, _ model.QueryEvent) float64 { return h.LockSeconds }

// RowsSent is the rows returned metric.
func RowsSent(h model.LogHeader, _ model.QueryEvent) float64 { return float64(h.RowsSent) }

// RowsExamined is the rows examined metric.
func RowsExamined(h model.LogHeader, _ model.QueryEvent) float64 { return float64(h.RowsExamined) }

// ExaminedRatio is rows examined per row sent. Queries that return nothing
// score 0.
func ExaminedRatio(h model.LogHeader, _ model.QueryEvent) float64 {
	if h.RowsSent > 0 {
		return float64(h.RowsExamined) / float64(h.RowsSent)
	}
	return 0
}

// Defaults returns the built-in heuristics in their reporting order.
func Defaults() []*Threshold {
	return []*Threshold{
		New("Slow query", KeySlowQuery, Ranges{0.00001, 0.0001, 0.001, 0.01, 0.1}, QuerySeconds),
		New("Too many rows returned", KeyRowsSent, Ranges{100, 1000, 10000, 100000, 100000}, RowsSent),
		New("Too many rows examined", KeyRowsExamined, Ranges{100, 1000, 10000, 100000, 100000}, RowsExamined),
		New("Ratio of examined to returned is too high", KeyExaminedRatio, Ranges{10, 100, 1000, 10000, 100000}, ExaminedRatio),
		New("Long lock time", KeyLockTime, Ranges{0.00001, 0.0001, 0.001, 0.01, 0.1}, LockSeconds),
	}
}

// Configure builds the default heuristics with the given boundaries
// replacing the defaults for matching keys. Unknown keys are an error.
func Configure(overrides map[string]Ranges) ([]Heuristic, error) {
	defs := Defaults()
	known := make(map[string]*Threshold, len(defs))
	for _, d := range defs {
		known[d.key] = d
	}

	var unknown []string
	for key, r := range overrides {
		d, ok := known[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		if err := r.Validate(); err != nil {
			return nil, fmt.Errorf("heuristic %s: %w", key, err)
		}
		d.ranges = r
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown heuristic keys: %s", strings.Join(unknown, ", "))
	}

	out := make([]Heuristic, len(defs))
	for i, d := range defs {
		out[i] = d
	}
	return out, nil
}

// Keys lists the configuration keys of the built-in heuristics.
func Keys() []string {
	return []string{KeySlowQuery, KeyRowsSent, KeyRowsExamined, KeyExaminedRatio, KeyLockTime}
}
