package engine

import (
	"context"
	"log/slog"

	"github.com/crimson-sun/slowlog/internal/engine/heuristic"
	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/notifier"
)

// Result summarizes one Dispatch call.
type Result struct {
	Forwarded int // findings handed to the notifier
	Failed    int // of those, how many the notifier rejected
}

// Engine runs every heuristic against each record and forwards findings at
// or above the minimum level to a notifier.
type Engine struct {
	heuristics []heuristic.Heuristic
	minLevel   model.Level
	notifier   notifier.Notifier
}

// New creates an Engine with the provided heuristics, threshold and notifier.
func New(hs []heuristic.Heuristic, minLevel model.Level, n notifier.Notifier) *Engine {
	return &Engine{
		heuristics: hs,
		minLevel:   minLevel,
		notifier:   n,
	}
}

// MinLevel returns the configured notification threshold.
func (e *Engine) MinLevel() model.Level { return e.minLevel }

// Evaluate scores a record against every heuristic and returns the findings
// that meet the minimum level, in heuristic order.
func (e *Engine) Evaluate(h model.LogHeader, ev model.QueryEvent) []model.Finding {
	var out []model.Finding
	for _, hr := range e.heuristics {
		lvl, ok := hr.Evaluate(h, ev)
		if !ok || lvl < e.minLevel {
			continue
		}
		out = append(out, model.Finding{
			Name:   hr.Name(),
			Level:  lvl,
			Header: h,
			Event:  ev,
			Tag:    model.SourceTag,
		})
	}
	return out
}

// Dispatch evaluates a record and reports every qualifying finding. Notifier
// failures are logged and counted; they never stop the remaining findings.
func (e *Engine) Dispatch(ctx context.Context, h model.LogHeader, ev model.QueryEvent) Result {
	var res Result
	for _, f := range e.Evaluate(h, ev) {
		res.Forwarded++
		if err := e.notifier.Report(ctx, f); err != nil {
			res.Failed++
			slog.Warn("notifier report failed", "finding", f.Name, "level", f.Level.String(), "error", err)
		}
	}
	return res
}
