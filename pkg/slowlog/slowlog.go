package slowlog

import (
	"context"
	"fmt"
	"io"

	"github.com/crimson-sun/slowlog/internal/engine"
	"github.com/crimson-sun/slowlog/internal/engine/heuristic"
	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/pipeline"
	"github.com/crimson-sun/slowlog/internal/source"
)

// Analyzer scores slow query logs with a fixed set of heuristics.
type Analyzer struct {
	heuristics []heuristic.Heuristic
	minLevel   model.Level
}

// New builds an Analyzer. It fails on an unknown level name, an unknown
// threshold key or boundaries that are not ascending.
func New(opts ...Option) (*Analyzer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	lvl, err := model.ParseLevel(o.minLevel)
	if err != nil {
		return nil, fmt.Errorf("slowlog: %w", err)
	}

	var overrides map[string]heuristic.Ranges
	if len(o.thresholds) > 0 {
		overrides = make(map[string]heuristic.Ranges, len(o.thresholds))
		for k, b := range o.thresholds {
			overrides[k] = heuristic.Ranges(b)
		}
	}
	hs, err := heuristic.Configure(overrides)
	if err != nil {
		return nil, fmt.Errorf("slowlog: %w", err)
	}

	return &Analyzer{heuristics: hs, minLevel: lvl}, nil
}

// Analyze reads r to the end and returns every finding in log order.
func (a *Analyzer) Analyze(ctx context.Context, r io.Reader) ([]Finding, error) {
	c := &collector{}
	p := pipeline.New(source.NewReader(r), engine.New(a.heuristics, a.minLevel, c))
	if _, err := p.Run(ctx); err != nil {
		return c.findings, fmt.Errorf("slowlog: %w", err)
	}
	return c.findings, nil
}

// Analyze is a shorthand for New followed by Analyzer.Analyze.
func Analyze(ctx context.Context, r io.Reader, opts ...Option) ([]Finding, error) {
	a, err := New(opts...)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, r)
}

// collector keeps findings in memory.
type collector struct {
	findings []Finding
}

func (c *collector) Report(_ context.Context, f model.Finding) error {
	c.findings = append(c.findings, findingFromModel(f))
	return nil
}

func (c *collector) Close() error { return nil }
