package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/crimson-sun/slowlog/internal/engine"
	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/source"
)

// Dispatcher scores a record and forwards its findings.
type Dispatcher interface {
	Dispatch(ctx context.Context, h model.LogHeader, ev model.QueryEvent) engine.Result
}

// Stats counts what a run processed.
type Stats struct {
	Lines        int `json:"lines"`
	Headers      int `json:"headers"`
	Events       int `json:"events"`
	Ignored      int `json:"ignored"`
	Findings     int `json:"findings"`
	NotifyErrors int `json:"notify_errors"`
}

// Pipeline connects a line source, the reassembler and a dispatcher.
type Pipeline struct {
	source     source.LineReader
	reasm      *Reassembler
	dispatcher Dispatcher
}

// New creates a Pipeline from the given components.
func New(src source.LineReader, d Dispatcher) *Pipeline {
	return &Pipeline{
		source:     src,
		reasm:      NewReassembler(),
		dispatcher: d,
	}
}

// Run reads lines until the source is exhausted, fully processing each line
// before reading the next. It returns nil at end of input and ctx.Err()
// when cancelled. Buffered text left at the end is dropped.
func (p *Pipeline) Run(ctx context.Context) (Stats, error) {
	var st Stats
	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}

		line, err := p.source.ReadLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				if rest := p.reasm.Buffered(); rest != "" {
					slog.Debug("dropping incomplete trailing record", "bytes", len(rest))
				}
				return st, nil
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return st, err
			}
			return st, fmt.Errorf("pipeline read: %w", err)
		}
		st.Lines++

		step := p.reasm.Feed(line)
		if step.Header {
			st.Headers++
		}
		st.Ignored += step.Ignored
		for _, rec := range step.Records {
			st.Events++
			res := p.dispatcher.Dispatch(ctx, rec.Header, rec.Event)
			st.Findings += res.Forwarded
			st.NotifyErrors += res.Failed
		}
	}
}

// Close releases the source.
func (p *Pipeline) Close() error {
	return p.source.Close()
}
