package pipeline

import (
	"strings"

	"github.com/crimson-sun/slowlog/internal/engine/pattern"
	"github.com/crimson-sun/slowlog/internal/model"
)

// State is the reassembler's position relative to record boundaries.
type State int

const (
	// Seeking means no header has been seen yet.
	Seeking State = iota
	// Collecting means a header is active and statements are attributed to it.
	Collecting
)

func (s State) String() string {
	if s == Collecting {
		return "collecting"
	}
	return "seeking"
}

// Record pairs a statement with the header it was logged under.
type Record struct {
	Header model.LogHeader
	Event  model.QueryEvent
}

// Step reports what a single Feed call recognized.
type Step struct {
	Header  bool     // a new header became active
	Records []Record // statements to score, in input order
	Ignored int      // replication statements dropped
}

// Reassembler rebuilds records from a line-delimited slow query log.
//
// Every line is appended to a working buffer and the whole buffer is
// matched again. A header match discards everything buffered before it.
// While a header is active, any statement matches are emitted and the
// buffer is cleared, dropping partial text that followed the last
// semicolon. Otherwise the buffer is kept, since header and statement
// patterns span lines. Tracking a cursor and matching only the new suffix
// would give the same output; the full rescan is kept for simplicity.
type Reassembler struct {
	buf    strings.Builder
	header model.LogHeader
	state  State
}

// NewReassembler creates a Reassembler in the Seeking state.
func NewReassembler() *Reassembler {
	return &Reassembler{}
}

// State returns the current state.
func (r *Reassembler) State() State { return r.state }

// Buffered returns the text waiting for more input.
func (r *Reassembler) Buffered() string { return r.buf.String() }

// Feed appends one line of input and returns what it completed.
func (r *Reassembler) Feed(line string) Step {
	r.buf.WriteString(line)
	text := r.buf.String()

	if h, ok := pattern.MatchHeader(text); ok {
		r.header = h
		r.state = Collecting
		r.buf.Reset()
		return Step{Header: true}
	}

	if r.state != Collecting {
		return Step{}
	}

	stmts := pattern.MatchStatements(text)
	if len(stmts) == 0 {
		return Step{}
	}

	var step Step
	for _, s := range stmts {
		if pattern.IsIgnorable(s.Event.Query) {
			step.Ignored++
			continue
		}
		step.Records = append(step.Records, Record{Header: r.header, Event: s.Event})
	}
	r.buf.Reset()
	return step
}
