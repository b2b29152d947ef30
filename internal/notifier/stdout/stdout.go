// Package stdout is the dry-run notifier: it prints each report that would
// have been sent instead of calling any service.
package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/notifier"
)

// Notifier writes findings to a local stream.
type Notifier struct {
	w           io.Writer
	enc         *json.Encoder
	environment string
}

// New creates a Notifier writing human-readable debug reports to w.
func New(w io.Writer, environment string) *Notifier {
	return &Notifier{w: w, environment: environment}
}

// NewJSON creates a Notifier writing one JSON record per line to w.
func NewJSON(w io.Writer, pretty bool) *Notifier {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Notifier{w: w, enc: enc}
}

func (n *Notifier) Report(_ context.Context, f model.Finding) error {
	if n.enc != nil {
		if err := n.enc.Encode(notifier.NewRecord(f)); err != nil {
			return fmt.Errorf("stdout notifier: %w", err)
		}
		return nil
	}
	if _, err := io.WriteString(n.w, n.render(f)); err != nil {
		return fmt.Errorf("stdout notifier: %w", err)
	}
	return nil
}

func (n *Notifier) render(f model.Finding) string {
	h := f.Header
	var b strings.Builder
	b.WriteString("\n===== DEBUG REPORT =====\n\n")
	fmt.Fprintf(&b, "report(%q, level=%s, environment=%q, language=%q)\n", f.Name, f.Level, n.environment, f.Tag)
	fmt.Fprintf(&b, "  header: date=%s time=%s user_host=%q query_seconds=%g lock_time=%g rows_sent=%d rows_examined=%d\n",
		h.Date, h.Time, h.UserHost, h.QuerySeconds, h.LockSeconds, h.RowsSent, h.RowsExamined)
	fmt.Fprintf(&b, "  data:   %q\n", f.Event.Query)
	return b.String()
}

func (n *Notifier) Close() error {
	return nil
}
