package multi

import (
	"context"
	"errors"

	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/notifier"
)

// Multi fans out findings to several notifiers, in order.
// If one notifier fails, the remaining notifiers still receive the finding.
type Multi struct {
	notifiers []notifier.Notifier
}

// New creates a Multi that fans out to the given notifiers.
func New(ns ...notifier.Notifier) *Multi {
	return &Multi{notifiers: ns}
}

// Report delivers the finding to every wrapped notifier. Errors are joined.
func (m *Multi) Report(ctx context.Context, f model.Finding) error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Report(ctx, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close calls Close on every wrapped notifier, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, n := range m.notifiers {
		if err := n.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
