package notifier

import (
	"context"

	"github.com/crimson-sun/slowlog/internal/model"
)

// Notifier defines the interface for finding destinations.
type Notifier interface {
	Report(ctx context.Context, f model.Finding) error
	Close() error
}
