package webhook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crimson-sun/slowlog/internal/httpclient"
	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/notifier"
)

const (
	defaultBatchSize     = 20
	defaultFlushInterval = 5 * time.Second
	defaultTimeout       = 5 * time.Second
	defaultRetries       = 1
)

type settings struct {
	batchSize     int
	flushInterval time.Duration
	onError       func(error)
	client        []httpclient.Option
}

// Option configures a webhook Notifier.
type Option func(*settings)

// WithHeaders sets custom HTTP headers sent with every POST.
func WithHeaders(h map[string]string) Option {
	return func(s *settings) { s.client = append(s.client, httpclient.WithHeaders(h)) }
}

// WithBatchSize sets the number of findings accumulated before a flush. Default: 20.
func WithBatchSize(size int) Option {
	return func(s *settings) { s.batchSize = size }
}

// WithFlushInterval sets the maximum age of a pending batch. Default: 5s.
func WithFlushInterval(d time.Duration) Option {
	return func(s *settings) { s.flushInterval = d }
}

// WithTimeout sets the per-request timeout. Default: 5s.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.client = append(s.client, httpclient.WithTimeout(d)) }
}

// WithRetries sets how often a 429 or 5xx batch is resent, waiting delay
// before the first retry and doubling after. Default: 1 retry after 1s.
func WithRetries(n int, delay time.Duration) Option {
	return func(s *settings) {
		s.client = append(s.client, httpclient.WithMaxRetries(n), httpclient.WithBaseDelay(delay))
	}
}

// WithOnError sets a callback for failed timer flushes. Default: slog.Warn.
func WithOnError(f func(error)) Option {
	return func(s *settings) { s.onError = f }
}

// Notifier sends findings as a JSON array of notifier.Record. A batch is
// sent by the Report call that fills it, or by a timer armed when its first
// finding arrives.
type Notifier struct {
	client        *httpclient.Client
	batchSize     int
	flushInterval time.Duration
	onError       func(error)

	mu      sync.Mutex
	pending []notifier.Record
	timer   *time.Timer
}

// New creates a webhook notifier targeting url.
func New(url string, opts ...Option) *Notifier {
	s := settings{
		batchSize:     defaultBatchSize,
		flushInterval: defaultFlushInterval,
		onError:       func(err error) { slog.Warn("webhook flush failed", "error", err) },
		client: []httpclient.Option{
			httpclient.WithTimeout(defaultTimeout),
			httpclient.WithMaxRetries(defaultRetries),
			httpclient.WithMaxWait(2 * time.Second),
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	if s.batchSize < 1 {
		s.batchSize = 1
	}
	return &Notifier{
		client:        httpclient.New(url, s.client...),
		batchSize:     s.batchSize,
		flushInterval: s.flushInterval,
		onError:       s.onError,
	}
}

// Report queues f and sends the batch once it is full. The send uses ctx,
// and no lock is held while it runs.
func (n *Notifier) Report(ctx context.Context, f model.Finding) error {
	n.mu.Lock()
	n.pending = append(n.pending, notifier.NewRecord(f))
	if len(n.pending) < n.batchSize {
		if n.timer == nil {
			n.timer = time.AfterFunc(n.flushInterval, n.flushTimer)
		}
		n.mu.Unlock()
		return nil
	}
	batch := n.takeLocked()
	n.mu.Unlock()

	return n.send(ctx, batch)
}

// Close sends whatever is still queued.
func (n *Notifier) Close() error {
	n.mu.Lock()
	batch := n.takeLocked()
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*defaultTimeout)
	defer cancel()
	return n.send(ctx, batch)
}

func (n *Notifier) flushTimer() {
	n.mu.Lock()
	batch := n.takeLocked()
	n.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*defaultTimeout)
	defer cancel()
	if err := n.send(ctx, batch); err != nil {
		n.onError(err)
	}
}

// takeLocked detaches the pending batch and disarms the timer. Caller must
// hold n.mu.
func (n *Notifier) takeLocked() []notifier.Record {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	batch := n.pending
	n.pending = nil
	return batch
}

func (n *Notifier) send(ctx context.Context, batch []notifier.Record) error {
	if len(batch) == 0 {
		return nil
	}
	if err := n.client.PostJSON(ctx, "", batch, nil); err != nil {
		return fmt.Errorf("webhook: %d findings: %w", len(batch), err)
	}
	return nil
}
