package rollbar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/crimson-sun/slowlog/internal/httpclient"
	"github.com/crimson-sun/slowlog/internal/model"
)

const (
	// DefaultEndpoint is the Rollbar API base URL.
	DefaultEndpoint = "https://api.rollbar.com/api/1"

	tokenHeader    = "X-Rollbar-Access-Token"
	itemPath       = "/item/"
	defaultRate    = 10 // items per second
	defaultBurst   = 50
	defaultTimeout = 3 * time.Second
	notifierName   = "slowlog"
)

// ErrRateLimited is returned when a report exceeds the local send budget.
// The finding is dropped, not queued.
var ErrRateLimited = errors.New("rollbar: local rate limit exceeded")

// Option configures a Rollbar Notifier.
type Option func(*Notifier)

// WithEndpoint overrides the API base URL.
func WithEndpoint(url string) Option {
	return func(n *Notifier) { n.endpoint = url }
}

// WithRateLimit sets the sustained items per second and burst size.
// A non-positive perSecond disables local limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(n *Notifier) {
		if perSecond <= 0 {
			n.limiter = nil
			return
		}
		n.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithClientOptions passes options through to the HTTP client.
func WithClientOptions(opts ...httpclient.Option) Option {
	return func(n *Notifier) { n.clientOpts = append(n.clientOpts, opts...) }
}

// WithVersion sets the notifier version reported with each item.
func WithVersion(v string) Option {
	return func(n *Notifier) { n.version = v }
}

// Notifier posts one Rollbar item per finding.
type Notifier struct {
	environment string
	endpoint    string
	version     string
	limiter     *rate.Limiter
	clientOpts  []httpclient.Option
	client      *httpclient.Client
	now         func() time.Time
	newID       func() string
}

// New creates a Notifier for the given access token and environment.
func New(accessToken, environment string, opts ...Option) *Notifier {
	n := &Notifier{
		environment: environment,
		endpoint:    DefaultEndpoint,
		version:     "dev",
		limiter:     rate.NewLimiter(rate.Limit(defaultRate), defaultBurst),
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(n)
	}
	// One attempt per finding; a failed item is dropped.
	clientOpts := append([]httpclient.Option{
		httpclient.WithToken(tokenHeader, accessToken),
		httpclient.WithTimeout(defaultTimeout),
		httpclient.WithMaxRetries(0),
	}, n.clientOpts...)
	n.client = httpclient.New(n.endpoint, clientOpts...)
	return n
}

// Item is the request body of the Rollbar item API.
type Item struct {
	Data Data `json:"data"`
}

// Data is a Rollbar occurrence.
type Data struct {
	Environment string   `json:"environment"`
	Level       string   `json:"level"`
	Timestamp   int64    `json:"timestamp"`
	Language    string   `json:"language"`
	UUID        string   `json:"uuid"`
	Body        Body     `json:"body"`
	Notifier    Software `json:"notifier"`
}

// Body carries the message and its extra data.
type Body struct {
	Message Message `json:"message"`
}

// Message is a Rollbar message body. Extra keys sit beside "body".
type Message struct {
	Body   string           `json:"body"`
	Header model.LogHeader  `json:"header"`
	Data   model.QueryEvent `json:"data"`
}

// Software identifies the reporting client.
type Software struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type response struct {
	Err     int    `json:"err"`
	Message string `json:"message"`
}

// BuildItem converts a finding into a Rollbar item.
func (n *Notifier) BuildItem(f model.Finding) Item {
	return Item{Data: Data{
		Environment: n.environment,
		Level:       f.Level.String(),
		Timestamp:   n.now().Unix(),
		Language:    f.Tag,
		UUID:        n.newID(),
		Body: Body{Message: Message{
			Body:   f.Name,
			Header: f.Header,
			Data:   f.Event,
		}},
		Notifier: Software{Name: notifierName, Version: n.version},
	}}
}

// Report sends the finding. It does not wait for rate limit tokens: a
// finding over budget is rejected with ErrRateLimited.
func (n *Notifier) Report(ctx context.Context, f model.Finding) error {
	if n.limiter != nil && !n.limiter.Allow() {
		return ErrRateLimited
	}
	var resp response
	if err := n.client.PostJSON(ctx, itemPath, n.BuildItem(f), &resp); err != nil {
		return fmt.Errorf("rollbar: %w", err)
	}
	if resp.Err != 0 {
		return fmt.Errorf("rollbar: api error: %s", resp.Message)
	}
	return nil
}

// Close is a no-op; every Report is sent synchronously.
func (n *Notifier) Close() error {
	return nil
}
