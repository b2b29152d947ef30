package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/notifier"
)

func finding(name string, lvl model.Level) model.Finding {
	return model.Finding{
		Name:   name,
		Level:  lvl,
		Header: model.LogHeader{Date: "121228", Time: "15:24:25", QuerySeconds: 0.005, RowsSent: 3, RowsExamined: 900},
		Event:  model.QueryEvent{Query: "SELECT id\n  FROM orders;"},
		Tag:    model.SourceTag,
	}
}

// sink records the batches it receives and answers with status.
type sink struct {
	status int
	mu     sync.Mutex
	got    [][]notifier.Record
	hits   atomic.Int64
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	body, _ := io.ReadAll(r.Body)
	var batch []notifier.Record
	json.Unmarshal(body, &batch)
	s.mu.Lock()
	s.got = append(s.got, batch)
	s.mu.Unlock()
	if s.status != 0 {
		w.WriteHeader(s.status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *sink) batches() [][]notifier.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]notifier.Record(nil), s.got...)
}

func TestFullBatchSentByReport(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	n := New(srv.URL, WithBatchSize(2), WithFlushInterval(time.Minute))
	ctx := context.Background()
	if err := n.Report(ctx, finding("Slow query", model.Warning)); err != nil {
		t.Fatalf("first Report: %v", err)
	}
	if len(s.batches()) != 0 {
		t.Fatal("batch sent before it was full")
	}
	if err := n.Report(ctx, finding("Long lock time", model.Error)); err != nil {
		t.Fatalf("second Report: %v", err)
	}

	got := s.batches()
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("expected one batch of 2, got %+v", got)
	}
	rec := got[0][1]
	if rec.Name != "Long lock time" || rec.Level != model.Error || rec.Tag != "sql" {
		t.Errorf("unexpected record: %+v", rec)
	}
	if rec.Summary != "SELECT id FROM orders;" {
		t.Errorf("Summary = %q", rec.Summary)
	}
}

func TestTimerSendsPartialBatch(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	n := New(srv.URL, WithBatchSize(50), WithFlushInterval(50*time.Millisecond))
	defer n.Close()
	n.Report(context.Background(), finding("Slow query", model.Warning))

	deadline := time.Now().Add(2 * time.Second)
	for len(s.batches()) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := s.batches()
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("expected one timer batch of 1, got %+v", got)
	}
}

func TestRetries(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantHits int64
		wantErr  bool
	}{
		{"server error is retried", http.StatusBadGateway, 3, true},
		{"client error is not", http.StatusBadRequest, 1, true},
		{"success", 0, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &sink{status: tt.status}
			srv := httptest.NewServer(s)
			defer srv.Close()

			n := New(srv.URL, WithBatchSize(1), WithRetries(2, 5*time.Millisecond))
			err := n.Report(context.Background(), finding("Slow query", model.Critical))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if s.hits.Load() != tt.wantHits {
				t.Errorf("hits = %d, want %d", s.hits.Load(), tt.wantHits)
			}
		})
	}
}

func TestReportHonorsContext(t *testing.T) {
	s := &sink{status: http.StatusServiceUnavailable}
	srv := httptest.NewServer(s)
	defer srv.Close()

	n := New(srv.URL, WithBatchSize(1), WithRetries(3, time.Minute))
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := n.Report(ctx, finding("Slow query", model.Critical))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Report ignored its context for %v", elapsed)
	}
}

func TestSendDoesNotBlockQueueing(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	n := New(srv.URL, WithBatchSize(2), WithFlushInterval(time.Minute))
	ctx := context.Background()
	n.Report(ctx, finding("a", model.Warning))

	sending := make(chan struct{})
	go func() {
		n.Report(ctx, finding("b", model.Warning))
		close(sending)
	}()
	time.Sleep(50 * time.Millisecond)

	queued := make(chan struct{})
	go func() {
		n.Report(ctx, finding("c", model.Warning))
		close(queued)
	}()
	select {
	case <-queued:
	case <-time.After(time.Second):
		t.Fatal("Report blocked behind an in-flight send")
	}
}

func TestCustomHeaders(t *testing.T) {
	var auth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("X-Custom-Auth"))
	}))
	defer srv.Close()

	n := New(srv.URL, WithBatchSize(1), WithHeaders(map[string]string{"X-Custom-Auth": "secret123"}))
	if err := n.Report(context.Background(), finding("Slow query", model.Warning)); err != nil {
		t.Fatalf("Report: %v", err)
	}
	if v, _ := auth.Load().(string); v != "secret123" {
		t.Errorf("X-Custom-Auth = %q", v)
	}
}

func TestTimerErrorCallback(t *testing.T) {
	s := &sink{status: http.StatusForbidden}
	srv := httptest.NewServer(s)
	defer srv.Close()

	errs := make(chan error, 1)
	n := New(srv.URL,
		WithBatchSize(50),
		WithFlushInterval(20*time.Millisecond),
		WithOnError(func(err error) { errs <- err }),
	)
	n.Report(context.Background(), finding("Slow query", model.Warning))

	select {
	case err := <-errs:
		if err == nil {
			t.Fatal("expected a non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("error callback not invoked")
	}
}

func TestCloseSendsRemainder(t *testing.T) {
	s := &sink{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	n := New(srv.URL, WithBatchSize(10), WithFlushInterval(time.Minute))
	n.Report(context.Background(), finding("a", model.Warning))
	n.Report(context.Background(), finding("b", model.Warning))
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got := s.batches()
	if len(got) != 1 || len(got[0]) != 2 {
		t.Fatalf("expected one batch of 2 on Close, got %+v", got)
	}
	if err := n.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
