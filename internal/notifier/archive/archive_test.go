package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/crimson-sun/slowlog/internal/model"
)

// newTestArchive creates an in-memory archive for testing.
func newTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := New(":memory:", "test")
	if err != nil {
		t.Fatalf("failed to create test archive: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func sampleFinding(name string, lvl model.Level) model.Finding {
	return model.Finding{
		Name:  name,
		Level: lvl,
		Header: model.LogHeader{
			Date: "121228", Time: "15:24:25", UserHost: "user[db] @ host [10.10.10.10]",
			QuerySeconds: 0.25, LockSeconds: 0.001, RowsSent: 7, RowsExamined: 70000,
		},
		Event: model.QueryEvent{Query: "SELECT foo FROM bar\nWHERE x = 2;"},
		Tag:   model.SourceTag,
	}
}

func TestReportAndRecent(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	a.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	if err := a.Report(ctx, sampleFinding("Slow query", model.Critical)); err != nil {
		t.Fatalf("Report error: %v", err)
	}
	if err := a.Report(ctx, sampleFinding("Long lock time", model.Warning)); err != nil {
		t.Fatalf("Report error: %v", err)
	}

	entries, err := a.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	// Newest first.
	if entries[0].Finding.Name != "Long lock time" {
		t.Errorf("first entry = %q, want Long lock time", entries[0].Finding.Name)
	}

	got := entries[1]
	want := sampleFinding("Slow query", model.Critical)
	if got.Finding != want {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got.Finding, want)
	}
	if got.Environment != "test" {
		t.Errorf("environment = %q, want test", got.Environment)
	}
	if !got.ReportedAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("reported_at = %v", got.ReportedAt)
	}
}

func TestRecentLimit(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		a.Report(ctx, sampleFinding("Slow query", model.Error))
	}
	entries, err := a.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
}

func TestCountByLevel(t *testing.T) {
	a := newTestArchive(t)
	ctx := context.Background()
	a.Report(ctx, sampleFinding("Slow query", model.Error))
	a.Report(ctx, sampleFinding("Too many rows examined", model.Error))
	a.Report(ctx, sampleFinding("Long lock time", model.Warning))

	counts, err := a.CountByLevel(ctx)
	if err != nil {
		t.Fatalf("CountByLevel error: %v", err)
	}
	if counts[model.Error] != 2 || counts[model.Warning] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "findings.db")
	a, err := New(path, "production")
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	a.Report(context.Background(), sampleFinding("Slow query", model.Critical))
	a.Close()

	b, err := New(path, "production")
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer b.Close()
	entries, err := b.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries after reopen, want 1", len(entries))
	}
}

func TestNewInvalidPath(t *testing.T) {
	if _, err := New("/nonexistent/path/to/findings.db", "x"); err == nil {
		t.Error("expected error for invalid database path")
	}
}
