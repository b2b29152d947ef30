package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/crimson-sun/slowlog/internal/model"
	"github.com/crimson-sun/slowlog/internal/notifier"
)

const (
	defaultBufSize = 16 * 1024
	maxBackups     = 5
)

// Option configures a file Notifier.
type Option func(*Notifier)

// WithMaxSize sets the file size (bytes) at which rotation triggers.
// 0 (default) disables rotation.
func WithMaxSize(bytes int64) Option {
	return func(n *Notifier) { n.maxSize = bytes }
}

// WithBufSize sets the bufio.Writer buffer size. Default: 16KB.
func WithBufSize(bytes int) Option {
	return func(n *Notifier) { n.bufSize = bytes }
}

// WithSync flushes the buffer after every finding so the file can be
// tailed while the process runs.
func WithSync() Option {
	return func(n *Notifier) { n.sync = true }
}

// Notifier appends findings to a file as NDJSON, with optional size-based
// rotation to path.1 .. path.5.
type Notifier struct {
	w       *bufio.Writer
	f       *os.File
	mu      sync.Mutex
	path    string
	maxSize int64 // 0 = no rotation
	written int64
	bufSize int
	sync    bool
}

// New opens (or creates) path for appending.
func New(path string, opts ...Option) (*Notifier, error) {
	n := &Notifier{
		path:    path,
		bufSize: defaultBufSize,
	}
	for _, opt := range opts {
		opt(n)
	}
	if err := n.openFile(); err != nil {
		return nil, err
	}
	return n, nil
}

// Report encodes the finding as one JSON line.
func (n *Notifier) Report(_ context.Context, f model.Finding) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	data, err := json.Marshal(notifier.NewRecord(f))
	if err != nil {
		return fmt.Errorf("file notifier: marshal: %w", err)
	}
	data = append(data, '\n')

	if n.maxSize > 0 && n.written > 0 && n.written+int64(len(data)) > n.maxSize {
		if err := n.rotate(); err != nil {
			return fmt.Errorf("file notifier: rotate: %w", err)
		}
	}

	written, err := n.w.Write(data)
	n.written += int64(written)
	if err != nil {
		return fmt.Errorf("file notifier: write: %w", err)
	}
	if n.sync {
		if err := n.w.Flush(); err != nil {
			return fmt.Errorf("file notifier: flush: %w", err)
		}
	}
	return nil
}

// Close flushes the buffer and closes the file.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.w.Flush(); err != nil {
		n.f.Close()
		return fmt.Errorf("file notifier: flush: %w", err)
	}
	return n.f.Close()
}

func (n *Notifier) openFile() error {
	f, err := os.OpenFile(n.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("file notifier: open %s: %w", n.path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("file notifier: stat %s: %w", n.path, err)
	}
	n.f = f
	n.w = bufio.NewWriterSize(f, n.bufSize)
	n.written = info.Size()
	return nil
}

// rotate closes the current file, shifts path.N to path.N+1 (dropping the
// oldest), renames the current file to path.1 and reopens path.
func (n *Notifier) rotate() error {
	if err := n.w.Flush(); err != nil {
		return err
	}
	if err := n.f.Close(); err != nil {
		return err
	}

	os.Remove(fmt.Sprintf("%s.%d", n.path, maxBackups))
	for i := maxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", n.path, i), fmt.Sprintf("%s.%d", n.path, i+1)) // may not exist
	}
	if err := os.Rename(n.path, n.path+".1"); err != nil {
		return err
	}

	n.written = 0
	return n.openFile()
}
