package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Follower tails a growing file. At end of file it waits for the file to be
// written again instead of returning io.EOF. Only complete lines are
// returned; a partial trailing line is held until its newline arrives.
type Follower struct {
	path    string
	f       *os.File
	r       *bufio.Reader
	watcher *fsnotify.Watcher
	partial strings.Builder
}

// Follow opens path for tailing. When fromEnd is true, reading starts at
// the current end of the file.
func Follow(path string, fromEnd bool) (*Follower, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("follow: open %s: %w", path, err)
	}
	if fromEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, fmt.Errorf("follow: seek %s: %w", path, err)
		}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("follow: watcher: %w", err)
	}
	if err := w.Add(path); err != nil {
		w.Close()
		f.Close()
		return nil, fmt.Errorf("follow: watch %s: %w", path, err)
	}

	return &Follower{
		path:    path,
		f:       f,
		r:       bufio.NewReader(f),
		watcher: w,
	}, nil
}

// ReadLine returns the next complete line. It returns ctx.Err() when the
// context is cancelled while waiting, and io.EOF once the file is removed
// or renamed.
func (fl *Follower) ReadLine(ctx context.Context) (string, error) {
	for {
		chunk, err := fl.r.ReadString('\n')
		fl.partial.WriteString(chunk)
		if err == nil {
			line := fl.partial.String()
			fl.partial.Reset()
			return line, nil
		}
		if !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("follow: read %s: %w", fl.path, err)
		}
		if err := fl.wait(ctx); err != nil {
			return "", err
		}
	}
}

// wait blocks until the file is written to.
func (fl *Follower) wait(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fl.watcher.Events:
			if !ok {
				return io.EOF
			}
			if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				slog.Info("followed file went away", "path", fl.path, "op", event.Op.String())
				return io.EOF
			}
			if event.Op&fsnotify.Write == fsnotify.Write {
				return nil
			}
		case err, ok := <-fl.watcher.Errors:
			if !ok {
				return io.EOF
			}
			slog.Warn("watcher error", "path", fl.path, "error", err)
		}
	}
}

// Close stops watching and closes the file.
func (fl *Follower) Close() error {
	return errors.Join(fl.watcher.Close(), fl.f.Close())
}
