package source

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

// LineReader yields input lines including their trailing newline. It
// returns io.EOF once no further input will arrive.
type LineReader interface {
	ReadLine(ctx context.Context) (string, error)
	Close() error
}

type lineResult struct {
	line string
	err  error
}

// Reader reads lines from a stream such as stdin. A final line without a
// newline is returned as-is before io.EOF.
//
// Reads run on a helper goroutine that stays at most one line ahead, so
// ReadLine can return ctx.Err() while the stream is idle. Blocking reads on
// stdin cannot be interrupted any other way.
type Reader struct {
	r      *bufio.Reader
	closer io.Closer

	start     sync.Once
	lines     chan lineResult
	done      chan struct{}
	closeOnce sync.Once
}

// NewReader wraps r. If r is also an io.Closer, Close closes it.
func NewReader(r io.Reader) *Reader {
	rd := &Reader{
		r:     bufio.NewReader(r),
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}
	if c, ok := r.(io.Closer); ok {
		rd.closer = c
	}
	return rd
}

// ReadLine blocks until a line is available or ctx is done.
func (r *Reader) ReadLine(ctx context.Context) (string, error) {
	r.start.Do(func() { go r.pump() })
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return res.line, res.err
	}
}

func (r *Reader) pump() {
	defer close(r.lines)
	for {
		line, err := r.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line != "" {
				if !r.deliver(lineResult{line: line}) {
					return
				}
			}
			r.deliver(lineResult{err: err})
			return
		}
		if !r.deliver(lineResult{line: line}) {
			return
		}
	}
}

func (r *Reader) deliver(res lineResult) bool {
	select {
	case r.lines <- res:
		return true
	case <-r.done:
		return false
	}
}

// Close stops the helper goroutine and closes the underlying stream when it
// is closable.
func (r *Reader) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.done)
		if r.closer != nil {
			err = r.closer.Close()
		}
	})
	return err
}
