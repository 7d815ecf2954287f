package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	// ErrTransport marks failures of the byte source (open, poll, read).
	ErrTransport = errors.New("transport error")
	// ErrSink marks failures writing or flushing captured bytes.
	ErrSink = errors.New("sink error")
)

// DefaultPollInterval is how long the loop waits when no bytes are pending.
const DefaultPollInterval = 10 * time.Millisecond

// Source is a byte stream that can report how many bytes are pending.
type Source interface {
	// Buffered returns the number of bytes that can be read without blocking.
	Buffered() (int, error)
	Read(p []byte) (int, error)
	Close() error
}

// Sink receives captured bytes. Flush must make previous writes durable.
type Sink interface {
	io.Writer
	Flush() error
	Close() error
}

// Options tunes the capture loop.
type Options struct {
	PollInterval time.Duration
	// Progress, if set, is called with the running total after every write.
	Progress func(total int64)
}

// Capture copies bytes from src to sink until ctx is done or src reports
// io.EOF. Every read is written and flushed before the next poll. Both src
// and sink are closed exactly once before Capture returns.
//
// Cancellation is not an error: the bytes written so far are returned with a
// nil error.
func Capture(ctx context.Context, src Source, sink Sink, opts Options) (written int64, err error) {
	defer func() {
		srcErr := src.Close()
		sinkErr := sink.Close()
		if err != nil {
			return
		}
		if sinkErr != nil {
			err = fmt.Errorf("%w: closing sink: %w", ErrSink, sinkErr)
		} else if srcErr != nil {
			err = fmt.Errorf("%w: closing source: %w", ErrTransport, srcErr)
		}
	}()

	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	timer := time.NewTimer(poll)
	defer timer.Stop()

	var buf []byte
	for {
		if ctx.Err() != nil {
			return written, nil
		}

		pending, err := src.Buffered()
		if err != nil {
			return written, fmt.Errorf("%w: polling source: %w", ErrTransport, err)
		}
		if pending == 0 {
			timer.Reset(poll)
			select {
			case <-ctx.Done():
				return written, nil
			case <-timer.C:
			}
			continue
		}

		if cap(buf) < pending {
			buf = make([]byte, pending)
		}
		n, readErr := src.Read(buf[:pending])
		if n > 0 {
			if _, err := sink.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("%w: writing: %w", ErrSink, err)
			}
			if err := sink.Flush(); err != nil {
				return written, fmt.Errorf("%w: flushing: %w", ErrSink, err)
			}
			written += int64(n)
			if opts.Progress != nil {
				opts.Progress(written)
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return written, nil
			}
			return written, fmt.Errorf("%w: reading: %w", ErrTransport, readErr)
		}
	}
}
