package eventstream

import (
	"context"
	"errors"
	"io"

	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/mrzor/ctftrace/internal/filter"
	"github.com/sirupsen/logrus"
)

// Handler consumes the events of a stream, in order.
type Handler interface {
	HandleEvent(ev ctf.Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ev ctf.Event) error

func (f HandlerFunc) HandleEvent(ev ctf.Event) error { return f(ev) }

// Options controls which events reach the handler.
type Options struct {
	// Filter drops events it does not match. Nil keeps everything.
	Filter *filter.Filter
	// Limit stops the stream after this many handled events. Zero or less
	// means no limit.
	Limit int
	Log   logrus.FieldLogger
}

// Result summarizes a run.
type Result struct {
	Read         int
	Handled      int
	Skipped      int
	LimitReached bool
}

// Stream pulls events from a reader and dispatches them to a handler.
type Stream struct {
	reader  ctf.Reader
	handler Handler
	opts    Options
}

// New creates a Stream. It does not take ownership of reader.
func New(reader ctf.Reader, handler Handler, opts Options) *Stream {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Stream{
		reader:  reader,
		handler: handler,
		opts:    opts,
	}
}

// Run processes events until the reader is exhausted, the limit is reached
// or ctx is cancelled. Reader and handler errors abort the run; cancellation
// returns ctx.Err().
//
// There is no timeout: a reader that never ends keeps Run going until ctx
// is cancelled.
func (s *Stream) Run(ctx context.Context) (Result, error) {
	var res Result
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.opts.Limit > 0 && res.Handled >= s.opts.Limit {
			res.LimitReached = true
			s.logResult(res, "Event limit reached")
			return res, nil
		}

		ev, err := s.reader.Next()
		if errors.Is(err, io.EOF) {
			s.logResult(res, "Event stream exhausted")
			return res, nil
		}
		if err != nil {
			return res, err
		}
		res.Read++

		if !s.opts.Filter.Match(ev) {
			res.Skipped++
			continue
		}
		if err := s.handler.HandleEvent(ev); err != nil {
			return res, err
		}
		res.Handled++
	}
}

func (s *Stream) logResult(res Result, msg string) {
	s.opts.Log.WithFields(logrus.Fields{
		"read":    res.Read,
		"handled": res.Handled,
		"skipped": res.Skipped,
	}).Debug(msg)
}

// Run is a shorthand for New(reader, handler, opts).Run(ctx).
func Run(ctx context.Context, reader ctf.Reader, handler Handler, opts Options) (Result, error) {
	return New(reader, handler, opts).Run(ctx)
}
