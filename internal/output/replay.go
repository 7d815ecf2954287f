package output

import (
	"context"
	"time"

	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/mrzor/ctftrace/internal/perfetto"
	"github.com/mrzor/ctftrace/internal/timesync"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	// UnterminatedAttr marks spans whose End record never arrived.
	UnterminatedAttr = attribute.Key("ctftrace.unterminated")
	threadAttr       = attribute.Key("ctftrace.thread")
	threadIDAttr     = attribute.Key("ctftrace.tid")
	categoryAttr     = attribute.Key("ctftrace.category")
	phaseAttr        = attribute.Key("ctftrace.phase")
)

// ReplayStats summarizes one replay.
type ReplayStats struct {
	Spans         int
	Unterminated  int
	UnmatchedEnds int
}

type spanKey struct {
	threadID int64
	name     string
}

type openSpan struct {
	span  trace.Span
	start time.Time
}

// SpanReplayer turns exported Perfetto records into OpenTelemetry spans.
// Begin/End pairs on the same thread and name become one span, instants
// become zero-length spans.
type SpanReplayer struct {
	tracer  trace.Tracer
	anchor  time.Time
	log     logrus.FieldLogger
	clock   *timesync.Converter
	threads map[int64]string
	open    map[spanKey][]openSpan
	order   []spanKey
	stats   ReplayStats
}

// NewSpanReplayer returns a replayer placing the first event at anchor.
func NewSpanReplayer(tracer trace.Tracer, anchor time.Time, log logrus.FieldLogger) *SpanReplayer {
	return &SpanReplayer{
		tracer: tracer,
		anchor: anchor,
		log:    log,
	}
}

// Replay emits one root span named rootName with every record as a child.
// Begin records left open at the end are closed as zero-length spans
// carrying UnterminatedAttr.
func (r *SpanReplayer) Replay(ctx context.Context, rootName string, records []perfetto.Record) ReplayStats {
	r.clock = timesync.NewConverter(r.anchor, origin(records))
	r.threads = make(map[int64]string)
	r.open = make(map[spanKey][]openSpan)
	r.order = nil
	r.stats = ReplayStats{}

	rootStart := r.clock.WallClock(r.clock.Origin())
	rootEnd := rootStart
	ctx, root := r.tracer.Start(ctx, rootName, trace.WithTimestamp(rootStart))

	for _, rec := range records {
		if rec.Phase == perfetto.PhaseMetadata {
			r.nameThread(rec)
			continue
		}
		at := r.clock.WallClock(rec.Timestamp)
		if at.After(rootEnd) {
			rootEnd = at
		}
		switch rec.Phase {
		case perfetto.PhaseBegin:
			r.begin(ctx, rec, at)
		case perfetto.PhaseEnd:
			r.end(rec, at)
		default:
			_, span := r.tracer.Start(ctx, rec.Name, trace.WithTimestamp(at), trace.WithAttributes(r.attributes(rec)...))
			span.End(trace.WithTimestamp(at))
			r.stats.Spans++
		}
	}

	for _, key := range r.order {
		for _, pending := range r.open[key] {
			pending.span.SetAttributes(UnterminatedAttr.Bool(true))
			pending.span.End(trace.WithTimestamp(pending.start))
			r.stats.Spans++
			r.stats.Unterminated++
		}
	}
	root.End(trace.WithTimestamp(rootEnd))

	r.log.WithFields(logrus.Fields{
		"spans":          r.stats.Spans,
		"unterminated":   r.stats.Unterminated,
		"unmatched_ends": r.stats.UnmatchedEnds,
	}).Debug("Replayed records as spans")
	return r.stats
}

func (r *SpanReplayer) nameThread(rec perfetto.Record) {
	if rec.Name != perfetto.ThreadNameRecord {
		return
	}
	if name, ok := rec.Args.Get("name"); ok {
		r.threads[rec.ThreadID] = ctf.FormatValue(name)
	}
}

func (r *SpanReplayer) begin(ctx context.Context, rec perfetto.Record, at time.Time) {
	_, span := r.tracer.Start(ctx, rec.Name, trace.WithTimestamp(at), trace.WithAttributes(r.attributes(rec)...))
	key := spanKey{threadID: rec.ThreadID, name: rec.Name}
	if _, seen := r.open[key]; !seen {
		r.order = append(r.order, key)
	}
	r.open[key] = append(r.open[key], openSpan{span: span, start: at})
}

func (r *SpanReplayer) end(rec perfetto.Record, at time.Time) {
	key := spanKey{threadID: rec.ThreadID, name: rec.Name}
	stack := r.open[key]
	if len(stack) == 0 {
		r.stats.UnmatchedEnds++
		r.log.WithFields(logrus.Fields{"name": rec.Name, "tid": rec.ThreadID}).Debug("End record without matching Begin")
		return
	}
	top := stack[len(stack)-1]
	r.open[key] = stack[:len(stack)-1]
	top.span.End(trace.WithTimestamp(at))
	r.stats.Spans++
}

func (r *SpanReplayer) attributes(rec perfetto.Record) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		threadIDAttr.Int64(rec.ThreadID),
		categoryAttr.String(rec.Category),
		phaseAttr.String(string(rec.Phase)),
	}
	if name, ok := r.threads[rec.ThreadID]; ok {
		attrs = append(attrs, threadAttr.String(name))
	}
	for _, arg := range rec.Args {
		attrs = append(attrs, argAttribute(arg))
	}
	return attrs
}

func argAttribute(arg perfetto.Arg) attribute.KeyValue {
	key := attribute.Key(arg.Key)
	switch v := arg.Value.(type) {
	case string:
		return key.String(v)
	case bool:
		return key.Bool(v)
	case float64:
		return key.Float64(v)
	case float32:
		return key.Float64(float64(v))
	}
	if n, err := ctf.ToInt64(arg.Value); err == nil {
		return key.Int64(n)
	}
	return key.String(ctf.FormatValue(arg.Value))
}

// origin returns the timestamp of the first non-metadata record.
func origin(records []perfetto.Record) float64 {
	for _, rec := range records {
		if rec.Phase != perfetto.PhaseMetadata {
			return rec.Timestamp
		}
	}
	return 0
}
