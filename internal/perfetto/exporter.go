package perfetto

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/mrzor/ctftrace/internal/eventstream"
	"github.com/mrzor/ctftrace/internal/filter"
	"github.com/sirupsen/logrus"
)

// ThreadRegistry assigns a thread id to each core id, in first-seen order.
// It belongs to a single export run.
type ThreadRegistry struct {
	threads map[int64]int64
}

// NewThreadRegistry creates an empty registry.
func NewThreadRegistry() *ThreadRegistry {
	return &ThreadRegistry{threads: make(map[int64]int64)}
}

// Register returns the thread id of coreID and whether this call added it.
func (r *ThreadRegistry) Register(coreID int64) (threadID int64, added bool) {
	if tid, ok := r.threads[coreID]; ok {
		return tid, false
	}
	tid := coreID + 1
	r.threads[coreID] = tid
	return tid, true
}

// Len returns the number of registered cores.
func (r *ThreadRegistry) Len() int {
	return len(r.threads)
}

// Stats summarizes an export run.
type Stats struct {
	Events  int
	Records int
	Threads int
	// ConvertFallbacks counts values that had an integer conversion which
	// failed and were kept as strings instead.
	ConvertFallbacks int
}

// Exporter turns decoded events into Perfetto records. Use one Exporter per
// export run.
type Exporter struct {
	registry *ThreadRegistry
	records  []Record
	stats    Stats
	filter   *filter.Filter
	log      logrus.FieldLogger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithLogger routes conversion diagnostics to log.
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Exporter) { e.log = log }
}

// WithFilter drops events f does not match before they are converted.
func WithFilter(f *filter.Filter) Option {
	return func(e *Exporter) { e.filter = f }
}

// NewExporter creates an Exporter with an empty thread registry.
func NewExporter(opts ...Option) *Exporter {
	e := &Exporter{
		registry: NewThreadRegistry(),
		log:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleEvent appends the record for ev, preceded by a thread-naming record
// the first time ev's core is seen. It never fails.
func (e *Exporter) HandleEvent(ev ctf.Event) error {
	e.stats.Events++

	coreID := e.coreID(ev)
	threadID, added := e.registry.Register(coreID)
	if added {
		e.records = append(e.records, ThreadName(threadID, fmt.Sprintf("Core_%d", coreID)))
	}

	args := e.args(ev)
	args.Set("core_id", coreID)

	rec := Record{
		Name:      ev.Name(),
		Category:  Category,
		Phase:     PhaseInstant,
		ProcessID: threadID,
		ThreadID:  threadID,
		Timestamp: float64(e.timestampNs(ev)) / 1000.0,
		Args:      args,
	}
	applyDurationRule(ev.Name(), &rec)
	e.records = append(e.records, rec)
	return nil
}

// Records returns the records produced so far.
func (e *Exporter) Records() []Record {
	return e.records
}

// Document wraps the records produced so far.
func (e *Exporter) Document() Document {
	return Document{TraceEvents: e.records}
}

// Stats returns counters for the run so far.
func (e *Exporter) Stats() Stats {
	s := e.stats
	s.Records = len(e.records)
	s.Threads = e.registry.Len()
	return s
}

// coreID reads context.core_id, defaulting to 0.
func (e *Exporter) coreID(ev ctf.Event) int64 {
	raw, ok := ev.Context().Get("core_id")
	if !ok || raw == nil {
		return 0
	}
	id, err := ctf.ParseInt64(raw)
	if err != nil {
		e.stats.ConvertFallbacks++
		e.log.WithFields(logrus.Fields{
			"event":   ev.Name(),
			"core_id": ctf.FormatValue(raw),
		}).Debugf("Unusable core_id, using core 0: %v", err)
		return 0
	}
	return id
}

// timestampNs prefers the header's timestamp over the clock snapshot.
func (e *Exporter) timestampNs(ev ctf.Event) int64 {
	raw, ok := ev.Header().Get("timestamp")
	if !ok {
		return ev.TimestampNs()
	}
	ts, err := ctf.ParseInt64(raw)
	if err != nil {
		e.stats.ConvertFallbacks++
		e.log.WithField("event", ev.Name()).Debugf("Unusable header timestamp, using clock snapshot: %v", err)
		return ev.TimestampNs()
	}
	return ts
}

func (e *Exporter) args(ev ctf.Event) Args {
	payload := ev.Payload()
	args := make(Args, 0, len(payload)+1)
	for _, field := range payload {
		// A repeated key keeps its first position and its last value.
		args.Set(field.Name, e.argValue(ev, field))
	}
	return args
}

// argValue keeps integer-convertible values as integers and everything else
// as its string form.
func (e *Exporter) argValue(ev ctf.Event, field ctf.Field) any {
	n, err := ctf.ToInteger(field.Value)
	if err == nil {
		return n
	}
	if !errors.Is(err, ctf.ErrNotInteger) {
		e.stats.ConvertFallbacks++
		e.log.WithFields(logrus.Fields{
			"event": ev.Name(),
			"field": field.Name,
		}).Debugf("Keeping field as string: %v", err)
	}
	return ctf.FormatValue(field.Value)
}

// Run drains r into the exporter, applying the filter set with WithFilter.
// A reader error aborts the run and is returned unchanged.
func (e *Exporter) Run(ctx context.Context, r ctf.Reader) error {
	_, err := eventstream.Run(ctx, r, e, eventstream.Options{
		Filter: e.filter,
		Log:    e.log,
	})
	return err
}

// ExportToFile drains r and writes the document to path. Nothing is written
// when reading fails.
func (e *Exporter) ExportToFile(ctx context.Context, r ctf.Reader, path string) error {
	if err := e.Run(ctx, r); err != nil {
		return err
	}
	return WriteFile(path, e.Document())
}

// Export drains r and returns the resulting records. A reader error aborts
// the export and is returned unchanged.
func Export(r ctf.Reader, opts ...Option) ([]Record, error) {
	e := NewExporter(opts...)
	if err := e.Run(context.Background(), r); err != nil {
		return nil, err
	}
	return e.Records(), nil
}

// ExportToFile exports r and writes the document to path. Nothing is written
// when reading fails.
func ExportToFile(r ctf.Reader, path string, opts ...Option) (Stats, error) {
	e := NewExporter(opts...)
	err := e.ExportToFile(context.Background(), r, path)
	return e.Stats(), err
}
