// Package dump prints decoded events in a human-readable layout.
package dump

import (
	"fmt"
	"io"

	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/mrzor/ctftrace/internal/eventstream"
)

// Dumper writes one block per event.
type Dumper struct {
	w     io.Writer
	count int
}

// New returns a Dumper writing to w.
func New(w io.Writer) *Dumper {
	return &Dumper{w: w}
}

// HandleEvent prints ev's name, id, timestamp, context and payload.
func (d *Dumper) HandleEvent(ev ctf.Event) error {
	d.count++
	if _, err := fmt.Fprintf(d.w, "Event %d:\n  Name: %s\n  Event ID: 0x%02X\n  Timestamp: %d\n",
		d.count, ev.Name(), ev.ID(), ev.TimestampNs()); err != nil {
		return err
	}
	if err := d.fields("Context", ev.Context()); err != nil {
		return err
	}
	if err := d.fields("Payload", ev.Payload()); err != nil {
		return err
	}
	_, err := fmt.Fprintln(d.w)
	return err
}

func (d *Dumper) fields(title string, fields ctf.Fields) error {
	if len(fields) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(d.w, "  %s:\n", title); err != nil {
		return err
	}
	for _, f := range fields {
		if _, err := fmt.Fprintf(d.w, "    %s: %s\n", f.Name, ctf.FormatValue(f.Value)); err != nil {
			return err
		}
	}
	return nil
}

// Summary prints the trailer once the stream stopped.
func (d *Dumper) Summary(res eventstream.Result, limit int) error {
	if res.LimitReached {
		if _, err := fmt.Fprintf(d.w, "... (showing first %d events, total events may be more)\n", limit); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(d.w, "Parsed %d events from trace data\n", d.count)
	return err
}

// Count returns the number of events printed.
func (d *Dumper) Count() int {
	return d.count
}
