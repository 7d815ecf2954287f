package dump

import (
	"bytes"
	"context"
	"testing"

	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/mrzor/ctftrace/internal/eventstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumper_Limit(t *testing.T) {
	reader := ctf.NewSliceReader(
		&ctf.Record{
			EventName:     "isr_enter",
			EventID:       0x0a,
			ClockNs:       1200,
			ContextFields: ctf.Fields{{Name: "core_id", Value: int64(1)}},
			PayloadFields: ctf.Fields{{Name: "isr_number", Value: int64(7)}},
		},
		&ctf.Record{EventName: "task_create", EventID: 3, ClockNs: 1300},
		&ctf.Record{EventName: "never_printed", ClockNs: 1400},
	)

	var out bytes.Buffer
	d := New(&out)
	res, err := eventstream.Run(context.Background(), reader, d, eventstream.Options{Limit: 2})
	require.NoError(t, err)
	require.NoError(t, d.Summary(res, 2))

	want := `Event 1:
  Name: isr_enter
  Event ID: 0x0A
  Timestamp: 1200
  Context:
    core_id: 1
  Payload:
    isr_number: 7

Event 2:
  Name: task_create
  Event ID: 0x03
  Timestamp: 1300

... (showing first 2 events, total events may be more)
Parsed 2 events from trace data
`
	assert.Equal(t, want, out.String())
	assert.Equal(t, 2, d.Count())
}

func TestDumper_FewerEventsThanLimit(t *testing.T) {
	reader := ctf.NewSliceReader(&ctf.Record{EventName: "a"})

	var out bytes.Buffer
	d := New(&out)
	res, err := eventstream.Run(context.Background(), reader, d, eventstream.Options{Limit: 10})
	require.NoError(t, err)
	require.NoError(t, d.Summary(res, 10))

	assert.NotContains(t, out.String(), "showing first")
	assert.Contains(t, out.String(), "Parsed 1 events from trace data")
}
