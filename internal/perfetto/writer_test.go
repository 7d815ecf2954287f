package perfetto

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvents() []ctf.Event {
	return []ctf.Event{
		event("isr_enter", 1234567, int64(1), field("isr_number", int64(7))),
		event("isr_exit", 1240000, int64(1), field("isr_number", int64(7))),
		event("task_create", 2000000, nil, field("name", "main")),
	}
}

func TestRecord_KeyOrder(t *testing.T) {
	records := exportEvents(t, sampleEvents()...)

	meta, err := json.Marshal(records[0])
	require.NoError(t, err)
	assert.Equal(t,
		`{"args":{"name":"Core_1"},"cat":"__metadata","name":"thread_name","ph":"M","pid":2,"tid":2,"ts":0}`,
		string(meta))

	ev, err := json.Marshal(records[1])
	require.NoError(t, err)
	assert.Equal(t,
		`{"ts":1234.567,"pid":2,"tid":2,"ph":"B","name":"ISR_7","cat":"freertos","args":{"isr_number":7,"core_id":1}}`,
		string(ev))
}

func TestEncode_Document(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Document{TraceEvents: exportEvents(t, sampleEvents()...)}))

	var doc struct {
		TraceEvents []map[string]any `json:"traceEvents"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Len(t, doc.TraceEvents, 5)

	phases := make([]string, 0, len(doc.TraceEvents))
	for _, rec := range doc.TraceEvents {
		phases = append(phases, rec["ph"].(string))
	}
	assert.Equal(t, []string{"M", "B", "E", "M", "i"}, phases)
	assert.True(t, strings.HasPrefix(buf.String(), "{\n  \"traceEvents\": ["), "pretty-printed")
}

func TestEncode_EmptyDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, Document{}))
	assert.JSONEq(t, `{"traceEvents":[]}`, buf.String())
}

func TestExportToFile_Idempotent(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.json")
	second := filepath.Join(dir, "second.json")

	stats, err := ExportToFile(ctf.NewSliceReader(sampleEvents()...), first)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Events)
	assert.Equal(t, 5, stats.Records)
	assert.Equal(t, 2, stats.Threads)

	_, err = ExportToFile(ctf.NewSliceReader(sampleEvents()...), second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestExportToFile_DecodeErrorWritesNothing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	r := &failingReader{events: sampleEvents(), err: ctf.ErrDecode}

	_, err := ExportToFile(r, path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ctf.ErrDecode))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "no output file on decode failure")
}

func TestWriteFile_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.json.gz")
	require.NoError(t, WriteFile(path, Document{TraceEvents: exportEvents(t, sampleEvents()...)}))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)

	var raw map[string][]json.RawMessage
	require.NoError(t, json.NewDecoder(zr).Decode(&raw))
	assert.Len(t, raw["traceEvents"], 5)
}

func TestWriteFile_BadPath(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.json"), Document{})
	require.Error(t, err)
}
