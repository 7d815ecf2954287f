package perfetto

import (
	"bytes"
	"encoding/json"
)

// Phase is the single-letter event type of the Trace Event Format.
type Phase string

const (
	PhaseBegin    Phase = "B"
	PhaseEnd      Phase = "E"
	PhaseInstant  Phase = "i"
	PhaseMetadata Phase = "M"
)

const (
	// Category tags every converted trace event.
	Category = "freertos"
	// MetadataCategory tags thread-naming records.
	MetadataCategory = "__metadata"
	// ThreadNameRecord is the record name Perfetto uses to label a thread.
	ThreadNameRecord = "thread_name"
)

// Arg is one key of a record's args object.
type Arg struct {
	Key   string
	Value any
}

// Args is an ordered args object. It marshals to a JSON object keeping
// insertion order.
type Args []Arg

// Get returns the value stored under key.
func (a Args) Get(key string) (any, bool) {
	for _, arg := range a {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return nil, false
}

// Set replaces the value under key, or appends it.
func (a *Args) Set(key string, value any) {
	for i := range *a {
		if (*a)[i].Key == key {
			(*a)[i].Value = value
			return
		}
	}
	*a = append(*a, Arg{Key: key, Value: value})
}

// MarshalJSON encodes args as an object in insertion order.
func (a Args) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, arg := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(arg.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		value, err := json.Marshal(arg.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Record is one entry of the traceEvents array.
type Record struct {
	Name      string
	Category  string
	Phase     Phase
	ProcessID int64
	ThreadID  int64
	// Timestamp in microseconds.
	Timestamp float64
	Args      Args
}

// eventJSON and metadataJSON fix the key order of the two record kinds.
type eventJSON struct {
	Timestamp float64 `json:"ts"`
	ProcessID int64   `json:"pid"`
	ThreadID  int64   `json:"tid"`
	Phase     Phase   `json:"ph"`
	Name      string  `json:"name"`
	Category  string  `json:"cat"`
	Args      Args    `json:"args"`
}

type metadataJSON struct {
	Args      Args   `json:"args"`
	Category  string `json:"cat"`
	Name      string `json:"name"`
	Phase     Phase  `json:"ph"`
	ProcessID int64  `json:"pid"`
	ThreadID  int64  `json:"tid"`
	Timestamp int64  `json:"ts"`
}

// MarshalJSON writes event records as ts, pid, tid, ph, name, cat, args and
// metadata records as args, cat, name, ph, pid, tid, ts.
func (r Record) MarshalJSON() ([]byte, error) {
	args := r.Args
	if args == nil {
		args = Args{}
	}
	if r.Phase == PhaseMetadata {
		return json.Marshal(metadataJSON{
			Args:      args,
			Category:  r.Category,
			Name:      r.Name,
			Phase:     r.Phase,
			ProcessID: r.ProcessID,
			ThreadID:  r.ThreadID,
			Timestamp: int64(r.Timestamp),
		})
	}
	return json.Marshal(eventJSON{
		Timestamp: r.Timestamp,
		ProcessID: r.ProcessID,
		ThreadID:  r.ThreadID,
		Phase:     r.Phase,
		Name:      r.Name,
		Category:  r.Category,
		Args:      args,
	})
}

// Document is the top-level JSON object read by Perfetto.
type Document struct {
	TraceEvents []Record `json:"traceEvents"`
}

// ThreadName builds the metadata record naming a thread.
func ThreadName(threadID int64, name string) Record {
	return Record{
		Name:      ThreadNameRecord,
		Category:  MetadataCategory,
		Phase:     PhaseMetadata,
		ProcessID: threadID,
		ThreadID:  threadID,
		Args:      Args{{Key: "name", Value: name}},
	}
}
