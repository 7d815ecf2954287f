package ctf

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
)

// ErrDecode marks failures reported by the decoder or while reading its output.
var ErrDecode = errors.New("decode error")

// ErrNotInteger is returned by ToInt64 for values without an integer conversion.
var ErrNotInteger = errors.New("value has no integer conversion")

// Field is a single named value of an event's context, header or payload.
type Field struct {
	Name  string
	Value any
}

// Fields is an ordered list of fields, in decoder order.
type Fields []Field

// Get returns the value of the first field called name.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Map returns the fields as a map. Later duplicates win.
func (f Fields) Map() map[string]any {
	m := make(map[string]any, len(f))
	for _, field := range f {
		m[field.Name] = field.Value
	}
	return m
}

// Event is the read-only view of one decoded trace event.
type Event interface {
	Name() string
	ID() int64
	// TimestampNs is the event's clock snapshot in nanoseconds from the clock origin.
	TimestampNs() int64
	Context() Fields
	Header() Fields
	Payload() Fields
}

// Reader is a lazy, ordered sequence of events.
type Reader interface {
	// Next returns the next event, or io.EOF once the stream is exhausted.
	Next() (Event, error)
	Close() error
}

// Record is a plain in-memory Event.
type Record struct {
	EventName     string
	EventID       int64
	ClockNs       int64
	ContextFields Fields
	HeaderFields  Fields
	PayloadFields Fields
}

func (r *Record) Name() string       { return r.EventName }
func (r *Record) ID() int64          { return r.EventID }
func (r *Record) TimestampNs() int64 { return r.ClockNs }
func (r *Record) Context() Fields    { return r.ContextFields }
func (r *Record) Header() Fields     { return r.HeaderFields }
func (r *Record) Payload() Fields    { return r.PayloadFields }

// SliceReader serves events from memory.
type SliceReader struct {
	events []Event
	pos    int
}

// NewSliceReader returns a Reader over events.
func NewSliceReader(events ...Event) *SliceReader {
	return &SliceReader{events: events}
}

func (r *SliceReader) Next() (Event, error) {
	if r.pos >= len(r.events) {
		return nil, io.EOF
	}
	ev := r.events[r.pos]
	r.pos++
	return ev, nil
}

func (r *SliceReader) Close() error { return nil }

// Integer is implemented by decoder values that carry their own integer
// conversion (enumerations, json.Number, ...).
type Integer interface {
	Int64() (int64, error)
}

// ToInt64 converts a field value to an integer the way the decoder's values
// convert themselves: integers as-is, floats truncated toward zero, booleans
// as 0/1. Strings and composite values return ErrNotInteger. Values that do
// have a conversion but cannot represent an int64 return another error.
func ToInt64(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt64(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt64(n)
	case float32:
		return floatToInt64(float64(n))
	case float64:
		return floatToInt64(n)
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	case Integer:
		return n.Int64()
	default:
		return 0, ErrNotInteger
	}
}

// ToInteger is ToInt64 except that unsigned values above math.MaxInt64 are
// returned as uint64 instead of failing. The result is int64 or uint64.
func ToInteger(v any) (any, error) {
	switch n := v.(type) {
	case uint:
		if uint64(n) > math.MaxInt64 {
			return uint64(n), nil
		}
	case uint64:
		if n > math.MaxInt64 {
			return n, nil
		}
	}
	n, err := ToInt64(v)
	if err != nil {
		return nil, err
	}
	return n, nil
}

// ParseInt64 is ToInt64 that also accepts decimal strings.
func ParseInt64(v any) (int64, error) {
	if s, ok := v.(string); ok {
		return strconv.ParseInt(s, 10, 64)
	}
	return ToInt64(v)
}

func uintToInt64(n uint64) (int64, error) {
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", n)
	}
	return int64(n), nil
}

func floatToInt64(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("cannot convert %v to integer", f)
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}
	return int64(f), nil
}

// FormatValue renders a field value for display.
func FormatValue(v any) string {
	switch s := v.(type) {
	case nil:
		return "null"
	case string:
		return s
	case []byte:
		return string(s)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}
