package ctf

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/valyala/fastjson"
)

const maxLineSize = 16 << 20

// JSONLReader decodes one event per line. Each line is an object:
//
//	{"name": "isr_enter", "id": 2, "timestamp": 1200,
//	 "context": {"core_id": 0}, "header": {...}, "payload": {"isr_number": 7}}
//
// Blank lines are skipped. Field order inside context, header and payload is
// preserved.
type JSONLReader struct {
	name    string
	scanner *bufio.Scanner
	closer  io.Closer
	parser  fastjson.Parser
	line    int
}

// NewJSONLReader reads events from r. name labels decode errors.
func NewJSONLReader(name string, r io.Reader) *JSONLReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	jr := &JSONLReader{
		name:    name,
		scanner: scanner,
	}
	if c, ok := r.(io.Closer); ok {
		jr.closer = c
	}
	return jr
}

// Next decodes the next non-empty line.
func (r *JSONLReader) Next() (Event, error) {
	for r.scanner.Scan() {
		r.line++
		line := r.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		ev, err := r.decode(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %s:%d: %v", ErrDecode, r.name, r.line, err)
		}
		return ev, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrDecode, r.name, err)
	}
	return nil, io.EOF
}

// Close releases the underlying input, if it is closable.
func (r *JSONLReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *JSONLReader) decode(line []byte) (*Record, error) {
	v, err := r.parser.ParseBytes(line)
	if err != nil {
		return nil, err
	}
	if v.Type() != fastjson.TypeObject {
		return nil, fmt.Errorf("expected object, got %s", v.Type())
	}

	name := v.GetStringBytes("name")
	if name == nil {
		return nil, errors.New(`missing "name"`)
	}
	ts := v.Get("timestamp")
	if ts == nil {
		return nil, errors.New(`missing "timestamp"`)
	}
	clock, err := ts.Int64()
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}

	rec := &Record{
		EventName: string(name),
		EventID:   v.GetInt64("id"),
		ClockNs:   clock,
	}
	if rec.ContextFields, err = objectFields(v, "context"); err != nil {
		return nil, err
	}
	if rec.HeaderFields, err = objectFields(v, "header"); err != nil {
		return nil, err
	}
	if rec.PayloadFields, err = objectFields(v, "payload"); err != nil {
		return nil, err
	}
	return rec, nil
}

// objectFields copies the object at key out of the parser's arena.
// A missing or null key yields no fields.
func objectFields(v *fastjson.Value, key string) (Fields, error) {
	child := v.Get(key)
	if child == nil || child.Type() == fastjson.TypeNull {
		return nil, nil
	}
	obj, err := child.Object()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	fields := make(Fields, 0, obj.Len())
	obj.Visit(func(k []byte, fv *fastjson.Value) {
		fields = append(fields, Field{Name: string(k), Value: fieldValue(fv)})
	})
	return fields, nil
}

func fieldValue(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeNumber:
		if n, err := v.Int64(); err == nil {
			return n
		}
		if n, err := v.Uint64(); err == nil {
			return n
		}
		return v.GetFloat64()
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	case fastjson.TypeNull:
		return nil
	default:
		// nested objects and arrays are kept as their JSON text
		return v.String()
	}
}

// OpenFile opens a single JSONL file. Files ending in .zst are decompressed.
func OpenFile(path string) (*JSONLReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !strings.HasSuffix(path, ".zst") {
		return NewJSONLReader(path, f), nil
	}

	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("%w: opening zstd stream %s: %v", ErrDecode, path, err)
	}
	return NewJSONLReader(path, &zstdFile{dec: dec, f: f}), nil
}

type zstdFile struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdFile) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdFile) Close() error {
	z.dec.Close()
	return z.f.Close()
}

// Open returns a Reader for path. A directory is read as the concatenation of
// its *.jsonl and *.jsonl.zst files in lexical order.
func Open(path string) (Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if !info.IsDir() {
		return OpenFile(path)
	}

	var files []string
	for _, pattern := range []string{"*.jsonl", "*.jsonl.zst"} {
		matches, err := filepath.Glob(filepath.Join(path, pattern))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		files = append(files, matches...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no decoded event files (*.jsonl, *.jsonl.zst) in %s", ErrDecode, path)
	}
	sort.Strings(files)
	return &multiReader{files: files}, nil
}

// multiReader opens files lazily, one at a time.
type multiReader struct {
	files   []string
	current *JSONLReader
}

func (m *multiReader) Next() (Event, error) {
	for {
		if m.current == nil {
			if len(m.files) == 0 {
				return nil, io.EOF
			}
			r, err := OpenFile(m.files[0])
			if err != nil {
				return nil, err
			}
			m.files = m.files[1:]
			m.current = r
		}
		ev, err := m.current.Next()
		if err == io.EOF {
			closeErr := m.current.Close()
			m.current = nil
			if closeErr != nil {
				return nil, fmt.Errorf("%w: %v", ErrDecode, closeErr)
			}
			continue
		}
		return ev, err
	}
}

func (m *multiReader) Close() error {
	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}
