package perfetto

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc Document) error {
	data, err := marshal(doc)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing trace document: %w", err)
	}
	return nil
}

// WriteFile writes doc to path. A path ending in .gz is gzip-compressed.
// The document is encoded before the file is created, so an encoding failure
// leaves no file behind; a failed write is reported, not truncated silently.
func WriteFile(path string, doc Document) (err error) {
	data, err := marshal(doc)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, closeErr)
		}
	}()

	var w io.Writer = f
	var zw *gzip.Writer
	if strings.HasSuffix(path, ".gz") {
		zw = gzip.NewWriter(f)
		w = zw
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing %s: %w", path, err)
		}
	}
	return nil
}

func marshal(doc Document) ([]byte, error) {
	if doc.TraceEvents == nil {
		doc.TraceEvents = []Record{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding trace document: %w", err)
	}
	return append(data, '\n'), nil
}
