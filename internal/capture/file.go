package capture

import (
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes captured bytes to a file and fsyncs on Flush.
type FileSink struct {
	f *os.File
}

// CreateFile creates (or truncates) path, creating parent directories.
func CreateFile(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSink, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSink, err)
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) Write(p []byte) (int, error) { return s.f.Write(p) }

// Flush commits written bytes to stable storage.
func (s *FileSink) Flush() error { return s.f.Sync() }

func (s *FileSink) Close() error { return s.f.Close() }

// Name returns the file path.
func (s *FileSink) Name() string { return s.f.Name() }
