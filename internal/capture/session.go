package capture

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Opener opens the byte source of a session, typically a serial port.
type Opener func(port string, baudRate int) (Source, error)

// SessionConfig describes one capture run.
type SessionConfig struct {
	Port         string
	BaudRate     int
	Output       string
	PollInterval time.Duration
}

// Session wires a serial source to an output file and reports progress.
type Session struct {
	cfg  SessionConfig
	open Opener
	id   string
	out  io.Writer
	log  logrus.FieldLogger
}

// NewSession prepares a session. Progress lines go to out.
func NewSession(cfg SessionConfig, open Opener, out io.Writer, log logrus.FieldLogger) *Session {
	id := uuid.NewString()
	return &Session{
		cfg:  cfg,
		open: open,
		id:   id,
		out:  out,
		log: log.WithFields(logrus.Fields{
			"session": id,
			"port":    cfg.Port,
			"baud":    cfg.BaudRate,
			"output":  cfg.Output,
		}),
	}
}

// ID returns the session identifier attached to every log line.
func (s *Session) ID() string {
	return s.id
}

// Run opens the port and the output file, then captures until ctx is done.
// The port is opened first so a bad port leaves no output file behind.
func (s *Session) Run(ctx context.Context) (int64, error) {
	fmt.Fprintf(s.out, "Opening serial port: %s at %d baud\n", s.cfg.Port, s.cfg.BaudRate)
	fmt.Fprintf(s.out, "Output file: %s\n", s.cfg.Output)

	src, err := s.open(s.cfg.Port, s.cfg.BaudRate)
	if err != nil {
		return 0, fmt.Errorf("%w: opening %s: %w", ErrTransport, s.cfg.Port, err)
	}
	s.log.Debug("Serial port opened")
	fmt.Fprintln(s.out, "Serial port opened successfully")

	sink, err := CreateFile(s.cfg.Output)
	if err != nil {
		if closeErr := src.Close(); closeErr != nil {
			s.log.WithError(closeErr).Warn("Error closing serial port after output failure")
		}
		return 0, err
	}

	fmt.Fprintln(s.out, "Started capturing data... Press Ctrl+C to stop")
	start := time.Now()
	written, err := Capture(ctx, src, sink, Options{
		PollInterval: s.cfg.PollInterval,
		Progress: func(total int64) {
			fmt.Fprintf(s.out, "Captured %d bytes\r", total)
		},
	})
	fields := logrus.Fields{
		"bytes":    written,
		"size":     humanize.Bytes(uint64(written)),
		"duration": time.Since(start).Round(time.Millisecond),
	}
	if err != nil {
		s.log.WithFields(fields).WithError(err).Error("Capture failed")
		fmt.Fprintln(s.out, "Serial port closed")
		return written, err
	}

	if ctx.Err() != nil {
		fmt.Fprintf(s.out, "\nData capture interrupted. Data saved to: %s\n", s.cfg.Output)
	}
	s.log.WithFields(fields).Info("Capture finished")
	fmt.Fprintln(s.out, "Serial port closed")
	return written, nil
}
