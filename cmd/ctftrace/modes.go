package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrzor/ctftrace/internal/capture"
	"github.com/mrzor/ctftrace/internal/config"
	"github.com/mrzor/ctftrace/internal/ctf"
	"github.com/mrzor/ctftrace/internal/dump"
	"github.com/mrzor/ctftrace/internal/eventstream"
	"github.com/mrzor/ctftrace/internal/filter"
	"github.com/mrzor/ctftrace/internal/otel"
	"github.com/mrzor/ctftrace/internal/output"
	"github.com/mrzor/ctftrace/internal/perfetto"
	"github.com/mrzor/ctftrace/internal/serialport"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

const otelShutdownTimeout = 5 * time.Second

// openSerial adapts serialport.Open to capture.Opener.
func openSerial(port string, baudRate int) (capture.Source, error) {
	p, err := serialport.Open(port, baudRate)
	if err != nil {
		if ports, listErr := serialport.List(); listErr == nil && len(ports) > 0 {
			return nil, fmt.Errorf("%w (available ports: %s)", err, strings.Join(ports, ", "))
		}
		return nil, err
	}
	return p, nil
}

func runCapture(ctx context.Context, cfg *config.Config, stdout io.Writer, log logrus.FieldLogger) error {
	session := capture.NewSession(capture.SessionConfig{
		Port:         cfg.Port,
		BaudRate:     cfg.BaudRate,
		Output:       cfg.Output,
		PollInterval: cfg.PollInterval,
	}, openSerial, stdout, log)
	_, err := session.Run(ctx)
	return err
}

// openReader returns the event source for cfg.Input, piping it through the
// decoder command when one is configured.
func openReader(ctx context.Context, cfg *config.Config) (ctf.Reader, error) {
	if cfg.Decoder != "" {
		return ctf.NewCommandReader(ctx, cfg.Decoder, cfg.Input)
	}
	return ctf.Open(cfg.Input)
}

// openEvents compiles the filter and opens the event source. The caller
// closes the returned reader.
func openEvents(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (ctf.Reader, *filter.Filter, error) {
	f, err := filter.Compile(cfg.Filter, log)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", config.ErrUsage, err)
	}
	reader, err := openReader(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return reader, f, nil
}

func closeReader(reader ctf.Reader, log logrus.FieldLogger) {
	if err := reader.Close(); err != nil {
		log.WithError(err).Warn("Error closing event source")
	}
}

func runDump(ctx context.Context, cfg *config.Config, stdout io.Writer, log logrus.FieldLogger) error {
	fmt.Fprintf(stdout, "Parsing trace data from: %s\n", cfg.Input)

	reader, f, err := openEvents(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("error parsing trace data: %w", err)
	}
	defer closeReader(reader, log)

	d := dump.New(stdout)
	res, err := eventstream.Run(ctx, reader, d, eventstream.Options{
		Filter: f,
		Limit:  cfg.Limit,
		Log:    log,
	})
	if err != nil {
		return fmt.Errorf("error parsing trace data: %w", err)
	}
	return d.Summary(res, cfg.Limit)
}

func runExport(ctx context.Context, cfg *config.Config, stdout io.Writer, log logrus.FieldLogger) error {
	path := cfg.ExportOutput()
	fmt.Fprintf(stdout, "Exporting CTF trace data from: %s\n", cfg.Input)
	fmt.Fprintf(stdout, "Output file: %s\n", path)

	reader, f, err := openEvents(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("error exporting to Perfetto format: %w", err)
	}
	defer closeReader(reader, log)

	started := time.Now()
	exporter := perfetto.NewExporter(perfetto.WithLogger(log), perfetto.WithFilter(f))
	if err := exporter.ExportToFile(ctx, reader, path); err != nil {
		return fmt.Errorf("error exporting to Perfetto format: %w", err)
	}

	stats := exporter.Stats()
	fmt.Fprintf(stdout, "Exported %d events to %s\n", stats.Records, path)
	fmt.Fprintf(stdout, "Total events processed: %d\n", stats.Events)
	fmt.Fprintf(stdout, "Named threads: %d\n", stats.Threads)
	if stats.ConvertFallbacks > 0 {
		log.WithField("fallbacks", stats.ConvertFallbacks).Warn("Some values could not be converted to integers and were kept as strings")
	}

	if cfg.OTLP {
		return replaySpans(ctx, cfg, exporter.Records(), started, log)
	}
	return nil
}

func replaySpans(ctx context.Context, cfg *config.Config, records []perfetto.Record, anchor time.Time, log logrus.FieldLogger) error {
	otelCfg, err := config.ParseOTELConfig()
	if err != nil {
		return err
	}
	var traceID trace.TraceID
	if cfg.TraceID != "" {
		var hashed bool
		traceID, hashed = otel.ParseTraceID(cfg.TraceID)
		if hashed {
			log.WithFields(logrus.Fields{"input": cfg.TraceID, "trace_id": traceID.String()}).Warn("Trace ID is not 32 hex characters, using its SHA-256 hash")
		}
	}
	sessionID := uuid.NewString()
	tp, err := otel.InitProvider(ctx, otelCfg, sessionID, traceID, log)
	if err != nil {
		return fmt.Errorf("failed to initialize OTEL provider: %w", err)
	}

	stats := output.NewSpanReplayer(tp.Tracer("ctftrace"), anchor, log).Replay(ctx, cfg.Input, records)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), otelShutdownTimeout)
	defer cancel()
	if err := otel.ShutdownProvider(shutdownCtx, tp); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"session":      sessionID,
		"spans":        stats.Spans,
		"unterminated": stats.Unterminated,
	}).Info("Exported spans over OTLP")
	return nil
}
