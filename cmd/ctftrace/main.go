// ctftrace captures CTF trace data from a UART and exports decoded events to
// the Perfetto Trace Event Format.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/mrzor/ctftrace/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version information injected at build time.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	exitRuntime = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the root command and maps its error to an exit code.
func run(args []string, stdout, stderr io.Writer) int {
	defaults, err := config.ParseEnvConfig()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand(config.New(defaults), stdout, stderr)
	cmd.SetArgs(args)
	err = cmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrUsage):
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		return exitUsage
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitRuntime
	}
}

func newRootCommand(cfg *config.Config, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ctftrace (-c -p PORT -b BAUD -o FILE | -i PATH [--perfetto] [-o FILE])",
		Short: "Capture UART trace data, or parse and export existing trace data",
		Example: `  ctftrace -c -p /dev/ttyUSB0 -b 1000000 -o trace/data
  ctftrace -i trace -l 20
  ctftrace -i trace --perfetto -o trace.json`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceErrors: true,
		SilenceUsage:  true,
		Args: func(_ *cobra.Command, args []string) error {
			return config.CheckArgs(args)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			log, err := newLogger(cfg.LogLevel, stderr)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"mode": cfg.Mode(), "version": version}).Debug("Starting")

			switch cfg.Mode() {
			case config.ModeCapture:
				return runCapture(cmd.Context(), cfg, stdout, log)
			case config.ModeDump:
				return runDump(cmd.Context(), cfg, stdout, log)
			default:
				return runExport(cmd.Context(), cfg, stdout, log)
			}
		},
	}
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %w", config.ErrUsage, err)
	})
	cfg.BindFlags(cmd.Flags())
	cmd.Flags().SortFlags = false
	return cmd
}

func newLogger(level string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", config.ErrUsage, err)
	}
	log := logrus.New()
	log.SetOutput(out)
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
