package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ErrUsage marks missing or conflicting command-line arguments.
var ErrUsage = errors.New("usage error")

// DefaultExportOutput is the Perfetto file written when -o is omitted.
const DefaultExportOutput = "perfetto_trace.json"

// DefaultLimit is the number of events printed in dump mode.
const DefaultLimit = 10

// Mode selects what the tool does.
type Mode int

const (
	ModeNone Mode = iota
	ModeCapture
	ModeDump
	ModeExport
)

func (m Mode) String() string {
	switch m {
	case ModeCapture:
		return "capture"
	case ModeDump:
		return "dump"
	case ModeExport:
		return "export"
	default:
		return "none"
	}
}

// Config holds the parsed command-line configuration.
type Config struct {
	// Capture selects capture mode (-c).
	Capture bool
	// Input is the trace path to parse or export (-i).
	Input string
	// Port is the serial device used in capture mode.
	Port string
	// BaudRate of the serial device.
	BaudRate int
	// Output is the capture file, or the Perfetto file in export mode.
	Output string
	// Limit caps the number of events printed in dump mode.
	Limit int
	// Perfetto selects export instead of dump when parsing.
	Perfetto bool
	// Filter is an optional expression selecting events.
	Filter string
	// Decoder is an external command producing JSONL events.
	Decoder string
	// OTLP replays exported records as spans.
	OTLP bool
	// TraceID pins the replayed spans to one trace. Free text is hashed.
	TraceID string
	// LogLevel is a logrus level name.
	LogLevel string
	// PollInterval is the wait between empty serial polls.
	PollInterval time.Duration
}

// New returns a Config seeded with env defaults.
func New(defaults *EnvConfig) *Config {
	return &Config{
		Port:         defaults.Port,
		BaudRate:     defaults.BaudRate,
		Limit:        DefaultLimit,
		Decoder:      defaults.Decoder,
		LogLevel:     defaults.LogLevel,
		PollInterval: defaults.PollInterval,
	}
}

// BindFlags registers the command-line flags on fs.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&c.Capture, "capture", "c", c.Capture, "Capture mode: capture data from UART")
	fs.StringVarP(&c.Input, "input", "i", c.Input, "Parse mode: trace file or directory to parse")
	fs.StringVarP(&c.Port, "port", "p", c.Port, "Serial port (e.g. /dev/ttyUSB0), required for capture mode")
	fs.IntVarP(&c.BaudRate, "baudrate", "b", c.BaudRate, "Serial baudrate (e.g. 115200), required for capture mode")
	fs.StringVarP(&c.Output, "output", "o", c.Output, "Output file path, required for capture mode, optional for parse mode")
	fs.IntVarP(&c.Limit, "limit", "l", c.Limit, "Limit number of events to display")
	fs.BoolVar(&c.Perfetto, "perfetto", c.Perfetto, "Export to Perfetto Trace Event Format (JSON)")
	fs.StringVar(&c.Filter, "filter", c.Filter, `Only keep events matching this expression (e.g. name startsWith "isr_")`)
	fs.StringVar(&c.Decoder, "decoder", c.Decoder, "Command printing decoded events as JSONL; {} is replaced by the input path")
	fs.BoolVar(&c.OTLP, "otlp", c.OTLP, "Replay exported records as OpenTelemetry spans over OTLP/HTTP")
	fs.StringVarP(&c.TraceID, "trace-id", "t", c.TraceID, "Trace ID for replayed spans (32 hex chars, other values are hashed)")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level (trace, debug, info, warn, error)")
	fs.DurationVar(&c.PollInterval, "poll-interval", c.PollInterval, "Wait between empty serial polls")
}

// Mode returns the selected mode. Validate must succeed first.
func (c *Config) Mode() Mode {
	switch {
	case c.Capture:
		return ModeCapture
	case c.Input != "" && c.Perfetto:
		return ModeExport
	case c.Input != "":
		return ModeDump
	default:
		return ModeNone
	}
}

// Validate checks mode exclusivity and mode-specific arguments.
func (c *Config) Validate() error {
	if c.Capture && c.Input != "" {
		return fmt.Errorf("%w: -c/--capture and -i/--input are mutually exclusive", ErrUsage)
	}
	switch c.Mode() {
	case ModeNone:
		return fmt.Errorf("%w: one of -c/--capture or -i/--input is required", ErrUsage)
	case ModeCapture:
		var missing []string
		if c.Port == "" {
			missing = append(missing, "-p/--port")
		}
		if c.BaudRate <= 0 {
			missing = append(missing, "-b/--baudrate")
		}
		if c.Output == "" {
			missing = append(missing, "-o/--output")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: capture mode requires %v", ErrUsage, missing)
		}
		if c.Perfetto || c.OTLP || c.TraceID != "" {
			return fmt.Errorf("%w: --perfetto, --otlp and --trace-id only apply to parse mode", ErrUsage)
		}
	case ModeDump:
		if c.OTLP {
			return fmt.Errorf("%w: --otlp requires --perfetto", ErrUsage)
		}
	}
	if c.TraceID != "" && !c.OTLP {
		return fmt.Errorf("%w: --trace-id requires --otlp", ErrUsage)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive, got %s", ErrUsage, c.PollInterval)
	}
	return nil
}

// ExportOutput returns the Perfetto output path, defaulting to
// DefaultExportOutput.
func (c *Config) ExportOutput() string {
	if c.Output == "" {
		return DefaultExportOutput
	}
	return c.Output
}

// CheckArgs rejects positional arguments.
func CheckArgs(args []string) error {
	if len(args) > 0 {
		return fmt.Errorf("%w: unexpected arguments %v", ErrUsage, args)
	}
	return nil
}
