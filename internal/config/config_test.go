package config

import (
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseArgs mirrors how the root command binds and validates flags.
func parseArgs(args []string, defaults *EnvConfig) (*Config, error) {
	cfg := New(defaults)
	fs := pflag.NewFlagSet("ctftrace", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.BindFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if err := CheckArgs(fs.Args()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func testDefaults() *EnvConfig {
	return &EnvConfig{LogLevel: "info", PollInterval: 10 * time.Millisecond}
}

func TestConfig_Capture(t *testing.T) {
	cfg, err := parseArgs([]string{"-c", "-p", "/dev/ttyUSB0", "-b", "1000000", "-o", "trace.dat"}, testDefaults())
	require.NoError(t, err)
	assert.Equal(t, ModeCapture, cfg.Mode())
	assert.Equal(t, "/dev/ttyUSB0", cfg.Port)
	assert.Equal(t, 1000000, cfg.BaudRate)
	assert.Equal(t, "trace.dat", cfg.Output)
}

func TestConfig_Dump(t *testing.T) {
	cfg, err := parseArgs([]string{"-i", "trace_dir"}, testDefaults())
	require.NoError(t, err)
	assert.Equal(t, ModeDump, cfg.Mode())
	assert.Equal(t, DefaultLimit, cfg.Limit)
}

func TestConfig_ExportDefaultsOutput(t *testing.T) {
	cfg, err := parseArgs([]string{"--input", "trace_dir", "--perfetto", "--limit", "3"}, testDefaults())
	require.NoError(t, err)
	assert.Equal(t, ModeExport, cfg.Mode())
	assert.Equal(t, DefaultExportOutput, cfg.ExportOutput())
	assert.Equal(t, 3, cfg.Limit)

	cfg, err = parseArgs([]string{"-i", "trace_dir", "--perfetto", "-o", "out.json.gz"}, testDefaults())
	require.NoError(t, err)
	assert.Equal(t, "out.json.gz", cfg.ExportOutput())

	cfg, err = parseArgs([]string{"-i", "trace_dir", "--perfetto", "--otlp", "-t", "run-1"}, testDefaults())
	require.NoError(t, err)
	assert.True(t, cfg.OTLP)
	assert.Equal(t, "run-1", cfg.TraceID)
}

func TestConfig_EnvDefaults(t *testing.T) {
	defaults := testDefaults()
	defaults.Port = "/dev/ttyACM0"
	defaults.BaudRate = 115200
	defaults.Decoder = "decode {}"

	cfg, err := parseArgs([]string{"-c", "-o", "trace.dat"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM0", cfg.Port)
	assert.Equal(t, 115200, cfg.BaudRate)
	assert.Equal(t, "decode {}", cfg.Decoder)

	cfg, err = parseArgs([]string{"-c", "-o", "trace.dat", "-b", "9600"}, defaults)
	require.NoError(t, err)
	assert.Equal(t, 9600, cfg.BaudRate, "flag overrides env default")
}

func TestConfig_UsageErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "no mode", args: nil, want: "one of -c/--capture or -i/--input is required"},
		{name: "both modes", args: []string{"-c", "-i", "dir"}, want: "mutually exclusive"},
		{name: "capture missing everything", args: []string{"-c"}, want: "-p/--port"},
		{name: "capture missing output", args: []string{"-c", "-p", "/dev/ttyUSB0", "-b", "115200"}, want: "-o/--output"},
		{name: "capture with perfetto", args: []string{"-c", "-p", "x", "-b", "1", "-o", "y", "--perfetto"}, want: "only apply to parse mode"},
		{name: "trace id without otlp", args: []string{"-i", "dir", "--perfetto", "-t", "run-1"}, want: "--trace-id requires --otlp"},
		{name: "otlp without perfetto", args: []string{"-i", "dir", "--otlp"}, want: "--otlp requires --perfetto"},
		{name: "unknown flag", args: []string{"-i", "dir", "--bogus"}, want: "unknown flag"},
		{name: "bad int", args: []string{"-i", "dir", "-l", "many"}, want: "invalid argument"},
		{name: "positional", args: []string{"-i", "dir", "extra"}, want: "unexpected arguments"},
		{name: "zero poll interval", args: []string{"-i", "dir", "--poll-interval", "0s"}, want: "poll interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseArgs(tt.args, testDefaults())
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUsage), "error should wrap ErrUsage: %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "capture", ModeCapture.String())
	assert.Equal(t, "dump", ModeDump.String())
	assert.Equal(t, "export", ModeExport.String())
	assert.Equal(t, "none", ModeNone.String())
}

func TestParseEnvConfig(t *testing.T) {
	t.Setenv("CTFTRACE_PORT", "/dev/ttyUSB1")
	t.Setenv("CTFTRACE_BAUDRATE", "921600")
	t.Setenv("CTFTRACE_POLL_INTERVAL", "25ms")

	cfg, err := ParseEnvConfig()
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Port)
	assert.Equal(t, 921600, cfg.BaudRate)
	assert.Equal(t, 25*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseEnvConfig_Invalid(t *testing.T) {
	t.Setenv("CTFTRACE_BAUDRATE", "fast")

	_, err := ParseEnvConfig()
	require.Error(t, err)
}

func TestOTELConfig_GetEndpoint(t *testing.T) {
	tests := []struct {
		name string
		cfg  OTELConfig
		want string
	}{
		{name: "default", cfg: OTELConfig{}, want: "localhost:4318"},
		{name: "exporter endpoint", cfg: OTELConfig{ExporterEndpoint: "http://collector:4318"}, want: "collector:4318"},
		{name: "traces endpoint wins", cfg: OTELConfig{ExporterEndpoint: "a:1", TracesEndpoint: "https://b:2/"}, want: "b:2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cfg.GetEndpoint())
		})
	}
}

func TestOTELConfig_ParseResourceAttributes(t *testing.T) {
	cfg := OTELConfig{ResourceAttributes: "board=esp32s3, fw = 1.2 ,broken,=empty"}
	attrs := cfg.ParseResourceAttributes()
	require.Len(t, attrs, 2)
	assert.Equal(t, "board", string(attrs[0].Key))
	assert.Equal(t, "esp32s3", attrs[0].Value.AsString())
	assert.Equal(t, "fw", string(attrs[1].Key))
	assert.Equal(t, "1.2", attrs[1].Value.AsString())

	assert.Nil(t, (&OTELConfig{}).ParseResourceAttributes())
}

func TestParseOTELConfig_ServiceNameDefault(t *testing.T) {
	cfg, err := ParseOTELConfig()
	require.NoError(t, err)
	assert.Equal(t, "ctftrace", cfg.ServiceName)
}
