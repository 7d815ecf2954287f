// Package config parses command-line flags and environment variables.
//
// Flags are bound with pflag. CTFTRACE_* variables provide defaults for the
// serial port, baud rate, decoder command, log level and poll interval.
// OTEL_* variables configure the optional span exporter.
package config
