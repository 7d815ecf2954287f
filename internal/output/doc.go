// Package output replays exported Perfetto records as OpenTelemetry spans.
//
// Records are grouped under one root span per export. Trace timestamps are
// mapped to wall-clock time with timesync so that collectors display the
// capture relative to when it was exported.
package output
