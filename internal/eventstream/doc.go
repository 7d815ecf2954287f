// Package eventstream drives a single pass over a decoded event stream.
//
// A Stream pulls events from a ctf.Reader, drops the ones rejected by the
// optional filter, stops at an optional limit, and hands every remaining
// event to a Handler in stream order. Dump mode and Perfetto export are both
// Handlers.
package eventstream
