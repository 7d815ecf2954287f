// Package capture drains a serial byte source into a durable file.
//
// The loop polls the source for pending bytes, writes each non-empty read to
// the sink and flushes it before polling again, so bytes reported as captured
// survive a crash. Cancellation through the context ends the capture
// successfully with the bytes written so far. Source and sink are always
// closed before Capture returns.
package capture
