// Package ctf exposes decoded CTF trace events as a pull-based stream.
//
// Decoding the CTF wire format is owned by an external decoder (babeltrace2
// or equivalent). This package only consumes its output:
//   - Event: accessor interface over one decoded event record
//   - Reader: lazy, ordered, finite sequence of events (io.EOF at the end)
//   - JSONLReader: decoded events serialized one JSON object per line,
//     optionally zstd-compressed
//   - CommandReader: runs an external decoder and reads its JSONL stdout
//
// Event order is whatever the decoder reports; nothing here reorders.
package ctf
