// Package filter selects decoded events with expr-lang expressions.
//
// Expressions are compiled once and evaluated per event against:
//   - name, id, ts: event name, numeric id, clock timestamp in ns
//   - core_id: context core_id as an integer (0 when absent)
//   - context, header, payload: field maps
package filter
