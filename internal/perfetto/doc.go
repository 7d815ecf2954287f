// Package perfetto converts decoded CTF events into Perfetto Trace Event
// Format JSON.
//
// Each input event yields exactly one record. The first event seen on a core
// is preceded by a thread_name metadata record "Core_<id>"; the core's
// thread id is core id + 1. Known event names are rewritten into Begin/End
// duration records through a fixed lookup table (see durationRules).
package perfetto
