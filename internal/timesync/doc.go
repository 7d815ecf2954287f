// Package timesync converts trace timestamps to wall-clock time.
//
// Firmware clocks count from an arbitrary origin (usually boot of the
// target). When trace records are replayed as spans the first record is
// anchored at the time the export started and later records keep their
// relative offsets.
package timesync
