package timesync

import (
	"math"
	"time"
)

// Converter maps trace-clock microseconds onto wall-clock time.
type Converter struct {
	anchor   time.Time
	originUs float64
}

// NewConverter returns a Converter that places originUs at anchor.
func NewConverter(anchor time.Time, originUs float64) *Converter {
	return &Converter{
		anchor:   anchor,
		originUs: originUs,
	}
}

// WallClock converts a trace timestamp in microseconds to wall-clock time.
// Sub-nanosecond fractions are rounded.
func (c *Converter) WallClock(us float64) time.Time {
	return c.anchor.Add(time.Duration(math.Round((us - c.originUs) * 1000)))
}

// Anchor returns the wall-clock time of the origin.
func (c *Converter) Anchor() time.Time {
	return c.anchor
}

// Origin returns the trace timestamp mapped to Anchor.
func (c *Converter) Origin() float64 {
	return c.originUs
}
