package core

import "time"

// Clock supplies the millisecond time base of the gates.
// The counter wraps; elapsed times are computed by unsigned subtraction.
type Clock interface {
	NowMillis() uint32
}

// SystemClock counts milliseconds since it was created
type SystemClock struct {
	start time.Time
}

// NewSystemClock starts a clock at zero
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// NowMillis implements Clock
func (c *SystemClock) NowMillis() uint32 {
	return uint32(time.Since(c.start) / time.Millisecond)
}

// ManualClock is advanced explicitly (tests and stepped simulation)
type ManualClock struct {
	ms uint32
}

// NowMillis implements Clock
func (c *ManualClock) NowMillis() uint32 {
	return c.ms
}

// Set moves the clock to ms
func (c *ManualClock) Set(ms uint32) {
	c.ms = ms
}

// Advance moves the clock forward by ms
func (c *ManualClock) Advance(ms uint32) {
	c.ms += ms
}
