//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// HardwareClock implements core.Clock on the 1 MHz RP2040 timer
type HardwareClock struct{}

// NewHardwareClock returns the clock; the timer runs from reset
func NewHardwareClock() HardwareClock {
	return HardwareClock{}
}

// NowMillis implements core.Clock
func (HardwareClock) NowMillis() uint32 {
	return uint32(hardwareUptime() / 1000)
}

// hardwareUptime reads the full 64-bit microsecond counter
func hardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}
