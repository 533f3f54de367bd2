//go:build rp2040

package main

import (
	"machine"

	"hiticomm/core"
)

// pwmPeriod is the PWM output period in nanoseconds (1 kHz, close to the
// Uno's 980 Hz / 490 Hz outputs)
const pwmPeriod = 1e6

// pwmPeripheral abstracts over TinyGo's unexported *pwmGroup type
type pwmPeripheral interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

// RP2040PWMDriver implements core.PWMDriver on the eight PWM slices.
// GPIO N belongs to slice (N>>1)&7, channel N&1.
type RP2040PWMDriver struct {
	channels    map[core.PWMPin]uint8
	peripherals map[uint8]pwmPeripheral
}

// NewRP2040PWMDriver creates a new RP2040 PWM driver
func NewRP2040PWMDriver() *RP2040PWMDriver {
	return &RP2040PWMDriver{
		channels:    make(map[core.PWMPin]uint8),
		peripherals: make(map[uint8]pwmPeripheral),
	}
}

// GetMaxValue implements core.PWMDriver; duties are scaled to Top() here
func (d *RP2040PWMDriver) GetMaxValue() uint32 {
	return 255
}

// ConfigurePWM implements core.PWMDriver
func (d *RP2040PWMDriver) ConfigurePWM(pin core.PWMPin) error {
	slice := sliceOf(uint32(pin))
	pwm, ok := d.peripherals[slice]
	if !ok {
		pwm = pwmSlice(slice)
		if err := pwm.Configure(machine.PWMConfig{Period: pwmPeriod}); err != nil {
			return err
		}
		d.peripherals[slice] = pwm
	}
	ch, err := pwm.Channel(machine.Pin(pin))
	if err != nil {
		return err
	}
	d.channels[pin] = ch
	return nil
}

// SetDutyCycle implements core.PWMDriver
func (d *RP2040PWMDriver) SetDutyCycle(pin core.PWMPin, value core.PWMValue) error {
	ch, ok := d.channels[pin]
	if !ok {
		return nil
	}
	pwm := d.peripherals[sliceOf(uint32(pin))]
	pwm.Set(ch, uint32(value)*pwm.Top()/255)
	return nil
}

func sliceOf(gpio uint32) uint8 {
	return uint8((gpio >> 1) & 0x7)
}

// pwmSlice returns the PWM peripheral for a slice number
func pwmSlice(n uint8) pwmPeripheral {
	switch n {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}
