//go:build rp2040

package main

import (
	"machine"

	"hiticomm/core"
)

// RPGPIODriver implements core.GPIODriver on the RP2040 GPIO bank.
// GPIO numbers map directly to machine.Pin.
type RPGPIODriver struct {
	configured map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configured: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput switches a pin to output. Pin modes change at run time, so
// the pin is reconfigured on every call.
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	d.configured[pin] = p
	return nil
}

// ConfigureInputPullUp switches a pin to input with its pull-up enabled
func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	d.configured[pin] = p
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	p, ok := d.configured[pin]
	if !ok {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		p = d.configured[pin]
	}
	p.Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	p, ok := d.configured[pin]
	if !ok {
		return false, nil
	}
	return p.Get(), nil
}
