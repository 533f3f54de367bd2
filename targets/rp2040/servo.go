//go:build rp2040

package main

import (
	"errors"
	"machine"

	"tinygo.org/x/drivers/servo"

	"hiticomm/core"
)

// servoPins are the GPIOs of the servo channels. Both sit on PWM slice 0,
// which no digital PWM pin uses.
var servoPins = []machine.Pin{machine.GPIO16, machine.GPIO17}

// Pulse widths of a standard hobby servo, in microseconds
const (
	servoMinPulse = 544
	servoMaxPulse = 2400
)

// RPServoDriver implements core.ServoDriver with the TinyGo servo driver
type RPServoDriver struct {
	pins   []machine.Pin
	servos map[core.ServoChannel]servo.Servo
}

// NewRPServoDriver creates a driver for the given channel pins
func NewRPServoDriver(pins []machine.Pin) *RPServoDriver {
	return &RPServoDriver{
		pins:   pins,
		servos: make(map[core.ServoChannel]servo.Servo),
	}
}

// ConfigureServo implements core.ServoDriver
func (d *RPServoDriver) ConfigureServo(ch core.ServoChannel) error {
	if int(ch) >= len(d.pins) {
		return errors.New("unsupported servo channel")
	}
	pin := d.pins[ch]
	s, err := servo.New(pwmSlice(sliceOf(uint32(pin))), pin)
	if err != nil {
		return err
	}
	d.servos[ch] = s
	return nil
}

// SetAngle implements core.ServoDriver; angles are clamped to 0-180 degrees
func (d *RPServoDriver) SetAngle(ch core.ServoChannel, degrees float32) error {
	s, ok := d.servos[ch]
	if !ok {
		return errors.New("servo not configured")
	}
	if degrees < 0 {
		degrees = 0
	} else if degrees > 180 {
		degrees = 180
	}
	us := servoMinPulse + int16(degrees*(servoMaxPulse-servoMinPulse)/180)
	s.SetMicroseconds(us)
	return nil
}
