// Digital pins: pin mode, digital input and digital output registers
package core

// digitalPin is the shadow state of one digital pin
type digitalPin struct {
	isOutput bool // PM register: true = output
	output   bool // DO register: last level written
	input    bool // DI register: last level read or injected
}

// initDigital configures every pin as an input with pull-up
func (b *Board) initDigital() {
	if gpioDriver == nil {
		return
	}
	for _, pin := range b.layout.DigitalPins {
		b.driverError(gpioDriver.ConfigureInputPullUp(pin))
	}
}

// readInput samples a pin, falling back to the shadow level
func (b *Board) readInput(index int) bool {
	p := &b.digital[index]
	if gpioDriver != nil {
		level, err := gpioDriver.GetPin(b.layout.DigitalPins[index])
		if err != nil {
			b.driverError(err)
		} else {
			p.input = level
		}
	}
	return p.input
}

// writeOutput stores the output level and drives the pin when it is an output
func (b *Board) writeOutput(index int, level bool) {
	p := &b.digital[index]
	p.output = level
	if p.isOutput && gpioDriver != nil {
		b.driverError(gpioDriver.SetPin(b.layout.DigitalPins[index], level))
	}
}

// writePinMode switches a pin direction; an output starts at the stored DO level
func (b *Board) writePinMode(index int, output bool) {
	p := &b.digital[index]
	if p.isOutput == output {
		return
	}
	p.isOutput = output
	if gpioDriver == nil {
		return
	}
	pin := b.layout.DigitalPins[index]
	if output {
		b.driverError(gpioDriver.ConfigureOutput(pin))
		b.driverError(gpioDriver.SetPin(pin, p.output))
	} else {
		b.driverError(gpioDriver.ConfigureInputPullUp(pin))
	}
}

// SetInput injects a digital input level (simulation and tests)
func (b *Board) SetInput(index int, level bool) {
	if index < 0 || index >= len(b.digital) {
		return
	}
	if b.digital[index].input != level {
		b.digital[index].input = level
		b.changed[ClassDigitalInput] = true
	}
}

// shutdownDigital drives every output pin low
func (b *Board) shutdownDigital() {
	for i := range b.digital {
		if b.digital[i].isOutput {
			b.writeOutput(i, false)
		}
	}
}
