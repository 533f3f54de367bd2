// Analog input registers
package core

// initAnalogIn configures the ADC channels
func (b *Board) initAnalogIn() {
	if adcDriver == nil {
		return
	}
	for _, ch := range b.layout.AnalogInputs {
		b.driverError(adcDriver.ConfigureChannel(ch))
	}
}

// readAnalog samples one channel, keeping the last good value on error
func (b *Board) readAnalog(index int) uint16 {
	if adcDriver != nil {
		raw, err := adcDriver.ReadRaw(b.layout.AnalogInputs[index])
		if err != nil {
			b.driverError(err)
		} else {
			b.analogIn[index] = uint16(raw)
		}
	}
	return b.analogIn[index]
}

// SetAnalog injects an analog input value (simulation and tests)
func (b *Board) SetAnalog(index int, value uint16) {
	if index < 0 || index >= len(b.analogIn) {
		return
	}
	if b.analogIn[index] != value {
		b.analogIn[index] = value
		b.changed[ClassAnalogInput] = true
	}
}
