// PWM, DAC and servo output registers
package core

// initOutputs configures PWM pins, DAC channels and servos
func (b *Board) initOutputs() {
	if pwmDriver != nil {
		for _, pin := range b.layout.PWMPins {
			b.driverError(pwmDriver.ConfigurePWM(pin))
		}
	}
	if dacDriver != nil {
		for _, ch := range b.layout.DACChannels {
			b.driverError(dacDriver.ConfigureDAC(ch))
		}
	}
	if servoDriver != nil {
		for _, ch := range b.layout.Servos {
			b.driverError(servoDriver.ConfigureServo(ch))
		}
	}
}

func (b *Board) writePWM(index int, duty uint8) {
	b.pwm[index] = duty
	if pwmDriver != nil {
		value := scaleDuty(duty, pwmDriver.GetMaxValue())
		b.driverError(pwmDriver.SetDutyCycle(b.layout.PWMPins[index], value))
	}
}

func (b *Board) writeDAC(index int, value uint16) {
	b.dac[index] = value
	if dacDriver != nil {
		b.driverError(dacDriver.WriteDAC(b.layout.DACChannels[index], value))
	}
}

func (b *Board) writeServo(index int, degrees float32) {
	b.servo[index] = degrees
	if servoDriver != nil {
		b.driverError(servoDriver.SetAngle(b.layout.Servos[index], degrees))
	}
}

// shutdownOutputs sets every PWM duty and DAC output to zero
func (b *Board) shutdownOutputs() {
	for i := range b.pwm {
		b.writePWM(i, 0)
	}
	for i := range b.dac {
		b.writeDAC(i, 0)
	}
}
