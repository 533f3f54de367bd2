//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"

	"hiticomm/core"
)

// adcTemperature is the channel of the internal temperature sensor
const adcTemperature core.ADCChannelID = 4

// RpAdcDriver implements core.ADCDriver using TinyGo's machine.ADC.
// Readings are scaled to the 10-bit range of an Arduino analogRead.
type RpAdcDriver struct {
	channels map[core.ADCChannelID]*machine.ADC
}

// NewRPAdcDriver initializes the ADC block
func NewRPAdcDriver() *RpAdcDriver {
	machine.InitADC()
	return &RpAdcDriver{
		channels: make(map[core.ADCChannelID]*machine.ADC),
	}
}

// rawInternalTemp returns the 12-bit raw ADC value from the internal temp sensor (0–4095).
func rawInternalTemp() uint16 {
	// Enable temperature sensor
	rp.ADC.CS.SetBits(rp.ADC_CS_TS_EN)

	// Select ADC channel 4 (internal temperature sensor)
	rp.ADC.CS.ReplaceBits(
		uint32(adcTemperature)<<rp.ADC_CS_AINSEL_Pos,
		rp.ADC_CS_AINSEL_Msk,
		0,
	)

	rp.ADC.CS.SetBits(rp.ADC_CS_START_ONCE)
	for !rp.ADC.CS.HasBits(rp.ADC_CS_READY) {
	}
	return uint16(rp.ADC.RESULT.Get())
}

// ConfigureChannel sets up the pin of an external channel
func (d *RpAdcDriver) ConfigureChannel(ch core.ADCChannelID) error {
	if ch == adcTemperature {
		return nil
	}
	if _, ok := d.channels[ch]; ok {
		return nil
	}

	var adc machine.ADC
	switch ch {
	case 0:
		adc = machine.ADC{Pin: machine.ADC0}
	case 1:
		adc = machine.ADC{Pin: machine.ADC1}
	case 2:
		adc = machine.ADC{Pin: machine.ADC2}
	case 3:
		adc = machine.ADC{Pin: machine.ADC3}
	default:
		return errors.New("unsupported ADC channel")
	}
	if err := adc.Configure(machine.ADCConfig{}); err != nil {
		return err
	}
	d.channels[ch] = &adc
	return nil
}

// ReadRaw samples one channel
func (d *RpAdcDriver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	if ch == adcTemperature {
		return core.ADCValue(rawInternalTemp() >> 2), nil
	}
	adc, ok := d.channels[ch]
	if !ok {
		if err := d.ConfigureChannel(ch); err != nil {
			return 0, err
		}
		adc = d.channels[ch]
	}
	// machine.ADC.Get is left-aligned to 16 bits
	return core.ADCValue(adc.Get() >> 6), nil
}
