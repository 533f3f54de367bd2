//go:build rp2040

package main

import (
	"machine"
	"time"

	"hiticomm/core"
	"hiticomm/protocol"
)

// Firmware identity reported in the B reply
const (
	codeName    = "hiticomm-rp2040"
	codeVersion = "1.0"
)

// rp2040Layout maps the Uno-sized register set onto a Pico: GPIO0-13 as
// digital pins, the four ADC inputs plus the temperature sensor, six PWM
// outputs and two servos on GPIO16/17.
func rp2040Layout() core.BoardLayout {
	l := core.DefaultLayout()
	l.AnalogInputs = []core.ADCChannelID{0, 1, 2, 3, adcTemperature}
	return l
}

func main() {
	// Disable a watchdog left running by the previous image
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	machine.Serial.Configure(machine.UARTConfig{BaudRate: 115200})

	core.SetGPIODriver(NewRPGPIODriver())
	core.SetADCDriver(NewRPAdcDriver())
	core.SetPWMDriver(NewRP2040PWMDriver())
	core.SetServoDriver(NewRPServoDriver(servoPins))

	board := core.NewBoard(rp2040Layout())

	cfg := core.DefaultConfig()
	cfg.CodeName = codeName
	cfg.CodeVersion = codeVersion

	session := core.NewSession(cfg, machine.Serial, board, core.NewMemEEPROM(eepromSize), NewHardwareClock())
	session.SendBoardStarted()

	for {
		// a panic in a driver must not take the link down
		func() {
			defer func() {
				if r := recover(); r != nil {
					board.DriverErrors++
				}
			}()
			session.Communicate()
		}()

		// Yield to the USB stack
		time.Sleep(100 * time.Microsecond)
	}
}

// eepromSize is the RAM-backed EEPROM emulation; the RP2040 has none
const eepromSize = 1024

var _ protocol.ByteSource = machine.Serial
