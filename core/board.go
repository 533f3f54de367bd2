package core

import "hiticomm/protocol"

// Register counts of the board-side data memory
const (
	DigitalDataCount = 32
	AnalogDataCount  = 20
)

// BoardLayout maps register indexes to hardware resources
type BoardLayout struct {
	DigitalPins  []GPIOPin      // DI, DO and PM registers, in index order
	AnalogInputs []ADCChannelID // AI registers
	PWMPins      []PWMPin       // PW registers
	DACChannels  []DACChannel   // DA registers
	Servos       []ServoChannel // SV registers
	DigitalData  int            // DD registers (no hardware)
	AnalogData   int            // AD registers (no hardware)
}

// DefaultLayout is an Uno-sized board: 14 digital pins, 6 analog inputs,
// 6 PWM outputs and 2 servos.
func DefaultLayout() BoardLayout {
	l := BoardLayout{
		AnalogInputs: []ADCChannelID{0, 1, 2, 3, 4, 5},
		PWMPins:      []PWMPin{3, 5, 6, 9, 10, 11},
		Servos:       []ServoChannel{0, 1},
		DigitalData:  DigitalDataCount,
		AnalogData:   AnalogDataCount,
	}
	for pin := GPIOPin(0); pin < 14; pin++ {
		l.DigitalPins = append(l.DigitalPins, pin)
	}
	return l
}

// Board is the in-memory register model. Every register has a shadow copy;
// registered HAL drivers are kept in sync with it.
type Board struct {
	layout BoardLayout

	digital     []digitalPin
	digitalData []bool
	analogIn    []uint16
	pwm         []uint8
	dac         []uint16
	servo       []float32
	analogData  []float32
	text        string

	changed [classCount]bool

	// DriverErrors counts HAL calls that failed; the shadow value is kept
	DriverErrors uint32
}

// NewBoard creates the register model and configures the registered drivers
func NewBoard(layout BoardLayout) *Board {
	b := &Board{
		layout:      layout,
		digital:     make([]digitalPin, len(layout.DigitalPins)),
		digitalData: make([]bool, layout.DigitalData),
		analogIn:    make([]uint16, len(layout.AnalogInputs)),
		pwm:         make([]uint8, len(layout.PWMPins)),
		dac:         make([]uint16, len(layout.DACChannels)),
		servo:       make([]float32, len(layout.Servos)),
		analogData:  make([]float32, layout.AnalogData),
	}
	b.initDigital()
	b.initAnalogIn()
	b.initOutputs()
	return b
}

// Count implements Registers
func (b *Board) Count(c Class) int {
	switch c {
	case ClassDigitalInput, ClassDigitalOutput, ClassPinMode:
		return len(b.digital)
	case ClassDigitalData:
		return len(b.digitalData)
	case ClassAnalogInput:
		return len(b.analogIn)
	case ClassPWM:
		return len(b.pwm)
	case ClassDAC:
		return len(b.dac)
	case ClassAnalogData:
		return len(b.analogData)
	case ClassServo:
		return len(b.servo)
	case ClassString:
		return 1
	}
	return 0
}

// Read implements Registers
func (b *Board) Read(c Class, index int) (Value, error) {
	if err := checkAccess(b, c, index, false); err != nil {
		return Value{}, err
	}
	switch c {
	case ClassDigitalInput:
		return BoolValue(b.readInput(index)), nil
	case ClassDigitalOutput:
		return BoolValue(b.digital[index].output), nil
	case ClassPinMode:
		return BoolValue(b.digital[index].isOutput), nil
	case ClassDigitalData:
		return BoolValue(b.digitalData[index]), nil
	case ClassAnalogInput:
		return UintValue(KindUint16, uint32(b.readAnalog(index))), nil
	case ClassPWM:
		return UintValue(KindUint8, uint32(b.pwm[index])), nil
	case ClassDAC:
		return UintValue(KindUint16, uint32(b.dac[index])), nil
	case ClassAnalogData:
		return FloatValue(b.analogData[index]), nil
	case ClassServo:
		return FloatValue(b.servo[index]), nil
	default:
		return StringValue(b.text), nil
	}
}

// Write implements Registers
func (b *Board) Write(c Class, index int, v Value) error {
	if err := checkAccess(b, c, index, true); err != nil {
		return err
	}
	if v.Kind != c.Kind() {
		return protocol.ErrMalformedField
	}
	switch c {
	case ClassDigitalOutput:
		b.writeOutput(index, v.Bool())
	case ClassPinMode:
		b.writePinMode(index, v.Bool())
	case ClassDigitalData:
		b.digitalData[index] = v.Bool()
	case ClassPWM:
		if v.Bits > 0xFF {
			return protocol.ErrMalformedField
		}
		b.writePWM(index, uint8(v.Bits))
	case ClassDAC:
		if v.Bits > 0xFFFF {
			return protocol.ErrMalformedField
		}
		b.writeDAC(index, uint16(v.Bits))
	case ClassAnalogData:
		b.analogData[index] = v.Float
	case ClassServo:
		b.writeServo(index, v.Float)
	case ClassString:
		if len(v.Text) > protocol.StringMax {
			return protocol.ErrMalformedField
		}
		b.text = v.Text
	}
	b.changed[c] = true
	return nil
}

// HasChanged implements Registers
func (b *Board) HasChanged(c Class) bool {
	if c >= classCount {
		return false
	}
	changed := b.changed[c]
	b.changed[c] = false
	return changed
}

// Layout returns the layout the board was built with
func (b *Board) Layout() BoardLayout {
	return b.layout
}

// Shutdown returns every output to its default (low, zero duty)
func (b *Board) Shutdown() {
	b.shutdownDigital()
	b.shutdownOutputs()
}

func (b *Board) driverError(err error) {
	if err != nil {
		b.DriverErrors++
	}
}
