package board

import (
	"fmt"
	"time"

	"hiticomm/core"
	"hiticomm/protocol"
)

// Snapshot is the board state carried by one complete broadcast cycle.
// Categories a cycle skips (pin modes and the string when unchanged) keep
// the value of the last cycle that sent them.
type Snapshot struct {
	ID       uint8
	Parts    int
	Full     bool // the cycle carried every category
	Received time.Time

	PinModes       []bool
	DigitalInputs  []bool
	DigitalOutputs []bool
	DigitalData    []bool
	AnalogInputs   []uint16
	PWM            []uint8
	DAC            []uint16
	Servos         []float32
	AnalogData     []float32
	Text           string
}

func (s *Snapshot) clone() *Snapshot {
	c := *s
	c.PinModes = append([]bool(nil), s.PinModes...)
	c.DigitalInputs = append([]bool(nil), s.DigitalInputs...)
	c.DigitalOutputs = append([]bool(nil), s.DigitalOutputs...)
	c.DigitalData = append([]bool(nil), s.DigitalData...)
	c.AnalogInputs = append([]uint16(nil), s.AnalogInputs...)
	c.PWM = append([]uint8(nil), s.PWM...)
	c.DAC = append([]uint16(nil), s.DAC...)
	c.Servos = append([]float32(nil), s.Servos...)
	c.AnalogData = append([]float32(nil), s.AnalogData...)
	return &c
}

// Value returns register index of class c, as last broadcast
func (s *Snapshot) Value(c core.Class, index int) (core.Value, bool) {
	inRange := func(n int) bool { return index >= 0 && index < n }
	switch c {
	case core.ClassPinMode:
		if inRange(len(s.PinModes)) {
			return core.BoolValue(s.PinModes[index]), true
		}
	case core.ClassDigitalInput:
		if inRange(len(s.DigitalInputs)) {
			return core.BoolValue(s.DigitalInputs[index]), true
		}
	case core.ClassDigitalOutput:
		if inRange(len(s.DigitalOutputs)) {
			return core.BoolValue(s.DigitalOutputs[index]), true
		}
	case core.ClassDigitalData:
		if inRange(len(s.DigitalData)) {
			return core.BoolValue(s.DigitalData[index]), true
		}
	case core.ClassAnalogInput:
		if inRange(len(s.AnalogInputs)) {
			return core.UintValue(core.KindUint16, uint32(s.AnalogInputs[index])), true
		}
	case core.ClassPWM:
		if inRange(len(s.PWM)) {
			return core.UintValue(core.KindUint8, uint32(s.PWM[index])), true
		}
	case core.ClassDAC:
		if inRange(len(s.DAC)) {
			return core.UintValue(core.KindUint16, uint32(s.DAC[index])), true
		}
	case core.ClassServo:
		if inRange(len(s.Servos)) {
			return core.FloatValue(s.Servos[index]), true
		}
	case core.ClassAnalogData:
		if inRange(len(s.AnalogData)) {
			return core.FloatValue(s.AnalogData[index]), true
		}
	case core.ClassString:
		if index == 0 {
			return core.StringValue(s.Text), true
		}
	}
	return core.Value{}, false
}

// assembler rebuilds snapshots from X parts. A part out of sequence drops
// the cycle in progress; assembly resumes at the next part 0.
type assembler struct {
	counts [core.ClassString + 1]int // from the B reply, zero when unknown
	state  Snapshot
	cycle  bool  // a cycle is being assembled
	id     uint8 // of the cycle being assembled
	next   uint8 // expected part number
	pm, st bool  // categories seen in the cycle
	lost   uint32
}

func newAssembler() *assembler {
	return &assembler{}
}

// layout sets the register counts used to unpack bool words
func (a *assembler) layout(info *Info) {
	a.counts = info.Counts
}

// add consumes one part and returns the snapshot when it closes a cycle
func (a *assembler) add(msg *protocol.Message) (*Snapshot, error) {
	r := msg.Fields()
	id := r.Uint8()
	part := r.Uint8()
	last := r.Bool()
	cat := r.Uint8()
	start := int(r.Uint8())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode X part header: %w", err)
	}

	if part == 0 {
		if a.cycle {
			a.lost++
		}
		a.cycle, a.id, a.next, a.pm, a.st = true, id, 0, false, false
	}
	if !a.cycle || id != a.id || part != a.next {
		a.cycle = false
		a.lost++
		return nil, fmt.Errorf("X part %d of cycle %d out of sequence", part, id)
	}

	class, ok := core.CategoryClass(cat)
	if !ok {
		a.cycle = false
		return nil, fmt.Errorf("unknown X category %d", cat)
	}
	if err := a.values(r, class, start); err != nil {
		a.cycle = false
		return nil, err
	}
	switch class {
	case core.ClassPinMode:
		a.pm = true
	case core.ClassString:
		a.st = true
	}

	a.next++
	if !last {
		return nil, nil
	}
	a.cycle = false
	a.state.ID = id
	a.state.Parts = int(part) + 1
	a.state.Full = a.pm && a.st
	a.state.Received = msg.Received
	return a.state.clone(), nil
}

// values reads the values of one part into the state
func (a *assembler) values(r *protocol.FieldReader, class core.Class, start int) error {
	for i := start; !r.Done(); i++ {
		switch class.Kind() {
		case core.KindBool:
			word := r.Uint32()
			a.unpack(class, i, word)
		case core.KindUint8:
			v := r.Uint8()
			a.state.PWM = setAt(a.state.PWM, i, v)
		case core.KindUint16:
			v := r.Uint16()
			if class == core.ClassDAC {
				a.state.DAC = setAt(a.state.DAC, i, v)
			} else {
				a.state.AnalogInputs = setAt(a.state.AnalogInputs, i, v)
			}
		case core.KindFloat:
			v := r.Float()
			if class == core.ClassServo {
				a.state.Servos = setAt(a.state.Servos, i, v)
			} else {
				a.state.AnalogData = setAt(a.state.AnalogData, i, v)
			}
		case core.KindString:
			a.state.Text = string(r.String())
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("decode %s values: %w", class, err)
		}
	}
	return nil
}

// unpack spreads packed word w of a bool class over its registers
func (a *assembler) unpack(class core.Class, w int, word uint32) {
	n := a.counts[class]
	if n == 0 {
		n = (w + 1) * 32
	}
	dst := a.boolSlice(class)
	for bit := 0; bit < 32 && w*32+bit < n; bit++ {
		*dst = setAt(*dst, w*32+bit, word&(1<<uint(bit)) != 0)
	}
}

func (a *assembler) boolSlice(class core.Class) *[]bool {
	switch class {
	case core.ClassPinMode:
		return &a.state.PinModes
	case core.ClassDigitalInput:
		return &a.state.DigitalInputs
	case core.ClassDigitalOutput:
		return &a.state.DigitalOutputs
	}
	return &a.state.DigitalData
}

// setAt stores v at index i, growing s as needed
func setAt[T any](s []T, i int, v T) []T {
	for len(s) <= i {
		var zero T
		s = append(s, zero)
	}
	s[i] = v
	return s
}
