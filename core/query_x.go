package core

import "hiticomm/protocol"

// Broadcast categories, in cycle order
const (
	CategoryPinModes uint8 = iota
	CategoryDigitalInputs
	CategoryDigitalOutputs
	CategoryDigitalData
	CategoryAnalogInputs
	CategoryPWM
	CategoryDAC
	CategoryServos
	CategoryAnalogData
	CategoryString
	categoryCount
)

// categoryClass is the register class behind each category. Bool classes are
// sent as packed 32-bit words, bit i of word w holding register 32*w+i.
var categoryClass = [categoryCount]Class{
	CategoryPinModes:       ClassPinMode,
	CategoryDigitalInputs:  ClassDigitalInput,
	CategoryDigitalOutputs: ClassDigitalOutput,
	CategoryDigitalData:    ClassDigitalData,
	CategoryAnalogInputs:   ClassAnalogInput,
	CategoryPWM:            ClassPWM,
	CategoryDAC:            ClassDAC,
	CategoryServos:         ClassServo,
	CategoryAnalogData:     ClassAnalogData,
	CategoryString:         ClassString,
}

// CategoryClass returns the register class broadcast in category cat
func CategoryClass(cat uint8) (Class, bool) {
	if cat >= categoryCount {
		return 0, false
	}
	return categoryClass[cat], true
}

// broadcastCycle is the cursor of the X cycle in progress
type broadcastCycle struct {
	running  bool
	part     uint8
	category uint8
	start    int
	full     bool
	pinModes bool // pin modes are part of this cycle
	text     bool // the string register is part of this cycle
}

// XCursor is the observable broadcast position
type XCursor struct {
	Running  bool
	Part     uint8
	Category uint8
	Start    int
	Full     bool
}

// XCursor returns the position of the broadcast cycle
func (s *Session) XCursor() XCursor {
	return XCursor{
		Running:  s.x.running,
		Part:     s.x.part,
		Category: s.x.category,
		Start:    s.x.start,
		Full:     s.x.full,
	}
}

// handleBroadcast processes an X request: no field requests a full cycle,
// 1 enables periodic broadcasting, 0 disables it. There is no direct reply.
func (s *Session) handleBroadcast() protocol.ErrorCode {
	if s.tok.Remaining() == 0 {
		s.ForceBroadcast()
		return protocol.ErrNone
	}

	r := protocol.NewFieldReader(&s.tok)
	enable := r.Bool()
	if err := r.Err(); err != nil {
		return errorCode(err, protocol.ErrMalformedField)
	}
	if !r.Done() {
		return protocol.ErrBadArity
	}
	s.EnableBroadcast(enable)
	return protocol.ErrNone
}

// itemCount returns the number of values (or packed words) of a category
func (s *Session) itemCount(cat uint8) int {
	c := categoryClass[cat]
	n := s.regs.Count(c)
	if c.Kind() == KindBool {
		return (n + 31) / 32
	}
	return n
}

// included reports whether a category is sent in the current cycle
func (s *Session) included(cat uint8) bool {
	switch cat {
	case CategoryPinModes:
		return s.x.pinModes
	case CategoryString:
		return s.x.text
	}
	return true
}

// nextSlice finds the first non-empty slice at or after (cat, start)
func (s *Session) nextSlice(cat uint8, start int) (uint8, int, bool) {
	for ; cat < categoryCount; cat, start = cat+1, 0 {
		if s.included(cat) && start < s.itemCount(cat) {
			return cat, start, true
		}
	}
	return 0, 0, false
}

// startCycle opens a new broadcast cycle
func (s *Session) startCycle() {
	s.queries[QueryBroadcast].Running = true

	full := s.firstTime || s.forceFull
	s.firstTime = false
	s.forceFull = false

	// change flags are consumed once per cycle, whether full or not
	pinModes := s.regs.HasChanged(ClassPinMode)
	text := s.regs.HasChanged(ClassString)

	s.x = broadcastCycle{
		running:  true,
		full:     full,
		pinModes: full || pinModes,
		text:     full || text,
	}
}

// serveBroadcast writes the next part of the broadcast cycle, opening a cycle
// when none is in progress.
func (s *Session) serveBroadcast(now uint32) {
	if !s.x.running {
		s.startCycle()
	}

	cat, start, ok := s.nextSlice(s.x.category, s.x.start)
	if !ok {
		s.endCycle(now)
		return
	}
	count := s.itemCount(cat) - start
	if count > s.cfg.XSlice {
		count = s.cfg.XSlice
	}
	if cat == CategoryString {
		count = 1
	}
	_, _, more := s.nextSlice(cat, start+count)

	// the id is taken by the first part, so a cycle with nothing to send
	// leaves no gap in the sequence
	if s.x.part == 0 {
		s.queries[QueryBroadcast].ID++
	}
	id := uint8(s.queries[QueryBroadcast].ID)
	s.sendResponse(protocol.MsgBroadcast, func(e *protocol.Encoder) {
		e.Uint8(id)
		e.Uint8(s.x.part)
		e.Bool(!more)
		e.Uint8(cat)
		e.Uint8(uint8(start))
		for i := start; i < start+count; i++ {
			s.putItem(e, cat, i)
		}
	})
	s.stats.XParts++

	s.x.part++
	s.x.category = cat
	s.x.start = start + count
	if !more {
		s.endCycle(now)
	}
}

// putItem writes one value of a category as its own field
func (s *Session) putItem(e *protocol.Encoder, cat uint8, item int) {
	c := categoryClass[cat]
	if c.Kind() == KindBool {
		var word uint32
		n := s.regs.Count(c)
		for bit := 0; bit < 32 && item*32+bit < n; bit++ {
			if v, err := s.regs.Read(c, item*32+bit); err == nil && v.Bool() {
				word |= 1 << uint(bit)
			}
		}
		e.Uint32(word)
		return
	}
	v, err := s.regs.Read(c, item)
	if err != nil {
		v = Value{Kind: c.Kind()}
	}
	e.Field()
	PutValue(e, v)
}

// endCycle closes the cycle and rearms the broadcast gate
func (s *Session) endCycle(now uint32) {
	s.x.running = false
	s.queries[QueryBroadcast].Running = false
	if s.x.part > 0 {
		s.stats.XCycles++
	}
	s.xTimer.Reset()
	s.xTimer.Run(now)
}
