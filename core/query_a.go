package core

import (
	"math"

	"hiticomm/protocol"
)

const (
	opRead  = '1'
	opWrite = '0'
)

// accessSlot is one validated register access of an A request
type accessSlot struct {
	header []byte // echoed as-is in the reply
	class  Class
	index  int
	write  bool
	value  Value
	code   protocol.ErrorCode // per-slot range error, answered with a marker
}

// accessRequest is the A request waiting for the A gate
type accessRequest struct {
	pending bool
	line    [protocol.MessageMax]byte
	slots   [protocol.AccessSlotsMax]accessSlot
	count   int
}

// handleAccess parses and validates an A request. Nothing is written here:
// the slots are applied when the scheduler serves the request.
func (s *Session) handleAccess(payload []byte) protocol.ErrorCode {
	a := &s.access
	n := copy(a.line[:], payload)
	// re-point the tokenizer at the private copy, past the message type
	s.tok.Reset(s.cfg.Format, a.line[:n])
	s.tok.MessageType()

	a.count = 0
	var code protocol.ErrorCode
	if s.cfg.Format.FixedWidth() {
		code = s.parseFixedSlots()
	} else {
		code = s.parseSeparatedSlots()
	}
	if code != protocol.ErrNone {
		a.count = 0
		return code
	}

	a.pending = true
	q := &s.queries[QueryAccess]
	q.ID++
	q.Running = true
	return protocol.ErrNone
}

// parseSeparatedSlots reads header/data token pairs
func (s *Session) parseSeparatedSlots() protocol.ErrorCode {
	a := &s.access
	tokens := s.tok.Count()
	if tokens == 0 || tokens%2 != 0 || tokens/2 > protocol.AccessSlotsMax {
		return protocol.ErrBadArity
	}

	for a.count < tokens/2 {
		headTok, _ := s.tok.Next()
		dataTok, _ := s.tok.Next()
		header := s.tok.Bytes(headTok)

		// index (any length) + 2-character tag + op
		if len(header) < 4 {
			return protocol.ErrMalformedField
		}
		slot := &a.slots[a.count]
		if code := s.parseHeader(slot, header, header[:len(header)-3]); code != protocol.ErrNone {
			return code
		}
		data := s.tok.Bytes(dataTok)
		if !slot.write {
			if len(data) != 0 {
				return protocol.ErrMalformedField
			}
		} else if code := s.parseSlotValue(slot, data); code != protocol.ErrNone {
			return code
		}
		a.count++
	}
	return protocol.ErrNone
}

// parseFixedSlots reads concatenated fixed-width slots (Hex format)
func (s *Session) parseFixedSlots() protocol.ErrorCode {
	a := &s.access
	if s.tok.Remaining() == 0 {
		return protocol.ErrBadArity
	}

	for s.tok.Remaining() > 0 {
		if a.count == protocol.AccessSlotsMax {
			return protocol.ErrBadArity
		}
		headTok, ok := s.tok.Fixed(protocol.WidthUint8 + 3)
		if !ok {
			return protocol.ErrBadArity
		}
		header := s.tok.Bytes(headTok)
		slot := &a.slots[a.count]
		if code := s.parseHeader(slot, header, header[:protocol.WidthUint8]); code != protocol.ErrNone {
			return code
		}
		if slot.write {
			var width int
			switch slot.class.Kind() {
			case KindBool:
				width = protocol.WidthBool
			case KindUint8:
				width = protocol.WidthUint8
			case KindUint16:
				width = protocol.WidthUint16
			case KindFloat:
				width = protocol.WidthFloat
			case KindString:
				lenTok, ok := s.tok.Fixed(protocol.WidthLength)
				if !ok {
					return protocol.ErrBadArity
				}
				n, ok := protocol.ParseUint(s.cfg.Format, s.tok.Bytes(lenTok), math.MaxUint8)
				if !ok {
					return protocol.ErrMalformedField
				}
				width = int(n)
			}
			dataTok, ok := s.tok.Fixed(width)
			if !ok {
				return protocol.ErrBadArity
			}
			if code := s.parseSlotValue(slot, s.tok.Bytes(dataTok)); code != protocol.ErrNone {
				return code
			}
		}
		a.count++
	}
	return protocol.ErrNone
}

// parseHeader decodes index, tag and op. Range problems are kept on the slot,
// syntax problems reject the request.
func (s *Session) parseHeader(slot *accessSlot, header, index []byte) protocol.ErrorCode {
	*slot = accessSlot{header: header}

	tag := header[len(header)-3 : len(header)-1]
	class, ok := LookupClass(tag)
	if !ok {
		return protocol.ErrUnknownTag
	}
	slot.class = class

	switch header[len(header)-1] {
	case opRead:
	case opWrite:
		slot.write = true
	default:
		return protocol.ErrMalformedField
	}

	idx, ok := protocol.ParseUint(s.cfg.Format, index, math.MaxUint16)
	if !ok {
		return protocol.ErrMalformedField
	}
	slot.index = int(idx)

	if err := checkAccess(s.regs, class, slot.index, slot.write); err != nil {
		slot.code = errorCode(err, protocol.ErrIndexOutOfRange)
	}
	return protocol.ErrNone
}

// parseSlotValue decodes the data of a write slot according to its class kind
func (s *Session) parseSlotValue(slot *accessSlot, data []byte) protocol.ErrorCode {
	v, ok := ParseValue(s.cfg.Format, slot.class.Kind(), data)
	if !ok {
		return protocol.ErrMalformedField
	}
	slot.value = v
	return protocol.ErrNone
}

// ParseValue decodes the text of one value field. In the Hex format a string
// is given without its length prefix.
func ParseValue(f protocol.WireFormat, kind Kind, text []byte) (Value, bool) {
	switch kind {
	case KindBool:
		v, ok := protocol.ParseBool(text)
		return BoolValue(v), ok
	case KindUint8, KindUint16:
		max := uint32(math.MaxUint8)
		if kind == KindUint16 {
			max = math.MaxUint16
		}
		v, ok := protocol.ParseUint(f, text, max)
		return UintValue(kind, v), ok
	case KindFloat:
		v, ok := protocol.ParseFloat(f, text)
		return FloatValue(v), ok
	case KindString:
		if len(text) > protocol.StringMax {
			return Value{}, false
		}
		return StringValue(string(text)), true
	}
	return Value{}, false
}

// serveAccess applies the slots in the order submitted and answers with one
// A reply. A slot reads back after its own write.
func (s *Session) serveAccess(now uint32) {
	a := &s.access
	s.sendResponse(protocol.MsgAccess, func(e *protocol.Encoder) {
		for i := 0; i < a.count; i++ {
			slot := &a.slots[i]
			e.Raw(slot.header)
			e.Field()
			if slot.code == protocol.ErrNone && slot.write {
				if err := s.regs.Write(slot.class, slot.index, slot.value); err != nil {
					slot.code = errorCode(err, protocol.ErrMalformedField)
				}
			}
			if slot.code != protocol.ErrNone {
				e.ErrorMarker(slot.code)
				continue
			}
			v, err := s.regs.Read(slot.class, slot.index)
			if err != nil {
				e.ErrorMarker(errorCode(err, protocol.ErrIndexOutOfRange))
				continue
			}
			PutValue(e, v)
		}
	})

	a.pending = false
	a.count = 0
	s.queries[QueryAccess].Running = false
	s.aTimer.Restart(now)
}

// PutValue extends the current field with a register value
func PutValue(e *protocol.Encoder, v Value) {
	switch v.Kind {
	case KindBool:
		e.PutBool(v.Bool())
	case KindUint8:
		e.PutUint(v.Bits, protocol.WidthUint8)
	case KindUint16:
		e.PutUint(v.Bits, protocol.WidthUint16)
	case KindFloat:
		e.PutFloat(v.Float)
	case KindString:
		e.PutString([]byte(v.Text))
	}
}
