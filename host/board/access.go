package board

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"hiticomm/core"
	"hiticomm/protocol"
)

// Slot is one register access of an A request
type Slot struct {
	Class core.Class
	Index int
	Write bool
	Value core.Value // ignored for reads
}

// ReadSlot reads register index of class c
func ReadSlot(c core.Class, index int) Slot {
	return Slot{Class: c, Index: index}
}

// WriteSlot writes v to register index of class c
func WriteSlot(c core.Class, index int, v core.Value) Slot {
	return Slot{Class: c, Index: index, Write: true, Value: v}
}

// Result is the outcome of one slot: the value read back, or the error
// code of the slot marker
type Result struct {
	Slot
	Value core.Value
	Err   error
}

// header renders index, tag and op the way the board echoes them
func (s Slot) header(f protocol.WireFormat) []byte {
	var h []byte
	switch {
	case f.FixedWidth():
		h = append(h, strconv.FormatUint(uint64(s.Index)|0x100, 16)[1:]...)
		h = bytes.ToUpper(h)
	case f.HexNumbers():
		h = append(h, bytes.ToUpper([]byte(strconv.FormatUint(uint64(s.Index), 16)))...)
	default:
		h = strconv.AppendUint(h, uint64(s.Index), 10)
	}
	h = append(h, s.Class.Tag()...)
	if s.Write {
		return append(h, '0')
	}
	return append(h, '1')
}

func (s Slot) validate(f protocol.WireFormat) error {
	if s.Index < 0 || (f.FixedWidth() && s.Index > math.MaxUint8) {
		return fmt.Errorf("index %d cannot be sent in the %s format", s.Index, f)
	}
	if s.Write && s.Value.Kind != s.Class.Kind() {
		return fmt.Errorf("%s%d: value kind does not match the register", s.Class, s.Index)
	}
	return nil
}

// Access sends one A request of 1 to 4 slots. Slots are applied in order
// on the board. A slot error is reported in its Result, not as the error.
func (c *Client) Access(slots ...Slot) ([]Result, error) {
	if len(slots) == 0 || len(slots) > protocol.AccessSlotsMax {
		return nil, fmt.Errorf("access: %d slots, expected 1 to %d", len(slots), protocol.AccessSlotsMax)
	}
	f := c.transport.Format()
	for _, s := range slots {
		if err := s.validate(f); err != nil {
			return nil, fmt.Errorf("access: %w", err)
		}
	}

	msg, err := c.request(protocol.MsgAccess, func(e *protocol.Encoder) {
		for _, s := range slots {
			e.Raw(s.header(f))
			e.Field()
			if s.Write {
				core.PutValue(e, s.Value)
			}
		}
	})
	if err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}
	results, err := decodeAccess(msg, slots)
	if err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}
	return results, nil
}

// Read reads one register
func (c *Client) Read(class core.Class, index int) (core.Value, error) {
	results, err := c.Access(ReadSlot(class, index))
	if err != nil {
		return core.Value{}, err
	}
	return results[0].Value, results[0].Err
}

// Write writes one register and returns the value read back
func (c *Client) Write(class core.Class, index int, v core.Value) (core.Value, error) {
	results, err := c.Access(WriteSlot(class, index, v))
	if err != nil {
		return core.Value{}, err
	}
	return results[0].Value, results[0].Err
}

// decodeAccess matches an A reply against the slots of the request
func decodeAccess(msg *protocol.Message, slots []Slot) ([]Result, error) {
	f := msg.Format
	tok := protocol.NewTokenizer(f, msg.Payload)
	tok.MessageType()

	results := make([]Result, len(slots))
	for i, s := range slots {
		want := s.header(f)
		var (
			t  protocol.Token
			ok bool
		)
		if f.FixedWidth() {
			t, ok = tok.Fixed(len(want))
		} else {
			t, ok = tok.Next()
		}
		if !ok || !bytes.Equal(tok.Bytes(t), want) {
			return nil, fmt.Errorf("slot %d: expected header %s in reply", i, want)
		}

		text, ok := valueField(tok, f, s.Class.Kind())
		if !ok {
			return nil, fmt.Errorf("slot %d: missing value", i)
		}
		results[i].Slot = s
		if len(text) > 0 && text[0] == protocol.ErrorMarker {
			code, ok := protocol.ParseUint(f, text[1:], math.MaxUint8)
			if !ok {
				return nil, fmt.Errorf("slot %d: malformed error marker %q", i, text)
			}
			results[i].Err = protocol.ErrorCode(code)
			continue
		}
		v, ok := core.ParseValue(f, s.Class.Kind(), text)
		if !ok {
			return nil, fmt.Errorf("slot %d: malformed %s value %q", i, s.Class, text)
		}
		results[i].Value = v
	}
	if tok.Remaining() != 0 {
		return nil, fmt.Errorf("unexpected data after %d slots", len(slots))
	}
	return results, nil
}

// valueField returns the value text of a slot, or its error marker
func valueField(tok *protocol.Tokenizer, f protocol.WireFormat, kind core.Kind) ([]byte, bool) {
	if !f.FixedWidth() {
		t, ok := tok.Next()
		return tok.Bytes(t), ok
	}

	if rest := tok.Rest(); len(rest) > 0 && rest[0] == protocol.ErrorMarker {
		t, ok := tok.Fixed(1 + protocol.WidthUint8)
		return tok.Bytes(t), ok
	}
	var width int
	switch kind {
	case core.KindBool:
		width = protocol.WidthBool
	case core.KindUint8:
		width = protocol.WidthUint8
	case core.KindUint16:
		width = protocol.WidthUint16
	case core.KindFloat:
		width = protocol.WidthFloat
	case core.KindString:
		t, ok := tok.Fixed(protocol.WidthLength)
		if !ok {
			return nil, false
		}
		n, ok := protocol.ParseUint(f, tok.Bytes(t), math.MaxUint8)
		if !ok {
			return nil, false
		}
		width = int(n)
	}
	t, ok := tok.Fixed(width)
	return tok.Bytes(t), ok
}
