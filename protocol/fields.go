package protocol

import (
	"math"
	"strconv"
)

// ParseUint parses a number field and checks it against max.
// Hex formats take hex digits (either case), the others decimal digits.
func ParseUint(f WireFormat, text []byte, max uint32) (uint32, bool) {
	if len(text) == 0 {
		return 0, false
	}
	var v uint64
	for _, c := range text {
		var d uint32
		if f.HexNumbers() {
			h, ok := hexValue(c)
			if !ok {
				return 0, false
			}
			d = h
			v = v<<4 | uint64(d)
		} else {
			if c < '0' || c > '9' {
				return 0, false
			}
			d = uint32(c - '0')
			v = v*10 + uint64(d)
		}
		if v > uint64(max) {
			return 0, false
		}
	}
	return uint32(v), true
}

// ParseBool accepts exactly "0" or "1"
func ParseBool(text []byte) (bool, bool) {
	if len(text) != 1 {
		return false, false
	}
	switch text[0] {
	case '0':
		return false, true
	case '1':
		return true, true
	}
	return false, false
}

// ParseFloat parses a float field: raw IEEE-754 bits in hex formats,
// a decimal number otherwise.
func ParseFloat(f WireFormat, text []byte) (float32, bool) {
	if f.HexNumbers() {
		if len(text) > WidthFloat {
			return 0, false
		}
		bits, ok := ParseUint(f, text, math.MaxUint32)
		if !ok {
			return 0, false
		}
		return math.Float32frombits(bits), true
	}
	if len(text) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(string(text), 32)
	if err != nil {
		return 0, false
	}
	return float32(v), true
}

// FieldReader reads typed fields off a Tokenizer.
// The first failure sticks: later reads return zero values and Err reports it.
type FieldReader struct {
	tok *Tokenizer
	err error
}

// NewFieldReader wraps a tokenizer positioned after the message type
func NewFieldReader(t *Tokenizer) *FieldReader {
	return &FieldReader{tok: t}
}

// Err returns the first error met
func (r *FieldReader) Err() error {
	return r.err
}

// Done reports whether every field was consumed
func (r *FieldReader) Done() bool {
	return r.tok.Remaining() == 0
}

func (r *FieldReader) field(width int) []byte {
	if r.err != nil {
		return nil
	}
	var (
		t  Token
		ok bool
	)
	if r.tok.format.FixedWidth() {
		t, ok = r.tok.Fixed(width)
	} else {
		t, ok = r.tok.Next()
	}
	if !ok {
		r.err = ErrBadArity
		return nil
	}
	return r.tok.Bytes(t)
}

func (r *FieldReader) number(width int, max uint32) uint32 {
	text := r.field(width)
	if r.err != nil {
		return 0
	}
	v, ok := ParseUint(r.tok.format, text, max)
	if !ok {
		r.err = ErrMalformedField
	}
	return v
}

// Bool reads a bool field
func (r *FieldReader) Bool() bool {
	text := r.field(WidthBool)
	if r.err != nil {
		return false
	}
	v, ok := ParseBool(text)
	if !ok {
		r.err = ErrMalformedField
	}
	return v
}

// Uint8 reads a uint8 field
func (r *FieldReader) Uint8() uint8 {
	return uint8(r.number(WidthUint8, math.MaxUint8))
}

// Uint16 reads a uint16 field
func (r *FieldReader) Uint16() uint16 {
	return uint16(r.number(WidthUint16, math.MaxUint16))
}

// Uint32 reads a uint32 field
func (r *FieldReader) Uint32() uint32 {
	return r.number(WidthUint32, math.MaxUint32)
}

// Float reads a float field
func (r *FieldReader) Float() float32 {
	text := r.field(WidthFloat)
	if r.err != nil {
		return 0
	}
	v, ok := ParseFloat(r.tok.format, text)
	if !ok {
		r.err = ErrMalformedField
	}
	return v
}

// String reads a string field. The result aliases the line.
func (r *FieldReader) String() []byte {
	if r.tok.format.FixedWidth() {
		n := int(r.number(WidthLength, math.MaxUint8))
		if r.err != nil {
			return nil
		}
		return r.field(n)
	}
	return r.field(0)
}

// Raw reads the next field without interpreting it.
// In the Hex format it takes width characters.
func (r *FieldReader) Raw(width int) []byte {
	return r.field(width)
}

// Rest returns everything left unread and consumes it
func (r *FieldReader) Rest() []byte {
	if r.err != nil {
		return nil
	}
	rest := r.tok.Rest()
	r.tok.pos = len(r.tok.line)
	r.tok.done = true
	return rest
}
