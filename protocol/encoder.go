package protocol

import (
	"errors"
	"io"
	"math"
	"strconv"
)

// ErrMessageTooLong is returned by End when a message did not fit in MessageMax
var ErrMessageTooLong = errors.New("message too long")

// Encoder renders one message at a time in the active wire format.
//
// Fields are written with the typed helpers (Uint8, Float, ...) which start a
// new field, or with the Put* variants which extend the current field.
type Encoder struct {
	format   WireFormat
	out      ScratchOutput
	sum      Checksum
	fields   int
	overflow bool
}

// NewEncoder creates an encoder for format f
func NewEncoder(f WireFormat) *Encoder {
	return &Encoder{format: f}
}

// Format returns the wire format
func (e *Encoder) Format() WireFormat {
	return e.format
}

// Begin starts a message of type t, discarding anything not yet ended
func (e *Encoder) Begin(t MessageType) {
	e.out.Reset()
	e.sum.Reset()
	e.fields = 0
	e.overflow = false
	e.PutRaw([]byte(t.Tag(e.format))...)
}

// Field starts a new field, writing a separator where the format needs one
func (e *Encoder) Field() {
	if e.format.Separated() && (e.fields > 0 || e.format.ReadableTags()) {
		e.PutRaw(Separator)
	}
	e.fields++
}

// PutRaw appends bytes to the current field as-is
func (e *Encoder) PutRaw(data ...byte) {
	if e.overflow || !e.out.Output(data...) {
		e.overflow = true
		return
	}
	e.sum.AddBytes(data)
}

func (e *Encoder) commit(dst []byte) {
	if e.overflow || len(dst) > e.out.Free() {
		e.overflow = true
		return
	}
	// dst was appended in place inside the scratch buffer
	e.sum.AddBytes(dst)
	e.out.pos += len(dst)
}

// PutUint appends v; width is the Hex format field width in digits
func (e *Encoder) PutUint(v uint32, width int) {
	switch {
	case e.format.FixedWidth():
		e.commit(appendHex(e.out.tail(), v, width))
	case e.format.HexNumbers():
		e.commit(appendHex(e.out.tail(), v, 0))
	default:
		e.commit(strconv.AppendUint(e.out.tail(), uint64(v), 10))
	}
}

// PutBool appends 1 or 0
func (e *Encoder) PutBool(v bool) {
	if v {
		e.PutRaw('1')
	} else {
		e.PutRaw('0')
	}
}

// PutFloat appends v as raw IEEE-754 bits in hex formats, decimal otherwise
func (e *Encoder) PutFloat(v float32) {
	if e.format.HexNumbers() {
		e.PutUint(math.Float32bits(v), WidthFloat)
		return
	}
	e.commit(strconv.AppendFloat(e.out.tail(), float64(v), 'f', FloatDecimals, 32))
}

// PutString appends s, length-prefixed in the Hex format
func (e *Encoder) PutString(s []byte) {
	if e.format.FixedWidth() {
		e.commit(appendHex(e.out.tail(), uint32(len(s)), WidthLength))
	}
	e.PutRaw(s...)
}

// Bool writes a bool field
func (e *Encoder) Bool(v bool) {
	e.Field()
	e.PutBool(v)
}

// Uint8 writes a uint8 field
func (e *Encoder) Uint8(v uint8) {
	e.Field()
	e.PutUint(uint32(v), WidthUint8)
}

// Uint16 writes a uint16 field
func (e *Encoder) Uint16(v uint16) {
	e.Field()
	e.PutUint(uint32(v), WidthUint16)
}

// Uint32 writes a uint32 field
func (e *Encoder) Uint32(v uint32) {
	e.Field()
	e.PutUint(v, WidthUint32)
}

// Float writes a float field
func (e *Encoder) Float(v float32) {
	e.Field()
	e.PutFloat(v)
}

// String writes a string field
func (e *Encoder) String(s []byte) {
	e.Field()
	e.PutString(s)
}

// Raw writes a field made of raw characters
func (e *Encoder) Raw(data []byte) {
	e.Field()
	e.PutRaw(data...)
}

// Empty writes the empty placeholder field
func (e *Encoder) Empty() {
	e.Field()
}

// ErrorMarker appends a per-slot error marker to the current field
func (e *Encoder) ErrorMarker(code ErrorCode) {
	e.PutRaw(ErrorMarker)
	e.PutUint(uint32(code), WidthUint8)
}

// Bytes returns the message written so far, without checksum or terminator
func (e *Encoder) Bytes() []byte {
	return e.out.Result()
}

// LineLen returns the length the line will have once ended, terminator excluded
func (e *Encoder) LineLen() int {
	n := e.out.Len()
	if e.format.Checksummed() {
		n += 2
		if e.format.Separated() {
			n++
		}
	}
	return n
}

// Sum returns the running checksum
func (e *Encoder) Sum() uint8 {
	return e.sum.Sum()
}

// End appends the checksum (when the format uses one) and CR LF, then writes
// the message to w in a single call.
func (e *Encoder) End(w io.Writer) error {
	if e.format.Checksummed() {
		if e.format.Separated() {
			e.PutRaw(Separator)
		}
		crc := e.sum.Sum()
		if !e.out.Output(hexDigits[crc>>4], hexDigits[crc&0xF]) {
			e.overflow = true
		}
	}
	if !e.out.Output(EndCR, EndLF) {
		e.overflow = true
	}
	if e.overflow {
		e.out.Reset()
		return ErrMessageTooLong
	}
	_, err := w.Write(e.out.Result())
	e.out.Reset()
	return err
}
