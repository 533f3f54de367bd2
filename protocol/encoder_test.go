package protocol

import (
	"bytes"
	"testing"
)

func encode(f WireFormat, typ MessageType, fields func(e *Encoder)) (string, error) {
	var out bytes.Buffer
	e := NewEncoder(f)
	e.Begin(typ)
	if fields != nil {
		fields(e)
	}
	err := e.End(&out)
	return out.String(), err
}

func TestEncoderFormats(t *testing.T) {
	tests := []struct {
		name   string
		format WireFormat
		typ    MessageType
		fields func(e *Encoder)
		want   string
	}{
		{
			"hex started", Hex, MsgStarted,
			func(e *Encoder) { e.Uint16(LibraryVersion) },
			"S007D2E\r\n",
		},
		{
			"readable started", FullyReadable, MsgStarted,
			func(e *Encoder) { e.Uint16(LibraryVersion) },
			"ST_125\r\n",
		},
		{
			"separator eeprom", UseSeparator, MsgEeprom,
			func(e *Encoder) { e.Uint16(1); e.Uint16(0x2A); e.Uint8(0x7F) },
			"E1_2A_7F_83\r\n",
		},
		{
			"hex eeprom", Hex, MsgEeprom,
			func(e *Encoder) { e.Uint16(0x2A); e.Uint8(0x7F) },
			"E002A7F95\r\n",
		},
		{
			"int float three decimals", UseInt, MsgAccess,
			func(e *Encoder) { e.Float(1.5) },
			"A1.500\r\n",
		},
		{
			"hex float bits", Hex, MsgAccess,
			func(e *Encoder) { e.Float(1.5) },
			"A3FC00000ED\r\n",
		},
		{
			"hex string length prefix", Hex, MsgError,
			func(e *Encoder) { e.Uint8(8); e.String([]byte("Hi")) },
			"Z0802HiD5\r\n",
		},
		{
			"int bool and empty field", UseInt, MsgAccess,
			func(e *Encoder) { e.Raw([]byte("03DD1")); e.Empty() },
			"A03DD1_\r\n",
		},
		{
			"separator slot marker", UseSeparator, MsgAccess,
			func(e *Encoder) { e.Raw([]byte("03DD1")); e.Field(); e.ErrorMarker(ErrIndexOutOfRange) },
			"A03DD1_!5_71\r\n",
		},
		{
			"hex no fields", Hex, MsgBoard,
			nil,
			"B42\r\n",
		},
	}

	for _, tt := range tests {
		got, err := encode(tt.format, tt.typ, tt.fields)
		if err != nil {
			t.Errorf("%s: unexpected error %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.name, tt.want, got)
		}
	}
}

func TestEncoderZeroFill(t *testing.T) {
	e := NewEncoder(Hex)
	e.Begin(MsgBoard)
	e.Bool(true)
	e.Uint8(5)
	e.Uint16(0xAB)
	e.Uint32(1)
	if got := string(e.Bytes()); got != "B10500AB00000001" {
		t.Errorf("Expected zero-filled fields, got %q", got)
	}

	e = NewEncoder(UseSeparator)
	e.Begin(MsgBoard)
	e.Uint16(0xAB)
	e.Uint8(0)
	if got := string(e.Bytes()); got != "BAB_0" {
		t.Errorf("Expected shortest hex fields, got %q", got)
	}
}

func TestEncoderTooLong(t *testing.T) {
	var out bytes.Buffer
	e := NewEncoder(UseInt)
	e.Begin(MsgAccess)
	for i := 0; i < MessageMax; i++ {
		e.Uint8(200)
	}
	if err := e.End(&out); err != ErrMessageTooLong {
		t.Errorf("Expected ErrMessageTooLong, got %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("Nothing should be written for a message too long, got %d bytes", out.Len())
	}

	// The encoder is usable again after Begin
	e.Begin(MsgBoard)
	if err := e.End(&out); err != nil {
		t.Errorf("Expected encoder to recover, got %v", err)
	}
}

func TestEncoderSumMatchesVerify(t *testing.T) {
	for _, f := range []WireFormat{UseSeparator, Hex} {
		got, err := encode(f, MsgEepromRange, func(e *Encoder) {
			e.Uint16(3)
			e.Uint16(0x100)
			e.Uint8(2)
			e.Uint8(0xDE)
			e.Uint8(0xAD)
		})
		if err != nil {
			t.Fatalf("%v: unexpected error %v", f, err)
		}
		line := []byte(got[:len(got)-2])
		if _, ok := VerifyChecksum(f, line); !ok {
			t.Errorf("%v: encoded line %q fails verification", f, got)
		}
	}
}

func TestEncoderLineLen(t *testing.T) {
	tests := []struct {
		format WireFormat
		want   int
	}{
		{FullyReadable, 4}, // E_42
		{UseInt, 3},        // E42
		{UseSeparator, 6},  // E2A_cs
		{Hex, 7},           // E002Acs
	}
	for _, tt := range tests {
		e := NewEncoder(tt.format)
		e.Begin(MsgEeprom)
		e.Uint16(42)
		if got := e.LineLen(); got != tt.want {
			t.Errorf("%s: expected line length %d, got %d", tt.format, tt.want, got)
		}
	}
}
