package core

import "hiticomm/protocol"

// Class is a register class addressed by an A-slot data-type tag
type Class uint8

const (
	ClassDigitalInput Class = iota
	ClassDigitalOutput
	ClassPinMode
	ClassDigitalData
	ClassAnalogInput
	ClassPWM
	ClassDAC
	ClassAnalogData
	ClassServo
	ClassString
	classCount
)

// Kind is the value type held by a register class
type Kind uint8

const (
	KindBool Kind = iota
	KindUint8
	KindUint16
	KindFloat
	KindString
)

type classInfo struct {
	tag      [2]byte
	kind     Kind
	writable bool
}

var classTable = [classCount]classInfo{
	ClassDigitalInput:  {[2]byte{'D', 'I'}, KindBool, false},
	ClassDigitalOutput: {[2]byte{'D', 'O'}, KindBool, true},
	ClassPinMode:       {[2]byte{'P', 'M'}, KindBool, true},
	ClassDigitalData:   {[2]byte{'D', 'D'}, KindBool, true},
	ClassAnalogInput:   {[2]byte{'A', 'I'}, KindUint16, false},
	ClassPWM:           {[2]byte{'P', 'W'}, KindUint8, true},
	ClassDAC:           {[2]byte{'D', 'A'}, KindUint16, true},
	ClassAnalogData:    {[2]byte{'A', 'D'}, KindFloat, true},
	ClassServo:         {[2]byte{'S', 'V'}, KindFloat, true},
	ClassString:        {[2]byte{'S', 'T'}, KindString, true},
}

// LookupClass maps a 2-character data-type tag to its class
func LookupClass(tag []byte) (Class, bool) {
	if len(tag) != 2 {
		return 0, false
	}
	for c := Class(0); c < classCount; c++ {
		if classTable[c].tag[0] == tag[0] && classTable[c].tag[1] == tag[1] {
			return c, true
		}
	}
	return 0, false
}

// Tag returns the 2-character data-type tag
func (c Class) Tag() string {
	if c >= classCount {
		return "??"
	}
	return string(classTable[c].tag[:])
}

// Kind returns the value type of the class
func (c Class) Kind() Kind {
	return classTable[c].kind
}

// Writable reports whether the host may write the class
func (c Class) Writable() bool {
	return c < classCount && classTable[c].writable
}

func (c Class) String() string {
	return c.Tag()
}

// Value is one register value. Bits holds bools and integers, Float and Text
// the other kinds.
type Value struct {
	Kind  Kind
	Bits  uint32
	Float float32
	Text  string
}

// BoolValue wraps a bool
func BoolValue(b bool) Value {
	if b {
		return Value{Kind: KindBool, Bits: 1}
	}
	return Value{Kind: KindBool}
}

// UintValue wraps an integer of the given kind
func UintValue(kind Kind, v uint32) Value {
	return Value{Kind: kind, Bits: v}
}

// FloatValue wraps a float
func FloatValue(f float32) Value {
	return Value{Kind: KindFloat, Float: f}
}

// StringValue wraps a string
func StringValue(s string) Value {
	return Value{Kind: KindString, Text: s}
}

// Bool returns the value as a bool
func (v Value) Bool() bool {
	return v.Bits != 0
}

// Registers is the register model the protocol reads and writes.
// Index errors are reported as protocol.ErrIndexOutOfRange, writes to
// read-only classes as protocol.ErrReadOnly.
type Registers interface {
	// Count returns the number of registers of class c
	Count(c Class) int

	// Read returns register index of class c
	Read(c Class, index int) (Value, error)

	// Write stores v into register index of class c
	Write(c Class, index int, v Value) error

	// HasChanged reports whether class c changed since the last call, and clears the flag
	HasChanged(c Class) bool
}

// checkAccess validates an access against the class table and a register count
func checkAccess(regs Registers, c Class, index int, write bool) error {
	if c >= classCount {
		return protocol.ErrUnknownTag
	}
	if write && !c.Writable() {
		return protocol.ErrReadOnly
	}
	if index < 0 || index >= regs.Count(c) {
		return protocol.ErrIndexOutOfRange
	}
	return nil
}
