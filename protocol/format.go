package protocol

import "errors"

// WireFormat selects how messages are written on the line.
// Exactly one is active for a board session.
type WireFormat uint8

const (
	FullyReadable WireFormat = iota // readable tags, separator, decimal
	UseInt                          // separator, decimal
	UseSeparator                    // separator, hex, checksum
	Hex                             // fixed-width hex, checksum
)

var formatNames = [...]string{
	FullyReadable: "readable",
	UseInt:        "int",
	UseSeparator:  "separator",
	Hex:           "hex",
}

// ErrUnknownFormat is returned by ParseWireFormat
var ErrUnknownFormat = errors.New("unknown wire format")

// ParseWireFormat maps a configuration name to a WireFormat
func ParseWireFormat(name string) (WireFormat, error) {
	for i, n := range formatNames {
		if n == name {
			return WireFormat(i), nil
		}
	}
	return Hex, ErrUnknownFormat
}

func (f WireFormat) String() string {
	if int(f) < len(formatNames) {
		return formatNames[f]
	}
	return "format " + itoa(int(f))
}

// ReadableTags reports whether message types are multi-character mnemonics
func (f WireFormat) ReadableTags() bool { return f == FullyReadable }

// Separated reports whether fields are separator-delimited
func (f WireFormat) Separated() bool { return f != Hex }

// HexNumbers reports whether numbers and floats are written in hex
func (f WireFormat) HexNumbers() bool { return f == UseSeparator || f == Hex }

// FixedWidth reports whether fields are zero-filled to a fixed width with no separators
func (f WireFormat) FixedWidth() bool { return f == Hex }

// Checksummed reports whether a trailing checksum closes every line
func (f WireFormat) Checksummed() bool { return f == UseSeparator || f == Hex }
