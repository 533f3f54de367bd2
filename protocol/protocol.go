// Package protocol implements the HITIComm serial line protocol
package protocol

// LibraryVersion is reported in the board-started message and the B reply (1.2.5)
const LibraryVersion = 125

// Protocol constants
const (
	InputCapacity = 40  // Board input line capacity (characters, terminator excluded)
	MessageMax    = 192 // Maximum encoded message size, terminator and checksum included
	HostLineMax   = 256 // Host side receive line capacity

	Separator = '_'
	EndCR     = '\r'
	EndLF     = '\n'

	ErrorMarker = '!' // Prefix of a per-slot error code in A replies

	FloatDecimals = 3  // Decimals used for floats in decimal formats
	StringMax     = 29 // Longest string register value (30 bytes with terminator on the original board)

	AccessSlotsMax = 4 // Maximum slots in one A request
)

// Fixed field widths in the Hex format, in hex digits
const (
	WidthBool   = 1
	WidthUint8  = 2
	WidthUint16 = 4
	WidthUint32 = 8
	WidthFloat  = 8
	WidthLength = 2 // String length prefix
)

// ErrorCode identifies the reason carried by an error reply or an A slot marker
type ErrorCode uint8

const (
	ErrNone ErrorCode = iota
	ErrInputOverflow
	ErrUnknownMessageType
	ErrBadArity
	ErrChecksumMismatch
	ErrIndexOutOfRange
	ErrMalformedField
	ErrReadOnly
	ErrUnknownTag
	ErrAddressOutOfRange
)

var errorCodeNames = [...]string{
	ErrNone:               "none",
	ErrInputOverflow:      "input overflow",
	ErrUnknownMessageType: "unknown message type",
	ErrBadArity:           "bad arity",
	ErrChecksumMismatch:   "checksum mismatch",
	ErrIndexOutOfRange:    "index out of range",
	ErrMalformedField:     "malformed field",
	ErrReadOnly:           "read only",
	ErrUnknownTag:         "unknown tag",
	ErrAddressOutOfRange:  "address out of range",
}

func (c ErrorCode) String() string {
	if int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return "error " + itoa(int(c))
}

// Error lets a code travel as a Go error
func (c ErrorCode) Error() string {
	return c.String()
}
