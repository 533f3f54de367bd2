package protocol

// MessageType is one of the closed set of protocol message classes
type MessageType uint8

const (
	MsgInvalid MessageType = iota
	MsgBoard               // B: board identity
	MsgAccess              // A: indexed register access
	MsgBroadcast           // X: full-state broadcast
	MsgEeprom              // E: single EEPROM byte
	MsgEepromRange         // EC: consecutive EEPROM range
	MsgError               // board to host error reply
	MsgStarted             // board to host start notice
)

type messageInfo struct {
	compact  byte
	readable string
}

var messageTable = [...]messageInfo{
	MsgBoard:       {'B', "B"},
	MsgAccess:      {'A', "A"},
	MsgBroadcast:   {'X', "X"},
	MsgEeprom:      {'E', "E"},
	MsgEepromRange: {'C', "EC"},
	MsgError:       {'Z', "ER"},
	MsgStarted:     {'S', "ST"},
}

// Tag returns the wire tag of the message type for the given format
func (t MessageType) Tag(f WireFormat) string {
	if t == MsgInvalid || int(t) >= len(messageTable) {
		return ""
	}
	if f.ReadableTags() {
		return messageTable[t].readable
	}
	return string(messageTable[t].compact)
}

func (t MessageType) String() string {
	if t == MsgInvalid || int(t) >= len(messageTable) {
		return "invalid"
	}
	return messageTable[t].readable
}

// IsRequest reports whether a host may send this message type to the board
func (t MessageType) IsRequest() bool {
	return t >= MsgBoard && t <= MsgEepromRange
}

// LookupMessageType checks a tag against the closed set of message types.
// Tags are case-sensitive.
func LookupMessageType(f WireFormat, tag []byte) (MessageType, bool) {
	for i := MsgBoard; int(i) < len(messageTable); i++ {
		info := messageTable[i]
		if f.ReadableTags() {
			if string(tag) == info.readable {
				return i, true
			}
		} else if len(tag) == 1 && tag[0] == info.compact {
			return i, true
		}
	}
	return MsgInvalid, false
}
