package core

import "hiticomm/protocol"

// dispatch validates one received line and routes it to its handler.
// A request is either fully accepted or rejected with a single error reply.
func (s *Session) dispatch(line []byte) {
	if len(line) == 0 {
		return
	}

	payload, ok := protocol.VerifyChecksum(s.cfg.Format, line)
	if !ok {
		s.reject(protocol.ErrChecksumMismatch, line)
		return
	}

	s.tok.Reset(s.cfg.Format, payload)
	tag, ok := s.tok.MessageType()
	if !ok {
		s.reject(protocol.ErrUnknownMessageType, payload)
		return
	}
	typ, ok := protocol.LookupMessageType(s.cfg.Format, s.tok.Bytes(tag))
	if !ok || !typ.IsRequest() {
		s.reject(protocol.ErrUnknownMessageType, payload)
		return
	}

	var code protocol.ErrorCode
	switch typ {
	case protocol.MsgBoard:
		code = s.handleBoard()
	case protocol.MsgAccess:
		code = s.handleAccess(payload)
	case protocol.MsgBroadcast:
		code = s.handleBroadcast()
	case protocol.MsgEeprom:
		code = s.handleEeprom()
	case protocol.MsgEepromRange:
		code = s.handleEepromRange()
	}
	if code != protocol.ErrNone {
		s.reject(code, payload)
	}
}
