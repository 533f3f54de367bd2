package core

import "hiticomm/protocol"

// handleBoard answers a B request with the board identity. Single-shot.
func (s *Session) handleBoard() protocol.ErrorCode {
	if s.tok.Remaining() != 0 {
		return protocol.ErrBadArity
	}

	q := &s.queries[QueryBoard]
	q.ID++
	q.Running = true
	s.sendResponse(protocol.MsgBoard, func(e *protocol.Encoder) {
		e.Uint8(uint8(q.ID))
		e.Uint16(protocol.LibraryVersion)
		e.Uint8(uint8(s.regs.Count(ClassDigitalInput)))
		e.Uint8(uint8(s.regs.Count(ClassAnalogInput)))
		e.Uint8(uint8(s.regs.Count(ClassPWM)))
		e.Uint8(uint8(s.regs.Count(ClassDAC)))
		e.Uint8(uint8(s.regs.Count(ClassServo)))
		e.Uint8(uint8(s.regs.Count(ClassDigitalData)))
		e.Uint8(uint8(s.regs.Count(ClassAnalogData)))
		e.Uint16(uint16(s.eeprom.Size()))
		e.Uint8(uint8(s.cfg.Format))
		e.String([]byte(s.cfg.CodeName))
		e.String([]byte(s.cfg.CodeVersion))
	})
	q.Running = false
	return protocol.ErrNone
}
