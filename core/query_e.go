package core

import "hiticomm/protocol"

// rangeDump is an EC request in progress
type rangeDump struct {
	running   bool
	next      uint16
	remaining int
}

// handleEeprom reads, or writes then reads back, one EEPROM byte.
// The reply is immediate.
func (s *Session) handleEeprom() protocol.ErrorCode {
	r := protocol.NewFieldReader(&s.tok)
	addr := r.Uint16()
	write := false
	var value uint8
	if r.Err() == nil && !r.Done() {
		write = true
		value = r.Uint8()
	}
	if err := r.Err(); err != nil {
		return errorCode(err, protocol.ErrMalformedField)
	}
	if !r.Done() {
		return protocol.ErrBadArity
	}
	if int(addr) >= s.eeprom.Size() {
		return protocol.ErrAddressOutOfRange
	}

	if write {
		if err := s.eeprom.Store(addr, value); err != nil {
			return errorCode(err, protocol.ErrAddressOutOfRange)
		}
	}
	stored, err := s.eeprom.Load(addr)
	if err != nil {
		return errorCode(err, protocol.ErrAddressOutOfRange)
	}

	q := &s.queries[QueryEeprom]
	q.ID++
	s.sendResponse(protocol.MsgEeprom, func(e *protocol.Encoder) {
		e.Uint16(q.ID)
		e.Uint16(addr)
		e.Uint8(stored)
	})
	return protocol.ErrNone
}

// handleEepromRange validates an EC request and starts the dump; the
// scheduler sends one slice per call.
func (s *Session) handleEepromRange() protocol.ErrorCode {
	r := protocol.NewFieldReader(&s.tok)
	start := r.Uint16()
	qty := r.Uint8()
	if err := r.Err(); err != nil {
		return errorCode(err, protocol.ErrMalformedField)
	}
	if !r.Done() {
		return protocol.ErrBadArity
	}
	if qty == 0 {
		return protocol.ErrMalformedField
	}
	if int(start)+int(qty) > s.eeprom.Size() {
		return protocol.ErrAddressOutOfRange
	}

	s.ec = rangeDump{running: true, next: start, remaining: int(qty)}
	q := &s.queries[QueryEepromRange]
	q.ID++
	q.Running = true
	return protocol.ErrNone
}

// serveEepromRange sends the next slice of the dump
func (s *Session) serveEepromRange() {
	count := s.ec.remaining
	if count > s.cfg.ECSlice {
		count = s.cfg.ECSlice
	}

	var slice [255]byte
	for i := 0; i < count; i++ {
		b, err := s.eeprom.Load(s.ec.next + uint16(i))
		if err != nil {
			// the range was checked; a failing store reads as erased
			b = 0xFF
		}
		slice[i] = b
	}

	id := s.queries[QueryEepromRange].ID
	addr := s.ec.next
	s.sendResponse(protocol.MsgEepromRange, func(e *protocol.Encoder) {
		e.Uint16(id)
		e.Uint16(addr)
		e.Uint8(uint8(count))
		for _, b := range slice[:count] {
			e.Uint8(b)
		}
	})

	s.ec.next += uint16(count)
	s.ec.remaining -= count
	if s.ec.remaining == 0 {
		s.ec.running = false
		s.queries[QueryEepromRange].Running = false
	}
}
