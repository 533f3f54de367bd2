package core

// schedule serves at most one unit of outbound work.
//
// Pull work answers the host: a pending A request once its gate is open, or
// the next slice of an EEPROM range. Push work is the broadcast: a cycle in
// progress, or a requested or periodic one once the X gate has expired.
// When both are ready the semaphore alternates between them.
func (s *Session) schedule(now uint32) {
	pull := (s.access.pending && s.aTimer.Expired(now)) || s.ec.running
	push := s.x.running || ((s.forceFull || s.xEnabled) && s.xTimer.Expired(now))

	switch {
	case pull && push:
		if s.semaphore {
			s.serveBroadcast(now)
		} else {
			s.servePull(now)
		}
		s.semaphore = !s.semaphore
	case pull:
		s.servePull(now)
	case push:
		s.serveBroadcast(now)
	}
}

func (s *Session) servePull(now uint32) {
	if s.access.pending {
		s.serveAccess(now)
		return
	}
	s.serveEepromRange()
}
