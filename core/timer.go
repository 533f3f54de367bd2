package core

// TimerState is the life cycle of a Timer
type TimerState uint8

const (
	TimerReady   TimerState = iota // not started
	TimerRunning                   // counting
	TimerOver                      // duration elapsed, waiting for a manual Reset
)

func (s TimerState) String() string {
	switch s {
	case TimerRunning:
		return "running"
	case TimerOver:
		return "over"
	}
	return "ready"
}

// Timer is a millisecond gate driven by an external clock reading.
// With AutoRearm it restarts by itself each time it is found expired,
// otherwise it stays Over until Reset.
type Timer struct {
	Duration  uint32
	AutoRearm bool

	start uint32
	state TimerState
}

// NewTimer creates a Ready timer
func NewTimer(duration uint32, autoRearm bool) *Timer {
	return &Timer{Duration: duration, AutoRearm: autoRearm}
}

// Run starts a Ready timer; it has no effect otherwise
func (t *Timer) Run(now uint32) {
	if t.state == TimerReady {
		t.start = now
		t.state = TimerRunning
	}
}

// Restart starts the timer again from now, whatever its state
func (t *Timer) Restart(now uint32) {
	t.start = now
	t.state = TimerRunning
}

// Expired reports whether the gate is open at now. A Ready timer has nothing
// to wait for and counts as expired.
func (t *Timer) Expired(now uint32) bool {
	switch t.state {
	case TimerReady, TimerOver:
		return true
	}
	// unsigned subtraction: a wrapped counter still gives the right elapsed time
	if now-t.start < t.Duration {
		return false
	}
	if t.AutoRearm {
		t.start = now
	} else {
		t.state = TimerOver
	}
	return true
}

// Elapsed returns the time since the timer started, 0 when Ready
func (t *Timer) Elapsed(now uint32) uint32 {
	if t.state == TimerReady {
		return 0
	}
	return now - t.start
}

// Reset returns the timer to Ready
func (t *Timer) Reset() {
	t.state = TimerReady
	t.start = 0
}

// State returns the current state
func (t *Timer) State() TimerState {
	return t.state
}
