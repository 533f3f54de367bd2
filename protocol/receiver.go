package protocol

// LineStatus is the result of one LineReceiver.Feed call
type LineStatus uint8

const (
	NoLineYet LineStatus = iota // more bytes needed
	LineReady                   // a complete line is available through Line()
	Overflow                    // the line exceeded capacity and was dropped
)

func (s LineStatus) String() string {
	switch s {
	case LineReady:
		return "line ready"
	case Overflow:
		return "overflow"
	}
	return "no line yet"
}

// LineReceiver accumulates polled bytes into a fixed line buffer until CR LF.
//
// Only the partial line and the CR-seen flag survive between calls. A completed
// line stays readable until the next byte is consumed.
type LineReceiver struct {
	buf []byte
	n   int

	crSeen     bool // CR received, waiting for LF (may arrive in a later poll)
	ready      bool // buf holds a completed line
	discarding bool // dropping the tail of an overflowed line
}

// NewLineReceiver allocates a receiver with a fixed capacity
func NewLineReceiver(capacity int) *LineReceiver {
	return &LineReceiver{buf: make([]byte, capacity)}
}

// Feed consumes the bytes currently buffered in src, stopping at the first
// completed line. It never waits for more input.
func (r *LineReceiver) Feed(src ByteSource) LineStatus {
	for src.Buffered() > 0 {
		b, err := src.ReadByte()
		if err != nil {
			break
		}
		if r.ready {
			r.n = 0
			r.ready = false
		}

		if r.crSeen {
			r.crSeen = false
			if b == EndLF {
				if r.discarding {
					r.discarding = false
					r.n = 0
					continue
				}
				r.ready = true
				return LineReady
			}
		}

		switch {
		case b == EndCR:
			r.crSeen = true
		case r.discarding:
		case b < 0x20 || b > 0x7E:
			// not printable: dropped
		case r.n == len(r.buf):
			r.n = 0
			r.discarding = true
			return Overflow
		default:
			r.buf[r.n] = b
			r.n++
		}
	}
	return NoLineYet
}

// Line returns the completed line (terminator excluded).
// The slice is only valid until the next Feed call.
func (r *LineReceiver) Line() []byte {
	if !r.ready {
		return nil
	}
	return r.buf[:r.n]
}

// Len returns the number of characters currently buffered
func (r *LineReceiver) Len() int {
	return r.n
}

// Capacity returns the line capacity
func (r *LineReceiver) Capacity() int {
	return len(r.buf)
}

// Reset drops any partial or completed line
func (r *LineReceiver) Reset() {
	r.n = 0
	r.crSeen = false
	r.ready = false
	r.discarding = false
}
