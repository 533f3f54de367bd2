package serial

import (
	"io"
	"sync"

	"hiticomm/protocol"
)

// StreamSource turns a blocking reader into a polled protocol.ByteSource.
// A goroutine copies the stream into a FIFO; bytes that do not fit are
// dropped and counted, the way a full UART ring would lose them.
type StreamSource struct {
	mu      sync.Mutex
	fifo    *protocol.FifoBuffer
	dropped uint64
	err     error
	done    chan struct{}
}

// NewStreamSource starts reading r into a FIFO of the given capacity
func NewStreamSource(r io.Reader, capacity int) *StreamSource {
	s := &StreamSource{
		fifo: protocol.NewFifoBuffer(capacity),
		done: make(chan struct{}),
	}
	go s.pump(r)
	return s
}

func (s *StreamSource) pump(r io.Reader) {
	defer close(s.done)
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.mu.Lock()
			if w := s.fifo.Write(buf[:n]); w < n {
				s.dropped += uint64(n - w)
			}
			s.mu.Unlock()
		}
		if err != nil {
			s.mu.Lock()
			s.err = err
			s.mu.Unlock()
			return
		}
	}
}

// Buffered implements protocol.ByteSource
func (s *StreamSource) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fifo.Available()
}

// ReadByte implements protocol.ByteSource
func (s *StreamSource) ReadByte() (byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fifo.ReadByte()
}

// Dropped returns the number of bytes lost to a full FIFO
func (s *StreamSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Err returns the error that stopped the reader, nil while it runs
func (s *StreamSource) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Done is closed when the reader goroutine exits
func (s *StreamSource) Done() <-chan struct{} {
	return s.done
}
