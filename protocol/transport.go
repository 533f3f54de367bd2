package protocol

import (
	"io"
	"sync"
)

// LoopbackEnd is one side of an in-process serial link.
//
// The board side is polled through Buffered/ReadByte, the host side reads
// with a blocking Read, both write with Write.
type LoopbackEnd struct {
	link *loopLink
	in   *FifoBuffer
	out  *FifoBuffer
}

type loopLink struct {
	mu     sync.Mutex
	cond   *sync.Cond
	closed bool
}

// NewLoopback creates a link whose directions each buffer capacity bytes
func NewLoopback(capacity int) (board, host *LoopbackEnd) {
	link := &loopLink{}
	link.cond = sync.NewCond(&link.mu)
	toBoard := NewFifoBuffer(capacity)
	toHost := NewFifoBuffer(capacity)
	board = &LoopbackEnd{link: link, in: toBoard, out: toHost}
	host = &LoopbackEnd{link: link, in: toHost, out: toBoard}
	return board, host
}

// Buffered implements ByteSource
func (e *LoopbackEnd) Buffered() int {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	return e.in.Available()
}

// ReadByte implements ByteSource
func (e *LoopbackEnd) ReadByte() (byte, error) {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	return e.in.ReadByte()
}

// Read blocks until data is available or the link is closed
func (e *LoopbackEnd) Read(p []byte) (int, error) {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	for e.in.IsEmpty() {
		if e.link.closed {
			return 0, io.EOF
		}
		e.link.cond.Wait()
	}
	return e.in.Read(p), nil
}

// Write queues p for the other side. Bytes that do not fit are dropped and
// io.ErrShortWrite is returned, the way a full UART TX buffer behaves.
func (e *LoopbackEnd) Write(p []byte) (int, error) {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	if e.link.closed {
		return 0, io.ErrClosedPipe
	}
	n := e.out.Write(p)
	e.link.cond.Broadcast()
	if n < len(p) {
		return n, io.ErrShortWrite
	}
	return n, nil
}

// Close shuts both directions down and wakes blocked readers
func (e *LoopbackEnd) Close() error {
	e.link.mu.Lock()
	defer e.link.mu.Unlock()
	e.link.closed = true
	e.link.cond.Broadcast()
	return nil
}
