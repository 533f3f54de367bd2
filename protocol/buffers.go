package protocol

import "errors"

// ErrNoData is returned by ReadByte when nothing is buffered
var ErrNoData = errors.New("no data available")

// ByteSource is the non-blocking input side of a transport.
// TinyGo's machine.UART satisfies it.
type ByteSource interface {
	// Buffered returns the number of bytes that can be read without blocking
	Buffered() int

	// ReadByte returns the next buffered byte
	ReadByte() (byte, error)
}

// SliceSource implements ByteSource over a byte slice
type SliceSource struct {
	data []byte
}

// NewSliceSource creates a new SliceSource
func NewSliceSource(data []byte) *SliceSource {
	return &SliceSource{data: data}
}

func (s *SliceSource) Buffered() int {
	return len(s.data)
}

func (s *SliceSource) ReadByte() (byte, error) {
	if len(s.data) == 0 {
		return 0, ErrNoData
	}
	b := s.data[0]
	s.data = s.data[1:]
	return b, nil
}

// ScratchOutput is a fixed-size buffer holding one outgoing message
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

// Output appends data. It reports false and writes nothing when data does not fit.
func (s *ScratchOutput) Output(data ...byte) bool {
	if s.pos+len(data) > len(s.buf) {
		return false
	}
	s.pos += copy(s.buf[s.pos:], data)
	return true
}

// Len returns the number of bytes written
func (s *ScratchOutput) Len() int {
	return s.pos
}

// Free returns the remaining capacity
func (s *ScratchOutput) Free() int {
	return len(s.buf) - s.pos
}

// tail returns the unused part of the buffer for in-place appends
func (s *ScratchOutput) tail() []byte {
	return s.buf[s.pos:s.pos]
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a circular buffer for serial I/O
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// Write appends data to the FIFO buffer.
// Bytes that do not fit are dropped; the count written is returned.
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		nextWrite := (f.write + 1) % f.size
		if nextWrite == f.read {
			// Buffer full
			break
		}
		f.buf[f.write] = b
		f.write = nextWrite
		written++
	}
	return written
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		if f.read == f.write {
			// Buffer empty
			break
		}
		data[i] = f.buf[f.read]
		f.read = (f.read + 1) % f.size
		read++
	}
	return read
}

// ReadByte implements ByteSource
func (f *FifoBuffer) ReadByte() (byte, error) {
	if f.read == f.write {
		return 0, ErrNoData
	}
	b := f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return b, nil
}

// Buffered implements ByteSource
func (f *FifoBuffer) Buffered() int {
	return f.Available()
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
