package protocol

import "testing"

func TestSliceSource(t *testing.T) {
	src := NewSliceSource([]byte{1, 2, 3, 4, 5})

	if src.Buffered() != 5 {
		t.Errorf("Expected 5 bytes buffered, got %d", src.Buffered())
	}

	b, err := src.ReadByte()
	if err != nil || b != 1 {
		t.Errorf("Expected first byte 1, got %d (%v)", b, err)
	}
	src.ReadByte()
	if src.Buffered() != 3 {
		t.Errorf("After reading 2, expected 3 bytes buffered, got %d", src.Buffered())
	}

	for src.Buffered() > 0 {
		src.ReadByte()
	}
	if _, err := src.ReadByte(); err != ErrNoData {
		t.Errorf("Expected ErrNoData on empty source, got %v", err)
	}
}

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	if !scratch.Output(1, 2, 3) {
		t.Fatal("Output of 3 bytes failed")
	}
	if scratch.Len() != 3 {
		t.Errorf("Expected length 3, got %d", scratch.Len())
	}

	result := scratch.Result()
	if len(result) != 3 || result[2] != 3 {
		t.Errorf("Expected [1 2 3], got %v", result)
	}

	if scratch.Free() != MessageMax-3 {
		t.Errorf("Expected %d free, got %d", MessageMax-3, scratch.Free())
	}

	// Data that does not fit is not written at all
	big := make([]byte, MessageMax)
	if scratch.Output(big...) {
		t.Error("Output beyond capacity should fail")
	}
	if scratch.Len() != 3 {
		t.Errorf("Failed output changed length to %d", scratch.Len())
	}

	scratch.Reset()
	if scratch.Len() != 0 {
		t.Errorf("After reset, expected length 0, got %d", scratch.Len())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}

	if fifo.Available() != 0 {
		t.Errorf("Empty FIFO should have 0 available, got %d", fifo.Available())
	}

	// Write some data
	data := []byte{1, 2, 3, 4, 5}
	written := fifo.Write(data)

	if written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}

	if fifo.Available() != 5 {
		t.Errorf("Expected 5 bytes available, got %d", fifo.Available())
	}

	// Read some data
	readBuf := make([]byte, 3)
	read := fifo.Read(readBuf)

	if read != 3 {
		t.Errorf("Expected to read 3 bytes, read %d", read)
	}

	if readBuf[0] != 1 || readBuf[1] != 2 || readBuf[2] != 3 {
		t.Errorf("Read data mismatch: got %v", readBuf)
	}

	b, err := fifo.ReadByte()
	if err != nil || b != 4 {
		t.Errorf("Expected ReadByte to return 4, got %d (%v)", b, err)
	}

	if fifo.Buffered() != 1 {
		t.Errorf("Expected 1 byte buffered, got %d", fifo.Buffered())
	}

	// One slot is reserved
	fifo.Reset()
	bigData := make([]byte, 12)
	written = fifo.Write(bigData)
	if written != 9 {
		t.Errorf("Expected to write 9 bytes to size-10 FIFO, wrote %d", written)
	}
	if fifo.Free() != 0 {
		t.Errorf("Full FIFO should have 0 free, got %d", fifo.Free())
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	// Fill buffer
	fifo.Write([]byte{1, 2, 3, 4})

	// Read some
	readBuf := make([]byte, 2)
	fifo.Read(readBuf)

	// Write more (will wrap around)
	written := fifo.Write([]byte{5, 6})
	if written != 2 {
		t.Errorf("Expected to write 2 bytes, wrote %d", written)
	}

	// Verify order
	allData := make([]byte, 4)
	read := fifo.Read(allData)
	if read != 4 {
		t.Errorf("Expected to read 4 bytes, read %d", read)
	}
	if allData[0] != 3 || allData[1] != 4 || allData[2] != 5 || allData[3] != 6 {
		t.Errorf("Wrap-around data mismatch: got %v", allData)
	}
}
