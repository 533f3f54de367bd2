package protocol

import "testing"

func TestLineReceiverCompleteLine(t *testing.T) {
	r := NewLineReceiver(InputCapacity)

	status := r.Feed(NewSliceSource([]byte("A03DD1_\r\n")))
	if status != LineReady {
		t.Fatalf("Expected LineReady, got %v", status)
	}
	if string(r.Line()) != "A03DD1_" {
		t.Errorf("Expected line %q, got %q", "A03DD1_", r.Line())
	}
}

func TestLineReceiverSplitAcrossPolls(t *testing.T) {
	r := NewLineReceiver(InputCapacity)

	if status := r.Feed(NewSliceSource([]byte("B"))); status != NoLineYet {
		t.Errorf("Expected NoLineYet after partial line, got %v", status)
	}
	if status := r.Feed(NewSliceSource([]byte("\r"))); status != NoLineYet {
		t.Errorf("Expected NoLineYet after CR, got %v", status)
	}
	// CR seen survives between polls
	if status := r.Feed(NewSliceSource([]byte("\n"))); status != LineReady {
		t.Fatalf("Expected LineReady after LF, got %v", status)
	}
	if string(r.Line()) != "B" {
		t.Errorf("Expected line %q, got %q", "B", r.Line())
	}
}

func TestLineReceiverStopsAtFirstLine(t *testing.T) {
	r := NewLineReceiver(InputCapacity)
	src := NewSliceSource([]byte("B\r\nX1\r\n"))

	if status := r.Feed(src); status != LineReady {
		t.Fatalf("Expected LineReady, got %v", status)
	}
	if src.Buffered() != 4 {
		t.Errorf("Expected 4 bytes left unread, got %d", src.Buffered())
	}

	// The completed line is cleared by the next consumed byte
	if status := r.Feed(src); status != LineReady {
		t.Fatalf("Expected second LineReady, got %v", status)
	}
	if string(r.Line()) != "X1" {
		t.Errorf("Expected line %q, got %q", "X1", r.Line())
	}
}

func TestLineReceiverDropsNonPrintable(t *testing.T) {
	r := NewLineReceiver(InputCapacity)

	status := r.Feed(NewSliceSource([]byte{'E', 0x00, '0', 0x7F, '1', '\t', '\r', '\n'}))
	if status != LineReady {
		t.Fatalf("Expected LineReady, got %v", status)
	}
	if string(r.Line()) != "E01" {
		t.Errorf("Expected line %q, got %q", "E01", r.Line())
	}
}

func TestLineReceiverLoneCR(t *testing.T) {
	r := NewLineReceiver(InputCapacity)

	// A CR not followed by LF does not end the line
	status := r.Feed(NewSliceSource([]byte("B\rX\r\n")))
	if status != LineReady {
		t.Fatalf("Expected LineReady, got %v", status)
	}
	if string(r.Line()) != "BX" {
		t.Errorf("Expected line %q, got %q", "BX", r.Line())
	}
}

func TestLineReceiverOverflow(t *testing.T) {
	r := NewLineReceiver(InputCapacity)

	long := make([]byte, InputCapacity+10)
	for i := range long {
		long[i] = 'A'
	}
	src := NewSliceSource(append(long, "\r\nB\r\n"...))

	if status := r.Feed(src); status != Overflow {
		t.Fatalf("Expected Overflow, got %v", status)
	}
	if r.Len() != 0 {
		t.Errorf("Expected empty buffer after overflow, got %d bytes", r.Len())
	}

	// The tail of the long line is discarded, the next line starts clean
	if status := r.Feed(src); status != LineReady {
		t.Fatalf("Expected LineReady after overflow, got %v", status)
	}
	if string(r.Line()) != "B" {
		t.Errorf("Expected line %q, got %q", "B", r.Line())
	}
}

func TestLineReceiverExactCapacity(t *testing.T) {
	r := NewLineReceiver(4)

	if status := r.Feed(NewSliceSource([]byte("ABCD\r\n"))); status != LineReady {
		t.Fatalf("Expected LineReady for a line of exactly capacity, got %v", status)
	}
	if status := r.Feed(NewSliceSource([]byte("ABCDE\r\n"))); status != Overflow {
		t.Errorf("Expected Overflow for capacity+1, got %v", status)
	}
}

func TestLineReceiverEmptyLine(t *testing.T) {
	r := NewLineReceiver(InputCapacity)

	if status := r.Feed(NewSliceSource([]byte("\r\n"))); status != LineReady {
		t.Fatalf("Expected LineReady, got %v", status)
	}
	if len(r.Line()) != 0 {
		t.Errorf("Expected empty line, got %q", r.Line())
	}
}
