package protocol

import "testing"

func TestChecksumOf(t *testing.T) {
	tests := []struct {
		data string
		sum  uint8
	}{
		{"", 0x00},
		{"B", 0x42},
		{"A03DD1_", 0xBC},
		{"S007D", 0x2E},
	}

	for _, tt := range tests {
		if got := ChecksumOf([]byte(tt.data)); got != tt.sum {
			t.Errorf("ChecksumOf(%q): expected 0x%02X, got 0x%02X", tt.data, tt.sum, got)
		}
	}

	// Wraps modulo 256
	var c Checksum
	c.Add(0xFF)
	c.Add(0x02)
	if c.Sum() != 0x01 {
		t.Errorf("Expected wrapped sum 0x01, got 0x%02X", c.Sum())
	}
}

func TestVerifyChecksum(t *testing.T) {
	tests := []struct {
		name    string
		format  WireFormat
		line    string
		payload string
		ok      bool
	}{
		{"hex valid", Hex, "E002A7F95", "E002A7F", true},
		{"hex bare tag", Hex, "B42", "B", true},
		{"hex lower case digits", Hex, "A03DD1_bc", "A03DD1_", true},
		{"hex corrupted", Hex, "E002A7E95", "", false},
		{"hex too short", Hex, "B", "", false},
		{"separator valid", UseSeparator, "A03DD1_1_4C", "A03DD1_1", true},
		{"separator missing field separator", UseSeparator, "A03DD118E", "", false},
		{"separator not hex", UseSeparator, "A03DD1_1_XY", "", false},
		{"int passes through", UseInt, "A03DD1_", "A03DD1_", true},
		{"readable passes through", FullyReadable, "B", "B", true},
	}

	for _, tt := range tests {
		payload, ok := VerifyChecksum(tt.format, []byte(tt.line))
		if ok != tt.ok {
			t.Errorf("%s: expected ok=%v, got %v", tt.name, tt.ok, ok)
			continue
		}
		if ok && string(payload) != tt.payload {
			t.Errorf("%s: expected payload %q, got %q", tt.name, tt.payload, payload)
		}
	}
}
