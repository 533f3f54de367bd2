package core

import "hiticomm/protocol"

// EEPROM is the non-volatile byte store addressed by E and EC requests
type EEPROM interface {
	// Size returns the number of addressable bytes
	Size() int

	// Load returns the byte at addr
	Load(addr uint16) (byte, error)

	// Store writes v at addr
	Store(addr uint16, v byte) error
}

// MemEEPROM is a RAM-backed EEPROM for boards without one, the simulator and tests
type MemEEPROM struct {
	data []byte
}

// NewMemEEPROM creates an erased (0xFF) store of size bytes
func NewMemEEPROM(size int) *MemEEPROM {
	m := &MemEEPROM{data: make([]byte, size)}
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return m
}

// Size implements EEPROM
func (m *MemEEPROM) Size() int {
	return len(m.data)
}

// Load implements EEPROM
func (m *MemEEPROM) Load(addr uint16) (byte, error) {
	if int(addr) >= len(m.data) {
		return 0, protocol.ErrAddressOutOfRange
	}
	return m.data[addr], nil
}

// Store implements EEPROM
func (m *MemEEPROM) Store(addr uint16, v byte) error {
	if int(addr) >= len(m.data) {
		return protocol.ErrAddressOutOfRange
	}
	m.data[addr] = v
	return nil
}

// Bytes exposes the backing array (persistence by the simulator)
func (m *MemEEPROM) Bytes() []byte {
	return m.data
}
