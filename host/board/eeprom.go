package board

import (
	"fmt"
	"math"

	"hiticomm/protocol"
)

// ReadEEPROM reads one EEPROM byte
func (c *Client) ReadEEPROM(addr uint16) (byte, error) {
	return c.eeprom(addr, nil)
}

// WriteEEPROM writes one EEPROM byte and returns the value read back
func (c *Client) WriteEEPROM(addr uint16, v byte) (byte, error) {
	return c.eeprom(addr, &v)
}

func (c *Client) eeprom(addr uint16, value *byte) (byte, error) {
	msg, err := c.request(protocol.MsgEeprom, func(e *protocol.Encoder) {
		e.Uint16(addr)
		if value != nil {
			e.Uint8(*value)
		}
	})
	if err != nil {
		return 0, fmt.Errorf("eeprom %d: %w", addr, err)
	}
	r := msg.Fields()
	r.Uint16() // id
	got := r.Uint16()
	stored := r.Uint8()
	if err := r.Err(); err != nil {
		return 0, fmt.Errorf("eeprom %d: decode E reply: %w", addr, err)
	}
	if got != addr {
		return 0, fmt.Errorf("eeprom %d: reply for address %d", addr, got)
	}
	return stored, nil
}

// DumpEEPROM reads qty bytes from start with EC requests of at most 255 bytes
func (c *Client) DumpEEPROM(start uint16, qty int) ([]byte, error) {
	if qty <= 0 || int(start)+qty > math.MaxUint16+1 {
		return nil, fmt.Errorf("eeprom dump: invalid range %d+%d", start, qty)
	}
	out := make([]byte, 0, qty)
	for len(out) < qty {
		n := qty - len(out)
		if n > math.MaxUint8 {
			n = math.MaxUint8
		}
		chunk, err := c.dumpRange(start+uint16(len(out)), uint8(n))
		if err != nil {
			return nil, err
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// dumpRange sends one EC request and collects its slices
func (c *Client) dumpRange(start uint16, qty uint8) ([]byte, error) {
	c.reqMutex.Lock()
	defer c.reqMutex.Unlock()

	msg, err := c.requestLocked(protocol.MsgEepromRange, func(e *protocol.Encoder) {
		e.Uint16(start)
		e.Uint8(qty)
	})
	if err != nil {
		return nil, fmt.Errorf("eeprom dump at %d: %w", start, err)
	}

	out := make([]byte, 0, qty)
	var id uint16
	for {
		r := msg.Fields()
		sliceID := r.Uint16()
		addr := r.Uint16()
		count := int(r.Uint8())
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("eeprom dump at %d: decode EC reply: %w", start, err)
		}
		if len(out) == 0 {
			id = sliceID
		}
		if sliceID != id || int(addr) != int(start)+len(out) {
			return nil, fmt.Errorf("eeprom dump at %d: unexpected slice %d at %d", start, sliceID, addr)
		}
		for i := 0; i < count; i++ {
			out = append(out, r.Uint8())
		}
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("eeprom dump at %d: decode EC reply: %w", start, err)
		}
		if len(out) >= int(qty) {
			return out, nil
		}

		msg, err = c.transport.Expect(protocol.MsgEepromRange, c.timeout)
		if err != nil {
			return nil, fmt.Errorf("eeprom dump at %d: %w", start, err)
		}
		c.observe(msg, 0)
	}
}
