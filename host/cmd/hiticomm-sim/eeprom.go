package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"hiticomm/core"
)

// fileEEPROM is a MemEEPROM saved to a file between runs
type fileEEPROM struct {
	*core.MemEEPROM
	path  string
	dirty bool
}

// openEEPROM loads path into a store of size bytes. A missing file gives an
// erased store; a short file is padded with 0xFF.
func openEEPROM(path string, size int) (*fileEEPROM, error) {
	e := &fileEEPROM{MemEEPROM: core.NewMemEEPROM(size), path: path}
	if path == "" {
		return e, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return e, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read eeprom image: %w", err)
	}
	copy(e.Bytes(), data)
	return e, nil
}

// Store implements core.EEPROM
func (e *fileEEPROM) Store(addr uint16, v byte) error {
	if err := e.MemEEPROM.Store(addr, v); err != nil {
		return err
	}
	e.dirty = true
	return nil
}

// save writes the image if it changed since the last save
func (e *fileEEPROM) save() error {
	if e.path == "" || !e.dirty {
		return nil
	}
	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, e.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write eeprom image: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("write eeprom image: %w", err)
	}
	e.dirty = false
	return nil
}
