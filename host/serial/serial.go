// Package serial opens the link to a HITIComm board
package serial

import "io"

// Port is the host side of the board link
type Port interface {
	io.ReadWriteCloser

	// Flush discards input received but not read yet
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate of the board sketch
	Baud int

	// Read timeout in milliseconds (0 = blocking). HostTransport polls, so
	// a short timeout keeps Close responsive.
	ReadTimeout int
}

// DefaultBaud is the rate the board firmware opens its UART at
const DefaultBaud = 115200

// DefaultConfig returns a default configuration for a HITIComm board
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: 100,
	}
}
