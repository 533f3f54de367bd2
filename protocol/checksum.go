package protocol

// Checksum is the running 8-bit additive sum used by checksummed formats.
// Board and host apply the same rule in both directions.
type Checksum uint8

// Add accumulates one byte
func (c *Checksum) Add(b byte) {
	*c += Checksum(b)
}

// AddBytes accumulates every byte of data
func (c *Checksum) AddBytes(data []byte) {
	for _, b := range data {
		*c += Checksum(b)
	}
}

// Reset starts a new message
func (c *Checksum) Reset() {
	*c = 0
}

// Sum returns the accumulated value
func (c Checksum) Sum() uint8 {
	return uint8(c)
}

// ChecksumOf returns the sum of data
func ChecksumOf(data []byte) uint8 {
	var c Checksum
	c.AddBytes(data)
	return c.Sum()
}

// VerifyChecksum checks the trailing checksum field of a line and returns the
// line without it. Formats without checksum return the line unchanged.
func VerifyChecksum(f WireFormat, line []byte) ([]byte, bool) {
	if !f.Checksummed() {
		return line, true
	}
	n := len(line)
	if n < WidthUint8 {
		return nil, false
	}
	hi, ok1 := hexValue(line[n-2])
	lo, ok2 := hexValue(line[n-1])
	if !ok1 || !ok2 {
		return nil, false
	}
	summed := line[:n-2]
	if ChecksumOf(summed) != uint8(hi<<4|lo) {
		return nil, false
	}
	if f.Separated() {
		// the checksum is a field of its own
		if len(summed) == 0 || summed[len(summed)-1] != Separator {
			return nil, false
		}
		summed = summed[:len(summed)-1]
	}
	return summed, true
}
