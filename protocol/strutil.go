package protocol

const hexDigits = "0123456789ABCDEF"

// itoa converts an integer to a string without using fmt package
// This is a lightweight alternative for embedded systems
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	pos := len(buf)
	negative := n < 0
	if negative {
		n = -n
	}
	for n > 0 {
		pos--
		buf[pos] = byte('0' + n%10)
		n /= 10
	}
	if negative {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

// appendHex appends v in upper-case hex.
// width > 0 zero-fills to exactly width digits (higher digits are dropped),
// width == 0 writes the shortest form.
func appendHex(dst []byte, v uint32, width int) []byte {
	if width == 0 {
		width = 1
		for t := v >> 4; t != 0; t >>= 4 {
			width++
		}
	}
	for i := width - 1; i >= 0; i-- {
		dst = append(dst, hexDigits[(v>>(uint(i)*4))&0xF])
	}
	return dst
}

// hexValue returns the value of an ASCII hex digit (either case)
func hexValue(c byte) (uint32, bool) {
	switch {
	case c >= '0' && c <= '9':
		return uint32(c - '0'), true
	case c >= 'A' && c <= 'F':
		return uint32(c-'A') + 10, true
	case c >= 'a' && c <= 'f':
		return uint32(c-'a') + 10, true
	}
	return 0, false
}
