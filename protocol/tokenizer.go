package protocol

// Token is a view into a line: it is never copied during parsing
type Token struct {
	Start int
	Len   int
}

// Empty reports whether the token is the empty placeholder
func (t Token) Empty() bool { return t.Len == 0 }

// Tokenizer walks the fields of one line according to a wire format
type Tokenizer struct {
	line   []byte
	pos    int
	format WireFormat
	done   bool // no token left (separated formats)
}

// NewTokenizer creates a tokenizer over line.
// The line must not include the terminator or the checksum field.
func NewTokenizer(f WireFormat, line []byte) *Tokenizer {
	t := &Tokenizer{}
	t.Reset(f, line)
	return t
}

// Reset points the tokenizer at a new line
func (t *Tokenizer) Reset(f WireFormat, line []byte) {
	t.line = line
	t.pos = 0
	t.format = f
	t.done = len(line) == 0
}

// Bytes returns the characters covered by tok
func (t *Tokenizer) Bytes(tok Token) []byte {
	return t.line[tok.Start : tok.Start+tok.Len]
}

// MessageType extracts the message-type token: a single byte in compact
// formats, a separator-delimited token with readable tags.
func (t *Tokenizer) MessageType() (Token, bool) {
	if t.format.ReadableTags() {
		return t.Next()
	}
	if t.pos >= len(t.line) {
		return Token{}, false
	}
	tok := Token{Start: t.pos, Len: 1}
	t.pos++
	t.done = t.pos >= len(t.line)
	return tok, true
}

// Next returns the next separator-delimited token.
// Two consecutive separators yield an empty token; a trailing separator
// yields one final empty token. It returns false once the line is exhausted.
func (t *Tokenizer) Next() (Token, bool) {
	if t.done {
		return Token{}, false
	}
	start := t.pos
	for t.pos < len(t.line) && t.line[t.pos] != Separator {
		t.pos++
	}
	tok := Token{Start: start, Len: t.pos - start}
	if t.pos < len(t.line) {
		// step over the separator; an empty token follows a trailing one
		t.pos++
	} else {
		t.done = true
	}
	return tok, true
}

// Fixed returns the next n characters as one field (Hex format)
func (t *Tokenizer) Fixed(n int) (Token, bool) {
	if n < 0 || t.pos+n > len(t.line) {
		return Token{}, false
	}
	tok := Token{Start: t.pos, Len: n}
	t.pos += n
	t.done = t.pos >= len(t.line)
	return tok, true
}

// Skip consumes qty tokens and reports whether all of them existed
func (t *Tokenizer) Skip(qty int) bool {
	for i := 0; i < qty; i++ {
		if _, ok := t.Next(); !ok {
			return false
		}
	}
	return true
}

// Count returns the number of tokens left without consuming them
func (t *Tokenizer) Count() int {
	if t.done {
		return 0
	}
	n := 1
	for _, c := range t.line[t.pos:] {
		if c == Separator {
			n++
		}
	}
	return n
}

// Remaining returns the number of unread characters
func (t *Tokenizer) Remaining() int {
	if t.done {
		return 0
	}
	return len(t.line) - t.pos
}

// Rest returns the unread characters without consuming them
func (t *Tokenizer) Rest() []byte {
	if t.done {
		return nil
	}
	return t.line[t.pos:]
}
