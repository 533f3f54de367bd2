package core

import (
	"io"

	"hiticomm/protocol"
)

// Config holds the board-side protocol settings
type Config struct {
	Format        protocol.WireFormat
	InputCapacity int    // line capacity of the receiver
	XInterval     uint32 // ms between two broadcast cycles
	AInterval     uint32 // ms between two A replies
	Broadcast     bool   // periodic broadcasting enabled at startup
	EchoInput     bool   // echo the offending input in error replies
	XSlice        int    // values per broadcast part
	ECSlice       int    // bytes per EEPROM range reply
	CodeName      string // reported in the B reply
	CodeVersion   string // reported in the B reply
}

// DefaultConfig returns the settings of a stock board
func DefaultConfig() Config {
	return Config{
		Format:        protocol.Hex,
		InputCapacity: protocol.InputCapacity,
		XInterval:     50,
		AInterval:     2,
		Broadcast:     true,
		EchoInput:     true,
		XSlice:        4,
		ECSlice:       8,
	}
}

// Port is the board side of the serial link: polled input, buffered output
type Port interface {
	protocol.ByteSource
	io.Writer
}

// QueryClass identifies one of the request classes tracked by a QueryState
type QueryClass uint8

const (
	QueryBoard QueryClass = iota
	QueryAccess
	QueryBroadcast
	QueryEeprom
	QueryEepromRange
	queryClassCount
)

var queryClassNames = [queryClassCount]string{"B", "A", "X", "E", "EC"}

func (q QueryClass) String() string {
	if q < queryClassCount {
		return queryClassNames[q]
	}
	return "?"
}

// QueryState tracks the replies of one request class
type QueryState struct {
	ID      uint16 // incremented for every request served
	Running bool   // a multi-part reply is in progress
}

// Stats counts session activity; the firmware reports them, the protocol does not
type Stats struct {
	Lines       uint32 // complete lines received
	Rejected    uint32 // requests answered with an error reply
	Overflows   uint32 // lines longer than the input capacity
	Replies     uint32 // messages written
	XParts      uint32 // broadcast parts written
	XCycles     uint32 // broadcast cycles completed
	WriteErrors uint32 // failed writes to the port
}

// Session is the board side of the protocol. It owns the receive buffer, the
// pending queries and the broadcast cursor, and is driven by calling
// Communicate from the main loop.
type Session struct {
	cfg    Config
	port   Port
	regs   Registers
	eeprom EEPROM
	clock  Clock

	receiver *protocol.LineReceiver
	tok      protocol.Tokenizer
	enc      *protocol.Encoder

	queries [queryClassCount]QueryState

	access accessRequest
	aTimer *Timer

	x         broadcastCycle
	xTimer    *Timer
	xEnabled  bool
	firstTime bool // next cycle is a full one
	forceFull bool // a full cycle was requested by the host

	ec rangeDump

	// semaphore alternates pull (false) and push (true) work when both are ready
	semaphore bool

	stats Stats
	werr  error
}

// NewSession creates a session. Zero capacity and slice sizes take their default value.
func NewSession(cfg Config, port Port, regs Registers, eeprom EEPROM, clock Clock) *Session {
	def := DefaultConfig()
	if cfg.InputCapacity <= 0 {
		cfg.InputCapacity = def.InputCapacity
	}
	if cfg.XSlice <= 0 {
		cfg.XSlice = def.XSlice
	}
	if cfg.ECSlice <= 0 {
		cfg.ECSlice = def.ECSlice
	}
	if eeprom == nil {
		eeprom = NewMemEEPROM(0)
	}
	return &Session{
		cfg:       cfg,
		port:      port,
		regs:      regs,
		eeprom:    eeprom,
		clock:     clock,
		receiver:  protocol.NewLineReceiver(cfg.InputCapacity),
		enc:       protocol.NewEncoder(cfg.Format),
		aTimer:    NewTimer(cfg.AInterval, true),
		xTimer:    NewTimer(cfg.XInterval, false),
		xEnabled:  cfg.Broadcast,
		firstTime: true,
	}
}

// Communicate performs one non-blocking protocol step: it consumes at most
// one line and writes at most one reply or broadcast part. Protocol errors are
// answered on the line; only a failing port write is returned.
func (s *Session) Communicate() error {
	now := s.clock.NowMillis()
	s.werr = nil

	// a pending A request or a range dump holds back new input
	if !s.access.pending && !s.ec.running {
		switch s.receiver.Feed(s.port) {
		case protocol.LineReady:
			s.stats.Lines++
			s.dispatch(s.receiver.Line())
		case protocol.Overflow:
			s.stats.Overflows++
			s.reject(protocol.ErrInputOverflow, nil)
		}
	}

	s.schedule(now)
	return s.werr
}

// SendBoardStarted announces the board and its library version
func (s *Session) SendBoardStarted() error {
	s.werr = nil
	s.sendResponse(protocol.MsgStarted, func(e *protocol.Encoder) {
		e.Uint16(protocol.LibraryVersion)
	})
	return s.werr
}

// EnableBroadcast turns periodic broadcasting on or off
func (s *Session) EnableBroadcast(enable bool) {
	if enable && !s.xEnabled {
		s.firstTime = true
	}
	s.xEnabled = enable
}

// ForceBroadcast requests a full cycle. It starts as soon as the X gate is
// open, whether periodic broadcasting is on or not.
func (s *Session) ForceBroadcast() {
	s.forceFull = true
}

// BroadcastEnabled reports whether periodic broadcasting is on
func (s *Session) BroadcastEnabled() bool {
	return s.xEnabled
}

// QueryState returns the state of one request class
func (s *Session) QueryState(q QueryClass) QueryState {
	if q >= queryClassCount {
		return QueryState{}
	}
	return s.queries[q]
}

// Semaphore returns the fairness flag: true means push work goes next
func (s *Session) Semaphore() bool {
	return s.semaphore
}

// Stats returns a copy of the counters
func (s *Session) Stats() Stats {
	return s.stats
}

// Config returns the active configuration
func (s *Session) Config() Config {
	return s.cfg
}

// sendResponse encodes one message and writes it to the port
func (s *Session) sendResponse(typ protocol.MessageType, fields func(e *protocol.Encoder)) {
	s.enc.Begin(typ)
	if fields != nil {
		fields(s.enc)
	}
	if err := s.enc.End(s.port); err != nil {
		s.stats.WriteErrors++
		if s.werr == nil {
			s.werr = err
		}
		return
	}
	s.stats.Replies++
}

// reject answers a request with an error reply
func (s *Session) reject(code protocol.ErrorCode, input []byte) {
	s.stats.Rejected++
	s.sendResponse(protocol.MsgError, func(e *protocol.Encoder) {
		e.Uint8(uint8(code))
		if s.cfg.EchoInput && len(input) > 0 {
			e.String(input)
		}
	})
}

// errorCode maps a collaborator error to the code sent on the line
func errorCode(err error, fallback protocol.ErrorCode) protocol.ErrorCode {
	if code, ok := err.(protocol.ErrorCode); ok {
		return code
	}
	return fallback
}
