// Package board is the host side of the HITIComm protocol: it queries a
// board over a HostTransport and assembles its broadcast cycles.
package board

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hiticomm/core"
	"hiticomm/host/serial"
	"hiticomm/protocol"
)

// Info is the board identity from a B reply
type Info struct {
	ID          uint8
	Version     uint16
	Counts      [core.ClassString + 1]int // registers per class
	EEPROMSize  int
	Format      protocol.WireFormat
	CodeName    string
	CodeVersion string
}

// Count returns the number of registers of class c
func (i *Info) Count(c core.Class) int {
	if int(c) >= len(i.Counts) {
		return 0
	}
	return i.Counts[c]
}

// Client talks to one board
type Client struct {
	transport *protocol.HostTransport
	timeout   time.Duration
	log       zerolog.Logger

	// one request at a time: replies are matched by type
	reqMutex sync.Mutex

	mu        sync.Mutex
	info      *Info
	assembler *assembler
	latest    *Snapshot
	waiters   []chan Snapshot

	hookMutex  sync.RWMutex
	onSnapshot []func(Snapshot)
	onStarted  []func(version uint16)
	onMessage  []func(*protocol.Message, time.Duration)
}

// NewClient wraps a running transport. timeout bounds every request.
func NewClient(t *protocol.HostTransport, timeout time.Duration, logger zerolog.Logger) *Client {
	c := &Client{
		transport: t,
		timeout:   timeout,
		log:       logger,
		assembler: newAssembler(),
	}
	t.SetResponseHandler(c.handleMessage)
	return c
}

// Dial opens a serial port and starts a client on it
func Dial(cfg *serial.Config, format protocol.WireFormat, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	// drop whatever the board sent before we listened
	if err := port.Flush(); err != nil {
		logger.Debug().Err(err).Msg("flush failed")
	}
	t := protocol.NewHostTransport(port, format)
	logger.Info().Str("device", cfg.Device).Int("baud", cfg.Baud).Str("format", format.String()).Msg("connected")
	return NewClient(t, timeout, logger), nil
}

// Close stops the transport and closes the port
func (c *Client) Close() error {
	return c.transport.Close()
}

// Transport returns the underlying transport
func (c *Client) Transport() *protocol.HostTransport {
	return c.transport
}

// Info returns the identity from the last Identify, nil before
func (c *Client) Info() *Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info
}

// OnSnapshot registers a callback for every completed broadcast cycle.
// Callbacks run on the transport read loop and must not issue requests.
func (c *Client) OnSnapshot(fn func(Snapshot)) {
	c.hookMutex.Lock()
	c.onSnapshot = append(c.onSnapshot, fn)
	c.hookMutex.Unlock()
}

// OnStarted registers a callback for board start notices
func (c *Client) OnStarted(fn func(version uint16)) {
	c.hookMutex.Lock()
	c.onStarted = append(c.onStarted, fn)
	c.hookMutex.Unlock()
}

// OnMessage registers a callback receiving every decoded message with the
// time elapsed since the pending request was sent (zero for unsolicited ones)
func (c *Client) OnMessage(fn func(*protocol.Message, time.Duration)) {
	c.hookMutex.Lock()
	c.onMessage = append(c.onMessage, fn)
	c.hookMutex.Unlock()
}

// Identify sends B and records the board layout
func (c *Client) Identify() (*Info, error) {
	msg, err := c.request(protocol.MsgBoard, nil)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	info, err := decodeInfo(msg)
	if err != nil {
		return nil, fmt.Errorf("identify: %w", err)
	}
	if info.Format != c.transport.Format() {
		c.log.Warn().Str("board", info.Format.String()).Str("host", c.transport.Format().String()).Msg("format mismatch")
	}

	c.mu.Lock()
	c.info = info
	c.assembler.layout(info)
	c.mu.Unlock()

	c.log.Debug().Uint8("id", info.ID).Uint16("version", info.Version).Str("code", info.CodeName).Msg("board identified")
	return info, nil
}

func decodeInfo(msg *protocol.Message) (*Info, error) {
	r := msg.Fields()
	info := &Info{
		ID:      r.Uint8(),
		Version: r.Uint16(),
	}
	for _, c := range []core.Class{
		core.ClassDigitalInput,
		core.ClassAnalogInput,
		core.ClassPWM,
		core.ClassDAC,
		core.ClassServo,
		core.ClassDigitalData,
		core.ClassAnalogData,
	} {
		info.Counts[c] = int(r.Uint8())
	}
	info.Counts[core.ClassDigitalOutput] = info.Counts[core.ClassDigitalInput]
	info.Counts[core.ClassPinMode] = info.Counts[core.ClassDigitalInput]
	info.Counts[core.ClassString] = 1
	info.EEPROMSize = int(r.Uint16())
	info.Format = protocol.WireFormat(r.Uint8())
	info.CodeName = string(r.String())
	info.CodeVersion = string(r.String())
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode B reply: %w", err)
	}
	return info, nil
}

// request sends one request and waits for its reply
func (c *Client) request(typ protocol.MessageType, fields func(e *protocol.Encoder)) (*protocol.Message, error) {
	c.reqMutex.Lock()
	defer c.reqMutex.Unlock()
	return c.requestLocked(typ, fields)
}

func (c *Client) requestLocked(typ protocol.MessageType, fields func(e *protocol.Encoder)) (*protocol.Message, error) {
	start := time.Now()
	msg, err := c.transport.Request(typ, fields, c.timeout)
	if err != nil {
		c.log.Debug().Err(err).Str("type", typ.String()).Msg("request failed")
		return nil, err
	}
	c.observe(msg, time.Since(start))
	return msg, nil
}

func (c *Client) observe(msg *protocol.Message, rtt time.Duration) {
	c.hookMutex.RLock()
	hooks := c.onMessage
	c.hookMutex.RUnlock()
	for _, fn := range hooks {
		fn(msg, rtt)
	}
}

// handleMessage runs on the transport read loop
func (c *Client) handleMessage(msg *protocol.Message) {
	switch msg.Type {
	case protocol.MsgBroadcast:
		c.observe(msg, 0)
		c.handlePart(msg)
	case protocol.MsgStarted:
		c.observe(msg, 0)
		version := msg.Fields().Uint16()
		c.log.Info().Uint16("version", version).Msg("board started")
		c.hookMutex.RLock()
		hooks := c.onStarted
		c.hookMutex.RUnlock()
		for _, fn := range hooks {
			fn(version)
		}
	case protocol.MsgError:
		c.observe(msg, 0)
		if e, err := protocol.DecodeError(msg); err == nil {
			c.log.Debug().Uint8("code", uint8(e.Code)).Str("input", e.Input).Msg("error reply")
		}
	}
}

func (c *Client) handlePart(msg *protocol.Message) {
	c.mu.Lock()
	snap, err := c.assembler.add(msg)
	var waiters []chan Snapshot
	if snap != nil {
		c.latest = snap
		waiters = c.waiters
		c.waiters = nil
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Warn().Err(err).Msg("broadcast part dropped")
		return
	}
	if snap == nil {
		return
	}
	for _, w := range waiters {
		w <- *snap
	}
	c.hookMutex.RLock()
	hooks := c.onSnapshot
	c.hookMutex.RUnlock()
	for _, fn := range hooks {
		fn(*snap)
	}
}

// Latest returns the last completed snapshot
func (c *Client) Latest() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return Snapshot{}, false
	}
	return *c.latest, true
}

// LostParts returns the number of broadcast parts discarded for a gap in the sequence
func (c *Client) LostParts() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.assembler.lost
}

// EnableBroadcast turns periodic broadcasting on or off
func (c *Client) EnableBroadcast(enable bool) error {
	c.reqMutex.Lock()
	defer c.reqMutex.Unlock()
	return c.transport.Send(protocol.MsgBroadcast, func(e *protocol.Encoder) {
		e.Bool(enable)
	})
}

// Broadcast forces one full cycle and waits for it to complete
func (c *Client) Broadcast() (Snapshot, error) {
	wait := make(chan Snapshot, 1)
	c.mu.Lock()
	c.waiters = append(c.waiters, wait)
	c.mu.Unlock()

	c.reqMutex.Lock()
	err := c.transport.Send(protocol.MsgBroadcast, nil)
	c.reqMutex.Unlock()
	if err != nil {
		return Snapshot{}, fmt.Errorf("broadcast: %w", err)
	}

	// a periodic cycle already in progress may complete first
	deadline := time.After(4 * c.timeout)
	for {
		select {
		case snap := <-wait:
			if snap.Full {
				return snap, nil
			}
			c.mu.Lock()
			c.waiters = append(c.waiters, wait)
			c.mu.Unlock()
		case <-deadline:
			return Snapshot{}, fmt.Errorf("broadcast: no full cycle after %v", 4*c.timeout)
		}
	}
}
