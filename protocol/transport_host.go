package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTransportStopped is returned once Close has been called
var ErrTransportStopped = errors.New("transport stopped")

// ErrRequestTooLong is returned by Send when a request would overflow the
// board input buffer
var ErrRequestTooLong = errors.New("request longer than the board input capacity")

// ResponseHandler is called from the read loop for every decoded board message
type ResponseHandler func(msg *Message)

// Message is one decoded line received from the board
type Message struct {
	Type     MessageType
	Format   WireFormat
	Payload  []byte // line without terminator and checksum
	Received time.Time
}

// Fields returns a reader positioned on the first field after the message type
func (m *Message) Fields() *FieldReader {
	tok := NewTokenizer(m.Format, m.Payload)
	tok.MessageType()
	return NewFieldReader(tok)
}

// ReplyError is an error reply sent by the board
type ReplyError struct {
	Code  ErrorCode
	Input string // echoed offending input, empty when echo is off
}

func (e *ReplyError) Error() string {
	if e.Input == "" {
		return fmt.Sprintf("board error %d (%s)", uint8(e.Code), e.Code)
	}
	return fmt.Sprintf("board error %d (%s) for %q", uint8(e.Code), e.Code, e.Input)
}

// Unwrap exposes the ErrorCode to errors.Is
func (e *ReplyError) Unwrap() error {
	return e.Code
}

// DecodeError reads the fields of an error reply
func DecodeError(m *Message) (*ReplyError, error) {
	if m.Type != MsgError {
		return nil, fmt.Errorf("not an error reply: %s", m.Type)
	}
	r := m.Fields()
	e := &ReplyError{Code: ErrorCode(r.Uint8())}
	if err := r.Err(); err != nil {
		return nil, fmt.Errorf("decode error reply: %w", err)
	}
	if !r.Done() {
		if m.Format.FixedWidth() {
			e.Input = string(r.String())
		} else {
			e.Input = string(r.Rest())
		}
	}
	return e, nil
}

// HostTransport runs the line protocol from the host side: it encodes
// requests and decodes board lines from a background read loop.
type HostTransport struct {
	port   io.ReadWriteCloser
	format WireFormat

	inputBuffer *FifoBuffer
	receiver    *LineReceiver

	encoder    *Encoder
	writeMutex sync.Mutex
	readMutex  sync.Mutex

	// Replies to requests (everything but broadcast parts and start notices)
	responseChan chan *Message

	handlerMutex    sync.RWMutex
	responseHandler ResponseHandler

	// longest line the board accepts, terminator excluded
	requestLimit int

	rejected  uint32 // atomic
	overflows uint32 // atomic

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewHostTransport creates a host-side transport and starts its read loop
func NewHostTransport(port io.ReadWriteCloser, format WireFormat) *HostTransport {
	t := &HostTransport{
		port:         port,
		format:       format,
		inputBuffer:  NewFifoBuffer(1024),
		receiver:     NewLineReceiver(HostLineMax),
		encoder:      NewEncoder(format),
		requestLimit: InputCapacity,
		responseChan: make(chan *Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}

	go t.readLoop()

	return t
}

// Format returns the wire format the transport speaks
func (t *HostTransport) Format() WireFormat {
	return t.format
}

// Send encodes one request and writes it to the port
func (t *HostTransport) Send(typ MessageType, fields func(e *Encoder)) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	t.encoder.Begin(typ)
	if fields != nil {
		fields(t.encoder)
	}
	if t.requestLimit > 0 && t.encoder.LineLen() > t.requestLimit {
		return fmt.Errorf("%s request of %d bytes: %w", typ, t.encoder.LineLen(), ErrRequestTooLong)
	}
	if err := t.encoder.End(t.port); err != nil {
		return fmt.Errorf("failed to write %s request: %w", typ, err)
	}
	return nil
}

// SetRequestLimit sets the longest request line accepted by the board.
// Zero disables the check.
func (t *HostTransport) SetRequestLimit(n int) {
	t.writeMutex.Lock()
	t.requestLimit = n
	t.writeMutex.Unlock()
}

// Request sends a request and waits for the reply of the same type.
// An error reply from the board is returned as a *ReplyError.
func (t *HostTransport) Request(typ MessageType, fields func(e *Encoder), timeout time.Duration) (*Message, error) {
	if err := t.Send(typ, fields); err != nil {
		return nil, err
	}
	return t.Expect(typ, timeout)
}

// Expect waits for the next reply of type typ, discarding stale replies of
// other types. An error reply ends the wait.
func (t *HostTransport) Expect(typ MessageType, timeout time.Duration) (*Message, error) {
	deadline := time.After(timeout)
	for {
		select {
		case msg := <-t.responseChan:
			switch msg.Type {
			case typ:
				return msg, nil
			case MsgError:
				rerr, err := DecodeError(msg)
				if err != nil {
					return nil, err
				}
				return nil, rerr
			}
		case <-deadline:
			return nil, fmt.Errorf("%s reply timeout after %v", typ, timeout)
		case <-t.stopChan:
			return nil, ErrTransportStopped
		}
	}
}

// ReceiveResponse returns the next reply, whatever its type
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (*Message, error) {
	select {
	case resp := <-t.responseChan:
		return resp, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("response timeout after %v", timeout)
	case <-t.stopChan:
		return nil, ErrTransportStopped
	}
}

// SetResponseHandler sets a callback receiving every decoded message,
// broadcast parts and start notices included
func (t *HostTransport) SetResponseHandler(handler ResponseHandler) {
	t.handlerMutex.Lock()
	t.responseHandler = handler
	t.handlerMutex.Unlock()
}

// Rejected returns the number of lines dropped for a bad checksum or type
func (t *HostTransport) Rejected() uint32 {
	return atomic.LoadUint32(&t.rejected)
}

// Overflows returns the number of lines longer than HostLineMax
func (t *HostTransport) Overflows() uint32 {
	return atomic.LoadUint32(&t.overflows)
}

// readLoop continuously reads from the port and decodes lines
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.readMutex.Lock()
			for len(buffer[:n]) > 0 {
				w := t.inputBuffer.Write(buffer[:n])
				t.processLines()
				if w == n {
					break
				}
				copy(buffer, buffer[w:n])
				n -= w
			}
			t.readMutex.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// processLines drains the input buffer through the line receiver
func (t *HostTransport) processLines() {
	for {
		switch t.receiver.Feed(t.inputBuffer) {
		case LineReady:
			t.decodeLine(t.receiver.Line())
		case Overflow:
			atomic.AddUint32(&t.overflows, 1)
		default:
			return
		}
	}
}

func (t *HostTransport) decodeLine(line []byte) {
	if len(line) == 0 {
		return
	}
	payload, ok := VerifyChecksum(t.format, line)
	if !ok {
		atomic.AddUint32(&t.rejected, 1)
		return
	}
	tok := NewTokenizer(t.format, payload)
	tag, ok := tok.MessageType()
	if !ok {
		atomic.AddUint32(&t.rejected, 1)
		return
	}
	typ, ok := LookupMessageType(t.format, tok.Bytes(tag))
	if !ok {
		atomic.AddUint32(&t.rejected, 1)
		return
	}

	// the receiver buffer is reused by the next line
	msg := &Message{
		Type:     typ,
		Format:   t.format,
		Payload:  append([]byte(nil), payload...),
		Received: time.Now(),
	}
	t.dispatchMessage(msg)
}

// dispatchMessage routes a message to the handler and the reply channel
func (t *HostTransport) dispatchMessage(msg *Message) {
	t.handlerMutex.RLock()
	handler := t.responseHandler
	t.handlerMutex.RUnlock()
	if handler != nil {
		handler(msg)
	}

	if msg.Type == MsgBroadcast || msg.Type == MsgStarted {
		return
	}

	select {
	case t.responseChan <- msg:
	default:
		// Response channel full, drop oldest
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- msg
	}
}

// Close stops the transport and closes the port
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan // Wait for read loop to finish
	})
	return err
}

// Reset drops pending replies and any partial line
func (t *HostTransport) Reset() {
	for len(t.responseChan) > 0 {
		<-t.responseChan
	}

	t.readMutex.Lock()
	t.inputBuffer.Reset()
	t.receiver.Reset()
	t.readMutex.Unlock()
}
