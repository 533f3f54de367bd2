// Package bridge publishes broadcast snapshots to an MQTT broker and applies
// register writes received on it.
package bridge

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/denisbrodbeck/machineid"
	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"hiticomm/core"
	"hiticomm/host/board"
	"hiticomm/protocol"
)

const appID = "hiticomm"

// Topics under <prefix>/<node>:
//
//	state            retained JSON snapshot of the last broadcast cycle
//	started          board start notices
//	set/<TAG>/<idx>  payload written to a register (decimal text)
const (
	topicState   = "state"
	topicStarted = "started"
	topicSet     = "set"
)

// mqttClient is the part of paho.Client the bridge uses
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

// Writer applies register writes; *board.Client implements it
type Writer interface {
	Write(class core.Class, index int, v core.Value) (core.Value, error)
}

// Bridge connects one board to a broker
type Bridge struct {
	client mqttClient
	prefix string
	writer Writer
	log    zerolog.Logger

	// writes are applied off the MQTT callback goroutine
	writes chan setRequest
	done   chan struct{}
}

type setRequest struct {
	class core.Class
	index int
	value core.Value
}

// NodeID identifies this host on the broker. The machine id is hashed with
// the application name so the raw id is never published.
func NodeID() string {
	id, err := machineid.ProtectedID(appID)
	if err != nil {
		host, herr := os.Hostname()
		if herr != nil {
			return "unknown"
		}
		return host
	}
	return id[:12]
}

// Connect dials the broker and returns a bridge publishing under topic/<node>
func Connect(brokerURL, topic string, w Writer, logger zerolog.Logger) (*Bridge, error) {
	node := NodeID()
	opts := paho.NewClientOptions()
	opts.AddBroker(brokerURL).
		SetClientID(appID + "-" + node).
		SetAutoReconnect(true).
		SetCleanSession(true).
		SetConnectTimeout(5 * time.Second)

	c := paho.NewClient(opts)
	token := c.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect %s: %w", brokerURL, err)
	}
	logger.Info().Str("broker", brokerURL).Str("node", node).Msg("mqtt connected")

	b := newBridge(c, topic+"/"+node, w, logger)
	if err := b.start(); err != nil {
		c.Disconnect(250)
		return nil, err
	}
	return b, nil
}

func newBridge(c mqttClient, prefix string, w Writer, logger zerolog.Logger) *Bridge {
	return &Bridge{
		client: c,
		prefix: strings.Trim(prefix, "/"),
		writer: w,
		log:    logger,
		writes: make(chan setRequest, 16),
		done:   make(chan struct{}),
	}
}

// Attach publishes the snapshots and start notices of a board client
func (b *Bridge) Attach(c *board.Client) {
	c.OnSnapshot(func(s board.Snapshot) {
		if err := b.PublishSnapshot(s); err != nil {
			b.log.Warn().Err(err).Msg("publish snapshot")
		}
	})
	c.OnStarted(func(version uint16) {
		b.client.Publish(b.topic(topicStarted), 1, false, strconv.Itoa(int(version)))
	})
}

func (b *Bridge) topic(parts ...string) string {
	return b.prefix + "/" + strings.Join(parts, "/")
}

// statePayload is the JSON document of the state topic
type statePayload struct {
	Cycle          uint8     `json:"cycle"`
	Time           time.Time `json:"time"`
	PinModes       []bool    `json:"pin_modes"`
	DigitalInputs  []bool    `json:"digital_inputs"`
	DigitalOutputs []bool    `json:"digital_outputs"`
	DigitalData    []bool    `json:"digital_data"`
	AnalogInputs   []uint16  `json:"analog_inputs"`
	PWM            []int     `json:"pwm"`
	DAC            []uint16  `json:"dac"`
	Servos         []float32 `json:"servos"`
	AnalogData     []float32 `json:"analog_data"`
	Text           string    `json:"text"`
}

// PublishSnapshot publishes s as the retained state of the board. It does
// not wait for the broker.
func (b *Bridge) PublishSnapshot(s board.Snapshot) error {
	payload, err := encodeState(s)
	if err != nil {
		return err
	}
	b.client.Publish(b.topic(topicState), 0, true, payload)
	return nil
}

func encodeState(s board.Snapshot) ([]byte, error) {
	// []uint8 would marshal as base64
	pwm := make([]int, len(s.PWM))
	for i, v := range s.PWM {
		pwm[i] = int(v)
	}
	payload, err := json.Marshal(statePayload{
		Cycle:          s.ID,
		Time:           s.Received,
		PinModes:       s.PinModes,
		DigitalInputs:  s.DigitalInputs,
		DigitalOutputs: s.DigitalOutputs,
		DigitalData:    s.DigitalData,
		AnalogInputs:   s.AnalogInputs,
		PWM:            pwm,
		DAC:            s.DAC,
		Servos:         s.Servos,
		AnalogData:     s.AnalogData,
		Text:           s.Text,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, nil
}

// start subscribes to the set topics and starts applying writes
func (b *Bridge) start() error {
	if err := b.subscribe(); err != nil {
		return err
	}
	go b.applyWrites()
	return nil
}

func (b *Bridge) subscribe() error {
	token := b.client.Subscribe(b.topic(topicSet, "+", "+"), 1, func(_ paho.Client, m paho.Message) {
		b.handleSet(m.Topic(), m.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt subscribe: %w", err)
	}
	return nil
}

// handleSet queues the write carried by a set/<TAG>/<idx> message
func (b *Bridge) handleSet(topic string, payload []byte) {
	req, err := b.parseSet(topic, payload)
	if err != nil {
		b.log.Warn().Err(err).Str("topic", topic).Msg("set rejected")
		return
	}
	select {
	case b.writes <- req:
	case <-b.done:
	default:
		b.log.Warn().Str("topic", topic).Msg("set dropped, write queue full")
	}
}

func (b *Bridge) parseSet(topic string, payload []byte) (setRequest, error) {
	rest := strings.TrimPrefix(topic, b.topic(topicSet)+"/")
	parts := strings.Split(rest, "/")
	if rest == topic || len(parts) != 2 {
		return setRequest{}, fmt.Errorf("not a set topic")
	}
	class, ok := core.LookupClass([]byte(parts[0]))
	if !ok || !class.Writable() {
		return setRequest{}, fmt.Errorf("register %q is not writable", parts[0])
	}
	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return setRequest{}, fmt.Errorf("bad index %q", parts[1])
	}
	// payloads are decimal text whatever the wire format
	v, ok := core.ParseValue(protocol.UseInt, class.Kind(), []byte(strings.TrimSpace(string(payload))))
	if !ok {
		return setRequest{}, fmt.Errorf("bad %s value %q", class, payload)
	}
	return setRequest{class: class, index: index, value: v}, nil
}

// applyWrites runs the queued writes on the board, one at a time
func (b *Bridge) applyWrites() {
	for {
		select {
		case req := <-b.writes:
			if _, err := b.writer.Write(req.class, req.index, req.value); err != nil {
				b.log.Warn().Err(err).Str("register", req.class.Tag()).Int("index", req.index).Msg("set failed")
			}
		case <-b.done:
			return
		}
	}
}

// Close stops applying writes and disconnects from the broker
func (b *Bridge) Close() {
	close(b.done)
	b.client.Disconnect(250)
}
