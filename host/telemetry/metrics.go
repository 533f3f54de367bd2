// Package telemetry exports board traffic and broadcast values as
// Prometheus metrics.
package telemetry

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hiticomm/host/board"
	"hiticomm/protocol"
)

// Metrics holds the collectors of one board connection
type Metrics struct {
	registry *prometheus.Registry

	messages     *prometheus.CounterVec
	errors       *prometheus.CounterVec
	requestTime  *prometheus.HistogramVec
	cycles       prometheus.Counter
	digital      *prometheus.GaugeVec
	analog       *prometheus.GaugeVec
	lastCycle    prometheus.Gauge
	registerOnce sync.Once
}

// New creates the collectors in their own registry
func New() *Metrics {
	return &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hiticomm",
				Subsystem: "link",
				Name:      "messages_total",
				Help:      "Messages received from the board.",
			},
			[]string{"type"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hiticomm",
				Subsystem: "link",
				Name:      "error_replies_total",
				Help:      "Error replies received from the board.",
			},
			[]string{"code"},
		),
		requestTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hiticomm",
				Subsystem: "link",
				Name:      "request_duration_seconds",
				Help:      "Time from request to reply.",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"type"},
		),
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hiticomm",
			Subsystem: "broadcast",
			Name:      "cycles_total",
			Help:      "Complete broadcast cycles assembled.",
		}),
		digital: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "hiticomm",
				Subsystem: "board",
				Name:      "digital",
				Help:      "Last broadcast level of a digital register.",
			},
			[]string{"tag", "index"},
		),
		analog: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "hiticomm",
				Subsystem: "board",
				Name:      "analog",
				Help:      "Last broadcast value of an analog register.",
			},
			[]string{"tag", "index"},
		),
		lastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hiticomm",
			Subsystem: "broadcast",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Time the last broadcast cycle completed.",
		}),
	}
}

// Register adds the collectors and the transport counters to the registry
func (m *Metrics) Register(t *protocol.HostTransport) {
	m.registerOnce.Do(func() {
		m.registry.MustRegister(m.messages, m.errors, m.requestTime, m.cycles, m.digital, m.analog, m.lastCycle)
		m.registry.MustRegister(
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "hiticomm",
				Subsystem: "link",
				Name:      "rejected_lines_total",
				Help:      "Lines dropped for a bad checksum or message type.",
			}, func() float64 { return float64(t.Rejected()) }),
			prometheus.NewCounterFunc(prometheus.CounterOpts{
				Namespace: "hiticomm",
				Subsystem: "link",
				Name:      "overflow_lines_total",
				Help:      "Lines longer than the host line buffer.",
			}, func() float64 { return float64(t.Overflows()) }),
		)
	})
}

// Attach registers the collectors and subscribes them to a client
func (m *Metrics) Attach(c *board.Client) {
	m.Register(c.Transport())
	c.OnMessage(m.ObserveMessage)
	c.OnSnapshot(m.ObserveSnapshot)
}

// ObserveMessage counts one message; rtt is zero for unsolicited messages
func (m *Metrics) ObserveMessage(msg *protocol.Message, rtt time.Duration) {
	m.messages.WithLabelValues(msg.Type.String()).Inc()
	if rtt > 0 {
		m.requestTime.WithLabelValues(msg.Type.String()).Observe(rtt.Seconds())
	}
	if msg.Type == protocol.MsgError {
		if e, err := protocol.DecodeError(msg); err == nil {
			m.errors.WithLabelValues(strconv.Itoa(int(e.Code))).Inc()
		}
	}
}

// ObserveSnapshot exports the values of a broadcast cycle
func (m *Metrics) ObserveSnapshot(s board.Snapshot) {
	m.cycles.Inc()
	m.lastCycle.Set(float64(s.Received.UnixNano()) / 1e9)

	setBools(m.digital, "DI", s.DigitalInputs)
	setBools(m.digital, "DO", s.DigitalOutputs)
	setBools(m.digital, "PM", s.PinModes)
	setBools(m.digital, "DD", s.DigitalData)
	for i, v := range s.AnalogInputs {
		m.analog.WithLabelValues("AI", strconv.Itoa(i)).Set(float64(v))
	}
	for i, v := range s.PWM {
		m.analog.WithLabelValues("PW", strconv.Itoa(i)).Set(float64(v))
	}
	for i, v := range s.DAC {
		m.analog.WithLabelValues("DA", strconv.Itoa(i)).Set(float64(v))
	}
	for i, v := range s.Servos {
		m.analog.WithLabelValues("SV", strconv.Itoa(i)).Set(float64(v))
	}
	for i, v := range s.AnalogData {
		m.analog.WithLabelValues("AD", strconv.Itoa(i)).Set(float64(v))
	}
}

func setBools(g *prometheus.GaugeVec, tag string, values []bool) {
	for i, v := range values {
		level := 0.0
		if v {
			level = 1
		}
		g.WithLabelValues(tag, strconv.Itoa(i)).Set(level)
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry (tests)
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
