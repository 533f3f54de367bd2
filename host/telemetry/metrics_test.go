package telemetry

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"hiticomm/host/board"
	"hiticomm/protocol"
)

func TestObserveMessage(t *testing.T) {
	m := New()
	_, host := protocol.NewLoopback(16)
	ht := protocol.NewHostTransport(host, protocol.UseInt)
	defer ht.Close()
	m.Register(ht)
	m.Register(ht)

	m.ObserveMessage(&protocol.Message{Type: protocol.MsgBoard, Format: protocol.UseInt, Payload: []byte("B1")}, 3*time.Millisecond)
	m.ObserveMessage(&protocol.Message{Type: protocol.MsgError, Format: protocol.UseInt, Payload: []byte("Z6_E1_300")}, 0)
	m.ObserveMessage(&protocol.Message{Type: protocol.MsgError, Format: protocol.UseInt, Payload: []byte("Z6")}, 0)

	require.Equal(t, 1.0, testutil.ToFloat64(m.messages.WithLabelValues("B")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.messages.WithLabelValues("ER")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.errors.WithLabelValues("6")))
	require.Equal(t, 1, testutil.CollectAndCount(m.requestTime))
}

func TestObserveSnapshot(t *testing.T) {
	m := New()
	m.ObserveSnapshot(board.Snapshot{
		Received:      time.Unix(100, 0),
		DigitalInputs: []bool{false, true},
		AnalogInputs:  []uint16{512},
		Servos:        []float32{45},
	})

	require.Equal(t, 1.0, testutil.ToFloat64(m.cycles))
	require.Equal(t, 100.0, testutil.ToFloat64(m.lastCycle))
	require.Equal(t, 1.0, testutil.ToFloat64(m.digital.WithLabelValues("DI", "1")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.digital.WithLabelValues("DI", "0")))
	require.Equal(t, 512.0, testutil.ToFloat64(m.analog.WithLabelValues("AI", "0")))
	require.Equal(t, 45.0, testutil.ToFloat64(m.analog.WithLabelValues("SV", "0")))
}

func TestHandler(t *testing.T) {
	m := New()
	_, host := protocol.NewLoopback(16)
	ht := protocol.NewHostTransport(host, protocol.Hex)
	defer ht.Close()
	m.Register(ht)
	m.ObserveSnapshot(board.Snapshot{AnalogData: []float32{1.5}})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	require.True(t, strings.Contains(body, `hiticomm_board_analog{index="0",tag="AD"} 1.5`), body)
	require.Contains(t, body, "hiticomm_link_rejected_lines_total 0")

	families, err := m.Gatherer().Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}
