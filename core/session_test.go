package core

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"hiticomm/protocol"
)

// testPort feeds request lines to the session and collects its output
type testPort struct {
	in  *protocol.FifoBuffer
	out bytes.Buffer
}

func newTestPort() *testPort {
	return &testPort{in: protocol.NewFifoBuffer(512)}
}

func (p *testPort) Buffered() int               { return p.in.Buffered() }
func (p *testPort) ReadByte() (byte, error)     { return p.in.ReadByte() }
func (p *testPort) Write(b []byte) (int, error) { return p.out.Write(b) }

func (p *testPort) send(line string) {
	p.in.Write([]byte(line + "\r\n"))
}

// lines returns the complete lines written since the last call
func (p *testPort) lines() []string {
	s := p.out.String()
	p.out.Reset()
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\r\n"), "\r\n")
}

type sessionFixture struct {
	session *Session
	board   *Board
	eeprom  *MemEEPROM
	clock   *ManualClock
	port    *testPort
}

func newFixture(t *testing.T, cfg Config) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		board:  NewBoard(DefaultLayout()),
		eeprom: NewMemEEPROM(1024),
		clock:  &ManualClock{},
		port:   newTestPort(),
	}
	f.session = NewSession(cfg, f.port, f.board, f.eeprom, f.clock)
	return f
}

// intConfig is a quiet session speaking the UseInt format
func intConfig() Config {
	cfg := DefaultConfig()
	cfg.Format = protocol.UseInt
	cfg.Broadcast = false
	cfg.CodeName = "demo"
	cfg.CodeVersion = "1.0"
	return cfg
}

// step runs one Communicate call and returns what it wrote
func (f *sessionFixture) step(t *testing.T) []string {
	t.Helper()
	if err := f.session.Communicate(); err != nil {
		t.Fatalf("Communicate failed: %v", err)
	}
	return f.port.lines()
}

// exchange lets the gates expire, sends one line and returns the output of
// one Communicate call
func (f *sessionFixture) exchange(t *testing.T, line string) []string {
	t.Helper()
	f.clock.Advance(10)
	f.port.send(line)
	return f.step(t)
}

func expectLines(t *testing.T, got []string, want ...string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected %q, got %q", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Line %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestAccessReadDigitalData(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "A03DD1_"), "A03DD1_0")

	f.board.Write(ClassDigitalData, 3, BoolValue(true))
	expectLines(t, f.exchange(t, "A03DD1_"), "A03DD1_1")

	if id := f.session.QueryState(QueryAccess).ID; id != 2 {
		t.Errorf("Expected A query id 2, got %d", id)
	}
}

func TestAccessSlotsEchoedInOrder(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "A03DD1__05DO0_1"), "A03DD1_0_05DO0_1")

	v, _ := f.board.Read(ClassDigitalOutput, 5)
	if !v.Bool() {
		t.Error("Expected DO5 to be written")
	}

	expectLines(t, f.exchange(t, "A0PW0_200_1AD0_2.5_0ST0_hi_0PW1_"),
		"A0PW0_200_1AD0_2.500_0ST0_hi_0PW1_200")
}

func TestAccessPerSlotErrors(t *testing.T) {
	f := newFixture(t, intConfig())

	// out of range index and write to a read-only class; the valid slot is applied
	expectLines(t, f.exchange(t, "A40DD1__05DI0_1_07DD0_1"), "A40DD1_!5_05DI0_!7_07DD0_1")

	v, _ := f.board.Read(ClassDigitalData, 7)
	if !v.Bool() {
		t.Error("Expected DD7 to be written despite errors on other slots")
	}
}

func TestAccessAllOrNothing(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "A05DO0_1_03PW0_x"), "Z6_A05DO0_1_03PW0_x")

	v, _ := f.board.Read(ClassDigitalOutput, 5)
	if v.Bool() {
		t.Error("DO5 must not be written when another slot is malformed")
	}
	if f.session.QueryState(QueryAccess).Running {
		t.Error("A rejected request must not stay pending")
	}
}

func TestAccessSyntaxErrors(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"A03QQ1_", "Z8_A03QQ1_"},
		{"A03DD1", "Z3_A03DD1"},
		{"A03DD2_", "Z6_A03DD2_"},
		{"A03DD1_1", "Z6_A03DD1_1"},
		{"A1DD1__2DD1__3DD1__4DD1__5DD1_", "Z3_A1DD1__2DD1__3DD1__4DD1__5DD1_"},
		{"Q", "Z2_Q"},
		{"S", "Z2_S"},
		{"B_", "Z3_B_"},
	}

	for _, tt := range tests {
		f := newFixture(t, intConfig())
		expectLines(t, f.exchange(t, tt.line), tt.want)
	}
}

func TestEchoInputOff(t *testing.T) {
	cfg := intConfig()
	cfg.EchoInput = false
	f := newFixture(t, cfg)

	expectLines(t, f.exchange(t, "Q"), "Z2")
}

func TestInputOverflow(t *testing.T) {
	f := newFixture(t, intConfig())

	f.port.send(strings.Repeat("A", 50))
	f.port.send("B")

	expectLines(t, f.step(t), "Z1")

	lines := f.step(t)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "B1_125_") {
		t.Errorf("Expected a B reply after the overflowed line, got %q", lines)
	}
	if f.session.Stats().Overflows != 1 {
		t.Errorf("Expected 1 overflow, got %d", f.session.Stats().Overflows)
	}
}

func TestEmptyLineIgnored(t *testing.T) {
	f := newFixture(t, intConfig())

	if got := f.exchange(t, ""); len(got) != 0 {
		t.Errorf("Expected no reply to an empty line, got %q", got)
	}
}

func TestBoardIdentity(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "B"), "B1_125_14_6_6_0_2_32_20_1024_1_demo_1.0")
}

func TestBoardStarted(t *testing.T) {
	f := newFixture(t, intConfig())
	if err := f.session.SendBoardStarted(); err != nil {
		t.Fatalf("SendBoardStarted failed: %v", err)
	}
	expectLines(t, f.port.lines(), "S125")
}

func TestHexAccessAndChecksum(t *testing.T) {
	cfg := intConfig()
	cfg.Format = protocol.Hex
	f := newFixture(t, cfg)

	f.board.Write(ClassDigitalData, 3, BoolValue(true))

	// "A03DD1" sums to 0x5D
	lines := f.exchange(t, "A03DD15D")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "A03DD11") {
		t.Fatalf("Expected A03DD11 reply, got %q", lines)
	}
	if _, ok := protocol.VerifyChecksum(protocol.Hex, []byte(lines[0])); !ok {
		t.Errorf("Reply %q carries a bad checksum", lines[0])
	}

	lines = f.exchange(t, "A03DD15E")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "Z04") {
		t.Errorf("Expected checksum error reply, got %q", lines)
	}
	v, _ := f.board.Read(ClassDigitalData, 3)
	if !v.Bool() {
		t.Error("Corrupted line must not change registers")
	}
}

func TestHexAccessWrite(t *testing.T) {
	cfg := intConfig()
	cfg.Format = protocol.Hex
	f := newFixture(t, cfg)

	// write PWM 1 := 0x80, then string := "ok"; checksum 0x54
	lines := f.exchange(t, "A01PW080"+"00ST002ok"+"54")
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "A01PW08000ST002ok") {
		t.Fatalf("Expected echoed writes, got %q", lines)
	}

	v, _ := f.board.Read(ClassString, 0)
	if v.Text != "ok" {
		t.Errorf("Expected string register ok, got %q", v.Text)
	}
}

func TestAccessGateSpacing(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "A03DD1_"), "A03DD1_0")

	// the second request waits for the 2 ms gate
	f.port.send("A04DD1_")
	if got := f.step(t); len(got) != 0 {
		t.Fatalf("Expected the A gate to hold the reply, got %q", got)
	}
	f.clock.Advance(1)
	if got := f.step(t); len(got) != 0 {
		t.Fatalf("Expected no reply after 1 ms, got %q", got)
	}
	f.clock.Advance(1)
	expectLines(t, f.step(t), "A04DD1_0")
}

func TestPendingAccessHoldsInput(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "A03DD1_"), "A03DD1_0")
	f.port.send("A04DD1_")
	f.port.send("B")
	f.step(t)

	// B is still buffered while the A request waits
	if f.port.in.Buffered() != 3 {
		t.Errorf("Expected the B request to stay buffered, %d bytes left", f.port.in.Buffered())
	}
	f.clock.Advance(2)
	expectLines(t, f.step(t), "A04DD1_0")
	lines := f.step(t)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "B") {
		t.Errorf("Expected B reply once the A request was served, got %q", lines)
	}
}

func TestEepromByte(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "E42_127"), "E1_42_127")
	expectLines(t, f.exchange(t, "E42"), "E2_42_127")
	expectLines(t, f.exchange(t, "E5000"), "Z9_E5000")
	expectLines(t, f.exchange(t, "E1_300"), "Z6_E1_300")
	expectLines(t, f.exchange(t, "E1_2_3"), "Z3_E1_2_3")
}

func TestEepromRange(t *testing.T) {
	f := newFixture(t, intConfig())
	for i := 0; i < 20; i++ {
		f.eeprom.Store(uint16(10+i), byte(i))
	}

	expectLines(t, f.exchange(t, "C10_20"), "C1_10_8_0_1_2_3_4_5_6_7")
	if !f.session.QueryState(QueryEepromRange).Running {
		t.Error("Expected the EC dump to be running")
	}

	// input waits for the dump
	f.port.send("B")
	expectLines(t, f.step(t), "C1_18_8_8_9_10_11_12_13_14_15")
	expectLines(t, f.step(t), "C1_26_4_16_17_18_19")
	if f.session.QueryState(QueryEepromRange).Running {
		t.Error("Expected the EC dump to be finished")
	}

	lines := f.step(t)
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "B") {
		t.Errorf("Expected the B reply after the dump, got %q", lines)
	}

	expectLines(t, f.exchange(t, "C1020_10"), "Z9_C1020_10")
	expectLines(t, f.exchange(t, "C0_0"), "Z6_C0_0")
}

// xPart is a decoded UseInt broadcast part
type xPart struct {
	id, part   int
	last       bool
	cat, start int
	values     []string
}

func parseXPart(t *testing.T, line string) xPart {
	t.Helper()
	if !strings.HasPrefix(line, "X") {
		t.Fatalf("Expected an X part, got %q", line)
	}
	fields := strings.Split(line[1:], "_")
	if len(fields) < 5 {
		t.Fatalf("X part %q has too few fields", line)
	}
	n := make([]int, 5)
	for i := range n {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			t.Fatalf("X part %q: field %d: %v", line, i, err)
		}
		n[i] = v
	}
	return xPart{id: n[0], part: n[1], last: n[2] == 1, cat: n[3], start: n[4], values: fields[5:]}
}

// runCycle steps the session until a last part is seen
func (f *sessionFixture) runCycle(t *testing.T) []xPart {
	t.Helper()
	var parts []xPart
	for i := 0; i < 64; i++ {
		for _, line := range f.step(t) {
			p := parseXPart(t, line)
			parts = append(parts, p)
			if p.last {
				return parts
			}
		}
	}
	t.Fatal("Broadcast cycle did not end")
	return nil
}

func TestForcedFullBroadcast(t *testing.T) {
	f := newFixture(t, intConfig())

	if got := f.exchange(t, "X"); len(got) != 1 {
		t.Fatalf("Expected the first part in the same call, got %q", got)
	}
	// replay: the first part was consumed above, restart from a fresh fixture
	f = newFixture(t, intConfig())
	f.port.send("X")
	parts := f.runCycle(t)

	want := [][2]int{
		{0, 0}, {1, 0}, {2, 0}, {3, 0},
		{4, 0}, {4, 4}, {5, 0}, {5, 4},
		{7, 0},
		{8, 0}, {8, 4}, {8, 8}, {8, 12}, {8, 16},
		{9, 0},
	}
	if len(parts) != len(want) {
		t.Fatalf("Expected %d parts, got %d", len(want), len(parts))
	}
	for i, p := range parts {
		if p.part != i || p.id != 1 {
			t.Errorf("Part %d: expected id 1 part %d, got id %d part %d", i, i, p.id, p.part)
		}
		if p.cat != want[i][0] || p.start != want[i][1] {
			t.Errorf("Part %d: expected category %d start %d, got %d %d", i, want[i][0], want[i][1], p.cat, p.start)
		}
		if p.last != (i == len(want)-1) {
			t.Errorf("Part %d: wrong last flag %v", i, p.last)
		}
	}
	if len(parts[4].values) != 4 || len(parts[5].values) != 2 {
		t.Errorf("Expected analog inputs sliced 4+2, got %d+%d", len(parts[4].values), len(parts[5].values))
	}
	if f.session.XCursor().Running {
		t.Error("Cycle should be closed after the last part")
	}
}

func TestForcedBroadcastWaitsForGate(t *testing.T) {
	f := newFixture(t, intConfig())

	f.port.send("X")
	if parts := f.runCycle(t); len(parts) != 15 {
		t.Fatalf("Expected a full cycle of 15 parts, got %d", len(parts))
	}

	// a second request within the interval is held until the gate opens
	f.port.send("X")
	for i := 0; i < 5; i++ {
		if got := f.step(t); len(got) != 0 {
			t.Fatalf("Expected no part before the X gate expires, got %q", got)
		}
	}
	f.clock.Advance(49)
	if got := f.step(t); len(got) != 0 {
		t.Fatalf("Expected no part at 49 ms, got %q", got)
	}
	if n := f.session.Stats().XCycles; n != 1 {
		t.Fatalf("Expected 1 completed cycle, got %d", n)
	}

	f.clock.Advance(1)
	parts := f.runCycle(t)
	if len(parts) != 15 {
		t.Errorf("Expected the requested cycle to be full, got %d parts", len(parts))
	}
	if parts[0].id != 2 {
		t.Errorf("Expected cycle id 2, got %d", parts[0].id)
	}
	if n := f.session.Stats().XCycles; n != 2 {
		t.Errorf("Expected 2 completed cycles, got %d", n)
	}
}

func TestEmptyCycleKeepsIDs(t *testing.T) {
	cfg := intConfig()
	cfg.Broadcast = true
	f := newFixture(t, cfg)
	// no pins and no data registers: only the string register is left
	f.board = NewBoard(BoardLayout{})
	f.session = NewSession(cfg, f.port, f.board, f.eeprom, f.clock)

	parts := f.runCycle(t)
	if len(parts) != 1 || parts[0].cat != int(CategoryString) || parts[0].id != 1 {
		t.Fatalf("Expected one string part with id 1, got %+v", parts)
	}

	// nothing changed: the cycle has nothing to send
	f.clock.Advance(50)
	if got := f.step(t); len(got) != 0 {
		t.Fatalf("Expected no part, got %q", got)
	}
	if id := f.session.QueryState(QueryBroadcast).ID; id != 1 {
		t.Errorf("Expected the X id to stay 1, got %d", id)
	}
	if n := f.session.Stats().XCycles; n != 1 {
		t.Errorf("Expected 1 completed cycle, got %d", n)
	}

	f.board.Write(ClassString, 0, StringValue("hi"))
	f.clock.Advance(50)
	parts = f.runCycle(t)
	if len(parts) != 1 || parts[0].id != 2 || parts[0].values[0] != "hi" {
		t.Errorf("Expected the changed string in cycle 2, got %+v", parts)
	}
}

func TestBroadcastPackedWords(t *testing.T) {
	f := newFixture(t, intConfig())
	f.board.Write(ClassDigitalData, 0, BoolValue(true))
	f.board.Write(ClassDigitalData, 31, BoolValue(true))
	f.board.SetInput(2, true)

	f.port.send("X")
	parts := f.runCycle(t)

	if parts[1].values[0] != "4" {
		t.Errorf("Expected DI word 4, got %s", parts[1].values[0])
	}
	if parts[3].values[0] != strconv.FormatUint(1<<31|1, 10) {
		t.Errorf("Expected DD word with bits 0 and 31, got %s", parts[3].values[0])
	}
}

func TestPeriodicBroadcast(t *testing.T) {
	cfg := intConfig()
	cfg.Broadcast = true
	f := newFixture(t, cfg)

	// the first cycle is full
	if parts := f.runCycle(t); len(parts) != 15 {
		t.Fatalf("Expected a full first cycle of 15 parts, got %d", len(parts))
	}

	// wrap rearms the 50 ms gate
	f.clock.Advance(49)
	if got := f.step(t); len(got) != 0 {
		t.Fatalf("Expected no part before the X gate expires, got %q", got)
	}
	f.clock.Advance(1)

	// no pin mode or string change: both categories are skipped
	parts := f.runCycle(t)
	if len(parts) != 13 {
		t.Fatalf("Expected 13 parts, got %d", len(parts))
	}
	if parts[0].cat != int(CategoryDigitalInputs) || parts[len(parts)-1].cat != int(CategoryAnalogData) {
		t.Errorf("Unexpected category range %d..%d", parts[0].cat, parts[len(parts)-1].cat)
	}
	if parts[0].id != 2 {
		t.Errorf("Expected cycle id 2, got %d", parts[0].id)
	}

	// a pin mode change brings category 0 back
	f.board.Write(ClassPinMode, 4, BoolValue(true))
	f.clock.Advance(50)
	parts = f.runCycle(t)
	if parts[0].cat != int(CategoryPinModes) || parts[0].values[0] != "16" {
		t.Errorf("Expected pin modes word 16 first, got category %d %v", parts[0].cat, parts[0].values)
	}
}

func TestBroadcastEnableDisable(t *testing.T) {
	f := newFixture(t, intConfig())

	expectLines(t, f.exchange(t, "X2"), "Z6_X2")
	expectLines(t, f.exchange(t, "X1_1"), "Z3_X1_1")

	lines := f.exchange(t, "X1")
	if !f.session.BroadcastEnabled() || len(lines) != 1 {
		t.Fatalf("Expected X1 to enable broadcasting, got %q", lines)
	}
	parts := append([]xPart{parseXPart(t, lines[0])}, f.runCycle(t)...)
	if len(parts) != 15 {
		t.Errorf("Expected the first enabled cycle to be full, got %d parts", len(parts))
	}

	f.port.send("X0")
	f.step(t)
	if f.session.BroadcastEnabled() {
		t.Fatal("Expected X0 to disable broadcasting")
	}
	f.clock.Advance(100)
	if got := f.step(t); len(got) != 0 {
		t.Errorf("Expected no broadcast when disabled, got %q", got)
	}
}

func TestSchedulerFairness(t *testing.T) {
	cfg := intConfig()
	cfg.AInterval = 0
	f := newFixture(t, cfg)

	f.port.send("X")
	lines := f.step(t)
	if len(lines) != 1 || lines[0][0] != 'X' {
		t.Fatalf("Expected the first X part, got %q", lines)
	}

	// with an X cycle running, pending A requests alternate with X parts
	var kinds []byte
	for i := 0; i < 6; i++ {
		if !f.session.QueryState(QueryAccess).Running {
			f.port.send("A03DD1_")
		}
		for _, line := range f.step(t) {
			kinds = append(kinds, line[0])
		}
	}
	if string(kinds) != "AXAXAX" {
		t.Errorf("Expected alternating AXAXAX, got %s", kinds)
	}
}

func TestSemaphoreOnlyTogglesWhenBothReady(t *testing.T) {
	f := newFixture(t, intConfig())

	f.exchange(t, "A03DD1_")
	if f.session.Semaphore() {
		t.Error("Semaphore must not toggle when only pull work is ready")
	}
	f.port.send("X")
	f.step(t)
	if f.session.Semaphore() {
		t.Error("Semaphore must not toggle when only push work is ready")
	}
}
