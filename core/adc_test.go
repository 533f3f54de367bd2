package core

import (
	"errors"
	"testing"
)

type mockADC struct {
	configured map[ADCChannelID]bool
	values     map[ADCChannelID]ADCValue
	fail       bool
}

func newMockADC() *mockADC {
	return &mockADC{
		configured: make(map[ADCChannelID]bool),
		values:     make(map[ADCChannelID]ADCValue),
	}
}

func (m *mockADC) ConfigureChannel(ch ADCChannelID) error {
	m.configured[ch] = true
	return nil
}

func (m *mockADC) ReadRaw(ch ADCChannelID) (ADCValue, error) {
	if m.fail {
		return 0, errors.New("conversion timeout")
	}
	return m.values[ch], nil
}

type mockPWM struct {
	duty map[PWMPin]PWMValue
}

func (m *mockPWM) ConfigurePWM(pin PWMPin) error {
	m.duty[pin] = 0
	return nil
}

func (m *mockPWM) SetDutyCycle(pin PWMPin, value PWMValue) error {
	m.duty[pin] = value
	return nil
}

func (m *mockPWM) GetMaxValue() uint32 {
	return 65535
}

type mockServo struct {
	angles map[ServoChannel]float32
}

func (m *mockServo) ConfigureServo(ch ServoChannel) error {
	return nil
}

func (m *mockServo) SetAngle(ch ServoChannel, degrees float32) error {
	m.angles[ch] = degrees
	return nil
}

func TestAnalogInput(t *testing.T) {
	mock := newMockADC()
	SetADCDriver(mock)
	defer SetADCDriver(nil)

	b := NewBoard(DefaultLayout())
	if len(mock.configured) != 6 {
		t.Errorf("Expected 6 configured channels, got %d", len(mock.configured))
	}

	mock.values[3] = 2048
	v, err := b.Read(ClassAnalogInput, 3)
	if err != nil {
		t.Fatalf("Read AI3 failed: %v", err)
	}
	if v.Bits != 2048 {
		t.Errorf("Expected 2048, got %d", v.Bits)
	}

	// a failed conversion keeps the last value
	mock.fail = true
	v, _ = b.Read(ClassAnalogInput, 3)
	if v.Bits != 2048 || b.DriverErrors != 1 {
		t.Errorf("Expected 2048 and 1 driver error, got %d and %d", v.Bits, b.DriverErrors)
	}
}

func TestPWMScaling(t *testing.T) {
	mock := &mockPWM{duty: make(map[PWMPin]PWMValue)}
	SetPWMDriver(mock)
	defer SetPWMDriver(nil)

	b := NewBoard(DefaultLayout())
	if err := b.Write(ClassPWM, 1, UintValue(KindUint8, 255)); err != nil {
		t.Fatalf("Write PW1 failed: %v", err)
	}
	// PW1 is pin 5
	if mock.duty[5] != 65535 {
		t.Errorf("Expected full duty 65535, got %d", mock.duty[5])
	}
	b.Write(ClassPWM, 1, UintValue(KindUint8, 128))
	if mock.duty[5] != 32896 {
		t.Errorf("Expected duty 32896, got %d", mock.duty[5])
	}

	b.Shutdown()
	if mock.duty[5] != 0 {
		t.Errorf("Expected shutdown duty 0, got %d", mock.duty[5])
	}
}

func TestServoAngle(t *testing.T) {
	mock := &mockServo{angles: make(map[ServoChannel]float32)}
	SetServoDriver(mock)
	defer SetServoDriver(nil)

	b := NewBoard(DefaultLayout())
	if err := b.Write(ClassServo, 1, FloatValue(90)); err != nil {
		t.Fatalf("Write SV1 failed: %v", err)
	}
	if mock.angles[1] != 90 {
		t.Errorf("Expected 90 degrees, got %f", mock.angles[1])
	}
}
