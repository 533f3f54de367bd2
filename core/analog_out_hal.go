package core

// DACChannel identifies a DAC output
type DACChannel uint8

// DACDriver drives true analog outputs (boards without one keep the shadow register)
type DACDriver interface {
	ConfigureDAC(ch DACChannel) error
	WriteDAC(ch DACChannel, value uint16) error
}

// ServoChannel identifies a servo output
type ServoChannel uint8

// ServoDriver positions hobby servos. Kinematics and speed profiles are out of scope;
// the driver only receives target angles in degrees.
type ServoDriver interface {
	ConfigureServo(ch ServoChannel) error
	SetAngle(ch ServoChannel, degrees float32) error
}

var (
	dacDriver   DACDriver
	servoDriver ServoDriver
)

// SetDACDriver is called by target-specific code to register its driver.
func SetDACDriver(d DACDriver) {
	dacDriver = d
}

// SetServoDriver is called by target-specific code to register its driver.
func SetServoDriver(d ServoDriver) {
	servoDriver = d
}
