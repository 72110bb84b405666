package turret

import (
	"errors"
	"fmt"
	"time"
)

// Position is a pitch/yaw pair in degrees. X is yaw, Y is pitch.
type Position struct {
	X float64 `json:"x_deg"`
	Y float64 `json:"y_deg"`
}

// Rate is a pitch/yaw angular rate in degrees/second.
type Rate struct {
	X float64 `json:"x_deg_s"`
	Y float64 `json:"y_deg_s"`
}

// IsZero reports whether the rate holds position.
func (r Rate) IsZero() bool {
	return r.X == 0 && r.Y == 0
}

// Command is one external request. At most one of Absolute, Imu and Rate is
// expected; if several are set Absolute wins over Imu, which wins over Rate.
type Command struct {
	Sequence int64 `json:"sequence"`
	// Absolute is relative to the absolute encoder reference.
	Absolute *Position `json:"absolute,omitempty"`
	// Imu is relative to the gimbal's inertial reference.
	Imu     *Position `json:"imu,omitempty"`
	Rate    *Rate     `json:"rate,omitempty"`
	LaserOn bool      `json:"laser_on"`
}

// CommandLog is the timestamped echo of a received command. It is emitted
// whether or not the command was applied.
type CommandLog struct {
	Timestamp time.Time `json:"timestamp"`
	Command   Command   `json:"command"`
}

type Mode int

const (
	ModeIdle Mode = iota
	ModeAbsolute
	ModeImu
	ModeRate
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "IDLE"
	case ModeAbsolute:
		return "ABSOLUTE"
	case ModeImu:
		return "IMU"
	case ModeRate:
		return "RATE"
	}
	return "UNKNOWN"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	for _, c := range []Mode{ModeIdle, ModeAbsolute, ModeImu, ModeRate} {
		if c.String() == string(text) {
			*m = c
			return nil
		}
	}
	return fmt.Errorf("unknown mode %q", text)
}

// Data is the controller's knowledge of the turret. Published copies are
// snapshots; the controller never shares its own.
type Data struct {
	// ImuCommand is the current IMU relative command, nil until it has been
	// read back from the gimbal.
	ImuCommand *Position `json:"imu_command"`
	// Imu is the measured orientation relative to the IMU reference.
	Imu Position `json:"imu"`
	// Absolute is the measured orientation relative to the absolute
	// encoder. Pitch has no absolute sensor and mirrors Imu.Y.
	Absolute Position `json:"absolute"`
	// Rate is the active integration rate. Zero holds position.
	Rate Rate `json:"rate"`

	FireEnabled     bool `json:"fire_enabled"`
	AgitatorEnabled bool `json:"agitator_enabled"`

	// LastSequence is the sequence of the most recently applied command.
	LastSequence int64     `json:"last_sequence"`
	Mode         Mode      `json:"mode"`
	MissedTicks  int       `json:"missed_ticks"`
	Timestamp    time.Time `json:"timestamp"`
}

// Clone returns a deep copy suitable for publishing.
func (d Data) Clone() Data {
	if d.ImuCommand != nil {
		c := *d.ImuCommand
		d.ImuCommand = &c
	}
	return d
}

// Parameters are fixed for the life of a controller.
type Parameters struct {
	PeriodS            float64 `yaml:"period_s"`
	GimbalAddress      byte    `yaml:"gimbal_address"`
	FireControlAddress byte    `yaml:"fire_control_address"`

	// X is yaw, Y is pitch.
	MinXDeg float64 `yaml:"min_x_deg"`
	MaxXDeg float64 `yaml:"max_x_deg"`
	MinYDeg float64 `yaml:"min_y_deg"`
	MaxYDeg float64 `yaml:"max_y_deg"`
}

func DefaultParameters() Parameters {
	return Parameters{
		PeriodS:            0.01,
		GimbalAddress:      0x62,
		FireControlAddress: 0x63,
		MinXDeg:            -180,
		MaxXDeg:            180,
		MinYDeg:            -15,
		MaxYDeg:            10,
	}
}

func (p Parameters) Period() time.Duration {
	return time.Duration(p.PeriodS * float64(time.Second))
}

func (p Parameters) Validate() error {
	switch {
	case p.PeriodS <= 0:
		return errors.New("turret: period_s must be > 0")
	case p.MinXDeg > p.MaxXDeg:
		return errors.New("turret: min_x_deg must not exceed max_x_deg")
	case p.MinYDeg > p.MaxYDeg:
		return errors.New("turret: min_y_deg must not exceed max_y_deg")
	case p.GimbalAddress == p.FireControlAddress:
		return errors.New("turret: gimbal and fire control addresses must differ")
	}
	return nil
}
