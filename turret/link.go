package turret

import (
	"context"
	"errors"
	"fmt"
)

// Register offsets and lengths on the gimbal and fire control boards.
const (
	RegPitchCommand       byte = 0x50 // 4 bytes, gimbal
	RegYawCommand         byte = 0x54 // 4 bytes, gimbal
	RegImuPitch           byte = 0x58 // 4 bytes, gimbal
	RegImuYaw             byte = 0x5c // 4 bytes, gimbal
	RegAbsoluteYaw        byte = 0x60 // 2 bytes, gimbal
	RegAbsoluteYawCommand byte = 0x68 // 2 bytes, gimbal
	RegLedControl         byte = 0x35 // 1 byte, fire control
	RegFirePwm            byte = 0x51 // 2 bytes, fire control: fire, agitator

	commandLength   = 8
	telemetryLength = 10
	fireLength      = 2

	// LedLaser is the LED control bit that turns the laser on.
	LedLaser byte = 1 << 2
)

// Link reads and writes device registers. address selects the board,
// register the offset within it. Implementations handle one request at a
// time; the controller never issues concurrent requests.
type Link interface {
	Read(ctx context.Context, address, register byte, length int) ([]byte, error)
	Write(ctx context.Context, address, register byte, data []byte) error
}

// ErrShortResponse is returned when a read comes back with fewer bytes than
// were requested.
var ErrShortResponse = errors.New("short response")

// LinkError is a failed device request. It stops the controller.
type LinkError struct {
	Op       string
	Address  byte
	Register byte
	Err      error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("%s address=%#02x register=%#02x: %v", e.Op, e.Address, e.Register, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}
