// Package sim simulates the gimbal and fire control boards in memory. A
// Simulator is a turret.Link, so the controller can run without hardware.
package sim

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/w1xm/turret_interface/turret"
	"golang.org/x/sync/errgroup"
)

const (
	// Maximum slew rate in degrees/second
	maxVel = 90
	// Discrete simulation step size
	stepSize = 10 * time.Millisecond

	memorySize = 128
)

type Simulator struct {
	gimbalAddress, fireAddress byte

	mu     sync.Mutex
	gimbal [memorySize]byte
	fire   [memorySize]byte
	laser  bool

	laserChanges chan bool
}

func New(gimbalAddress, fireControlAddress byte) *Simulator {
	s := &Simulator{
		gimbalAddress: gimbalAddress,
		fireAddress:   fireControlAddress,
		laserChanges:  make(chan bool, 1),
	}
	// Start centered on the absolute encoder.
	copy(s.gimbal[turret.RegAbsoluteYaw:], turret.Absolute14Bytes(turret.EncodeAbsolute14(0)))
	return s
}

func (s *Simulator) memory(address byte) (*[memorySize]byte, error) {
	switch address {
	case s.gimbalAddress:
		return &s.gimbal, nil
	case s.fireAddress:
		return &s.fire, nil
	}
	return nil, fmt.Errorf("no board at address %#02x", address)
}

func (s *Simulator) Read(ctx context.Context, address, register byte, length int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, err := s.memory(address)
	if err != nil {
		return nil, err
	}
	if int(register)+length > memorySize {
		return nil, fmt.Errorf("read of %d bytes at %#02x out of range", length, register)
	}
	out := make([]byte, length)
	copy(out, mem[register:])
	return out, nil
}

func (s *Simulator) Write(ctx context.Context, address, register byte, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	mem, err := s.memory(address)
	if err != nil {
		return err
	}
	if int(register)+len(data) > memorySize {
		return fmt.Errorf("write of %d bytes at %#02x out of range", len(data), register)
	}
	for i, b := range data {
		mem[int(register)+i] = b & 0x7f
	}

	switch {
	case address == s.gimbalAddress && register == turret.RegAbsoluteYawCommand && len(data) >= 2:
		// The gimbal turns an absolute yaw into an IMU relative one. The
		// absolute encoder and the IMU share their zero here.
		yaw := turret.DecodeAbsolute14(data[0], data[1])
		copy(s.gimbal[turret.RegYawCommand:], turret.EncodeSigned28(yaw))
	case address == s.fireAddress && register == turret.RegLedControl && len(data) >= 1:
		laser := data[0]&turret.LedLaser != 0
		if laser != s.laser {
			s.laser = laser
			select {
			case s.laserChanges <- laser:
			default:
			}
		}
	}
	return nil
}

// SetTrigger sets the fire and agitator outputs of the fire control board.
func (s *Simulator) SetTrigger(fire, agitator bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire[turret.RegFirePwm] = boolByte(fire)
	s.fire[turret.RegFirePwm+1] = boolByte(agitator)
}

func (s *Simulator) Laser() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.laser
}

// Imu returns the simulated orientation.
func (s *Simulator) Imu() turret.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return turret.Position{
		X: turret.DecodeSigned28(s.gimbal[turret.RegImuYaw:]),
		Y: turret.DecodeSigned28(s.gimbal[turret.RegImuPitch:]),
	}
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}

func (s *Simulator) Run(ctx context.Context) error {
	t := time.NewTicker(stepSize)
	defer t.Stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
			s.Step(stepSize)
		}
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case on := <-s.laserChanges:
				log.Printf("sim: laser on=%v", on)
			}
		}
	})
	return g.Wait()
}

// posServo moves s toward t by at most maxVel*dt.
func posServo(s, t float64, dt time.Duration) float64 {
	delta := math.Min(math.Abs(t-s), maxVel*dt.Seconds())
	if t < s {
		delta = -delta
	}
	return s + delta
}

// Step advances the simulation by dt.
func (s *Simulator) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.gimbal[:]
	pitch := posServo(
		turret.DecodeSigned28(g[turret.RegImuPitch:]),
		turret.DecodeSigned28(g[turret.RegPitchCommand:]),
		dt)
	yaw := posServo(
		turret.DecodeSigned28(g[turret.RegImuYaw:]),
		turret.DecodeSigned28(g[turret.RegYawCommand:]),
		dt)
	copy(g[turret.RegImuPitch:], turret.EncodeSigned28(pitch))
	copy(g[turret.RegImuYaw:], turret.EncodeSigned28(yaw))
	copy(g[turret.RegAbsoluteYaw:], turret.Absolute14Bytes(turret.EncodeAbsolute14(yaw)))
}
