package turret

import "log"

// SetCommand submits a command. It is logged immediately and applied by the
// Run goroutine; the outcome is visible only through published snapshots.
func (t *Turret) SetCommand(cmd Command) {
	entry := CommandLog{Timestamp: t.now(), Command: cmd}
	t.loggerMu.Lock()
	loggers := t.loggers
	t.loggerMu.Unlock()
	for _, l := range loggers {
		if err := l.LogCommand(entry); err != nil {
			log.Printf("logging command %d: %v", cmd.Sequence, err)
		}
	}

	select {
	case t.commands <- cmd:
	case <-t.stop:
	case <-t.done:
	}
}

// arbitrate applies one command. Absolute takes precedence over IMU
// relative, which takes precedence over rate.
func (t *Turret) arbitrate(cmd Command) {
	// Just ignore commands with a repeated sequence.
	if t.sequenced && cmd.Sequence == t.data.LastSequence {
		return
	}
	t.sequenced = true
	t.data.LastSequence = cmd.Sequence

	p := t.params
	switch {
	case cmd.Absolute != nil:
		// The gimbal turns an absolute command into some new IMU relative
		// command, which has to be read back on the next tick.
		t.generation++
		t.data.ImuCommand = nil
		t.data.Rate = Rate{}
		t.data.Mode = ModeAbsolute

		pitch := clamp(cmd.Absolute.Y, p.MinYDeg, p.MaxYDeg)
		yaw := clamp(cmd.Absolute.X, p.MinXDeg, p.MaxXDeg)
		t.write(p.GimbalAddress, RegPitchCommand, EncodeSigned28(pitch))
		t.write(p.GimbalAddress, RegAbsoluteYawCommand, Absolute14Bytes(EncodeAbsolute14(yaw)))

	case cmd.Imu != nil:
		t.generation++
		next := Position{
			X: cmd.Imu.X,
			Y: clamp(cmd.Imu.Y, p.MinYDeg, p.MaxYDeg),
		}
		t.data.ImuCommand = &next
		t.data.Rate = Rate{}
		t.data.Mode = ModeImu
		t.write(p.GimbalAddress, RegPitchCommand, encodeImu(next))

	case cmd.Rate != nil:
		// The poll loop integrates the rate.
		t.data.Rate = *cmd.Rate
		t.data.Mode = ModeRate
	}

	var leds byte
	if cmd.LaserOn {
		leds = LedLaser
	}
	t.write(p.FireControlAddress, RegLedControl, []byte{leds})
}
