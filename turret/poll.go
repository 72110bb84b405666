package turret

// phase is where the current poll cycle is waiting.
type phase int

const (
	phaseIdle phase = iota
	phaseAwaitingCommand
	phaseAwaitingTelemetry
	phaseAwaitingFireControl
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "Idle"
	case phaseAwaitingCommand:
		return "AwaitingCommand"
	case phaseAwaitingTelemetry:
		return "AwaitingTelemetry"
	case phaseAwaitingFireControl:
		return "AwaitingFireControl"
	}
	return "Unknown"
}

// tick starts a poll cycle. A cycle still in flight when the next tick
// arrives makes that tick a miss.
func (t *Turret) tick() {
	if t.phase != phaseIdle {
		t.data.MissedTicks++
		return
	}

	// If we don't know the current command, ask for it first.
	if t.data.ImuCommand == nil {
		t.phase = phaseAwaitingCommand
		gen := t.generation
		t.read(t.params.GimbalAddress, RegPitchCommand, commandLength, func(b []byte) {
			t.handleCommand(gen, b)
		})
		return
	}

	if !t.data.Rate.IsZero() {
		next := *t.data.ImuCommand
		next.X += t.data.Rate.X * t.params.PeriodS
		next.Y += t.data.Rate.Y * t.params.PeriodS
		next.Y = clamp(next.Y, t.params.MinYDeg, t.params.MaxYDeg)
		t.data.ImuCommand = &next
		t.write(t.params.GimbalAddress, RegPitchCommand, encodeImu(next))
	}

	t.requestTelemetry()
}

// handleCommand stores the command read back from the gimbal. A command
// accepted while the read was in flight bumps the generation, and the stale
// value is dropped.
func (t *Turret) handleCommand(gen uint64, b []byte) {
	if gen == t.generation {
		t.data.ImuCommand = &Position{
			Y: DecodeSigned28(b[0:4]),
			X: DecodeSigned28(b[4:8]),
		}
		t.emit()
	}
	t.requestTelemetry()
}

func (t *Turret) requestTelemetry() {
	t.phase = phaseAwaitingTelemetry
	t.read(t.params.GimbalAddress, RegImuPitch, telemetryLength, t.handleTelemetry)
}

func (t *Turret) handleTelemetry(b []byte) {
	t.data.Imu.Y = DecodeSigned28(b[0:4])
	t.data.Imu.X = DecodeSigned28(b[4:8])
	t.data.Absolute.Y = t.data.Imu.Y
	t.data.Absolute.X = DecodeAbsolute14(b[8], b[9])

	t.phase = phaseAwaitingFireControl
	t.read(t.params.FireControlAddress, RegFirePwm, fireLength, t.handleFireControl)
}

func (t *Turret) handleFireControl(b []byte) {
	t.data.FireEnabled = b[0] != 0
	t.data.AgitatorEnabled = b[1] != 0
	t.phase = phaseIdle
	t.emit()
}
