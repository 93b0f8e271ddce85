package sim

import (
	"math"
	"testing"
)

func levelState(alt float64) BodyState {
	return BodyState{Position: Vec3{Y: alt}, Orientation: IdentityQuat()}
}

func newArmedController(t *testing.T, tn *TuningParameters, ground DistanceQuery) *FlightController {
	t.Helper()
	c := NewFlightController(tn, ground, nil)
	c.Arm(0)
	return c
}

// settleArmRamp runs harmless ticks until the post-arming floor expires.
func settleArmRamp(c *FlightController, st BodyState) {
	for i := 0; i < 200; i++ {
		c.Update(Setpoint{}, st, 0.01)
	}
}

func TestMixerEqualAtZeroScalars(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	cmds := c.mix(tn.HoverForce(), 0, 0, 0)
	for i := 1; i < 4; i++ {
		if math.Abs(cmds[i]-cmds[0]) > 1e-12 {
			t.Fatalf("zero scalars must give equal commands, got %v", cmds)
		}
	}
	if math.Abs(cmds[0]-tn.HoverThrottle) > 1e-9 {
		t.Fatalf("hover collective must map back to hover throttle, got %v", cmds[0])
	}
}

func TestMixerSignPatterns(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	base := tn.HoverForce()

	p := c.mix(base, 0.05, 0, 0)
	if !(p[motorFL] > p[motorBR] && p[motorFR] > p[motorBL]) {
		t.Fatalf("positive pitch scalar must lift FL/FR over BR/BL: %v", p)
	}
	r := c.mix(base, 0, 0.05, 0)
	if !(r[motorFL] > r[motorFR] && r[motorBL] > r[motorBR]) {
		t.Fatalf("positive roll scalar must lift FL/BL over FR/BR: %v", r)
	}
	y := c.mix(base, 0, 0, 0.001)
	if !(y[motorFL] > y[motorFR] && y[motorBR] > y[motorBL]) {
		t.Fatalf("positive yaw scalar must lift FL/BR over FR/BL: %v", y)
	}
}

func TestMixerMotorFloorNeverZero(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	// Huge pitch demand would drive the rear pair negative without a floor.
	cmds := c.mix(tn.HoverForce(), 10, 0, 0)
	perMotor := tn.HoverForce() / 4
	minCmd := math.Sqrt(minMotorFraction * perMotor / tn.ThrustCoeff)
	for i, cmd := range cmds {
		if cmd < minCmd-1e-12 {
			t.Fatalf("motor %d command %v below floor %v", i, cmd, minCmd)
		}
	}
}

func TestSafetyClampOverridesMixer(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	st := levelState(5)
	settleArmRamp(c, st)

	tilted := st
	tilted.Orientation = AttitudeFromEuler(0, 0, DegToRad(tn.HardTiltLimitDeg+10))
	cmds := c.Update(Setpoint{Forward: 3}, tilted, 0.01)
	for i, cmd := range cmds {
		if cmd != tn.HoverThrottle {
			t.Fatalf("motor %d: override gave %v, want hover %v", i, cmd, tn.HoverThrottle)
		}
	}
	if !c.Telemetry().SafetyOverride {
		t.Fatalf("telemetry must flag the override")
	}

	// Back within limits the mixer output returns.
	c.Update(Setpoint{}, st, 0.01)
	if c.Telemetry().SafetyOverride {
		t.Fatalf("override must clear when level")
	}
}

func TestArmRampFloorsAtHover(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	st := levelState(20)

	// Full descent demand computes thrust far below hover.
	sp := Setpoint{VerticalSpeed: -3}
	elapsed := 0.0
	for elapsed < armRampDuration-0.02 {
		cmds := c.Update(sp, st, 0.01)
		elapsed += 0.01
		for i, cmd := range cmds {
			if cmd < tn.HoverThrottle {
				t.Fatalf("t=%.2f motor %d: %v dropped below hover %v during ramp", elapsed, i, cmd, tn.HoverThrottle)
			}
		}
	}
	// Past the ramp the same demand may dip below hover.
	for i := 0; i < 50; i++ {
		c.Update(sp, st, 0.01)
	}
	cmds := c.Update(sp, st, 0.01)
	below := false
	for _, cmd := range cmds {
		if cmd < tn.HoverThrottle {
			below = true
		}
	}
	if !below {
		t.Fatalf("descent demand should fall below hover after the ramp, got %v", cmds)
	}
}

func TestDisarmedControllerOutputsZero(t *testing.T) {
	tn := testTuning(t)
	c := NewFlightController(tn, nil, nil)
	if cmds := c.Update(Setpoint{Forward: 2}, levelState(5), 0.01); cmds != ([4]float64{}) {
		t.Fatalf("disarmed controller must output zeros, got %v", cmds)
	}
}

func TestArmResetsPidState(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	st := levelState(5)
	for i := 0; i < 100; i++ {
		c.Update(Setpoint{VerticalSpeed: 2}, st, 0.01)
	}
	if c.pid[pidVelY].Integral == 0 {
		t.Fatalf("integral should have accumulated")
	}
	c.Arm(0)
	for i := range c.pid {
		if c.pid[i].Integral != 0 || c.pid[i].LastError != 0 {
			t.Fatalf("axis %d not reset on arm", i)
		}
	}
}

func TestTiltCeilingPerMode(t *testing.T) {
	tn := testTuning(t)
	st := levelState(5)
	for _, tc := range []struct {
		mode FlightMode
		max  float64
	}{
		{ModeCinematic, tn.Cinematic.MaxTiltDeg},
		{ModeNormal, tn.Normal.MaxTiltDeg},
		{ModeSport, tn.Sport.MaxTiltDeg},
	} {
		c := newArmedController(t, tn, nil)
		// Saturating forward demand for a while.
		for i := 0; i < 300; i++ {
			c.Update(Setpoint{Forward: 50, Mode: tc.mode}, st, 0.01)
		}
		got := math.Abs(c.Telemetry().DesiredPitchDeg)
		if got > tc.max+1e-9 {
			t.Fatalf("mode %v: desired pitch %v exceeds ceiling %v", tc.mode, got, tc.max)
		}
		if got < tc.max-1e-6 {
			t.Fatalf("mode %v: saturating demand should pin the ceiling, got %v", tc.mode, got)
		}
	}
}

func TestPositionHoldLatchesAndCommandsReturn(t *testing.T) {
	tn := testTuning(t)
	world := &World{GroundHeight: 0}
	c := newArmedController(t, tn, world)
	st := levelState(5)
	st.Position.X = 1

	// First hold tick latches (1, 5, 0).
	c.Update(Setpoint{Hold: true}, st, 0.01)
	if !c.holdActive || c.holdTarget.X != 1 {
		t.Fatalf("hold did not latch, active=%v target=%v", c.holdActive, c.holdTarget)
	}

	// Displace the vehicle; the controller should bank back toward -X.
	displaced := st
	displaced.Position.X = 3
	for i := 0; i < 100; i++ {
		c.Update(Setpoint{Hold: true}, displaced, 0.01)
	}
	if c.holdTarget.X != 1 {
		t.Fatalf("hold target must stay latched, got %v", c.holdTarget)
	}
	if roll := c.Telemetry().DesiredRollDeg; roll >= 0 {
		t.Fatalf("return toward -X needs a left bank, desired roll %v", roll)
	}

	// Pushing the stick releases the latch.
	c.Update(Setpoint{Hold: true, Forward: 2}, displaced, 0.01)
	if c.holdActive {
		t.Fatalf("velocity command must release the hold latch")
	}
}

func TestYawIntegratorRespectsModeCeiling(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	st := levelState(5)
	// 720 deg/s request in cinematic mode is capped at 40 deg/s.
	for i := 0; i < 100; i++ {
		c.Update(Setpoint{YawRateDeg: 720, Mode: ModeCinematic}, st, 0.01)
	}
	want := tn.Cinematic.MaxYawRateDeg * 1.0
	if got := c.Telemetry().DesiredYawDeg; math.Abs(got-want) > 1e-6 {
		t.Fatalf("desired yaw %v deg after 1s, want %v", got, want)
	}
}

func TestClimbThrustFloor(t *testing.T) {
	tn := testTuning(t)
	c := newArmedController(t, tn, nil)
	st := levelState(20)
	// Already climbing at the commanded rate: the velocity loop is idle and
	// only the floor keeps thrust at hover*(1+0.8).
	st.Velocity.Y = tn.Normal.MaxClimbRate

	c.Update(Setpoint{VerticalSpeed: tn.Normal.MaxClimbRate}, st, 0.001)
	if got := c.Telemetry().TotalThrust; got < tn.HoverForce()*(1+climbFloorGain)-1e-9 {
		t.Fatalf("climb floor not enforced: %v", got)
	}
}

func TestTakeoffFloorsNearGround(t *testing.T) {
	tn := testTuning(t)
	world := &World{GroundHeight: 0}
	c := newArmedController(t, tn, world)
	st := levelState(0.05)

	c.Update(Setpoint{Hold: true}, st, 0.001)
	if got := c.Telemetry().TotalThrust; got < tn.HoverForce()*1.15-1e-9 {
		t.Fatalf("near-ground thrust %v below 115%% hover", got)
	}
}
