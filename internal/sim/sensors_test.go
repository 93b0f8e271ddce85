package sim

import (
	"math"
	"testing"
)

func TestSensorLatencyDelaysStepChange(t *testing.T) {
	cfg := DefaultSensorConfig()
	cfg.LatencyEnabled = true
	cfg.NavLatency = 0.05
	cfg.ImuLatency = 0.05
	cfg.TickDuration = 0.01
	s := NewSensorSuite(cfg)

	// Fill the pipe at the origin.
	at := func(y float64) BodyState {
		return BodyState{Position: Vec3{Y: y}, Orientation: IdentityQuat()}
	}
	for i := 0; i < 20; i++ {
		s.Sample(at(0), 0.01)
	}
	if s.Nav().Position.Y != 0 {
		t.Fatalf("baseline position should be 0, got %v", s.Nav().Position.Y)
	}

	// Step change: the exposed sample must hold the old value until the
	// configured latency has elapsed.
	elapsed := 0.0
	for elapsed < cfg.NavLatency-0.011 {
		s.Sample(at(7), 0.01)
		elapsed += 0.01
		if s.Nav().Position.Y != 0 {
			t.Fatalf("step visible after %.3fs, before latency %.3fs", elapsed, cfg.NavLatency)
		}
	}
	for i := 0; i < 10; i++ {
		s.Sample(at(7), 0.01)
	}
	if s.Nav().Position.Y != 7 {
		t.Fatalf("step never surfaced, got %v", s.Nav().Position.Y)
	}
}

func TestDelayLineBounded(t *testing.T) {
	d := newDelayLine[float64](1.0, 0.01)
	wantCap := cap(d.buf)
	for i := 0; i < 10000; i++ {
		d.push(float64(i)*0.0001, float64(i)) // far faster than sized for
	}
	if len(d.buf) > wantCap || cap(d.buf) != wantCap {
		t.Fatalf("delay line grew: len=%d cap=%d want cap %d", len(d.buf), cap(d.buf), wantCap)
	}
}

func TestSensorNoiseDeterministicPerSeed(t *testing.T) {
	cfg := DefaultSensorConfig()
	cfg.NoiseEnabled = true
	cfg.Seed = 42
	st := BodyState{Position: Vec3{X: 1, Y: 2, Z: 3}, Orientation: IdentityQuat()}

	a := NewSensorSuite(cfg)
	b := NewSensorSuite(cfg)
	a.Sample(st, 0.01)
	b.Sample(st, 0.01)
	if a.Nav() != b.Nav() {
		t.Fatalf("same seed must reproduce: %+v vs %+v", a.Nav(), b.Nav())
	}
	if a.Nav().Position == st.Position {
		t.Fatalf("noise enabled but position unperturbed")
	}
	if d := a.Nav().Position.Sub(st.Position).Length(); d > cfg.PositionStd*10 {
		t.Fatalf("noise implausibly large: %v", d)
	}
}

func TestSensorTruthWithoutNoise(t *testing.T) {
	s := NewSensorSuite(DefaultSensorConfig())
	st := BodyState{
		Position:    Vec3{X: 1, Y: 2, Z: 3},
		Velocity:    Vec3{X: 0.5},
		Orientation: AttitudeFromEuler(DegToRad(10), DegToRad(20), DegToRad(-5)),
		AngularVel:  Vec3{X: 0.1},
	}
	s.Sample(st, 0.01)
	if s.Nav().Position != st.Position || s.Nav().Velocity != st.Velocity {
		t.Fatalf("nav must pass truth through")
	}
	imu := s.Imu()
	if imu.AngularVel != st.AngularVel {
		t.Fatalf("gyro must pass truth through")
	}
	if math.Abs(imu.EulerDeg.X-10) > 1e-9 || math.Abs(imu.EulerDeg.Y-20) > 1e-9 || math.Abs(imu.EulerDeg.Z+5) > 1e-9 {
		t.Fatalf("euler %v, want (10, 20, -5)", imu.EulerDeg)
	}
}

func TestImuAccelGravityCompensated(t *testing.T) {
	s := NewSensorSuite(DefaultSensorConfig())
	st := BodyState{Position: Vec3{Y: 5}, Orientation: IdentityQuat()}
	// Constant velocity: compensated acceleration reads zero.
	st.Velocity = Vec3{X: 2}
	s.Sample(st, 0.01)
	s.Sample(st, 0.01)
	if a := s.Imu().LinearAccel; a.Length() > 1e-9 {
		t.Fatalf("steady flight should read zero accel, got %v", a)
	}
	// A velocity increase shows up as body-frame acceleration.
	st.Velocity = Vec3{X: 2.5}
	s.Sample(st, 0.01)
	if a := s.Imu().LinearAccel; math.Abs(a.X-50) > 1e-6 {
		t.Fatalf("expected 50 m/s^2 along X, got %v", a)
	}
}

func TestRangeFinderScan(t *testing.T) {
	world := &World{
		GroundHeight: 0,
		Boxes: []Box{
			// Wall 4 m in front of the origin (+Z).
			{Min: Vec3{X: -10, Y: 0, Z: 4}, Max: Vec3{X: 10, Y: 20, Z: 5}},
		},
	}
	rf := &RangeFinder{Rays: 4, MaxDist: 10, Query: world}
	pos := Vec3{Y: 2}
	out := rf.Scan(pos, IdentityQuat())
	if len(out) != 5 {
		t.Fatalf("want 4 horizontal rays + 1 down, got %d values", len(out))
	}
	// Ray 0 points along heading (+Z): hits the wall at 4 m.
	if math.Abs(out[0]-0.4) > 1e-9 {
		t.Fatalf("forward ray %v, want 0.4", out[0])
	}
	// Opposite ray sees nothing.
	if out[2] != 1 {
		t.Fatalf("rear ray should be clear, got %v", out[2])
	}
	// Downward ray normalizes altitude.
	if math.Abs(out[4]-0.2) > 1e-9 {
		t.Fatalf("down ray %v, want 0.2", out[4])
	}
}

func TestRangeFinderFollowsHeading(t *testing.T) {
	world := &World{
		GroundHeight: -100,
		Boxes:        []Box{{Min: Vec3{X: 2, Y: -1, Z: -10}, Max: Vec3{X: 3, Y: 10, Z: 10}}},
	}
	rf := &RangeFinder{Rays: 4, MaxDist: 10, Query: world}
	// Facing +X, the wall at x=2 is dead ahead.
	out := rf.Scan(Vec3{}, AttitudeFromEuler(0, DegToRad(90), 0))
	if math.Abs(out[0]-0.2) > 1e-6 {
		t.Fatalf("heading-relative forward ray %v, want 0.2", out[0])
	}
}
