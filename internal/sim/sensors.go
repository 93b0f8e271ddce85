package sim

import (
	"math"
	"math/rand"
)

// ImuSample is an inertial snapshot. AngularVel is body-frame rad/s;
// LinearAccel is the gravity-compensated body-frame acceleration, so a
// steady hover reads near zero. EulerDeg holds pitch, yaw, roll.
type ImuSample struct {
	Time        float64
	Attitude    Quat
	EulerDeg    Vec3
	AngularVel  Vec3
	LinearAccel Vec3
}

// NavSample is a world-frame position/velocity fix.
type NavSample struct {
	Time     float64
	Position Vec3
	Velocity Vec3
}

// delayLine is a fixed-latency FIFO of timestamped samples, capped so a
// large latency cannot grow memory without bound. When full, the oldest
// entry is dropped.
type delayLine[T any] struct {
	buf     []delayEntry[T]
	latency float64
}

type delayEntry[T any] struct {
	t float64
	v T
}

func newDelayLine[T any](latency, tick float64) *delayLine[T] {
	capacity := 8
	if tick > 0 {
		capacity += int(latency / tick)
	}
	return &delayLine[T]{buf: make([]delayEntry[T], 0, capacity), latency: latency}
}

func (d *delayLine[T]) push(now float64, v T) {
	if len(d.buf) == cap(d.buf) && cap(d.buf) > 0 {
		copy(d.buf, d.buf[1:])
		d.buf = d.buf[:len(d.buf)-1]
	}
	d.buf = append(d.buf, delayEntry[T]{t: now, v: v})
}

// current returns the newest sample whose age has reached the latency,
// dropping everything older. ok is false until the pipe first fills.
func (d *delayLine[T]) current(now float64) (T, bool) {
	idx := -1
	for i, e := range d.buf {
		if now-e.t >= d.latency {
			idx = i
		} else {
			break
		}
	}
	if idx < 0 {
		var zero T
		return zero, false
	}
	out := d.buf[idx].v
	d.buf = d.buf[:copy(d.buf, d.buf[idx:])]
	return out, true
}

// SensorSuite derives IMU and navigation samples from body state, with
// optional per-channel Gaussian noise and fixed-latency delay lines.
type SensorSuite struct {
	cfg SensorConfig
	rng *rand.Rand

	imuDelay *delayLine[ImuSample]
	navDelay *delayLine[NavSample]

	imu ImuSample
	nav NavSample

	prevVel Vec3
	hasPrev bool
	time    float64
}

func NewSensorSuite(cfg SensorConfig) *SensorSuite {
	s := &SensorSuite{
		cfg: cfg,
		rng: rand.New(rand.NewSource(cfg.Seed)),
	}
	if cfg.LatencyEnabled {
		s.imuDelay = newDelayLine[ImuSample](cfg.ImuLatency, cfg.TickDuration)
		s.navDelay = newDelayLine[NavSample](cfg.NavLatency, cfg.TickDuration)
	}
	return s
}

// Sample ingests the true body state for this tick. Exposed readings
// update immediately, or once the configured latency has elapsed.
func (s *SensorSuite) Sample(st BodyState, dt float64) {
	s.time += dt

	accWorld := Vec3{}
	if s.hasPrev && dt > minPidDt {
		accWorld = st.Velocity.Sub(s.prevVel).Mul(1 / dt)
	}
	s.prevVel = st.Velocity
	s.hasPrev = true

	pitch, yaw, roll := EulerFromAttitude(st.Orientation)
	imu := ImuSample{
		Time:        s.time,
		Attitude:    st.Orientation,
		EulerDeg:    Vec3{X: RadToDeg(pitch), Y: RadToDeg(yaw), Z: RadToDeg(roll)},
		AngularVel:  st.AngularVel,
		LinearAccel: st.Orientation.Conjugate().Rotate(accWorld),
	}
	nav := NavSample{Time: s.time, Position: st.Position, Velocity: st.Velocity}

	if s.cfg.NoiseEnabled {
		imu.EulerDeg = s.perturb(imu.EulerDeg, s.cfg.AttitudeStdDeg)
		imu.AngularVel = s.perturb(imu.AngularVel, s.cfg.GyroStd)
		imu.LinearAccel = s.perturb(imu.LinearAccel, s.cfg.AccelStd)
		imu.Attitude = AttitudeFromEuler(
			DegToRad(imu.EulerDeg.X), DegToRad(imu.EulerDeg.Y), DegToRad(imu.EulerDeg.Z))
		nav.Position = s.perturb(nav.Position, s.cfg.PositionStd)
		nav.Velocity = s.perturb(nav.Velocity, s.cfg.VelocityStd)
	}

	if s.cfg.LatencyEnabled {
		s.imuDelay.push(s.time, imu)
		s.navDelay.push(s.time, nav)
		if out, ok := s.imuDelay.current(s.time); ok {
			s.imu = out
		}
		if out, ok := s.navDelay.current(s.time); ok {
			s.nav = out
		}
		return
	}
	s.imu = imu
	s.nav = nav
}

// Imu returns the currently exposed inertial sample.
func (s *SensorSuite) Imu() ImuSample { return s.imu }

// Nav returns the currently exposed navigation sample.
func (s *SensorSuite) Nav() NavSample { return s.nav }

func (s *SensorSuite) perturb(v Vec3, std float64) Vec3 {
	if std <= 0 {
		return v
	}
	return Vec3{
		X: v.X + s.rng.NormFloat64()*std,
		Y: v.Y + s.rng.NormFloat64()*std,
		Z: v.Z + s.rng.NormFloat64()*std,
	}
}

// RangeFinder casts Rays evenly spaced horizontal rays around the vehicle
// heading plus one straight down, normalizing hit distance by MaxDist.
// 1.0 means no hit. It keeps no state between scans.
type RangeFinder struct {
	Rays    int
	MaxDist float64
	Query   DistanceQuery
}

// Scan returns Rays+1 normalized distances; the last entry is the
// downward ray.
func (r *RangeFinder) Scan(pos Vec3, orient Quat) []float64 {
	n := r.Rays
	if n < 1 {
		n = 1
	}
	maxDist := r.MaxDist
	if maxDist <= 0 {
		maxDist = 1
	}
	out := make([]float64, n+1)

	yaw := YawOf(orient)
	for i := 0; i < n; i++ {
		ang := yaw + 2*math.Pi*float64(i)/float64(n)
		dir := Vec3{X: math.Sin(ang), Z: math.Cos(ang)}
		out[i] = r.normalized(pos, dir, maxDist)
	}
	out[n] = r.normalized(pos, Vec3{Y: -1}, maxDist)
	return out
}

func (r *RangeFinder) normalized(pos, dir Vec3, maxDist float64) float64 {
	if r.Query == nil {
		return 1
	}
	d, ok := r.Query.Cast(pos, dir, maxDist)
	if !ok {
		return 1
	}
	return clamp01(d / maxDist)
}
