package sim

import "math"

// Body is the physics service the control stack talks to. Forces and
// torques accumulate during a tick and are consumed by the integrator.
type Body interface {
	State() BodyState
	AddForce(f Vec3)
	AddForceAtPoint(f Vec3, worldPoint Vec3)
	AddTorque(worldTorque Vec3)
}

// BodyState is the pose/velocity snapshot consumed by the controller and
// the sensor simulator. AngularVel is in the body frame, rad/s.
type BodyState struct {
	Position    Vec3
	Velocity    Vec3
	Orientation Quat
	AngularVel  Vec3
}

// RigidBody is a semi-implicit Euler integrator with per-axis linear drag,
// diagonal inertia, and flat-ground contact. The cascade itself only
// requires the Body interface; RigidBody closes the loop for the headless
// runner and tests.
type RigidBody struct {
	Pos    Vec3
	Vel    Vec3
	Orient Quat
	Omega  Vec3 // body frame

	Mass    float64
	Inertia Vec3 // diagonal, body frame
	Drag    DragCoeffs
	Wind    Vec3

	GroundHeight float64

	forceAccum  Vec3
	torqueAccum Vec3 // world frame
}

// NewRigidBody builds a body from tuning. Inertia approximates the motors
// as point masses on the arms, with a heavier yaw axis.
func NewRigidBody(t *TuningParameters) *RigidBody {
	i := t.Mass * t.ArmLength * t.ArmLength * 0.6
	return &RigidBody{
		Orient:  IdentityQuat(),
		Mass:    t.Mass,
		Inertia: Vec3{X: i, Y: i * 1.6, Z: i},
		Drag:    t.Drag,
	}
}

func (b *RigidBody) State() BodyState {
	return BodyState{
		Position:    b.Pos,
		Velocity:    b.Vel,
		Orientation: b.Orient,
		AngularVel:  b.Omega,
	}
}

func (b *RigidBody) AddForce(f Vec3) { b.forceAccum = b.forceAccum.Add(f) }

func (b *RigidBody) AddForceAtPoint(f Vec3, worldPoint Vec3) {
	b.forceAccum = b.forceAccum.Add(f)
	r := worldPoint.Sub(b.Pos)
	b.torqueAccum = b.torqueAccum.Add(r.Cross(f))
}

func (b *RigidBody) AddTorque(worldTorque Vec3) {
	b.torqueAccum = b.torqueAccum.Add(worldTorque)
}

// Step integrates one tick; accumulated forces and torques are consumed.
func (b *RigidBody) Step(dt float64) {
	if dt <= 0 {
		b.forceAccum = Vec3{}
		b.torqueAccum = Vec3{}
		return
	}

	f := b.forceAccum
	f.Y -= b.Mass * gravity

	// Per-axis linear drag against air-relative velocity.
	air := b.Vel.Sub(b.Wind)
	f.X -= b.Drag.X * air.X
	f.Y -= b.Drag.Y * air.Y
	f.Z -= b.Drag.Z * air.Z

	acc := f.Mul(1.0 / math.Max(b.Mass, 1e-6))
	b.Vel = b.Vel.Add(acc.Mul(dt))
	b.Pos = b.Pos.Add(b.Vel.Mul(dt))

	// Torque in body frame; diagonal inertia, gyroscopic term dropped.
	tq := b.Orient.Conjugate().Rotate(b.torqueAccum)
	b.Omega.X += tq.X / math.Max(b.Inertia.X, 1e-6) * dt
	b.Omega.Y += tq.Y / math.Max(b.Inertia.Y, 1e-6) * dt
	b.Omega.Z += tq.Z / math.Max(b.Inertia.Z, 1e-6) * dt
	b.Orient = b.Orient.Integrate(b.Omega, dt)

	b.handleGroundContact()

	b.Pos.X = sanitizeFinite(b.Pos.X)
	b.Pos.Y = sanitizeFinite(b.Pos.Y)
	b.Pos.Z = sanitizeFinite(b.Pos.Z)
	b.Vel.X = sanitizeFinite(b.Vel.X)
	b.Vel.Y = sanitizeFinite(b.Vel.Y)
	b.Vel.Z = sanitizeFinite(b.Vel.Z)

	b.forceAccum = Vec3{}
	b.torqueAccum = Vec3{}
}

func (b *RigidBody) handleGroundContact() {
	if b.Pos.Y >= b.GroundHeight {
		return
	}
	b.Pos.Y = b.GroundHeight
	if b.Vel.Y < 0 {
		b.Vel.Y = 0
	}
	// Ground friction and no tumbling while parked.
	b.Vel.X *= 0.8
	b.Vel.Z *= 0.8
	b.Omega = b.Omega.Mul(0.5)
}

// OnGround reports resting ground contact.
func (b *RigidBody) OnGround() bool {
	return b.Pos.Y <= b.GroundHeight+1e-3 && math.Abs(b.Vel.Y) < 0.1
}
