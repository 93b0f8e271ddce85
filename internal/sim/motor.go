package sim

import "math"

// Motor indices; X layout, arms on the diagonals.
const (
	motorFL = iota
	motorFR
	motorBR
	motorBL
	motorCount
)

// MotorState is one rotor/prop unit. Command is the lag filter's target;
// State is the lagged value actually producing thrust. YawSign alternates
// around the frame so differential thrust yaws the vehicle.
type MotorState struct {
	Offset  Vec3 // local mount point
	Command float64
	State   float64
	YawSign float64
}

// MotorBank owns the four motors and applies their forces and reaction
// torques to the physics body each tick.
type MotorBank struct {
	tuning *TuningParameters
	ground DistanceQuery
	motors [motorCount]MotorState

	realizedThrust float64 // N, total over the last step
}

func NewMotorBank(t *TuningParameters, ground DistanceQuery) *MotorBank {
	// Mount points at ArmLength from the hub along the diagonals,
	// X right, Z forward.
	a := t.ArmLength * math.Sqrt2 / 2
	mb := &MotorBank{tuning: t, ground: ground}
	mb.motors[motorFL] = MotorState{Offset: Vec3{X: -a, Z: a}, YawSign: 1}
	mb.motors[motorFR] = MotorState{Offset: Vec3{X: a, Z: a}, YawSign: -1}
	mb.motors[motorBR] = MotorState{Offset: Vec3{X: a, Z: -a}, YawSign: 1}
	mb.motors[motorBL] = MotorState{Offset: Vec3{X: -a, Z: -a}, YawSign: -1}
	return mb
}

// SetCommands clamps each command to [0,1] and stores it as the lag
// filter's target. Thrust changes follow on subsequent steps.
func (mb *MotorBank) SetCommands(cmds [4]float64) {
	for i := range mb.motors {
		mb.motors[i].Command = clamp01(cmds[i])
	}
}

// Prime forces command and lag state to the same value immediately, so a
// freshly spawned vehicle does not drop while the filters catch up.
func (mb *MotorBank) Prime(cmd float64) {
	cmd = clamp01(cmd)
	for i := range mb.motors {
		mb.motors[i].Command = cmd
		mb.motors[i].State = cmd
	}
}

// Step advances the lag filters and applies per-motor thrust and yaw
// reaction torque to the body.
func (mb *MotorBank) Step(dt float64, body Body) {
	t := mb.tuning
	alpha := 1 - math.Exp(-dt/math.Max(t.MotorTimeConst, 1e-6))

	st := body.State()
	up := st.Orientation.Rotate(Vec3{Y: 1})

	// One downward clearance query covers all four motors.
	geMult := 1.0
	if t.GroundEffectHeight > 0 {
		if h, ok := groundDistance(mb.ground, st.Position, t.GroundEffectHeight); ok {
			geMult = 1 + t.GroundEffectBoost*(1-h/t.GroundEffectHeight)
		}
	}

	total := 0.0
	for i := range mb.motors {
		m := &mb.motors[i]
		m.State = lerp(m.State, m.Command, alpha)

		thrust := t.ThrustCoeff * m.State * m.State * geMult
		total += thrust

		mount := st.Position.Add(st.Orientation.Rotate(m.Offset))
		body.AddForceAtPoint(up.Mul(thrust), mount)
		body.AddTorque(up.Mul(m.YawSign * thrust * t.YawTorqueCoeff))
	}
	mb.realizedThrust = total
}

// RealizedThrust is the total thrust in N produced on the last step.
func (mb *MotorBank) RealizedThrust() float64 { return mb.realizedThrust }

// Commands returns the current lag targets.
func (mb *MotorBank) Commands() [4]float64 {
	var out [4]float64
	for i, m := range mb.motors {
		out[i] = m.Command
	}
	return out
}

// States returns the current lagged values.
func (mb *MotorBank) States() [4]float64 {
	var out [4]float64
	for i, m := range mb.motors {
		out[i] = m.State
	}
	return out
}
