package sim

import (
	"math"

	"go.uber.org/zap"
)

type FlightMode int

const (
	ModeNormal FlightMode = iota
	ModeSport
	ModeCinematic
)

func (m FlightMode) String() string {
	switch m {
	case ModeSport:
		return "sport"
	case ModeCinematic:
		return "cinematic"
	default:
		return "normal"
	}
}

// Setpoint is the per-tick command consumed by the controller. Forward and
// Right are desired horizontal velocity in the vehicle's heading frame
// (m/s); VerticalSpeed is m/s positive up; YawRateDeg is deg/s positive
// turning right. Hold latches the current horizontal position as a target
// whenever the horizontal command is near zero.
type Setpoint struct {
	Forward       float64
	Right         float64
	VerticalSpeed float64
	YawRateDeg    float64
	Hold          bool
	Mode          FlightMode
}

// Telemetry is the observation surface exposed after each controller tick.
type Telemetry struct {
	DesiredPitchDeg float64
	DesiredRollDeg  float64
	DesiredYawDeg   float64
	DesiredRates    Vec3    // body frame, rad/s
	TotalThrust     float64 // N, commanded before mixing
	MotorCommands   [4]float64
	SafetyOverride  bool
}

// Takeoff and landing envelope constants.
const (
	armRampDuration = 0.3 // s during which commands are floored at hover

	holdDeadband = 0.1 // m/s of commanded speed below which hold engages

	takeoffFloorHeight = 0.2  // m; altitude-hold vertical floor below this
	takeoffFloorSpeed  = 0.25 // m/s forced climb
	takeoffBoostHeight = 0.3  // m of clearance over which the boost fades
	takeoffBoostAccel  = 0.35 // g added at zero clearance

	nearGroundHeight = 0.15 // m; minimum 115% hover this close to ground
	minMotorFraction = 0.02 // of collective per motor, never exactly zero

	climbFloorGain  = 0.8  // +80% over hover at full climb command
	idleFloorMargin = 0.05 // thrust never below 5% of hover when not climbing
	thrustCeiling   = 3.0  // x mass*g
)

// FlightController runs the five-stage cascade once per fixed tick:
// position -> velocity -> attitude -> body rate -> mixer. It owns all PID
// axis state; everything else it touches is read-only tuning or the
// per-tick body snapshot.
type FlightController struct {
	tuning *TuningParameters
	ground DistanceQuery
	log    *zap.Logger

	pid [pidAxisCount]PidAxisState

	armed      bool
	armRamp    float64 // 0..1
	desiredYaw float64 // rad, open-loop integrator

	holdActive bool
	holdTarget Vec3

	smoothedCmd Vec3 // world-frame horizontal velocity command after shaping

	overrideLogged bool

	telemetry Telemetry
}

func NewFlightController(t *TuningParameters, ground DistanceQuery, log *zap.Logger) *FlightController {
	if log == nil {
		log = zap.NewNop()
	}
	return &FlightController{tuning: t, ground: ground, log: log}
}

// Arm resets all loop state and starts the post-arming ramp. currentYaw is
// the vehicle heading in radians; the open-loop yaw integrator starts there.
func (c *FlightController) Arm(currentYaw float64) {
	for i := range c.pid {
		c.pid[i].Reset()
	}
	c.armed = true
	c.armRamp = 0
	c.desiredYaw = currentYaw
	c.holdActive = false
	c.smoothedCmd = Vec3{}
	c.overrideLogged = false
	c.log.Info("controller armed", zap.Float64("yaw_deg", RadToDeg(currentYaw)))
}

func (c *FlightController) Disarm() {
	c.armed = false
	c.log.Info("controller disarmed")
}

func (c *FlightController) Armed() bool { return c.armed }

// Telemetry returns the observation snapshot from the last Update.
func (c *FlightController) Telemetry() Telemetry { return c.telemetry }

// Update runs the cascade for one tick and returns four motor commands in
// [0,1], order FL, FR, BR, BL. Disarmed it returns all zeros.
func (c *FlightController) Update(sp Setpoint, st BodyState, dt float64) [4]float64 {
	if !c.armed {
		return [4]float64{}
	}
	dt = math.Max(dt, minPidDt)
	t := c.tuning
	ceil := t.Ceilings(sp.Mode)

	heading := HeadingQuat(st.Orientation)
	height := c.heightAboveGround(st.Position)

	// Stage 1: position hold or commanded velocity.
	velSet := c.horizontalVelocitySetpoint(sp, st, heading, dt)

	// Stage 2: vertical speed setpoint.
	vertSet := clamp(sp.VerticalSpeed, -ceil.MaxClimbRate, ceil.MaxClimbRate)
	if sp.Hold && height < takeoffFloorHeight && vertSet < takeoffFloorSpeed {
		// Holding on the deck means take off, not idle into the dirt.
		vertSet = takeoffFloorSpeed
	}

	// Stage 3: velocity loops produce world-frame acceleration demands.
	g := t.VelGains
	accX := stepGains(&c.pid[pidVelX], velSet.X-st.Velocity.X, g, dt)
	accY := stepGains(&c.pid[pidVelY], vertSet-st.Velocity.Y, g, dt)
	accZ := stepGains(&c.pid[pidVelZ], velSet.Z-st.Velocity.Z, g, dt)

	// Stage 4: small-angle acceleration-to-tilt, hard limit first, then
	// the mode ceiling.
	local := heading.Conjugate().Rotate(Vec3{X: accX, Z: accZ})
	pitchDeg := -(local.Z / gravity) * t.TiltGainDeg // forward accel -> nose down
	rollDeg := (local.X / gravity) * t.TiltGainDeg   // rightward accel -> bank right
	pitchDeg = clamp(pitchDeg, -t.HardTiltLimitDeg, t.HardTiltLimitDeg)
	rollDeg = clamp(rollDeg, -t.HardTiltLimitDeg, t.HardTiltLimitDeg)
	pitchDeg = clamp(pitchDeg, -ceil.MaxTiltDeg, ceil.MaxTiltDeg)
	rollDeg = clamp(rollDeg, -ceil.MaxTiltDeg, ceil.MaxTiltDeg)

	// Stage 5: vertical acceleration to total thrust.
	thrust := c.totalThrust(sp, st, ceil, accY, height)

	// Stage 6: open-loop yaw integration.
	yawRate := clamp(sp.YawRateDeg, -ceil.MaxYawRateDeg, ceil.MaxYawRateDeg)
	c.desiredYaw = wrapAngle(c.desiredYaw + DegToRad(yawRate)*dt)

	// Stage 7: quaternion attitude error, combined P-D law on body rates.
	desired := AttitudeFromEuler(DegToRad(pitchDeg), c.desiredYaw, DegToRad(rollDeg))
	qErr := st.Orientation.Conjugate().Mul(desired).Normalize()
	axis, angle := qErr.AxisAngle()
	bodyErr := axis.Mul(angle)
	desRates := bodyErr.Mul(t.AttGains.Kp).Sub(st.AngularVel.Mul(t.AttGains.Kd))

	// Stage 8: rate loops in stick axes (pitch nose-up, roll right-bank,
	// yaw right-turn map to -X, -Z, +Y of the body frame).
	rg := t.RateGains
	pitchErr := -(desRates.X - st.AngularVel.X)
	rollErr := -(desRates.Z - st.AngularVel.Z)
	yawErr := desRates.Y - st.AngularVel.Y
	pitchTq := stepGains(&c.pid[pidRatePitch], pitchErr, rg, dt)
	rollTq := stepGains(&c.pid[pidRateRoll], rollErr, rg, dt)
	yawTq := stepGains(&c.pid[pidRateYaw], yawErr, rg, dt)

	// Stage 9: mix into per-motor commands.
	cmds := c.mix(thrust, pitchTq, rollTq, yawTq)

	// Stage 10: hard-tilt safety override.
	pitchNow, _, rollNow := EulerFromAttitude(st.Orientation)
	hard := DegToRad(t.HardTiltLimitDeg)
	override := math.Abs(pitchNow) > hard || math.Abs(rollNow) > hard
	if override {
		for i := range cmds {
			cmds[i] = t.HoverThrottle
		}
		if !c.overrideLogged {
			c.log.Warn("hard tilt exceeded, substituting hover output",
				zap.Float64("pitch_deg", RadToDeg(pitchNow)),
				zap.Float64("roll_deg", RadToDeg(rollNow)))
			c.overrideLogged = true
		}
	} else {
		c.overrideLogged = false
	}

	// Stage 11: arm ramp floors commands at hover while loops settle.
	if c.armRamp < 1 {
		c.armRamp = math.Min(1, c.armRamp+dt/armRampDuration)
		for i := range cmds {
			cmds[i] = math.Max(cmds[i], t.HoverThrottle)
		}
	}

	c.telemetry = Telemetry{
		DesiredPitchDeg: pitchDeg,
		DesiredRollDeg:  rollDeg,
		DesiredYawDeg:   RadToDeg(c.desiredYaw),
		DesiredRates:    desRates,
		TotalThrust:     thrust,
		MotorCommands:   cmds,
		SafetyOverride:  override,
	}
	return cmds
}

func (c *FlightController) heightAboveGround(pos Vec3) float64 {
	if h, ok := groundDistance(c.ground, pos, 100); ok {
		return h
	}
	return math.Max(pos.Y, 0)
}

// horizontalVelocitySetpoint runs the position stage. With hold enabled
// and sticks centered it latches the current horizontal position and runs
// the two position loops; otherwise it rotates the shaped stick command
// into the world frame.
func (c *FlightController) horizontalVelocitySetpoint(sp Setpoint, st BodyState, heading Quat, dt float64) Vec3 {
	cmdSpeed := math.Hypot(sp.Forward, sp.Right)
	if sp.Hold && cmdSpeed < holdDeadband {
		if !c.holdActive {
			c.holdActive = true
			c.holdTarget = st.Position
		}
		err := c.holdTarget.Sub(st.Position)
		err.Y = 0
		return Vec3{
			X: stepGains(&c.pid[pidPosX], err.X, c.tuning.PosGains, dt),
			Z: stepGains(&c.pid[pidPosZ], err.Z, c.tuning.PosGains, dt),
		}
	}
	c.holdActive = false

	world := heading.Rotate(Vec3{X: sp.Right, Z: sp.Forward})
	if tau := c.tuning.InputSmoothing; tau > 0 {
		k := 1 - math.Exp(-dt/tau)
		c.smoothedCmd = c.smoothedCmd.Add(world.Sub(c.smoothedCmd).Mul(k))
	} else {
		c.smoothedCmd = world
	}
	return c.smoothedCmd
}

// totalThrust converts the vertical acceleration demand into collective
// thrust with the takeoff and envelope floors applied.
func (c *FlightController) totalThrust(sp Setpoint, st BodyState, ceil ModeCeilings, accY, height float64) float64 {
	t := c.tuning
	hover := t.HoverForce()

	upAccel := accY + gravity
	if height < takeoffBoostHeight && math.Abs(st.Velocity.Y) < 0.2 {
		upAccel += gravity * takeoffBoostAccel * (1 - height/takeoffBoostHeight)
	}
	thrust := t.Mass * upAccel

	floor := hover * idleFloorMargin
	if sp.VerticalSpeed > 0 && ceil.MaxClimbRate > 0 {
		climb := clamp01(sp.VerticalSpeed / ceil.MaxClimbRate)
		floor = hover * (1 + climbFloorGain*climb)
	}
	if height < nearGroundHeight && st.Velocity.Y > -0.1 {
		floor = math.Max(floor, hover*1.15)
	}

	thrust = math.Max(thrust, floor)
	return clamp(thrust, 0, thrustCeiling*hover)
}

// Mixer sign patterns, motor order FL, FR, BR, BL. Positive pitch scalar
// lifts the front pair, positive roll lifts the FL/BL diagonal partners,
// positive yaw loads the FL/BR spin pair.
var (
	mixPitch = [4]float64{1, 1, -1, -1}
	mixRoll  = [4]float64{1, -1, -1, 1}
	mixYaw   = [4]float64{1, -1, 1, -1}
)

func (c *FlightController) mix(total, pitch, roll, yaw float64) [4]float64 {
	t := c.tuning
	per := total / 4
	arm := math.Max(t.ArmLength, 1e-6)
	kYaw := math.Max(t.YawTorqueCoeff, 1e-6)

	var cmds [4]float64
	for i := 0; i < 4; i++ {
		th := per + mixPitch[i]*pitch/arm + mixRoll[i]*roll/arm + mixYaw[i]*yaw/kYaw
		th = math.Max(th, per*minMotorFraction)
		cmds[i] = math.Sqrt(clamp01(th / math.Max(t.ThrustCoeff, 1e-6)))
	}
	return cmds
}
