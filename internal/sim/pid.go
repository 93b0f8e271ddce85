package sim

import "math"

// minPidDt floors dt in the derivative term so a degenerate tick cannot
// blow up the output.
const minPidDt = 1e-5

// PidAxisState is the per-axis record mutated by PidStep. The controller
// owns one instance per control axis and resets them on spawn and re-arm.
type PidAxisState struct {
	Integral  float64
	LastError float64
}

func (s *PidAxisState) Reset() {
	s.Integral = 0
	s.LastError = 0
}

// pidAxis indexes the controller's fixed array of PID states. The
// velocity-stage mapping is fixed here: pidVelX and pidVelZ are the two
// horizontal world axes, pidVelY is vertical. Rate axes are in stick
// convention (pitch nose-up, roll right-bank, yaw right-turn).
type pidAxis int

const (
	pidPosX pidAxis = iota
	pidPosZ
	pidVelX
	pidVelY
	pidVelZ
	pidRatePitch
	pidRateRoll
	pidRateYaw
	pidAxisCount
)

// PidStep advances one axis of clamped-integral PID control.
//
// The integral accumulates ki*error*dt directly, so the stored integral is
// already gain-scaled and integralLimit bounds the integral's output
// contribution. integralLimit <= 0 disables clamping entirely; callers
// that pass a non-positive limit get an unbounded integrator, which winds
// up fast under persistent error.
func PidStep(s *PidAxisState, err, kp, ki, kd, dt, integralLimit float64) float64 {
	s.Integral += err * dt * ki
	if integralLimit > 0 {
		s.Integral = clamp(s.Integral, -integralLimit, integralLimit)
	}
	derivative := (err - s.LastError) / math.Max(dt, minPidDt)
	s.LastError = err
	return kp*err + s.Integral + kd*derivative
}

// stepGains is a convenience wrapper binding a PidGains set to PidStep.
func stepGains(s *PidAxisState, err float64, g PidGains, dt float64) float64 {
	return PidStep(s, err, g.Kp, g.Ki, g.Kd, dt, g.IntegralLimit)
}
