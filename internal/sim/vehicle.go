package sim

import "go.uber.org/zap"

// Vehicle wires tuning, the cascade controller, motor dynamics, the
// physics body, and the sensor suite into one tick-driven unit. A step
// runs strictly: controller -> motors -> body integration -> sensors.
// Everything is single-threaded; call Step from one goroutine only.
type Vehicle struct {
	Tuning  *TuningParameters
	Body    *RigidBody
	Motors  *MotorBank
	Control *FlightController
	Sensors *SensorSuite
	Range   *RangeFinder

	log     *zap.Logger
	pending *Setpoint
}

// NewVehicle assembles a vehicle over a collision world. The tuning must
// already be finalized. log may be nil.
func NewVehicle(cfg *Config, world DistanceQuery, log *zap.Logger) *Vehicle {
	if log == nil {
		log = zap.NewNop()
	}
	t := &cfg.Tuning
	return &Vehicle{
		Tuning:  t,
		Body:    NewRigidBody(t),
		Motors:  NewMotorBank(t, world),
		Control: NewFlightController(t, world, log),
		Sensors: NewSensorSuite(cfg.Sensors),
		Range: &RangeFinder{
			Rays:    cfg.Sensors.RangeRays,
			MaxDist: cfg.Sensors.RangeMaxDist,
			Query:   world,
		},
		log: log,
	}
}

// Arm resets the loops, starts the arming ramp, and primes the motors at
// hover so thrust does not sag while the lag filters spin up.
func (v *Vehicle) Arm() {
	v.Control.Arm(YawOf(v.Body.Orient))
	v.Motors.Prime(v.Tuning.HoverThrottle)
}

// Disarm cuts the command targets; the lag filters spin the props down.
func (v *Vehicle) Disarm() {
	v.Control.Disarm()
	v.Motors.SetCommands([4]float64{})
}

// SetSetpoint supplies the command for the next Step. Setpoints are
// consumed once; with no fresh setpoint the cascade is skipped for the
// tick and the motors hold their previous targets.
func (v *Vehicle) SetSetpoint(sp Setpoint) {
	cp := sp
	v.pending = &cp
}

// Step advances the whole vehicle by one fixed tick.
func (v *Vehicle) Step(dt float64) {
	if v.pending != nil && v.Control.Armed() {
		cmds := v.Control.Update(*v.pending, v.Body.State(), dt)
		v.Motors.SetCommands(cmds)
	}
	v.pending = nil

	v.Motors.Step(dt, v.Body)
	v.Body.Step(dt)
	v.Sensors.Sample(v.Body.State(), dt)
}

// ScanRange runs the ray-based range sensor against the current pose.
func (v *Vehicle) ScanRange() []float64 {
	return v.Range.Scan(v.Body.Pos, v.Body.Orient)
}
