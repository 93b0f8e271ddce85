package sim

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const gravity = 9.81

// Floors applied by the legacy-tuning migration. Saved tuning files from
// early builds carried thrust coefficients too weak to hover the current
// airframe mass; loading such a file silently produced an unflyable
// vehicle. The migration raises stale values to these known-good minimums
// and logs each override.
const (
	legacyMinThrustCoeff = 6.0
	legacyMinMass        = 0.6
)

// PidGains is one gain set for the cascade stages. IntegralLimit <= 0
// disables integral clamping (see PidStep).
type PidGains struct {
	Kp            float64 `yaml:"kp"`
	Ki            float64 `yaml:"ki"`
	Kd            float64 `yaml:"kd"`
	IntegralLimit float64 `yaml:"integral_limit"`
}

// ModeCeilings caps the setpoints a flight mode may demand.
type ModeCeilings struct {
	MaxTiltDeg    float64 `yaml:"max_tilt_deg"`
	MaxYawRateDeg float64 `yaml:"max_yaw_rate_deg"`
	MaxClimbRate  float64 `yaml:"max_climb_rate"`
}

// DragCoeffs are per-axis linear drag coefficients (N per m/s) applied to
// air-relative velocity in the world frame.
type DragCoeffs struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
	Z float64 `yaml:"z"`
}

// TuningParameters is the one structured tuning record for a vehicle.
// It is loaded once at init, finalized, and treated as read-only by
// every component that holds it.
type TuningParameters struct {
	Mass           float64 `yaml:"mass"`             // kg
	ThrustCoeff    float64 `yaml:"thrust_coeff"`     // N per motor at full command: thrust = kT*cmd^2
	MotorTimeConst float64 `yaml:"motor_time_const"` // s, first-order lag tau
	ArmLength      float64 `yaml:"arm_length"`       // m, hub to motor
	YawTorqueCoeff float64 `yaml:"yaw_torque_coeff"` // N*m of reaction torque per N of thrust

	Drag DragCoeffs `yaml:"drag"`

	GroundEffectHeight float64 `yaml:"ground_effect_height"` // m
	GroundEffectBoost  float64 `yaml:"ground_effect_boost"`  // max thrust multiplier gain at h=0

	PosGains  PidGains `yaml:"pos_gains"`
	VelGains  PidGains `yaml:"vel_gains"`
	AttGains  PidGains `yaml:"att_gains"` // Kp/Kd only; combined P-D law, no integral
	RateGains PidGains `yaml:"rate_gains"`

	Normal    ModeCeilings `yaml:"normal"`
	Sport     ModeCeilings `yaml:"sport"`
	Cinematic ModeCeilings `yaml:"cinematic"`

	// Input shaping.
	TiltGainDeg     float64 `yaml:"tilt_gain_deg"`     // deg of tilt per g of lateral accel demand
	InputSmoothing  float64 `yaml:"input_smoothing"`   // s, low-pass tau on horizontal velocity commands
	HardTiltLimitDeg float64 `yaml:"hard_tilt_limit_deg"`

	// Derived at finalize; not read from config.
	HoverThrottle float64 `yaml:"-"`
}

// Ceilings returns the active ceiling triple for a flight mode.
func (t *TuningParameters) Ceilings(mode FlightMode) ModeCeilings {
	switch mode {
	case ModeSport:
		return t.Sport
	case ModeCinematic:
		return t.Cinematic
	default:
		return t.Normal
	}
}

// HoverForce is the total thrust in N that exactly counters gravity.
func (t *TuningParameters) HoverForce() float64 { return t.Mass * gravity }

// DefaultTuning returns the stock small-quad tuning. Values target a
// 1 kg class airframe with an 18 cm arm.
func DefaultTuning() TuningParameters {
	return TuningParameters{
		Mass:           1.0,
		ThrustCoeff:    8.0,
		MotorTimeConst: 0.08,
		ArmLength:      0.18,
		YawTorqueCoeff: 0.016,

		Drag: DragCoeffs{X: 0.35, Y: 0.45, Z: 0.35},

		GroundEffectHeight: 1.0,
		GroundEffectBoost:  0.15,

		PosGains:  PidGains{Kp: 0.9, Ki: 0, Kd: 0.05, IntegralLimit: 0},
		VelGains:  PidGains{Kp: 1.8, Ki: 0.4, Kd: 0.05, IntegralLimit: 3.0},
		AttGains:  PidGains{Kp: 5.0, Kd: 0.1},
		RateGains: PidGains{Kp: 0.1, Ki: 0.05, Kd: 0.002, IntegralLimit: 0.5},

		Normal:    ModeCeilings{MaxTiltDeg: 20, MaxYawRateDeg: 90, MaxClimbRate: 3},
		Sport:     ModeCeilings{MaxTiltDeg: 35, MaxYawRateDeg: 180, MaxClimbRate: 6},
		Cinematic: ModeCeilings{MaxTiltDeg: 12, MaxYawRateDeg: 40, MaxClimbRate: 2},

		TiltGainDeg:      40,
		InputSmoothing:   0.25,
		HardTiltLimitDeg: 55,
	}
}

// Finalize migrates legacy values, validates, and derives the hover
// throttle from thrustCoeff*cmd^2*4 = mass*g. Call exactly once after the
// tuning is assembled and before handing it to any component.
func (t *TuningParameters) Finalize(log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if t.ThrustCoeff < legacyMinThrustCoeff {
		log.Warn("migrating stale thrust coefficient",
			zap.Float64("loaded", t.ThrustCoeff),
			zap.Float64("floor", legacyMinThrustCoeff))
		t.ThrustCoeff = legacyMinThrustCoeff
	}
	if t.Mass < legacyMinMass {
		log.Warn("migrating stale mass",
			zap.Float64("loaded", t.Mass),
			zap.Float64("floor", legacyMinMass))
		t.Mass = legacyMinMass
	}
	if t.MotorTimeConst <= 0 {
		return fmt.Errorf("motor time constant must be positive, got %g", t.MotorTimeConst)
	}
	if t.ArmLength <= 0 {
		return fmt.Errorf("arm length must be positive, got %g", t.ArmLength)
	}
	t.HoverThrottle = math.Sqrt(t.Mass * gravity / (4 * t.ThrustCoeff))
	if t.HoverThrottle >= 1 {
		return fmt.Errorf("airframe cannot hover: hover throttle %.3f at mass %.2f kg, thrust coeff %.2f",
			t.HoverThrottle, t.Mass, t.ThrustCoeff)
	}
	return nil
}

// SensorConfig controls the sensor simulator. Noise and latency are both
// off by default so closed-loop tests see the true state.
type SensorConfig struct {
	NoiseEnabled   bool    `yaml:"noise_enabled"`
	AttitudeStdDeg float64 `yaml:"attitude_std_deg"`
	GyroStd        float64 `yaml:"gyro_std"` // rad/s
	AccelStd       float64 `yaml:"accel_std"`
	PositionStd    float64 `yaml:"position_std"`
	VelocityStd    float64 `yaml:"velocity_std"`

	LatencyEnabled bool    `yaml:"latency_enabled"`
	ImuLatency     float64 `yaml:"imu_latency"` // s
	NavLatency     float64 `yaml:"nav_latency"` // s
	TickDuration   float64 `yaml:"tick_duration"` // s, sizes the delay lines

	RangeRays     int     `yaml:"range_rays"`
	RangeMaxDist  float64 `yaml:"range_max_dist"`
	Seed          int64   `yaml:"seed"`
}

func DefaultSensorConfig() SensorConfig {
	return SensorConfig{
		AttitudeStdDeg: 0.3,
		GyroStd:        0.02,
		AccelStd:       0.05,
		PositionStd:    0.02,
		VelocityStd:    0.03,
		ImuLatency:     0.02,
		NavLatency:     0.05,
		TickDuration:   0.002,
		RangeRays:      8,
		RangeMaxDist:   10,
		Seed:           1,
	}
}

// Config is the on-disk vehicle configuration.
type Config struct {
	Tuning  TuningParameters `yaml:"tuning"`
	Sensors SensorConfig     `yaml:"sensors"`
}

// LoadConfig reads a YAML config over the compiled-in defaults and
// finalizes the tuning. An empty path returns pure defaults.
func LoadConfig(path string, log *zap.Logger) (*Config, error) {
	cfg := &Config{
		Tuning:  DefaultTuning(),
		Sensors: DefaultSensorConfig(),
	}
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Tuning.Finalize(log); err != nil {
		return nil, fmt.Errorf("finalize tuning: %w", err)
	}
	return cfg, nil
}
