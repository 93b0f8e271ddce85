package main

import (
	"flag"
	"os"

	"go.uber.org/zap"

	sim "github.com/aeb56/DRONENAVIGATIONRL/internal/sim"
)

func main() {
	steps := flag.Int("steps", 5000, "Number of fixed updates to run")
	ups := flag.Int("ups", 500, "Fixed updates per second")
	configPath := flag.String("config", "", "YAML tuning/sensor config (defaults when empty)")
	climb := flag.Float64("climb", 2.0, "Target altitude in meters")
	forward := flag.Float64("forward", 1.5, "Forward speed command after reaching altitude (m/s)")
	flag.Parse()

	log, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := sim.LoadConfig(*configPath, log)
	if err != nil {
		log.Fatal("load config", zap.Error(err))
	}

	world := &sim.World{GroundHeight: 0}
	v := sim.NewVehicle(cfg, world, log)
	v.Body.Pos = sim.Vec3{Y: 0.05}
	v.Arm()

	dt := 1.0 / float64(maxInt(1, *ups))
	logEvery := maxInt(1, *ups) // once per simulated second

	for i := 0; i < *steps; i++ {
		var sp sim.Setpoint
		if v.Body.Pos.Y < *climb {
			sp = sim.Setpoint{VerticalSpeed: 1.0, Hold: true}
		} else {
			sp = sim.Setpoint{Forward: *forward}
		}
		v.SetSetpoint(sp)
		v.Step(dt)

		if i%logEvery == 0 {
			tele := v.Control.Telemetry()
			nav := v.Sensors.Nav()
			log.Info("tick",
				zap.Float64("t", float64(i)*dt),
				zap.Float64("alt", nav.Position.Y),
				zap.Float64("vx", nav.Velocity.X),
				zap.Float64("vz", nav.Velocity.Z),
				zap.Float64("thrust_n", v.Motors.RealizedThrust()),
				zap.Float64("pitch_sp_deg", tele.DesiredPitchDeg),
				zap.Bool("safety", tele.SafetyOverride),
			)
		}
	}

	final := v.Body.State()
	log.Info("run complete",
		zap.Int("steps", *steps),
		zap.Float64("alt", final.Position.Y),
		zap.Float64("speed", final.Velocity.Length()),
		zap.Float64("hover_throttle", v.Tuning.HoverThrottle),
	)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
