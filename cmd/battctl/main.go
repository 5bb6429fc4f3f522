package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"codeberg.org/mutker/battctl/internal/config"
	"codeberg.org/mutker/battctl/internal/engine"
	"codeberg.org/mutker/battctl/internal/logger"
	"codeberg.org/mutker/battctl/internal/pid"
	"codeberg.org/mutker/battctl/internal/power"
	"codeberg.org/mutker/battctl/internal/telemetry"
)

var (
	cfg       *config.Config
	platform  power.Platform
	phoneSrc  power.Source
	kbSrc     power.Source
	actuator  power.Actuator
	ctl       *engine.Engine
	collector telemetry.Collector
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		logger.SetLogLevel(levelFromString(cfg.LogLevel))
	}
	logger.Debug().Msg("Config loaded")

	platform, err = power.ByName(cfg.Platform)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to detect platform")
	}
	logger.Info().Str("platform", platform.Name).Msg("Platform detected")

	phoneSrc = power.NewSysfsSource(platform, power.Phone)
	kbSrc = power.NewSysfsSource(platform, power.Keyboard)
	actuator = power.NewSysfsActuator(platform)

	ctl, err = engine.New(engineConfig(), platform, engine.DefaultVoltageEstimator())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize decision engine")
	}

	collector, err = telemetry.NewCollector(telemetryConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := loop(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	cleanup()
}

func engineConfig() engine.Config {
	return engine.Config{
		CriticalCapacity: cfg.CriticalCapacity,
		BalanceMargin:    cfg.BalanceMargin,
		Hysteresis:       cfg.Hysteresis,
		StepCooldown:     cfg.StepCooldown,
		TrendWindow:      cfg.TrendWindow,
		LightLoad:        cfg.LightLoad,
	}
}

func telemetryConfig() telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Enabled = cfg.Telemetry
	if cfg.TelemetryDB != "" {
		tc.DBPath = cfg.TelemetryDB
	}

	return tc
}

func loop(ctx context.Context) error {
	interval := time.Duration(cfg.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if cfg.Monitor {
		logger.Info().Msg("Monitor mode activated. Logging battery status...")
	}

	st := seedState(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			st = runCycle(ctx, st)
		}
	}
}

// seedState adopts whatever limit is already in effect, so a restart never
// yanks the hardware around.
func seedState(ctx context.Context) engine.State {
	sample, err := phoneSrc.Read(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("Could not read initial limit, assuming default")
		return ctl.InitialState(0)
	}

	return ctl.InitialState(sample.Limit)
}

func runCycle(ctx context.Context, st engine.State) engine.State {
	phone, err := phoneSrc.Read(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Phone telemetry unavailable this cycle")
	}
	keyboard, err := kbSrc.Read(ctx)
	if err != nil {
		logger.Debug().Err(err).Msg("Keyboard telemetry unavailable this cycle")
	}

	action, target, next := ctl.Decide(phone, keyboard, st)

	if action != engine.Pass && !cfg.Monitor {
		applied, err := actuator.Apply(ctx, target)
		if err != nil {
			// The decision stands; the next cycle retries from the
			// same requested limit.
			logger.Error().Err(err).Int("target_ma", target).Msg("failed to apply current limit")
		} else {
			next.LastLimit = applied
		}
	}

	// The boost converter stops responding if it stays offline too long.
	if !keyboard.Empty() && !cfg.Monitor {
		if err := actuator.EnsureBoostOnline(ctx); err != nil {
			logger.Debug().Err(err).Msg("Boost converter keep-alive failed")
		}
	}

	logCycle(phone, keyboard, action, target, next)
	recordCycle(ctx, phone, keyboard, action, target, next)

	return next
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func cleanup() {
	if !cfg.Monitor {
		// Leave the hardware at the limit that is safe unattended.
		if _, err := actuator.Apply(context.Background(), platform.DefaultLimit()); err != nil {
			logger.Error().Err(err).Msg("failed to reset current limit")
		}
	}
	if err := collector.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close telemetry")
	}
	if err := pid.Remove(); err != nil {
		logger.Error().Err(err).Msg("failed to remove PID file")
	}
	logger.Info().Msg("Exiting...")
}

func logCycle(phone, keyboard power.Sample, action engine.Action, target int, st engine.State) {
	if cfg.Debug {
		logger.Debug().
			Int("phone_voltage_mv", phone.Voltage).
			Int("phone_current_ma", phone.Current).
			Str("phone_status", phone.Status.String()).
			Str("phone_capacity", capacityString(phone)).
			Int("keyboard_voltage_mv", keyboard.Voltage).
			Int("keyboard_current_ma", keyboard.Current).
			Str("keyboard_status", keyboard.Status.String()).
			Str("keyboard_capacity", capacityString(keyboard)).
			Str("direction", st.PhoneDirection.Guess.String()).
			Str("action", action.String()).
			Int("target_ma", target).
			Int("limit_ma", st.LastLimit).
			Int("cycle", st.Cycle).
			Msg("")
	} else if cfg.Verbose || cfg.Monitor {
		logger.Info().
			Int("phone_voltage_mv", phone.Voltage).
			Str("phone_capacity", capacityString(phone)).
			Str("phone_status", phone.Status.String()).
			Int("keyboard_voltage_mv", keyboard.Voltage).
			Str("keyboard_capacity", capacityString(keyboard)).
			Str("keyboard_status", keyboard.Status.String()).
			Str("action", action.String()).
			Int("limit_ma", st.LastLimit).
			Msg("")
	}
}

func recordCycle(ctx context.Context, phone, keyboard power.Sample, action engine.Action, target int, st engine.State) {
	snapshot := &telemetry.Snapshot{
		Timestamp: time.Now(),
		Phone:     batteryMetrics(phone),
		Keyboard:  batteryMetrics(keyboard),
		Control: telemetry.ControlMetrics{
			Action:    action.String(),
			Limit:     st.LastLimit,
			Target:    target,
			Direction: st.PhoneDirection.Guess.String(),
		},
	}

	if err := collector.Record(ctx, snapshot); err != nil {
		logger.Debug().Err(err).Msg("Failed to record telemetry snapshot")
	}
}

func batteryMetrics(s power.Sample) telemetry.BatteryMetrics {
	current := 0
	if s.HasCurrent() {
		current = s.Current
	}

	return telemetry.BatteryMetrics{
		Voltage:  s.Voltage,
		Current:  current,
		Capacity: s.Capacity,
		Status:   s.Status.String(),
	}
}

func capacityString(s power.Sample) string {
	if !s.HasCapacity() {
		return "n/a"
	}

	return strconv.Itoa(s.Capacity) + "%"
}

func levelFromString(level string) logger.LogLevel {
	switch config.LogLevel(level) {
	case config.LogLevelDebug:
		return logger.DebugLevel
	case config.LogLevelInfo:
		return logger.InfoLevel
	case config.LogLevelError:
		return logger.ErrorLevel
	default:
		return logger.WarnLevel
	}
}
