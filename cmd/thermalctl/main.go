package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/thermalctl/internal/bus"
	"codeberg.org/mutker/thermalctl/internal/config"
	"codeberg.org/mutker/thermalctl/internal/errors"
	"codeberg.org/mutker/thermalctl/internal/logger"
	"codeberg.org/mutker/thermalctl/internal/pid"
	"codeberg.org/mutker/thermalctl/internal/reaper"
	"codeberg.org/mutker/thermalctl/internal/sensor"
	"codeberg.org/mutker/thermalctl/internal/telemetry"
	"codeberg.org/mutker/thermalctl/internal/thermal"
)

const (
	topicThermalState bus.Topic = "thermal.state"
	topicOverheat     bus.Topic = "thermal.overheat"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	if !cfg.Debug && !cfg.Verbose {
		if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
			logger.SetLogLevel(level)
		}
	}
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		var appErr errors.Error
		if errors.As(err, &appErr) {
			logger.FatalWithCode(appErr).Msg("Failed to write PID file")
		} else {
			logger.Fatal().Err(err).Msg("Failed to write PID file")
		}
	}
	defer pid.Remove()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := bus.New()
	defer broker.Stop()

	collector, err := telemetry.NewService(telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		DBPath:       cfg.Telemetry.Database,
		TraceEnabled: cfg.TraceLog.Enabled,
		TracePath:    cfg.TraceLog.Path,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize reading history")
	}
	defer collector.Close()

	cleaner := reaper.New(reaper.Config{
		Helper: cfg.Reaper.Helper,
		Dirs:   cfg.Reaper.Dirs,
		User:   cfg.Reaper.User,
	})
	defer cleaner.Shutdown()

	opts := []thermal.Option{
		thermal.WithNotifier(&busNotifier{broker: broker}),
		thermal.WithRecorder(&historyRecorder{collector: collector}),
	}
	if cfg.Tuning.Enabled {
		opts = append(opts, thermal.WithTuner(thermal.NewFileTuner(cfg.Tuning.Dir)))
	}
	manager := thermal.NewManager(opts...)

	closeSensors, err := registerSensors(manager)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to register sensors")
	}
	defer closeSensors()

	go handleSignals(cancel, cleaner)

	if err := manager.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
	}
	logger.Info().Str("status", manager.Status().String()).Msg("Exiting...")
}

func registerSensors(manager *thermal.Manager) (func(), error) {
	var closers []func() error

	closeAll := func() {
		for _, closeSensor := range closers {
			if err := closeSensor(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close sensor")
			}
		}
	}

	for i := range cfg.Sensors {
		sc := &cfg.Sensors[i]

		var source thermal.Source
		switch sc.Driver {
		case config.DriverHwmon:
			source = sensor.NewHwmon(sc.Name, sc.Path)
		case config.DriverNVML:
			gpu, err := sensor.NewNVML(sc.Name, 0)
			if err != nil {
				closeAll()
				return nil, err
			}
			closers = append(closers, gpu.Close)
			source = gpu
		}

		if _, err := manager.Register(thermal.SensorConfig{
			Name:   sc.Name,
			Levels: toLevels(sc.Levels),
			Source: source,
		}); err != nil {
			closeAll()
			return nil, err
		}
		logger.Info().
			Str("sensor", sc.Name).
			Str("driver", sc.Driver).
			Msg("Registered thermal sensor")
	}

	return closeAll, nil
}

func toLevels(levels []config.Level) thermal.Levels {
	var out thermal.Levels
	for i := range out {
		out[i] = thermal.Level{
			Min:     thermal.Temperature(levels[i].Min),
			Max:     thermal.Temperature(levels[i].Max),
			MinWait: time.Duration(levels[i].MinTime) * time.Second,
			MaxWait: time.Duration(levels[i].MaxTime) * time.Second,
		}
	}

	return out
}

func handleSignals(cancel context.CancelFunc, cleaner *reaper.Reaper) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	for sig := range sigs {
		if sig == syscall.SIGUSR1 {
			if err := cleaner.Trigger(); err != nil {
				logger.Warn().Err(err).Msg("Failed to start reaper")
			}
			continue
		}

		logger.Info().Msg("Received termination signal.")
		cancel()
		return
	}
}

// busNotifier publishes aggregate indications on the broadcast bus.
type busNotifier struct {
	broker *bus.Broker
}

func (n *busNotifier) ThermalStatus(status thermal.Status) {
	if err := n.broker.Publish(topicThermalState, bus.Message{Value: status.String()}); err != nil {
		logger.Debug().Err(err).Msg("No subscribers for thermal state")
	}
}

func (n *busNotifier) Overheat(overheated bool) {
	if err := n.broker.Publish(topicOverheat, bus.Message{Value: overheated}); err != nil {
		logger.Debug().Err(err).Msg("No subscribers for overheat state")
	}
}

// historyRecorder adapts the reading-history collector to the thermal
// recorder port.
type historyRecorder struct {
	collector telemetry.Collector
}

func (r *historyRecorder) Record(ctx context.Context, reading *thermal.Reading) error {
	return r.collector.Record(ctx, &telemetry.Reading{
		TakenAt:     reading.TakenAt,
		Sensor:      reading.Sensor,
		Temperature: int(reading.Temperature),
		Status:      reading.Status.String(),
	})
}
