package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/hwctl/internal/config"
	"codeberg.org/mutker/hwctl/internal/cpu"
	"codeberg.org/mutker/hwctl/internal/driver"
	"codeberg.org/mutker/hwctl/internal/ec"
	"codeberg.org/mutker/hwctl/internal/errors"
	"codeberg.org/mutker/hwctl/internal/gpu"
	"codeberg.org/mutker/hwctl/internal/hardware"
	"codeberg.org/mutker/hwctl/internal/logger"
	"codeberg.org/mutker/hwctl/internal/memory"
	"codeberg.org/mutker/hwctl/internal/pid"
	"codeberg.org/mutker/hwctl/internal/registry"
	"codeberg.org/mutker/hwctl/internal/smm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.LogLevel, logger.IsService())
	logger.Debug().Msg("Config loaded")

	if err := run(cfg); err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.FatalWithCode(coded).Msg("hwctl failed")
		}
		logger.Fatal().Err(err).Msg("hwctl failed")
	}
}

// logFailure logs err with its error code when it carries one.
func logFailure(err error, msg string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.ErrorWithCode(coded).Msg(msg)
		return
	}
	logger.Error().Err(err).Msg(msg)
}

func run(cfg *config.Config) error {
	pidPath := pid.DefaultPath()
	if err := pid.Write(pidPath); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	store, err := registry.Open(registry.Config{
		Path:            cfg.Registry.Path,
		Enabled:         cfg.Registry.Enabled,
		BackupOnMigrate: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close driver registry")
		}
	}()

	api := driver.NewAPI()

	if cfg.Cleanup {
		return cleanupInstalls(ctx, api, cfg.Driver.IOCTLCode, store)
	}

	computer, err := buildComputer(ctx, cfg, api, store)
	if err != nil {
		return err
	}
	defer func() {
		if err := computer.Close(); err != nil {
			logFailure(err, "Failed to release hardware")
		}
		logger.Info().Msg("Exiting...")
	}()

	if cfg.Once {
		computer.Update()
		printInventory(os.Stdout, computer)
		return nil
	}

	return loop(ctx, cfg, computer)
}

func buildComputer(ctx context.Context, cfg *config.Config, api driver.API, store registry.Store) (*hardware.Computer, error) {
	computer := hardware.NewComputer(cpu.NewGroup(ctx))

	var memOpts []memory.GroupOption
	if cfg.Memory.DIMMReport {
		memOpts = append(memOpts, memory.WithDIMMReport(memory.ReadDIMMs))
	}
	computer.Add(memory.NewGroup(memOpts...))

	if cfg.GPU.Enabled {
		computer.Add(gpu.NewGroup(gpu.NewLibrary()))
	}

	if cfg.EC.Enabled {
		sources, err := ec.SourcesFromConfig(cfg.EC.Sources)
		if err != nil {
			return nil, errors.Join(err, computer.Close())
		}
		computer.Add(ec.NewGroup(sources, ec.DefaultFactory()))
	}

	if cfg.Driver.Enabled {
		group, err := smm.NewGroup(ctx, cfg.Driver, api, smm.WithLedger(store))
		if err != nil {
			logFailure(err, "SMM driver unavailable")
		}
		computer.Add(group)
	}

	logger.Info().Int("hardware", len(computer.Hardware())).Msg("Hardware inventory ready")

	return computer, nil
}

func loop(ctx context.Context, cfg *config.Config, computer *hardware.Computer) error {
	if cfg.Interval <= 0 {
		return errors.New().WithData(errors.ErrInvalidInterval, cfg.Interval)
	}

	interval := time.Duration(cfg.Interval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			computer.Update()
			logReadings(computer)
		}
	}
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// cleanupInstalls tears down every driver service a previous run recorded
// but did not remove.
func cleanupInstalls(ctx context.Context, api driver.API, ioctl uint32, store registry.Store) error {
	installs, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(installs) == 0 {
		logger.Info().Msg("No stale driver installs recorded")
		return nil
	}

	var errs []error
	for _, in := range installs {
		ch := driver.NewChannel(api, ioctl)
		if err := ch.Open(in.Service); err != nil {
			if !errors.HasCode(err, driver.ErrNotInstalled) {
				errs = append(errs, err)
				continue
			}
			logger.Debug().Str("service", in.Service).Msg("Recorded driver service is already gone")
		} else if err := ch.Teardown(); err != nil {
			errs = append(errs, err)
			continue
		}

		if err := store.Remove(ctx, in.Service); err != nil {
			errs = append(errs, err)
			continue
		}
		logger.Info().Str("service", in.Service).Msg("Removed stale driver install")
	}

	return errors.Join(errs...)
}
