package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kinemo/motionrec/internal/config"
	"github.com/kinemo/motionrec/internal/influx"
	"github.com/kinemo/motionrec/internal/logging"
	"github.com/kinemo/motionrec/internal/storage"
	"github.com/kinemo/motionrec/internal/storage/factory"
	"github.com/kinemo/motionrec/internal/worker"
)

// openBackend creates and initializes the configured storage backend.
func (a *app) openBackend() (storage.Backend, error) {
	storageCfg := config.GetStorageConfig()

	backend, err := factory.NewBackend(storageCfg, factory.Dependencies{
		DB:       config.GetDBConfig(),
		Logger:   a.logger,
		DBLogger: logging.NewZerolog(a.logFile, config.GetString("logLevel")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := backend.Init(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend, nil
}

// openPublisher connects the influx publisher when it is enabled. A nil
// publisher and nil error mean telemetry is off.
func (a *app) openPublisher(ctx context.Context) (*influx.Manager, error) {
	influxCfg := config.GetInfluxConfig()
	backupPath := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("%s_influx_%s.lp.gz", appName, a.start.Format("20060102_150405")))

	m := influx.NewManager(logging.NewZerolog(a.logFile, config.GetString("logLevel")), influxCfg, backupPath)
	if err := m.Connect(ctx); err != nil {
		if errors.Is(err, influx.ErrDisabled) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// newWorker wires the backend and the optional publisher into a worker
// manager. The returned function releases both.
func (a *app) newWorker(ctx context.Context) (*worker.Manager, func(), error) {
	backend, err := a.openBackend()
	if err != nil {
		return nil, nil, err
	}

	deps := worker.Dependencies{Backend: backend, Logger: a.logger}
	pub, err := a.openPublisher(ctx)
	if err != nil {
		a.logger.Warn("InfluxDB publisher unavailable", "error", err)
	}
	if pub != nil {
		deps.Publisher = pub
	}

	release := func() {
		if pub != nil {
			if err := pub.Close(); err != nil {
				a.logger.Warn("Failed to close influx publisher", "error", err)
			}
		}
		if err := backend.Close(); err != nil {
			a.logger.Warn("Failed to close storage backend", "error", err)
		}
	}
	return worker.NewManager(deps), release, nil
}
