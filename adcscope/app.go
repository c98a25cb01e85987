package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/itohio/adcscope/pkg/acquire"
	"github.com/itohio/adcscope/pkg/adc"
	"github.com/itohio/adcscope/pkg/config"
	"github.com/itohio/adcscope/pkg/hub"
	"github.com/itohio/adcscope/pkg/metrics"
	"github.com/itohio/adcscope/pkg/server"
	"github.com/itohio/adcscope/pkg/store"
)

// run serves the dashboard until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	out, err := store.Open(cfg.Output.Dir, time.Now(), m, logger.Named("store"))
	if err != nil {
		return err
	}

	streams := hub.New(cfg.HTTP.ClientBuffer, m, logger.Named("hub"))
	settings := acquire.NewSettingsStore(acquire.SettingsFromConfig(cfg.Filter))
	manager := acquire.NewManager(deviceFactory(cfg, logger), settings, cfg.Filter, streams, m, logger.Named("acquire"))

	srv := server.New(server.Options{
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		Settings:        settings,
		Acquirer:        manager,
		Store:           out,
		Ports:           portLister(cfg.Mock.Enabled),
		Stream:          streams,
		Gatherer:        reg,
		SampleRate:      cfg.Filter.SampleRate,
		Logger:          logger.Named("http"),
	})

	if cfg.Serial.Port != "" {
		if err := manager.Select(cfg.Serial.Port); err != nil {
			logger.Warn("failed to start acquisition", zap.String("port", cfg.Serial.Port), zap.Error(err))
		}
	}

	err = srv.Start(ctx)

	// Stop producing before closing the consumers.
	err = multierr.Combine(
		err,
		manager.Close(),
		streams.Close(),
		out.Close(),
	)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("stopped")
	return nil
}

// deviceFactory opens the simulated device for the mock port when it is
// enabled and a serial port for anything else.
func deviceFactory(cfg *config.Config, logger *zap.Logger) acquire.DeviceFactory {
	return func(port string) adc.Device {
		if cfg.Mock.Enabled && port == adc.MockPortName {
			mockCfg := cfg.Mock
			return adc.NewMock(&mockCfg)
		}
		return adc.New(port, cfg.Serial, logger.Named("serial"))
	}
}

// portLister lists the host's serial ports, followed by the mock port when
// it is enabled.
func portLister(mock bool) server.PortLister {
	return func() ([]string, error) {
		names, err := adc.PortNames()
		if err != nil {
			return nil, err
		}
		if mock {
			names = append(names, adc.MockPortName)
		}
		return names, nil
	}
}
