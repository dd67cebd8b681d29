package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/daikin-climate/db"
	"github.com/thatsimonsguy/daikin-climate/internal/api"
	"github.com/thatsimonsguy/daikin-climate/internal/config"
	"github.com/thatsimonsguy/daikin-climate/internal/controller"
	"github.com/thatsimonsguy/daikin-climate/internal/datadog"
	"github.com/thatsimonsguy/daikin-climate/internal/env"
	"github.com/thatsimonsguy/daikin-climate/internal/logging"
	"github.com/thatsimonsguy/daikin-climate/internal/metrics"
	"github.com/thatsimonsguy/daikin-climate/internal/mqtt"
	"github.com/thatsimonsguy/daikin-climate/internal/notifications"
)

func main() {
	cfg := config.Load()
	env.Cfg = &cfg
	logging.Init(cfg.LogLevel, cfg.LogFile)

	log.Info().
		Str("config_file", cfg.ConfigFile).
		Int("devices", len(cfg.Devices)).
		Msg("Starting Daikin climate bridge")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("Failed to open device registry")
	}
	defer dbConn.Close()

	if err := db.SeedDevices(dbConn, cfg.Devices); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed device registry")
	}

	devices, err := controller.Connect(ctx, cfg.Devices, cfg.RequestTimeout())
	if err != nil {
		log.Fatal().Err(err).Msg("No units available")
	}
	for _, d := range devices {
		if err := db.UpdateDeviceName(dbConn, d.ID, d.Climate.Name(), time.Now()); err != nil {
			log.Warn().Err(err).Str("device", d.ID).Msg("Failed to record unit name")
		}
	}

	opts := controller.Options{
		PollInterval:     cfg.PollInterval(),
		PollTimeout:      cfg.PollTimeout(),
		UnavailableAfter: cfg.UnavailableAfterFailures,
	}
	// a nil *Ntfy must not end up inside the interface
	if n := notifications.Init(); n != nil {
		opts.Notifier = n
	}
	ctrl := controller.New(opts)
	for _, d := range devices {
		if err := ctrl.Add(d); err != nil {
			log.Fatal().Err(err).Msg("Failed to register unit")
		}
	}

	datadog.InitMetrics()
	ctrl.OnChange(datadog.ReportDevice)
	ctrl.OnAvailability(datadog.ReportAvailability)

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		metrics.NewDaikinCollector(ctrl),
	)

	if cfg.MQTT.Broker != "" {
		bridge, err := mqtt.Connect(ctx, cfg.MQTT, ctrl)
		if err != nil {
			log.Error().Err(err).Str("broker", cfg.MQTT.Broker).Msg("MQTT disabled")
		} else {
			defer bridge.Close()
		}
	} else {
		log.Info().Msg("MQTT broker not configured - MQTT disabled")
	}

	server := api.NewServer(dbConn, ctrl, registry)
	go func() {
		if err := server.Start(ctx, cfg.APIPort); err != nil {
			log.Error().Err(err).Msg("REST API server stopped")
			stop()
		}
	}()

	// first poll right away so state is published before the first tick
	ctrl.PollOnce(ctx)
	ctrl.Run(ctx)

	log.Info().Msg("Shutting down")
}
