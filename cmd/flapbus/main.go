// cmd/flapbus/main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/exp/slog"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/tamzrod/flapbus/internal/bus"
	"github.com/tamzrod/flapbus/internal/clock"
	"github.com/tamzrod/flapbus/internal/config"
	"github.com/tamzrod/flapbus/internal/engine"
	"github.com/tamzrod/flapbus/internal/metrics"
	"github.com/tamzrod/flapbus/internal/writer"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: flapbus <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}
	config.Normalize(cfg)

	settings, err := config.NewSettings(cfg)
	if err != nil {
		log.Fatalf("settings load failed: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.Log.Level),
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Hardware
	// --------------------

	if _, err := host.Init(); err != nil {
		log.Fatalf("host init failed: %v", err)
	}

	proto := bus.Protocol{AnswerSize: cfg.Bus.AnswerSize}
	speed := physic.Frequency(cfg.Bus.SpeedKHz) * physic.KiloHertz

	transport, err := bus.NewTransport(proto, bus.OpenI2C(cfg.Bus.Device, speed), logger)
	if err != nil {
		log.Fatalf("bus open failed (device=%q): %v", cfg.Bus.Device, err)
	}
	defer transport.Close()

	clk := clock.NewMonotonic()
	hw := engine.Hardware{Bus: transport, Protocol: proto}

	if cfg.Bus.RecoveryEnabled() {
		lines, err := bus.ResolveLines(transport, cfg.Bus.SDAPin, cfg.Bus.SCLPin)
		switch {
		case err != nil && cfg.Bus.SDAPin != "":
			log.Fatalf("bus lines failed: %v", err)
		case err != nil:
			logger.Warn("bus recovery disabled", "err", err)
		default:
			rec, err := bus.NewRecovery(bus.RecoveryConfig{
				Lines: lines,
				Bus:   transport,
				Clock: clk,
				Log:   logger,
			})
			if err != nil {
				log.Fatalf("bus recovery failed: %v", err)
			}
			hw.Recovery = rec
		}
	}

	// --------------------
	// Diagnostics export (optional)
	// --------------------

	statusWriter, closeStatus, err := writer.BuildStatusWriter(cfg.Diagnostics)
	if err != nil {
		log.Fatalf("diagnostics endpoint failed (endpoint=%s): %v", cfg.Diagnostics.Endpoint, err)
	}
	defer closeStatus()

	m := metrics.New()

	// --------------------
	// Engine + driver
	// --------------------

	_, runner, err := engine.Build(cfg, settings, hw, clk, statusWriter, m, logger)
	if err != nil {
		log.Fatalf("engine build failed: %v", err)
	}

	if cfg.Metrics.Listen != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           m.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", "err", err)
			}
		}()
		defer srv.Close()
	}

	logger.Info("flapbus started", "config", cfgPath, "units", settings.NumUnits())

	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("runner stopped", "err", err)
	}

	if err := settings.Save(); err != nil {
		logger.Error("settings save failed", "err", err)
	}
	logger.Info("flapbus stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
