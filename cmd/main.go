// Command fundingtracker shows funding rates and arbitrage opportunities
// read from a funding tracker backend.
//
// Usage:
//
//	fundingtracker --config config.yaml
//	fundingtracker -api-url http://localhost:8080 -addr :8000
//	fundingtracker -once
//	fundingtracker -setup
//
// Environment variables (also read from .env):
//
//	FUNDINGTRACKER_API_URL overrides api_url from the config file
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/vadiminshakov/fundingtracker/config"
	"github.com/vadiminshakov/fundingtracker/internal"
	"github.com/vadiminshakov/fundingtracker/internal/setup"
)

func main() {
	conf, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if conf.Setup {
		if err := setup.RunTUI(setup.DefaultFilename); err != nil {
			log.Fatal(err)
		}
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	tracker, err := internal.NewTracker(conf, logger)
	if err != nil {
		logger.Fatal("failed to create tracker", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Once {
		if err := tracker.RunOnce(ctx, os.Stdout); err != nil {
			logger.Error("refresh failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	logger.Info("starting funding tracker",
		zap.String("api_url", conf.APIURL),
		zap.Duration("refresh_interval", conf.RefreshInterval),
		zap.String("dashboard_addr", conf.DashboardAddr))

	if err := tracker.Run(ctx); err != nil {
		logger.Fatal("tracker stopped with error", zap.Error(err))
	}
}
