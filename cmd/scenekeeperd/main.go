package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"

	"scenekeeper/internal/config"
	"scenekeeper/internal/daemon"
)

const version = "0.1.0-dev"

func main() {
	logFile, err := setupLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to setup logging: %v\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	log.WithField("version", version).Info("scenekeeperd starting")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("configuration validation failed")
	}
	log.WithField("frequency", cfg.Daemon.ScanFrequency).Info("configuration loaded")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ticker := createTicker(cfg.Daemon.ScanFrequency)
	defer ticker.Stop()

	// Initial run after a startup delay to avoid boot load.
	startup := time.AfterFunc(1*time.Minute, func() {
		runOnce(cfg)
	})
	defer startup.Stop()

	for {
		select {
		case sig := <-sigChan:
			switch sig {
			case syscall.SIGHUP:
				log.Info("received SIGHUP, reloading configuration")
				newCfg, err := config.Load()
				if err != nil {
					log.WithError(err).Error("failed to reload config")
					continue
				}
				if err := newCfg.Validate(); err != nil {
					log.WithError(err).Error("new configuration invalid")
					continue
				}
				cfg = newCfg
				ticker.Stop()
				ticker = createTicker(cfg.Daemon.ScanFrequency)
				log.WithField("frequency", cfg.Daemon.ScanFrequency).Info("configuration reloaded")

			case syscall.SIGINT, syscall.SIGTERM:
				log.WithField("signal", sig.String()).Info("shutting down")
				return
			}

		case <-ticker.C:
			runOnce(cfg)
		}
	}
}

func setupLogging() (*os.File, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	logDir := filepath.Join(home, ".local/share/scenekeeper")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, err
	}

	logPath := filepath.Join(logDir, "daemon.log")
	logFile, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}

	log.SetHandler(json.New(logFile))
	return logFile, nil
}

func createTicker(frequency string) *time.Ticker {
	var duration time.Duration

	switch frequency {
	case "daily":
		duration = 24 * time.Hour
	case "weekly":
		duration = 7 * 24 * time.Hour
	case "biweekly":
		duration = 14 * 24 * time.Hour
	default:
		log.WithField("frequency", frequency).Warn("unknown scan frequency, defaulting to weekly")
		duration = 7 * 24 * time.Hour
	}

	return time.NewTicker(duration)
}

func runOnce(cfg *config.Config) {
	start := time.Now()
	log.Info("scheduled run starting")

	d := daemon.New(cfg)
	reportPath, err := d.RunFull(context.Background(), false)
	if err != nil {
		log.WithError(err).Error("run failed")
		return
	}

	log.WithField("report", reportPath).
		WithField("elapsed", time.Since(start).Round(time.Second).String()).
		Info("run complete")
}
