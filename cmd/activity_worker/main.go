// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/app"
	"github.com/relabs-tech/watch_companion/internal/config"
	"github.com/relabs-tech/watch_companion/internal/logging"
)

func main() {
	configPath := flag.String("config", "./watch_config.txt", "path to configuration file")
	flag.Parse()

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	closer, err := logging.Configure(logging.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFilePath,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})
	if err != nil {
		log.Fatalf("failed to configure logging: %v", err)
	}
	defer closer.Close()

	log.Info("starting activity worker (accelerometer -> MQTT)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunActivityWorker(ctx, cfg); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
