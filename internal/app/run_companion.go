// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"io"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/watch_companion/internal/activity"
	"github.com/relabs-tech/watch_companion/internal/bridge"
	"github.com/relabs-tech/watch_companion/internal/config"
	"github.com/relabs-tech/watch_companion/internal/gps"
	"github.com/relabs-tech/watch_companion/internal/store"
)

func bridgeTopics(cfg *config.Config) bridge.Topics {
	return bridge.Topics{
		Inbox:        cfg.TopicWatchInbox,
		Outbox:       cfg.TopicWatchOutbox,
		Ack:          cfg.TopicWatchAck,
		HostEvents:   cfg.TopicHostEvents,
		HostCommands: cfg.TopicHostCommands,
	}
}

// RunCompanion connects the bridge, the GPS source and the store, and
// serves the watch until ctx ends.
func RunCompanion(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return err
	}
	defer st.Close()

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDCompanion)
	if err != nil {
		return err
	}

	b, err := bridge.NewMQTT(client, bridge.Options{
		Topics:     bridgeTopics(cfg),
		AckTimeout: cfg.BridgeAckTimeout(),
	})
	if err != nil {
		client.Disconnect(250)
		return err
	}
	defer b.Close()

	var (
		locator gps.Locator
		nmea    *gps.NMEALocator
		port    io.Closer
	)
	switch cfg.GPSSource {
	case "replay":
		r, err := gps.LoadReplayFile(cfg.GPSReplayFile)
		if err != nil {
			return err
		}
		log.WithField("fixes", r.Remaining()).Infof("companion: replaying %s", cfg.GPSReplayFile)
		locator = r
	default:
		p, err := gps.OpenSerial(cfg.GPSSerialPort, cfg.GPSBaudRate)
		if err != nil {
			return err
		}
		port = p
		nmea = gps.NewNMEALocator(p)
		locator = nmea
	}
	if port != nil {
		defer closeQuietly(port)
	}

	companion, err := NewCompanion(ctx, b, locator, st, CompanionOptions{
		ConfigPageURL:      cfg.ConfigPageURL,
		GeolocationTimeout: cfg.GeolocationTimeout(),
		GeolocationMaxAge:  cfg.GeolocationMaxAge(),
		OnState: func(s CompanionState) {
			if err := publishJSON(client, cfg.TopicCompanionState, true, s); err != nil {
				log.WithError(err).Warn("companion: publish state")
			}
		},
	})
	if err != nil {
		return err
	}

	if err := subscribe(client, cfg.TopicDataLog, storeDataLog(ctx, st)); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if nmea != nil {
		g.Go(func() error { return nmea.Run(gctx) })
		// closing the port unblocks the pending read
		g.Go(func() error {
			<-gctx.Done()
			return closeQuietly(port)
		})
	}
	g.Go(func() error { return companion.Run(gctx) })

	if err := g.Wait(); err != nil {
		return fmt.Errorf("companion: %w", err)
	}
	return nil
}

// storeDataLog appends every data log record published by the worker to st.
func storeDataLog(ctx context.Context, st store.Store) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		rec, err := activity.UnmarshalRecord(msg.Payload())
		if err != nil {
			log.WithError(err).Warn("bad data log record")
			return
		}
		if err := st.AppendRecord(ctx, rec); err != nil {
			log.WithError(err).Warn("store data log record")
			return
		}
		log.WithFields(log.Fields{"steps": rec.Steps, "timestamp": rec.Timestamp}).Debug("data log record")
	}
}

func closeQuietly(c io.Closer) error {
	if err := c.Close(); err != nil {
		log.WithError(err).Debug("close")
	}
	return nil
}
