// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/watch_companion/internal/activity"
	"github.com/relabs-tech/watch_companion/internal/config"
	"github.com/relabs-tech/watch_companion/internal/imu"
	"github.com/relabs-tech/watch_companion/internal/sensors"
	"github.com/relabs-tech/watch_companion/internal/store"
)

const counterSaveInterval = 30 * time.Second

// mqttPublisher carries worker output: status as JSON, data log records in
// their binary form.
type mqttPublisher struct {
	client      mqtt.Client
	statusTopic string
	logTopic    string
}

func (p *mqttPublisher) PublishStatus(_ context.Context, s activity.Status) error {
	return publishJSON(p.client, p.statusTopic, true, s)
}

func (p *mqttPublisher) PublishRecord(_ context.Context, r activity.Record) error {
	b, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	return publish(p.client, p.logTopic, false, b)
}

func decodeStatus(b []byte) (activity.Status, error) {
	var s activity.Status
	if err := json.Unmarshal(b, &s); err != nil {
		return activity.Status{}, err
	}
	return s, nil
}

func openAccelSource(cfg *config.Config) (imu.Source, error) {
	switch cfg.AccelSource {
	case "mpu9250":
		dev, err := sensors.NewMPU9250(cfg.IMUSPIDevice, cfg.IMUCSPin)
		if err != nil {
			return nil, err
		}
		return dev, nil
	default:
		interval := time.Duration(cfg.AccelSampleInterval) * time.Millisecond
		log.Info("activity: using mock accelerometer")
		return sensors.NewMock(interval, 800, 2), nil
	}
}

// RunActivityWorker samples the accelerometer, feeds the recognizer in
// batches and publishes status and data log records until ctx ends.
func RunActivityWorker(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(ctx, storeOptions(cfg))
	if err != nil {
		return err
	}
	defer st.Close()

	counter, err := st.LoadCounter(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("activity: load counter: %w", err)
	}

	src, err := openAccelSource(cfg)
	if err != nil {
		return err
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDWorker)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	worker := activity.NewWorker(counter, activity.WorkerOptions{
		Sensitivity: cfg.PedometerSensitivity,
		ResetTime:   cfg.ResetTime,
		LogInterval: time.Duration(cfg.DataLogIntervalS) * time.Second,
	}, &mqttPublisher{client: client, statusTopic: cfg.TopicWorkerStatus, logTopic: cfg.TopicDataLog})

	err = subscribe(client, cfg.TopicWorkerControl, func(_ mqtt.Client, msg mqtt.Message) {
		c, err := activity.DecodeControl(msg.Payload())
		if err != nil {
			log.WithError(err).Warn("activity: bad control message")
			return
		}
		log.WithFields(log.Fields{"type": c.Type, "value": c.Value}).Debug("activity: control")
		if err := worker.HandleControl(ctx, c); err != nil {
			log.WithError(err).Warn("activity: control failed")
		}
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sampleLoop(gctx, src, time.Duration(cfg.AccelSampleInterval)*time.Millisecond, worker)
	})
	g.Go(func() error {
		ticker := time.NewTicker(counterSaveInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if err := st.SaveCounter(gctx, worker.Counter()); err != nil {
					log.WithError(err).Warn("activity: save counter")
				}
			}
		}
	})

	err = g.Wait()

	// ctx is done by now
	saveCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if serr := st.SaveCounter(saveCtx, worker.Counter()); serr != nil {
		log.WithError(serr).Warn("activity: save counter on shutdown")
	}
	log.Info("activity: worker stopped")
	return err
}

// sampleLoop reads one sample per interval and hands full batches to w.
func sampleLoop(ctx context.Context, src imu.Source, interval time.Duration, w *activity.Worker) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	batch := make([]imu.AccelSample, 0, activity.BatchSize)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		s, err := src.ReadAccel()
		if err != nil {
			log.WithError(err).Warn("activity: accelerometer read")
			continue
		}
		batch = append(batch, s)
		if len(batch) < activity.BatchSize {
			continue
		}

		if err := w.HandleSamples(ctx, batch); err != nil {
			log.WithError(err).Warn("activity: handle samples")
		}
		batch = batch[:0]
	}
}

func storeOptions(cfg *config.Config) store.Options {
	return store.Options{
		Kind:      cfg.Store,
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.RedisKeyPrefix,
	}
}
