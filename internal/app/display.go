package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/config"
	"github.com/relabs-tech/watch_companion/internal/display"
)

// displaySnapshot maps the hub view onto what the panel shows at now.
func displaySnapshot(s Snapshot, now time.Time) display.Snapshot {
	out := display.Snapshot{Time: now}
	if s.HaveCompanion && s.Companion.Fix != nil {
		out.HaveSpeed = true
		out.Speed = s.Companion.SpeedMetersPerSecond
		out.Driving = s.Companion.Driving
	}
	if s.HaveWorker {
		out.HaveActivity = true
		out.Activity = s.Worker.Type
		out.Steps = s.Worker.Counter.Steps
		out.Driving = out.Driving || s.Worker.Driving
	}
	return out
}

// RunDisplay mirrors the watchface on an SSD1306 panel until ctx ends.
func RunDisplay(ctx context.Context, cfg *config.Config) error {
	panel, err := display.OpenOLED()
	if err != nil {
		return err
	}
	defer panel.Close()

	if err := panel.Show(display.Splash()); err != nil {
		log.WithError(err).Warn("display: splash")
	}

	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDDisplay)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	hub := NewHub()
	if err := feedHub(client, hub, cfg.TopicCompanionState, cfg.TopicWorkerStatus); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Duration(cfg.DisplayUpdateInterval) * time.Millisecond)
	defer ticker.Stop()

	log.Info("display: starting update loop")
	for {
		select {
		case <-ctx.Done():
			log.Info("display: stopped")
			return nil
		case now := <-ticker.C:
			frame := display.Render(displaySnapshot(hub.Snapshot(), now))
			if err := panel.Show(frame); err != nil {
				log.WithError(err).Warn("display: update")
			}
		}
	}
}
