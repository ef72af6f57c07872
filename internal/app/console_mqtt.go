package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/activity"
	"github.com/relabs-tech/watch_companion/internal/bridge"
	"github.com/relabs-tech/watch_companion/internal/config"
	"github.com/relabs-tech/watch_companion/internal/watchface"
)

// formatTraffic renders one message for the console.
func formatTraffic(cfg *config.Config, topic string, payload []byte) string {
	switch topic {
	case cfg.TopicWatchInbox, cfg.TopicWatchOutbox:
		tag := "[->PH]"
		if topic == cfg.TopicWatchOutbox {
			tag = "[->WA]"
		}
		id, d, err := bridge.DecodeMessage(payload)
		if err != nil {
			return fmt.Sprintf("%s invalid: %v", tag, err)
		}
		parts := ""
		for _, k := range d.Keys() {
			parts += fmt.Sprintf(" %s=%d", k, d[k])
		}
		return fmt.Sprintf("%s tx=%d%s", tag, id, parts)

	case cfg.TopicDataLog:
		r, err := activity.UnmarshalRecord(payload)
		if err != nil {
			return fmt.Sprintf("[LOG ] invalid: %v", err)
		}
		return fmt.Sprintf("[LOG ] sleep=%ds sit=%ds walk=%ds jog=%ds steps=%d at=%s",
			r.SleepTime, r.SitTime, r.WalkTime, r.JogTime, r.Steps,
			time.Unix(int64(r.Timestamp), 0).UTC().Format(time.RFC3339))

	case cfg.TopicWorkerStatus:
		s, err := decodeStatus(payload)
		if err != nil {
			return fmt.Sprintf("[ACT ] invalid: %v", err)
		}
		return fmt.Sprintf("[ACT ] now=%s steps=%d driving=%t", s.Type, s.Counter.Steps, s.Driving)

	case cfg.TopicCompanionState:
		var s CompanionState
		if err := json.Unmarshal(payload, &s); err != nil {
			return fmt.Sprintf("[SPD ] invalid: %v", err)
		}
		return fmt.Sprintf("[SPD ] speed=%.2fm/s (%d) driving=%t", s.SpeedMetersPerSecond, s.SpeedCentis, s.Driving)

	default:
		return fmt.Sprintf("[%s] %s", topic, payload)
	}
}

// watchEmulator stands in for the watch on the bench: it acks the
// companion's messages, polls for speed on the minute tick and forwards
// controls to the activity worker.
type watchEmulator struct {
	cfg     *config.Config
	publish func(topic string, payload []byte) error

	mu     sync.Mutex
	face   *watchface.Face
	nextID uint32
}

func newWatchEmulator(cfg *config.Config, publish func(string, []byte) error) *watchEmulator {
	s := watchface.DefaultSettings()
	s.PedometerSensitivity = cfg.PedometerSensitivity
	s.ResetTime = cfg.ResetTime
	return &watchEmulator{cfg: cfg, publish: publish, face: watchface.NewFace(s)}
}

// start asks the worker for its status, as the watchface does on launch.
func (e *watchEmulator) start() error {
	return e.sendControls([]activity.Control{{Type: activity.ControlStatusRequest}})
}

func (e *watchEmulator) handleOutbox(payload []byte) error {
	id, d, err := bridge.DecodeMessage(payload)
	if err != nil {
		return err
	}

	e.mu.Lock()
	controls, recvErr := e.face.Receive(d)
	e.mu.Unlock()

	ok, reason := true, ""
	if recvErr != nil {
		ok, reason = false, recvErr.Error()
	}
	ack, err := bridge.EncodeAck(id, ok, reason)
	if err != nil {
		return err
	}
	if err := e.publish(e.cfg.TopicWatchAck, ack); err != nil {
		return err
	}
	if recvErr != nil {
		return recvErr
	}
	return e.sendControls(controls)
}

func (e *watchEmulator) tick(now time.Time) error {
	e.mu.Lock()
	request := e.face.Tick(now)
	if request {
		e.nextID++
	}
	id := e.nextID
	e.mu.Unlock()

	if !request {
		return nil
	}
	body, err := bridge.EncodeMessage(id, watchface.SpeedRequest())
	if err != nil {
		return err
	}
	return e.publish(e.cfg.TopicWatchInbox, body)
}

func (e *watchEmulator) sendControls(controls []activity.Control) error {
	for _, c := range controls {
		body, err := json.Marshal(c)
		if err != nil {
			return err
		}
		if err := e.publish(e.cfg.TopicWorkerControl, body); err != nil {
			return err
		}
	}
	return nil
}

// RunConsoleMQTT prints bridge, worker and companion traffic. With emulate
// set it also plays the watch side of the bridge.
func RunConsoleMQTT(ctx context.Context, cfg *config.Config, emulate bool) error {
	return runConsole(ctx, cfg, emulate, os.Stdout)
}

func runConsole(ctx context.Context, cfg *config.Config, emulate bool, out io.Writer) error {
	client, err := connectMQTT(cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	var emu *watchEmulator
	if emulate {
		emu = newWatchEmulator(cfg, func(topic string, payload []byte) error {
			return publish(client, topic, false, payload)
		})
	}

	topics := []string{
		cfg.TopicWatchInbox,
		cfg.TopicWatchOutbox,
		cfg.TopicWorkerStatus,
		cfg.TopicDataLog,
		cfg.TopicCompanionState,
	}
	for _, topic := range topics {
		err := subscribe(client, topic, func(_ mqtt.Client, msg mqtt.Message) {
			fmt.Fprintln(out, formatTraffic(cfg, msg.Topic(), msg.Payload()))
			if emu != nil && msg.Topic() == cfg.TopicWatchOutbox {
				if err := emu.handleOutbox(msg.Payload()); err != nil {
					log.WithError(err).Warn("console: emulated watch rejected message")
				}
			}
		})
		if err != nil {
			return err
		}
	}

	if emu == nil {
		<-ctx.Done()
		log.Info("console: shutting down")
		return nil
	}

	log.Info("console: emulating the watch")
	if err := emu.start(); err != nil {
		log.WithError(err).Warn("console: status request")
	}

	// the watch ticks on the minute
	for {
		next := time.Now().Truncate(time.Minute).Add(time.Minute)
		select {
		case <-ctx.Done():
			log.Info("console: shutting down")
			return nil
		case <-time.After(time.Until(next)):
			if err := emu.tick(next); err != nil {
				log.WithError(err).Warn("console: speed request")
			}
		}
	}
}
