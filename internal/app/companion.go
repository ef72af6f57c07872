// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/bridge"
	"github.com/relabs-tech/watch_companion/internal/geo"
	"github.com/relabs-tech/watch_companion/internal/gps"
	"github.com/relabs-tech/watch_companion/internal/store"
	"github.com/relabs-tech/watch_companion/internal/watchface"
)

// CompanionState is the companion's latest view of the device, published
// to the web page and the display after every change.
type CompanionState struct {
	SpeedMetersPerSecond float64            `json:"speed_mps"`
	SpeedCentis          int32              `json:"speed_centis"`
	Driving              bool               `json:"driving"`
	Fix                  *geo.Fix           `json:"fix,omitempty"`
	Settings             watchface.Settings `json:"settings"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// CompanionOptions configure a Companion.
type CompanionOptions struct {
	ConfigPageURL      string
	GeolocationTimeout time.Duration
	GeolocationMaxAge  time.Duration
	// OnState receives every new state. Optional.
	OnState func(CompanionState)
	Now     func() time.Time
}

// Companion answers the watch's speed requests and relays configuration
// from the settings page. Events are handled one at a time in arrival order.
type Companion struct {
	bridge  bridge.Bridge
	locator gps.Locator
	store   store.Store
	opts    CompanionOptions

	mu       sync.Mutex
	previous *geo.Fix
	state    CompanionState

	sends sync.WaitGroup
}

// NewCompanion restores the saved settings and previous fix.
func NewCompanion(ctx context.Context, b bridge.Bridge, loc gps.Locator, st store.Store, opts CompanionOptions) (*Companion, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.GeolocationTimeout <= 0 {
		opts.GeolocationTimeout = 10 * time.Second
	}

	settings, err := store.LoadSettingsOrDefault(ctx, st)
	if err != nil {
		return nil, fmt.Errorf("companion: load settings: %w", err)
	}

	c := &Companion{
		bridge:  b,
		locator: loc,
		store:   st,
		opts:    opts,
		state:   CompanionState{Settings: settings},
	}

	prev, err := st.LoadPreviousFix(ctx)
	switch {
	case err == nil:
		c.previous = &prev
		log.WithFields(log.Fields{"lat": prev.Latitude, "lon": prev.Longitude}).Info("companion: restored previous fix")
	case errors.Is(err, store.ErrNotFound):
	default:
		return nil, fmt.Errorf("companion: load previous fix: %w", err)
	}

	return c, nil
}

// Run consumes bridge events until ctx ends, then waits for outstanding
// delivery results.
func (c *Companion) Run(ctx context.Context) error {
	log.Info("companion: waiting for events")
	for {
		select {
		case ev := <-c.bridge.Events():
			if err := c.Handle(ctx, ev); err != nil {
				log.WithError(err).WithField("event", ev.Type).Warn("companion: event failed")
			}
		case <-ctx.Done():
			c.Wait()
			log.Info("companion: stopped")
			return nil
		}
	}
}

// Handle processes one event.
func (c *Companion) Handle(ctx context.Context, ev bridge.Event) error {
	switch ev.Type {
	case bridge.EventReady:
		log.WithField("ready", ev.Ready).Info("companion: host ready")
		return nil
	case bridge.EventShowConfiguration:
		log.WithField("url", c.opts.ConfigPageURL).Info("companion: opening configuration page")
		return c.bridge.OpenURL(ctx, c.opts.ConfigPageURL)
	case bridge.EventWebviewClosed:
		return c.handleConfiguration(ctx, ev.Response)
	case bridge.EventAppMessage:
		log.WithFields(log.Fields{
			"transaction_id": ev.TransactionID,
			"keys":           ev.Payload.Keys(),
		}).Info("companion: received message")
		return c.handleSpeedRequest(ctx)
	default:
		return fmt.Errorf("companion: unknown event %q", ev.Type)
	}
}

func (c *Companion) handleConfiguration(ctx context.Context, response string) error {
	d, err := bridge.DecodeConfigResponse(response)
	if err != nil {
		return err
	}
	if len(d) == 0 {
		log.Info("companion: configuration closed without changes")
		return nil
	}

	c.mu.Lock()
	settings, err := c.state.Settings.Apply(d)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if err := c.store.SaveSettings(ctx, settings); err != nil {
		return fmt.Errorf("companion: save settings: %w", err)
	}

	c.update(func(s *CompanionState) { s.Settings = settings })
	log.WithField("keys", d.Keys()).Info("companion: configuration updated")

	c.deliver(ctx, "settings", settings.Dict())
	return nil
}

func (c *Companion) handleSpeedRequest(ctx context.Context) error {
	fixCtx, cancel := context.WithTimeout(ctx, c.opts.GeolocationTimeout)
	fix, err := c.locator.CurrentFix(fixCtx, c.opts.GeolocationMaxAge)
	cancel()
	if err != nil {
		return fmt.Errorf("companion: geolocation: %w", err)
	}

	c.mu.Lock()
	previous := c.previous
	speed, next := geo.Advance(previous, fix)
	c.previous = next
	c.mu.Unlock()

	if previous != nil {
		log.WithFields(log.Fields{
			"from":     fmt.Sprintf("(%.6f, %.6f)", previous.Latitude, previous.Longitude),
			"to":       fmt.Sprintf("(%.6f, %.6f)", fix.Latitude, fix.Longitude),
			"distance": geo.Distance(*previous, fix),
			"speed":    speed,
		}).Info("companion: speed estimated")
	}

	if err := c.store.SavePreviousFix(ctx, fix); err != nil {
		log.WithError(err).Warn("companion: save previous fix")
	}

	msg := bridge.SpeedMessage(speed)
	centis := msg[bridge.KeySpeed]
	c.update(func(s *CompanionState) {
		s.SpeedMetersPerSecond = speed
		s.SpeedCentis = centis
		s.Driving = s.Settings.SpeedThreshold != 0 && watchface.Driving(centis, s.Settings.SpeedThreshold)
		s.Fix = next
	})

	c.deliver(ctx, "speed", msg)
	return nil
}

// deliver sends d and logs the outcome once the watch answers.
func (c *Companion) deliver(ctx context.Context, what string, d bridge.Dict) {
	results := c.bridge.Send(ctx, d)

	c.sends.Add(1)
	go func() {
		defer c.sends.Done()
		r := <-results
		entry := log.WithFields(log.Fields{"message": what, "transaction_id": r.TransactionID})
		if r.OK() {
			entry.Info("companion: delivered")
			return
		}
		entry.WithField("reason", r.Reason).Warn("companion: delivery failed")
	}()
}

// Wait blocks until every pending send has resolved.
func (c *Companion) Wait() {
	c.sends.Wait()
}

// State returns the latest state.
func (c *Companion) State() CompanionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Companion) update(fn func(*CompanionState)) {
	c.mu.Lock()
	fn(&c.state)
	c.state.UpdatedAt = c.opts.Now()
	s := c.state
	c.mu.Unlock()

	if c.opts.OnState != nil {
		c.opts.OnState(s)
	}
}
