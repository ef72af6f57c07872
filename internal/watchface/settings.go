// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package watchface

import (
	"fmt"
	"time"

	"github.com/relabs-tech/watch_companion/internal/bridge"
)

// Settings are the user options edited on the configuration page and
// persisted on the watch.
type Settings struct {
	ColorTheme           bool  `json:"color_theme"`
	ResetTime            int32 `json:"reset_time"`        // minutes since 00:00, e.g. 09:30 == 570
	SpeedThreshold       int32 `json:"speed_threshold"`   // centimetres per second
	BatteryThreshold     int32 `json:"battery_threshold"` // percent
	PedometerSensitivity int32 `json:"pedometer_sensitivity"`
}

// MinutesPerDay bounds ResetTime.
const MinutesPerDay = 24 * 60

// DefaultSettings matches a freshly installed watchface.
func DefaultSettings() Settings {
	return Settings{
		ColorTheme:           true,
		ResetTime:            0,
		SpeedThreshold:       0,
		BatteryThreshold:     0,
		PedometerSensitivity: 20,
	}
}

// Validate checks every field range.
func (s Settings) Validate() error {
	if s.ResetTime < 0 || s.ResetTime >= MinutesPerDay {
		return fmt.Errorf("watchface: reset time %d out of range [0,%d)", s.ResetTime, MinutesPerDay)
	}
	if s.SpeedThreshold < 0 {
		return fmt.Errorf("watchface: speed threshold %d is negative", s.SpeedThreshold)
	}
	if s.BatteryThreshold < 0 || s.BatteryThreshold > 100 {
		return fmt.Errorf("watchface: battery threshold %d out of range [0,100]", s.BatteryThreshold)
	}
	if s.PedometerSensitivity < 0 || s.PedometerSensitivity > 100 {
		return fmt.Errorf("watchface: pedometer sensitivity %d out of range [0,100]", s.PedometerSensitivity)
	}
	return nil
}

// Apply returns s with every option present in d overwritten. Keys that are
// not settings (speed, requestSpeed) are ignored. The result is validated.
func (s Settings) Apply(d bridge.Dict) (Settings, error) {
	out := s
	for k, v := range d {
		switch k {
		case bridge.KeyColorTheme:
			out.ColorTheme = v != 0
		case bridge.KeyResetTime:
			out.ResetTime = v
		case bridge.KeySpeedThreshold:
			out.SpeedThreshold = v
		case bridge.KeyBatteryThreshold:
			out.BatteryThreshold = v
		case bridge.KeyPedometerSensitivity:
			out.PedometerSensitivity = v
		}
	}
	if err := out.Validate(); err != nil {
		return s, err
	}
	return out, nil
}

// Dict encodes all options as an app message.
func (s Settings) Dict() bridge.Dict {
	theme := int32(0)
	if s.ColorTheme {
		theme = 1
	}
	return bridge.Dict{
		bridge.KeyColorTheme:           theme,
		bridge.KeyResetTime:            s.ResetTime,
		bridge.KeySpeedThreshold:       s.SpeedThreshold,
		bridge.KeyBatteryThreshold:     s.BatteryThreshold,
		bridge.KeyPedometerSensitivity: s.PedometerSensitivity,
	}
}

// IsSettings reports whether d carries the full option set, which is how
// the watch tells a configuration message from a speed reply.
func IsSettings(d bridge.Dict) bool {
	for _, k := range []string{
		bridge.KeyColorTheme,
		bridge.KeyResetTime,
		bridge.KeySpeedThreshold,
		bridge.KeyBatteryThreshold,
		bridge.KeyPedometerSensitivity,
	} {
		if !d.Has(k) {
			return false
		}
	}
	return true
}

// Driving reports whether a measured speed counts as driving.
func Driving(speedCentis, threshold int32) bool {
	return speedCentis >= threshold
}

// ShouldRequestSpeed reports whether the minute tick at t polls the phone
// for speed: every fifth minute, and only with a threshold configured.
func ShouldRequestSpeed(t time.Time, threshold int32) bool {
	return threshold != 0 && t.Minute()%5 == 0
}
