// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bridge

import (
	"fmt"
	"math"
	"sort"
)

// App message keys shared with the watch firmware.
const (
	KeyColorTheme           = "colorTheme"
	KeyResetTime            = "resetTime"
	KeySpeedThreshold       = "speedThreshold"
	KeyRequestSpeed         = "requestSpeed"
	KeySpeed                = "speed"
	KeyBatteryThreshold     = "batteryThreshold"
	KeyPedometerSensitivity = "pedometerSensitivity"
)

var appKeys = map[string]uint32{
	KeyColorTheme:           0x0,
	KeyResetTime:            0x1,
	KeySpeedThreshold:       0x2,
	KeyRequestSpeed:         0x3,
	KeySpeed:                0x4,
	KeyBatteryThreshold:     0x5,
	KeyPedometerSensitivity: 0x6,
}

var appKeyNames = func() map[uint32]string {
	m := make(map[uint32]string, len(appKeys))
	for name, key := range appKeys {
		m[key] = name
	}
	return m
}()

// Dict is a flat app message dictionary keyed by option name.
type Dict map[string]int32

// AppKey returns the numeric key the firmware uses for name.
func AppKey(name string) (uint32, bool) {
	k, ok := appKeys[name]
	return k, ok
}

// Keyed converts the dictionary to numeric app keys.
func (d Dict) Keyed() (map[uint32]int32, error) {
	out := make(map[uint32]int32, len(d))
	for name, v := range d {
		k, ok := appKeys[name]
		if !ok {
			return nil, fmt.Errorf("unknown app message key %q", name)
		}
		out[k] = v
	}
	return out, nil
}

// FromKeyed converts numeric app keys back to a Dict.
func FromKeyed(m map[uint32]int32) (Dict, error) {
	d := make(Dict, len(m))
	for k, v := range m {
		name, ok := appKeyNames[k]
		if !ok {
			return nil, fmt.Errorf("unknown app message key %d", k)
		}
		d[name] = v
	}
	return d, nil
}

// Has reports whether name is present.
func (d Dict) Has(name string) bool {
	_, ok := d[name]
	return ok
}

// Keys returns the option names in sorted order, for stable logging.
func (d Dict) Keys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SpeedCentis scales a speed in m/s to the hundredths the watch expects
// (1044 means 10.44 m/s), rounding half away from zero.
func SpeedCentis(speed float64) int32 {
	if math.IsNaN(speed) || speed <= 0 {
		return 0
	}
	v := math.Round(speed * 100)
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(v)
}

// SpeedMessage builds the dictionary sent in reply to a speed request.
func SpeedMessage(speed float64) Dict {
	return Dict{KeySpeed: SpeedCentis(speed)}
}
