// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import "time"

// Fix is a single geolocation sample as delivered by the phone's location
// provider or a GPS receiver.
type Fix struct {
	Latitude        float64 `json:"lat"`          // decimal degrees, -90..90
	Longitude       float64 `json:"lon"`          // decimal degrees, -180..180
	TimestampMillis int64   `json:"timestamp_ms"` // Unix epoch, milliseconds
}

// NewFix builds a Fix stamped with t.
func NewFix(lat, lon float64, t time.Time) Fix {
	return Fix{
		Latitude:        lat,
		Longitude:       lon,
		TimestampMillis: t.UnixMilli(),
	}
}

// Time returns the fix timestamp as a time.Time in UTC.
func (f Fix) Time() time.Time {
	return time.UnixMilli(f.TimestampMillis).UTC()
}

// Valid reports whether the coordinates are within their ranges.
func (f Fix) Valid() bool {
	return f.Latitude >= -90 && f.Latitude <= 90 &&
		f.Longitude >= -180 && f.Longitude <= 180
}
