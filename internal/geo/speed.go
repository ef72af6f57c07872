// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package geo

import "math"

// EarthRadius is the mean Earth radius in meters used by Distance.
const EarthRadius = 6371000.0

// DegreesToRadians converts an angle in degrees to radians.
func DegreesToRadians(d float64) float64 {
	return d * math.Pi / 180.0
}

// Distance returns the great-circle distance in meters between a and b
// using the haversine formula:
//
//	a = sin²(Δlat/2) + cos(lat1)·cos(lat2)·sin²(Δlon/2)
//	c = 2·atan2(√a, √(1−a))
//	d = R·c
//
// All trigonometric terms take radians, including the cosine terms.
func Distance(a, b Fix) float64 {
	lat1 := DegreesToRadians(a.Latitude)
	lat2 := DegreesToRadians(b.Latitude)
	dLat := DegreesToRadians(b.Latitude - a.Latitude)
	dLon := DegreesToRadians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon

	// rounding can push h marginally outside [0, 1] for antipodal points
	h = math.Min(math.Max(h, 0), 1)

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadius * c
}

// EstimateSpeed returns the speed in meters per second implied by moving
// from previous to current. It returns 0 when there is no previous fix or
// when no time has elapsed between the two fixes.
func EstimateSpeed(previous *Fix, current Fix) float64 {
	if previous == nil {
		return 0
	}

	elapsed := current.TimestampMillis - previous.TimestampMillis
	// timestamps are non-decreasing per device; a step backwards is
	// treated like a zero interval
	if elapsed <= 0 {
		return 0
	}

	speed := Distance(*previous, current) / float64(elapsed) * 1000
	if math.IsNaN(speed) || math.IsInf(speed, 0) {
		return 0
	}
	return speed
}

// Advance estimates the speed from previous to current and returns current
// as the fix to pass in on the next call.
func Advance(previous *Fix, current Fix) (float64, *Fix) {
	speed := EstimateSpeed(previous, current)
	next := current
	return speed, &next
}
