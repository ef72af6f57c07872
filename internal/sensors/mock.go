// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"math"
	"time"

	"github.com/relabs-tech/watch_companion/internal/imu"
)

// Mock generates a wrist-like accelerometer signal: gravity on -Z plus a
// periodic swing. It advances a fixed step per read so output does not
// depend on the wall clock.
type Mock struct {
	step      time.Duration
	amplitude float64 // milli-g
	stepHz    float64
	elapsed   time.Duration
}

// NewMock returns a source sampled every step. amplitude 0 models a wrist
// at rest.
func NewMock(step time.Duration, amplitude, stepHz float64) *Mock {
	return &Mock{step: step, amplitude: amplitude, stepHz: stepHz}
}

// ReadAccel never fails.
func (m *Mock) ReadAccel() (imu.AccelSample, error) {
	t := m.elapsed.Seconds()
	m.elapsed += m.step

	swing := m.amplitude * math.Sin(2*math.Pi*m.stepHz*t)
	sway := 0.3 * m.amplitude * math.Cos(2*math.Pi*m.stepHz*t)

	return imu.AccelSample{
		X: int16(sway),
		Y: 40,
		Z: int16(-1000 + swing),
	}, nil
}
