package activity

import (
	"math"

	"github.com/relabs-tech/watch_companion/internal/imu"
)

// LowPassFilter tracks the gravity vector of an accelerometer stream. Its
// smoothing constant drops to a third while the magnitude holds steady, so
// noise at rest is attenuated harder than real motion.
type LowPassFilter struct {
	constant         float64
	minStep          float64
	noiseAttenuation float64

	gravity imu.AccelSample
}

// NewLowPassFilter returns a filter for a 100 Hz rate and 100 Hz cutoff,
// which gives a constant of 0.5.
func NewLowPassFilter() *LowPassFilter {
	const (
		rate   = 100.0
		cutoff = 100.0
	)
	dt := 1.0 / rate
	rc := 1.0 / cutoff

	return &LowPassFilter{
		constant:         dt / (dt + rc),
		minStep:          0.02,
		noiseAttenuation: 3.0,
	}
}

// Update feeds one sample.
func (f *LowPassFilter) Update(s imu.AccelSample) {
	step := math.Abs(float64(Norm(f.gravity)) - float64(Norm(s)))
	d := clamp(step/f.minStep-1.0, 0, 1)
	alpha := (1.0-d)*f.constant/f.noiseAttenuation + d*f.constant

	f.gravity = imu.AccelSample{
		X: blend(s.X, f.gravity.X, alpha),
		Y: blend(s.Y, f.gravity.Y, alpha),
		Z: blend(s.Z, f.gravity.Z, alpha),
	}
}

// Gravity returns the current estimate.
func (f *LowPassFilter) Gravity() imu.AccelSample {
	return f.gravity
}

func blend(sample, prev int16, alpha float64) int16 {
	return int16(float64(sample)*alpha + float64(prev)*(1.0-alpha))
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v > hi:
		return hi
	case v < lo:
		return lo
	default:
		return v
	}
}

// ISqrt is the integer square root, rounded down.
func ISqrt(n uint32) uint32 {
	var root uint32
	for i := 15; i >= 0; i-- {
		try := root + 1<<uint(i)
		if n >= try<<uint(i) {
			n -= try << uint(i)
			root |= 2 << uint(i)
		}
	}
	return root >> 1
}

// Norm is the integer magnitude of s.
func Norm(s imu.AccelSample) uint32 {
	x, y, z := int64(s.X), int64(s.Y), int64(s.Z)
	return ISqrt(uint32(x*x + y*y + z*z))
}
