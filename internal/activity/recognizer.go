package activity

import (
	"time"

	"github.com/relabs-tech/watch_companion/internal/imu"
)

const (
	// SampleRate is the accelerometer rate the classifier was trained at.
	SampleRate = 10
	// WindowSeconds is the span of one classification window.
	WindowSeconds = 8
	// WindowSize is the number of samples per classification.
	WindowSize = WindowSeconds * SampleRate
	// BatchSize is how many samples the sampler hands over at once.
	BatchSize = SampleRate
	// MaxWalkingSpeed is in steps per second. Faster "walking" is a car
	// or a bus.
	MaxWalkingSpeed = 2
)

// Analysis is the outcome of feeding a batch to the recognizer.
type Analysis int

const (
	NoSamples Analysis = iota
	Collecting
	Classified
)

// Conditions are the externally controlled inputs of a classification.
type Conditions struct {
	Driving     bool
	Sensitivity int32 // 0..100, step filter for walking
}

// Recognizer classifies a sliding window of samples and updates a Counter.
// Windows overlap by half.
type Recognizer struct {
	filter *LowPassFilter
	window []imu.AccelSample
	last   Type
}

// NewRecognizer returns a recognizer with an empty window.
func NewRecognizer() *Recognizer {
	return &Recognizer{
		filter: NewLowPassFilter(),
		window: make([]imu.AccelSample, 0, WindowSize+BatchSize),
	}
}

// Type is the most recent classification.
func (r *Recognizer) Type() Type {
	return r.last
}

// Buffered is the number of samples waiting for the next window.
func (r *Recognizer) Buffered() int {
	return len(r.window)
}

// Analyze appends samples and classifies once a full window is buffered.
// On Classified the elapsed time since c.Timestamp is credited to the
// recognized type and detected steps are added.
func (r *Recognizer) Analyze(now time.Time, c *Counter, cond Conditions, samples []imu.AccelSample) Analysis {
	if len(samples) == 0 {
		return NoSamples
	}
	r.window = append(r.window, samples...)
	if len(r.window) < WindowSize {
		return Collecting
	}

	f, vertical := r.extract(r.window[:WindowSize])

	t := Classify(f)
	if t > Sit && cond.Driving {
		t = Sit
	}

	ts := unixSeconds(now)
	var elapsed uint32
	if ts > c.Timestamp {
		elapsed = ts - c.Timestamp
	}
	c.add(t, elapsed)
	c.Timestamp = ts

	if t > Sit {
		ratio := 0.0
		// jogging is counted unfiltered
		if t == Walk {
			ratio = float64(cond.Sensitivity) / 100.0
		}
		steps := countSteps(vertical, f.MeanV, ratio)

		if t == Walk && steps > elapsed*MaxWalkingSpeed {
			t = Sit
			c.SitTime += elapsed
			c.WalkTime -= elapsed
			steps = 0
		}
		c.Steps += steps
	}
	r.last = t

	rest := r.window[WindowSize/2:]
	r.window = append(r.window[:0], rest...)
	return Classified
}

// extract runs the window through the gravity filter and returns the
// window features and the per-sample vertical component.
func (r *Recognizer) extract(window []imu.AccelSample) (Feature, []float64) {
	var f Feature
	vertical := make([]float64, len(window))

	for i, s := range window {
		r.filter.Update(s)
		g := r.filter.Gravity()

		lx := float64(s.X) - float64(g.X)
		ly := float64(s.Y) - float64(g.Y)
		lz := float64(s.Z) - float64(g.Z)

		var v float64
		if gn := Norm(g); gn != 0 {
			v = (lx*float64(g.X) + ly*float64(g.Y) + lz*float64(g.Z)) / float64(gn)
		}
		hsq := lx*lx + ly*ly + lz*lz - v*v
		if hsq < 0 {
			hsq = 0
		}
		h := float64(ISqrt(uint32(hsq)))

		f.MeanV += v
		f.MeanH += h
		f.DeviationV += v * v
		f.DeviationH += h * h
		vertical[i] = v
	}

	n := float64(len(window) - 1)
	f.MeanV /= n
	f.MeanH /= n
	f.DeviationV = f.DeviationV/n - f.MeanV*f.MeanV
	f.DeviationH = f.DeviationH/n - f.MeanH*f.MeanH
	return f, vertical
}

// countSteps counts swings of the vertical component across bands around
// the mean. ratio 0 puts both bands on the mean; 1 pushes them out to the
// window extremes. Four crossings make a step.
func countSteps(vertical []float64, mean, ratio float64) uint32 {
	maxV, minV := -32767.0, 32767.0
	for _, v := range vertical {
		if v > maxV {
			maxV = v
		}
		if v < minV {
			minV = v
		}
	}
	upper := mean + (maxV-mean)*ratio
	lower := mean + (minV-mean)*ratio

	var crossings uint32
	direction := 0
	for _, v := range vertical {
		switch {
		case v > upper:
			if direction == -1 {
				crossings++
			}
			direction = 1
		case v < lower:
			if direction == 1 {
				crossings++
			}
			direction = -1
		}
	}
	return crossings / 4
}
