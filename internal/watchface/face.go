package watchface

import (
	"time"

	"github.com/relabs-tech/watch_companion/internal/activity"
	"github.com/relabs-tech/watch_companion/internal/bridge"
)

// Face is the watch-side reaction to companion messages, used to emulate
// a watch on the bench.
type Face struct {
	Settings Settings
	Driving  bool
}

// NewFace starts from s.
func NewFace(s Settings) *Face {
	return &Face{Settings: s}
}

// Receive applies one companion message and returns the control messages
// forwarded to the activity worker. A full option set updates the settings;
// a speed reply updates the driving flag.
func (f *Face) Receive(d bridge.Dict) ([]activity.Control, error) {
	if IsSettings(d) {
		s, err := f.Settings.Apply(d)
		if err != nil {
			return nil, err
		}
		f.Settings = s
		return []activity.Control{
			{Type: activity.ControlSensitivity, Value: s.PedometerSensitivity},
			{Type: activity.ControlResetTime, Value: s.ResetTime},
		}, nil
	}

	speed, ok := d[bridge.KeySpeed]
	if !ok {
		return nil, nil
	}
	f.Driving = Driving(speed, f.Settings.SpeedThreshold)

	driving := int32(0)
	if f.Driving {
		driving = 1
	}
	return []activity.Control{{Type: activity.ControlDriving, Value: driving}}, nil
}

// Tick runs the minute tick at t. It reports whether to ask the companion
// for speed; the driving flag is cleared until the reply arrives.
func (f *Face) Tick(t time.Time) bool {
	if !ShouldRequestSpeed(t, f.Settings.SpeedThreshold) {
		return false
	}
	f.Driving = false
	return true
}

// SpeedRequest is the message the watch sends to ask for speed.
func SpeedRequest() bridge.Dict {
	return bridge.Dict{bridge.KeyRequestSpeed: 0}
}
