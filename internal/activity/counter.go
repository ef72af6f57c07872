package activity

import "time"

// Counter accumulates seconds spent per activity type and steps since the
// last daily reset. Timestamp is the Unix second of the last update.
type Counter struct {
	SleepTime uint32 `json:"sleep_time"`
	SitTime   uint32 `json:"sit_time"`
	WalkTime  uint32 `json:"walk_time"`
	JogTime   uint32 `json:"jog_time"`
	Steps     uint32 `json:"steps"`
	Timestamp uint32 `json:"timestamp"`
}

// NewCounter returns an empty counter stamped now.
func NewCounter(now time.Time) Counter {
	return Counter{Timestamp: unixSeconds(now)}
}

// Reset clears every total and restamps the counter.
func (c *Counter) Reset(now time.Time) {
	*c = NewCounter(now)
}

func (c *Counter) add(t Type, seconds uint32) {
	switch t {
	case Sleep:
		c.SleepTime += seconds
	case Sit:
		c.SitTime += seconds
	case Walk:
		c.WalkTime += seconds
	case Jog:
		c.JogTime += seconds
	}
}

// Since returns the totals accrued after prev, stamped with c's timestamp.
func (c Counter) Since(prev Counter) Record {
	return Record{
		SleepTime: c.SleepTime - prev.SleepTime,
		SitTime:   c.SitTime - prev.SitTime,
		WalkTime:  c.WalkTime - prev.WalkTime,
		JogTime:   c.JogTime - prev.JogTime,
		Steps:     c.Steps - prev.Steps,
		Timestamp: c.Timestamp,
	}
}

// ResetDue reports whether a daily reset instant, resetMinutes after local
// midnight in now's location, fell within [last, now].
func ResetDue(last, now time.Time, resetMinutes int32) bool {
	y, m, d := now.Date()
	at := time.Date(y, m, d, 0, 0, 0, 0, now.Location()).
		Add(time.Duration(resetMinutes) * time.Minute)
	if at.After(now) {
		at = at.AddDate(0, 0, -1)
	}
	return !at.Before(last)
}

func unixSeconds(t time.Time) uint32 {
	return uint32(t.Unix())
}
