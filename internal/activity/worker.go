package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/imu"
)

// ControlType identifies a message from the watchface to the worker.
type ControlType uint16

const (
	ControlStatusRequest ControlType = 100
	ControlSensitivity   ControlType = 101
	ControlResetTime     ControlType = 102
	ControlDriving       ControlType = 103
)

// Control is a watchface to worker message carrying one value.
type Control struct {
	Type  ControlType `json:"type"`
	Value int32       `json:"value"`
}

// Status is what the worker reports to the watchface.
type Status struct {
	Counter Counter `json:"counter"`
	Type    Type    `json:"type"`
	Driving bool    `json:"driving"`
}

// Publisher carries worker output to the watchface and the data log.
type Publisher interface {
	PublishStatus(ctx context.Context, s Status) error
	PublishRecord(ctx context.Context, r Record) error
}

// WorkerOptions seed a Worker.
type WorkerOptions struct {
	Sensitivity int32
	ResetTime   int32 // minutes since local midnight
	Driving     bool
	LogInterval time.Duration
	Now         func() time.Time
}

// Worker runs activity recognition in the background and keeps the daily
// totals.
type Worker struct {
	pub         Publisher
	logInterval uint32
	now         func() time.Time

	mu          sync.Mutex
	rec         *Recognizer
	counter     Counter
	lastLogged  Counter
	driving     bool
	sensitivity int32
	resetTime   int32
}

// NewWorker resumes from a persisted counter. Totals are cleared when the
// daily reset passed while the worker was down.
func NewWorker(counter Counter, opts WorkerOptions, pub Publisher) *Worker {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	interval := opts.LogInterval
	if interval <= 0 {
		interval = 60 * time.Second
	}

	w := &Worker{
		pub:         pub,
		logInterval: uint32(interval / time.Second),
		now:         now,
		rec:         NewRecognizer(),
		driving:     opts.Driving,
		sensitivity: opts.Sensitivity,
		resetTime:   opts.ResetTime,
	}

	t := now()
	if counter.Timestamp == 0 {
		counter = NewCounter(t)
	}
	if ResetDue(time.Unix(int64(counter.Timestamp), 0), t, w.resetTime) {
		log.WithField("reset_time", w.resetTime).Info("activity: daily reset passed while stopped")
		counter.Reset(t)
	}
	counter.Timestamp = unixSeconds(t)
	w.counter = counter
	w.lastLogged = counter
	return w
}

// HandleSamples feeds one batch. After each classification the data log is
// flushed when an interval has passed and a status update is published.
func (w *Worker) HandleSamples(ctx context.Context, samples []imu.AccelSample) error {
	w.mu.Lock()
	now := w.now()
	cond := Conditions{Driving: w.driving, Sensitivity: w.sensitivity}
	result := w.rec.Analyze(now, &w.counter, cond, samples)
	if result != Classified {
		w.mu.Unlock()
		return nil
	}

	var record *Record
	if w.counter.Timestamp-w.lastLogged.Timestamp >= w.logInterval {
		r := w.counter.Since(w.lastLogged)
		record = &r

		if ResetDue(time.Unix(int64(w.lastLogged.Timestamp), 0), now, w.resetTime) {
			log.Info("activity: daily reset")
			w.counter.Reset(now)
		}
		w.lastLogged = w.counter
	}
	status := w.statusLocked()
	w.mu.Unlock()

	log.WithFields(log.Fields{
		"type":  status.Type,
		"steps": status.Counter.Steps,
	}).Debug("activity: classified")

	if record != nil {
		if err := w.pub.PublishRecord(ctx, *record); err != nil {
			return fmt.Errorf("activity: publish data log: %w", err)
		}
	}
	if err := w.pub.PublishStatus(ctx, status); err != nil {
		return fmt.Errorf("activity: publish status: %w", err)
	}
	return nil
}

// HandleControl applies a watchface message. Unknown types are ignored.
func (w *Worker) HandleControl(ctx context.Context, c Control) error {
	w.mu.Lock()
	switch c.Type {
	case ControlStatusRequest:
		status := w.statusLocked()
		w.mu.Unlock()
		return w.pub.PublishStatus(ctx, status)
	case ControlSensitivity:
		w.sensitivity = c.Value
	case ControlResetTime:
		w.resetTime = c.Value
	case ControlDriving:
		w.driving = c.Value != 0
	default:
		log.WithField("type", c.Type).Warn("activity: unknown control message")
	}
	w.mu.Unlock()
	return nil
}

// DecodeControl parses a JSON control message.
func DecodeControl(b []byte) (Control, error) {
	var c Control
	if err := json.Unmarshal(b, &c); err != nil {
		return Control{}, fmt.Errorf("activity: decode control: %w", err)
	}
	return c, nil
}

// Counter returns a copy of the running totals.
func (w *Worker) Counter() Counter {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counter
}

// Status returns the current status snapshot.
func (w *Worker) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statusLocked()
}

func (w *Worker) statusLocked() Status {
	return Status{Counter: w.counter, Type: w.rec.Type(), Driving: w.driving}
}
