package store

import (
	"context"
	"sync"

	"github.com/relabs-tech/watch_companion/internal/activity"
	"github.com/relabs-tech/watch_companion/internal/geo"
	"github.com/relabs-tech/watch_companion/internal/watchface"
)

// Memory keeps state in process. Nothing survives a restart.
type Memory struct {
	mu       sync.RWMutex
	settings *watchface.Settings
	counter  *activity.Counter
	fix      *geo.Fix
	records  []activity.Record
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) LoadSettings(context.Context) (watchface.Settings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return watchface.Settings{}, ErrNotFound
	}
	return *m.settings, nil
}

func (m *Memory) SaveSettings(_ context.Context, s watchface.Settings) error {
	m.mu.Lock()
	m.settings = &s
	m.mu.Unlock()
	return nil
}

func (m *Memory) LoadCounter(context.Context) (activity.Counter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.counter == nil {
		return activity.Counter{}, ErrNotFound
	}
	return *m.counter, nil
}

func (m *Memory) SaveCounter(_ context.Context, c activity.Counter) error {
	m.mu.Lock()
	m.counter = &c
	m.mu.Unlock()
	return nil
}

func (m *Memory) LoadPreviousFix(context.Context) (geo.Fix, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.fix == nil {
		return geo.Fix{}, ErrNotFound
	}
	return *m.fix, nil
}

func (m *Memory) SavePreviousFix(_ context.Context, f geo.Fix) error {
	m.mu.Lock()
	m.fix = &f
	m.mu.Unlock()
	return nil
}

func (m *Memory) AppendRecord(_ context.Context, r activity.Record) error {
	m.mu.Lock()
	m.records = append(m.records, r)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Records(_ context.Context, n int) ([]activity.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n <= 0 || n > len(m.records) {
		n = len(m.records)
	}
	return append([]activity.Record(nil), m.records[len(m.records)-n:]...), nil
}

func (m *Memory) Close() error { return nil }
