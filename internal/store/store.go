// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/watch_companion/internal/activity"
	"github.com/relabs-tech/watch_companion/internal/geo"
	"github.com/relabs-tech/watch_companion/internal/watchface"
)

// ErrNotFound is returned when nothing has been saved under a key yet.
var ErrNotFound = errors.New("store: not found")

// Store persists companion and worker state across restarts.
type Store interface {
	LoadSettings(ctx context.Context) (watchface.Settings, error)
	SaveSettings(ctx context.Context, s watchface.Settings) error

	LoadCounter(ctx context.Context) (activity.Counter, error)
	SaveCounter(ctx context.Context, c activity.Counter) error

	LoadPreviousFix(ctx context.Context) (geo.Fix, error)
	SavePreviousFix(ctx context.Context, f geo.Fix) error

	// AppendRecord adds a data log record; Records returns the newest n,
	// oldest first.
	AppendRecord(ctx context.Context, r activity.Record) error
	Records(ctx context.Context, n int) ([]activity.Record, error)

	Close() error
}

// Options select and configure a backend.
type Options struct {
	Kind      string // "memory" or "redis"
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Open returns the configured backend.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Kind {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		return DialRedis(ctx, opts)
	default:
		return nil, fmt.Errorf("store: unknown kind %q", opts.Kind)
	}
}

// LoadSettingsOrDefault falls back to the factory settings when none were
// saved.
func LoadSettingsOrDefault(ctx context.Context, s Store) (watchface.Settings, error) {
	settings, err := s.LoadSettings(ctx)
	if errors.Is(err, ErrNotFound) {
		return watchface.DefaultSettings(), nil
	}
	return settings, err
}
