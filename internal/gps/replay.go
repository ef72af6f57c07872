package gps

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/relabs-tech/watch_companion/internal/geo"
)

// ReplayLocator serves a recorded route one fix per request, for bench runs
// without a receiver. Recorded timestamps are kept as-is.
type ReplayLocator struct {
	mu    sync.Mutex
	fixes []geo.Fix
	next  int
}

// NewReplayLocator serves fixes in order.
func NewReplayLocator(fixes []geo.Fix) *ReplayLocator {
	return &ReplayLocator{fixes: append([]geo.Fix(nil), fixes...)}
}

// LoadReplayFile reads every valid RMC fix from an NMEA log.
func LoadReplayFile(path string) (*ReplayLocator, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gps: open replay file: %w", err)
	}
	defer f.Close()

	var fixes []geo.Fix
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fix, ok, err := ParseSentence(scanner.Text())
		if err != nil || !ok {
			continue
		}
		fixes = append(fixes, fix)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("gps: read replay file: %w", err)
	}
	if len(fixes) == 0 {
		return nil, fmt.Errorf("gps: replay file %s: %w", path, ErrNoFix)
	}
	return NewReplayLocator(fixes), nil
}

// CurrentFix returns the next recorded fix. maxAge is ignored.
func (r *ReplayLocator) CurrentFix(ctx context.Context, _ time.Duration) (geo.Fix, error) {
	if err := ctx.Err(); err != nil {
		return geo.Fix{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.next >= len(r.fixes) {
		return geo.Fix{}, ErrNoFix
	}
	fix := r.fixes[r.next]
	r.next++
	return fix, nil
}

// Remaining reports how many fixes are left.
func (r *ReplayLocator) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.fixes) - r.next
}
