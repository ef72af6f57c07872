// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package gps

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	serial "github.com/jacobsa/go-serial/serial"
	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/watch_companion/internal/geo"
)

var (
	// ErrTimeout is returned when no acceptable fix arrives before the
	// request deadline.
	ErrTimeout = errors.New("gps: timed out waiting for a fix")
	// ErrNoFix is returned by sources that have run out of fixes.
	ErrNoFix = errors.New("gps: no fix available")
)

// Locator hands out the device position on request.
//
// maxAge bounds how old a cached fix may be; zero demands a fix obtained
// after the call started. The request deadline comes from ctx.
type Locator interface {
	CurrentFix(ctx context.Context, maxAge time.Duration) (geo.Fix, error)
}

// NMEALocator tracks the newest fix read from an NMEA stream.
type NMEALocator struct {
	r   io.Reader
	now func() time.Time

	mu         sync.Mutex
	latest     *geo.Fix
	receivedAt time.Time
	updated    chan struct{} // closed and replaced on every new fix
}

// NewNMEALocator returns a locator fed by r. Call Run to start reading.
func NewNMEALocator(r io.Reader) *NMEALocator {
	return &NMEALocator{
		r:       r,
		now:     time.Now,
		updated: make(chan struct{}),
	}
}

// Run reads sentences until ctx is cancelled or the stream fails. Cancellation
// returns nil; the stream ending while ctx is live returns io.ErrUnexpectedEOF
// so a supervising errgroup shuts down.
func (l *NMEALocator) Run(ctx context.Context) error {
	reader := bufio.NewReader(l.r)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		line, err := reader.ReadString('\n')
		if line != "" {
			l.consume(line)
		}
		if err != nil {
			// shutdown closes the port under the pending read
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				log.Error("gps: NMEA stream ended")
				return fmt.Errorf("gps: stream ended: %w", io.ErrUnexpectedEOF)
			}
			log.WithError(err).Error("gps: read error")
			return fmt.Errorf("gps: read: %w", err)
		}
	}
}

func (l *NMEALocator) consume(line string) {
	fix, ok, err := ParseSentence(line)
	if err != nil {
		// noisy receivers emit partial sentences
		log.WithError(err).Debug("gps: NMEA parse error")
		return
	}
	if !ok {
		return
	}

	l.mu.Lock()
	l.latest = &fix
	l.receivedAt = l.now()
	close(l.updated)
	l.updated = make(chan struct{})
	l.mu.Unlock()

	log.WithFields(log.Fields{"lat": fix.Latitude, "lon": fix.Longitude}).Debug("gps: fix")
}

// CurrentFix returns the newest fix if it satisfies maxAge, otherwise waits
// for the next one.
func (l *NMEALocator) CurrentFix(ctx context.Context, maxAge time.Duration) (geo.Fix, error) {
	requested := l.now()

	for {
		l.mu.Lock()
		latest, at, updated := l.latest, l.receivedAt, l.updated
		l.mu.Unlock()

		if latest != nil {
			fresh := !at.Before(requested)
			if fresh || (maxAge > 0 && requested.Sub(at) <= maxAge) {
				return *latest, nil
			}
		}

		select {
		case <-updated:
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return geo.Fix{}, ErrTimeout
			}
			return geo.Fix{}, ctx.Err()
		}
	}
}

// OpenSerial opens a GPS receiver's serial port, 8N1.
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	serialOpts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(serialOpts)
	if err != nil {
		return nil, fmt.Errorf("gps: open serial %s: %w", portName, err)
	}
	log.Infof("gps: serial port opened on %s at %d baud", portName, baudRate)
	return port, nil
}
