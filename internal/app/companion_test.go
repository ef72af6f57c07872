package app

import (
	"context"
	"errors"
	"io"
	"net/url"
	"sync"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/watch_companion/internal/bridge"
	"github.com/relabs-tech/watch_companion/internal/config"
	"github.com/relabs-tech/watch_companion/internal/geo"
	"github.com/relabs-tech/watch_companion/internal/gps"
	"github.com/relabs-tech/watch_companion/internal/store"
	"github.com/relabs-tech/watch_companion/internal/watchface"
)

func init() {
	log.SetOutput(io.Discard)
}

type fakeBridge struct {
	events chan bridge.Event
	result bridge.Result

	mu     sync.Mutex
	sent   []bridge.Dict
	opened []string
}

func newFakeBridge() *fakeBridge {
	return &fakeBridge{
		events: make(chan bridge.Event, 8),
		result: bridge.Result{Status: bridge.Delivered, TransactionID: 1},
	}
}

func (b *fakeBridge) Events() <-chan bridge.Event { return b.events }

func (b *fakeBridge) Send(_ context.Context, d bridge.Dict) <-chan bridge.Result {
	b.mu.Lock()
	b.sent = append(b.sent, d)
	b.mu.Unlock()

	out := make(chan bridge.Result, 1)
	out <- b.result
	return out
}

func (b *fakeBridge) OpenURL(_ context.Context, u string) error {
	b.mu.Lock()
	b.opened = append(b.opened, u)
	b.mu.Unlock()
	return nil
}

func (b *fakeBridge) Close() error { return nil }

func (b *fakeBridge) messages() []bridge.Dict {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bridge.Dict(nil), b.sent...)
}

type fakeLocator struct {
	fixes []geo.Fix
	err   error
}

func (l *fakeLocator) CurrentFix(context.Context, time.Duration) (geo.Fix, error) {
	if l.err != nil {
		return geo.Fix{}, l.err
	}
	if len(l.fixes) == 0 {
		return geo.Fix{}, gps.ErrNoFix
	}
	f := l.fixes[0]
	l.fixes = l.fixes[1:]
	return f, nil
}

func newTestCompanion(t *testing.T, b bridge.Bridge, loc gps.Locator, st store.Store, onState func(CompanionState)) *Companion {
	t.Helper()
	c, err := NewCompanion(context.Background(), b, loc, st, CompanionOptions{
		ConfigPageURL:      "http://on11.mobi/configure.html",
		GeolocationTimeout: time.Second,
		OnState:            onState,
		Now:                func() time.Time { return time.Date(2026, 3, 17, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return c
}

func TestCompanionShowConfiguration(t *testing.T) {
	b := newFakeBridge()
	c := newTestCompanion(t, b, &fakeLocator{}, store.NewMemory(), nil)

	require.NoError(t, c.Handle(context.Background(), bridge.Event{Type: bridge.EventShowConfiguration}))
	assert.Equal(t, []string{"http://on11.mobi/configure.html"}, b.opened)
}

func TestCompanionSpeedRequests(t *testing.T) {
	b := newFakeBridge()
	loc := &fakeLocator{fixes: []geo.Fix{
		{Latitude: 0, Longitude: 0, TimestampMillis: 0},
		{Latitude: 0, Longitude: 0.01, TimestampMillis: 1000},
	}}
	st := store.NewMemory()

	var states []CompanionState
	c := newTestCompanion(t, b, loc, st, func(s CompanionState) { states = append(states, s) })

	req := bridge.Event{Type: bridge.EventAppMessage, Payload: watchface.SpeedRequest()}
	require.NoError(t, c.Handle(context.Background(), req))
	require.NoError(t, c.Handle(context.Background(), req))
	c.Wait()

	sent := b.messages()
	require.Len(t, sent, 2)
	assert.Equal(t, bridge.Dict{bridge.KeySpeed: 0}, sent[0])
	assert.InEpsilon(t, 111320, float64(sent[1][bridge.KeySpeed]), 0.01)

	require.Len(t, states, 2)
	assert.InEpsilon(t, 1113.2, states[1].SpeedMetersPerSecond, 0.01)
	// no threshold configured, so never driving
	assert.False(t, states[1].Driving)

	saved, err := st.LoadPreviousFix(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1000), saved.TimestampMillis)
}

func TestCompanionRestoresPreviousFix(t *testing.T) {
	st := store.NewMemory()
	require.NoError(t, st.SavePreviousFix(context.Background(), geo.Fix{TimestampMillis: 0}))
	require.NoError(t, st.SaveSettings(context.Background(), watchface.Settings{SpeedThreshold: 500, PedometerSensitivity: 20}))

	b := newFakeBridge()
	loc := &fakeLocator{fixes: []geo.Fix{{Latitude: 0, Longitude: 0.01, TimestampMillis: 1000}}}
	c := newTestCompanion(t, b, loc, st, nil)

	require.NoError(t, c.Handle(context.Background(), bridge.Event{Type: bridge.EventAppMessage}))
	c.Wait()

	state := c.State()
	assert.InEpsilon(t, 1113.2, state.SpeedMetersPerSecond, 0.01)
	assert.True(t, state.Driving)
	require.NotNil(t, state.Fix)
	assert.Equal(t, 0.01, state.Fix.Longitude)
}

func TestCompanionGeolocationError(t *testing.T) {
	b := newFakeBridge()
	c := newTestCompanion(t, b, &fakeLocator{err: gps.ErrTimeout}, store.NewMemory(), nil)

	err := c.Handle(context.Background(), bridge.Event{Type: bridge.EventAppMessage})
	assert.ErrorIs(t, err, gps.ErrTimeout)
	assert.Empty(t, b.messages())
}

func TestCompanionDeliveryFailureIsNotAnError(t *testing.T) {
	b := newFakeBridge()
	b.result = bridge.Result{Status: bridge.Failed, Reason: "ack timeout"}
	loc := &fakeLocator{fixes: []geo.Fix{{TimestampMillis: 1}}}
	c := newTestCompanion(t, b, loc, store.NewMemory(), nil)

	assert.NoError(t, c.Handle(context.Background(), bridge.Event{Type: bridge.EventAppMessage}))
	c.Wait()
	assert.Len(t, b.messages(), 1)
}

func TestCompanionConfiguration(t *testing.T) {
	b := newFakeBridge()
	st := store.NewMemory()
	c := newTestCompanion(t, b, &fakeLocator{}, st, nil)

	response := url.PathEscape(`{"speedThreshold":500,"colorTheme":false,"resetTime":"570"}`)
	require.NoError(t, c.Handle(context.Background(), bridge.Event{Type: bridge.EventWebviewClosed, Response: response}))
	c.Wait()

	want := watchface.DefaultSettings()
	want.SpeedThreshold = 500
	want.ColorTheme = false
	want.ResetTime = 570

	saved, err := st.LoadSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, saved)
	assert.Equal(t, want, c.State().Settings)

	sent := b.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, want.Dict(), sent[0])
}

func TestCompanionConfigurationRejected(t *testing.T) {
	tests := map[string]string{
		"empty":        "",
		"not json":     "%7Bnope",
		"out of range": url.PathEscape(`{"resetTime":5000}`),
	}

	for name, response := range tests {
		t.Run(name, func(t *testing.T) {
			b := newFakeBridge()
			st := store.NewMemory()
			c := newTestCompanion(t, b, &fakeLocator{}, st, nil)

			err := c.Handle(context.Background(), bridge.Event{Type: bridge.EventWebviewClosed, Response: response})
			if name == "empty" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
			assert.Empty(t, b.messages())

			_, err = st.LoadSettings(context.Background())
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestCompanionUnknownEvent(t *testing.T) {
	c := newTestCompanion(t, newFakeBridge(), &fakeLocator{}, store.NewMemory(), nil)
	assert.Error(t, c.Handle(context.Background(), bridge.Event{Type: "reboot"}))
}

func TestCompanionRun(t *testing.T) {
	b := newFakeBridge()
	loc := &fakeLocator{fixes: []geo.Fix{{TimestampMillis: 1}}}
	c := newTestCompanion(t, b, loc, store.NewMemory(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	b.events <- bridge.Event{Type: bridge.EventReady, Ready: true}
	b.events <- bridge.Event{Type: bridge.EventAppMessage}
	b.events <- bridge.Event{Type: bridge.EventAppMessage} // locator exhausted, logged

	require.Eventually(t, func() bool { return len(b.messages()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestCompanionStoreError(t *testing.T) {
	_, err := NewCompanion(context.Background(), newFakeBridge(), &fakeLocator{}, failingStore{store.NewMemory()}, CompanionOptions{})
	assert.Error(t, err)
}

type failingStore struct{ *store.Memory }

func (failingStore) LoadPreviousFix(context.Context) (geo.Fix, error) {
	return geo.Fix{}, errors.New("connection refused")
}

func TestBridgeTopics(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, bridge.Topics{
		Inbox:        "watch/inbox",
		Outbox:       "watch/outbox",
		Ack:          "watch/ack",
		HostEvents:   "watch/host/events",
		HostCommands: "watch/host/commands",
	}, bridgeTopics(cfg))
}
