package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeToken struct {
	err  error
	done chan struct{}
}

func newFakeToken(err error) *fakeToken {
	done := make(chan struct{})
	close(done)
	return &fakeToken{err: err, done: done}
}

func (t *fakeToken) Wait() bool                     { return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type fakeMessage struct {
	mqtt.Message
	topic   string
	payload []byte
}

func (m fakeMessage) Topic() string   { return m.topic }
func (m fakeMessage) Payload() []byte { return m.payload }

type publication struct {
	topic   string
	payload []byte
}

type fakeClient struct {
	mqtt.Client

	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    []publication
	publishErr   error
	onPublish    func(c *fakeClient, topic string, payload []byte)
	stalled      bool // publish tokens never complete
	disconnected bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *fakeClient) Subscribe(topic string, _ byte, h mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = h
	c.mu.Unlock()
	return newFakeToken(nil)
}

func (c *fakeClient) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	body := payload.([]byte)
	c.mu.Lock()
	c.published = append(c.published, publication{topic: topic, payload: body})
	hook := c.onPublish
	err := c.publishErr
	stalled := c.stalled
	c.mu.Unlock()

	if stalled {
		return &fakeToken{done: make(chan struct{})}
	}
	if err == nil && hook != nil {
		hook(c, topic, body)
	}
	return newFakeToken(err)
}

func (c *fakeClient) Disconnect(uint) {
	c.mu.Lock()
	c.disconnected = true
	c.mu.Unlock()
}

func (c *fakeClient) deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	if h != nil {
		h(c, fakeMessage{topic: topic, payload: payload})
	}
}

func (c *fakeClient) publications() []publication {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]publication(nil), c.published...)
}

var testTopics = Topics{
	Inbox:        "watch/inbox",
	Outbox:       "watch/outbox",
	Ack:          "watch/ack",
	HostEvents:   "watch/host/events",
	HostCommands: "watch/host/commands",
}

func newTestBridge(t *testing.T, c *fakeClient, ackTimeout time.Duration) *MQTT {
	t.Helper()
	log.SetOutput(io.Discard)

	b, err := NewMQTT(c, Options{Topics: testTopics, AckTimeout: ackTimeout})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

// ackWith replies to every outbox message with the given outcome.
func ackWith(ok bool, reason string) func(c *fakeClient, topic string, payload []byte) {
	return func(c *fakeClient, topic string, payload []byte) {
		if topic != testTopics.Outbox {
			return
		}
		var m wireMessage
		if err := json.Unmarshal(payload, &m); err != nil {
			return
		}
		ack, _ := json.Marshal(wireAck{TransactionID: m.TransactionID, OK: ok, Reason: reason})
		c.deliver(testTopics.Ack, ack)
	}
}

func receive(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
		return Result{}
	}
}

func TestSendDelivered(t *testing.T) {
	c := newFakeClient()
	c.onPublish = ackWith(true, "")
	b := newTestBridge(t, c, time.Second)

	r := receive(t, b.Send(context.Background(), Dict{KeySpeed: 123}))
	assert.True(t, r.OK())
	assert.Equal(t, Delivered, r.Status)
	assert.Equal(t, uint32(1), r.TransactionID)

	pubs := c.publications()
	require.Len(t, pubs, 1)
	assert.Equal(t, testTopics.Outbox, pubs[0].topic)

	var m wireMessage
	require.NoError(t, json.Unmarshal(pubs[0].payload, &m))
	assert.Equal(t, map[string]int32{"4": 123}, m.Payload)
}

func TestSendTransactionIDsIncrease(t *testing.T) {
	c := newFakeClient()
	c.onPublish = ackWith(true, "")
	b := newTestBridge(t, c, time.Second)

	first := receive(t, b.Send(context.Background(), Dict{KeySpeed: 1}))
	second := receive(t, b.Send(context.Background(), Dict{KeySpeed: 2}))
	assert.Less(t, first.TransactionID, second.TransactionID)
}

func TestSendFailures(t *testing.T) {
	t.Run("nack with reason", func(t *testing.T) {
		c := newFakeClient()
		c.onPublish = ackWith(false, "busy")
		b := newTestBridge(t, c, time.Second)

		r := receive(t, b.Send(context.Background(), Dict{KeySpeed: 1}))
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, "busy", r.Reason)
	})

	t.Run("nack without reason", func(t *testing.T) {
		c := newFakeClient()
		c.onPublish = ackWith(false, "")
		b := newTestBridge(t, c, time.Second)

		r := receive(t, b.Send(context.Background(), Dict{KeySpeed: 1}))
		assert.Equal(t, "nack", r.Reason)
	})

	t.Run("ack timeout", func(t *testing.T) {
		c := newFakeClient()
		b := newTestBridge(t, c, 20*time.Millisecond)

		r := receive(t, b.Send(context.Background(), Dict{KeySpeed: 1}))
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, "ack timeout", r.Reason)
	})

	t.Run("publish error", func(t *testing.T) {
		c := newFakeClient()
		c.publishErr = errors.New("not connected")
		b := newTestBridge(t, c, time.Second)

		r := receive(t, b.Send(context.Background(), Dict{KeySpeed: 1}))
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, "not connected", r.Reason)
	})

	t.Run("unknown key", func(t *testing.T) {
		c := newFakeClient()
		b := newTestBridge(t, c, time.Second)

		r := receive(t, b.Send(context.Background(), Dict{"volume": 1}))
		assert.Equal(t, Failed, r.Status)
		assert.Empty(t, c.publications())
	})

	t.Run("context cancelled", func(t *testing.T) {
		c := newFakeClient()
		b := newTestBridge(t, c, time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		ch := b.Send(ctx, Dict{KeySpeed: 1})
		cancel()

		r := receive(t, ch)
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, context.Canceled.Error(), r.Reason)
	})

	t.Run("closed while pending", func(t *testing.T) {
		c := newFakeClient()
		b := newTestBridge(t, c, time.Second)

		ch := b.Send(context.Background(), Dict{KeySpeed: 1})
		require.NoError(t, b.Close())

		r := receive(t, ch)
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, ErrClosed.Error(), r.Reason)
		assert.True(t, c.disconnected)
	})

	t.Run("send after close", func(t *testing.T) {
		c := newFakeClient()
		b := newTestBridge(t, c, time.Second)
		require.NoError(t, b.Close())

		r := receive(t, b.Send(context.Background(), Dict{KeySpeed: 1}))
		assert.Equal(t, ErrClosed.Error(), r.Reason)
	})

	// the broker never completes the publish; the wait must still end early
	t.Run("cancelled during publish", func(t *testing.T) {
		c := newFakeClient()
		c.stalled = true
		b := newTestBridge(t, c, time.Minute)

		ctx, cancel := context.WithCancel(context.Background())
		ch := b.Send(ctx, Dict{KeySpeed: 1})
		cancel()

		r := receive(t, ch)
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, context.Canceled.Error(), r.Reason)
	})

	t.Run("closed during publish", func(t *testing.T) {
		c := newFakeClient()
		c.stalled = true
		b := newTestBridge(t, c, time.Minute)

		ch := b.Send(context.Background(), Dict{KeySpeed: 1})
		require.NoError(t, b.Close())

		r := receive(t, ch)
		assert.Equal(t, ErrClosed.Error(), r.Reason)
	})

	t.Run("publish timeout", func(t *testing.T) {
		c := newFakeClient()
		c.stalled = true
		b := newTestBridge(t, c, 20*time.Millisecond)

		r := receive(t, b.Send(context.Background(), Dict{KeySpeed: 1}))
		assert.Equal(t, Failed, r.Status)
		assert.Equal(t, "publish timeout", r.Reason)
	})
}

func TestInboxEvents(t *testing.T) {
	c := newFakeClient()
	b := newTestBridge(t, c, time.Second)

	c.deliver(testTopics.Inbox, []byte(`{"transaction_id":7,"payload":{"3":0}}`))
	c.deliver(testTopics.Inbox, []byte(`{"transaction_id":8,"payload":{"99":0}}`)) // unknown key, dropped
	c.deliver(testTopics.Inbox, []byte(`not json`))
	c.deliver(testTopics.HostEvents, []byte(`{"type":"ready","ready":true}`))
	c.deliver(testTopics.HostEvents, []byte(`{"type":"showConfiguration"}`))
	c.deliver(testTopics.HostEvents, []byte(`{"type":"webviewclosed","response":"%7B%7D"}`))
	c.deliver(testTopics.HostEvents, []byte(`{"type":"reboot"}`))

	want := []Event{
		{Type: EventAppMessage, TransactionID: 7, Payload: Dict{KeyRequestSpeed: 0}},
		{Type: EventReady, Ready: true},
		{Type: EventShowConfiguration},
		{Type: EventWebviewClosed, Response: "%7B%7D"},
	}
	for _, w := range want {
		select {
		case ev := <-b.Events():
			assert.Equal(t, w, ev)
		case <-time.After(time.Second):
			t.Fatalf("missing event %v", w.Type)
		}
	}

	select {
	case ev := <-b.Events():
		t.Fatalf("unexpected event %+v", ev)
	default:
	}
}

func TestOpenURL(t *testing.T) {
	c := newFakeClient()
	b := newTestBridge(t, c, time.Second)

	require.NoError(t, b.OpenURL(context.Background(), "http://on11.mobi/configure.html"))

	pubs := c.publications()
	require.Len(t, pubs, 1)
	assert.Equal(t, testTopics.HostCommands, pubs[0].topic)
	assert.JSONEq(t, `{"type":"openURL","url":"http://on11.mobi/configure.html"}`, string(pubs[0].payload))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "delivered", Delivered.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", Status(9).String())
}
