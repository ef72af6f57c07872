// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// Topics are the MQTT topics the bridge is carried on.
type Topics struct {
	Inbox        string // watch -> companion app messages
	Outbox       string // companion -> watch app messages
	Ack          string // delivery acks from the watch
	HostEvents   string // ready / showConfiguration / webviewclosed
	HostCommands string // openURL
}

// Options configures DialMQTT.
type Options struct {
	Broker     string
	ClientID   string
	Topics     Topics
	AckTimeout time.Duration
}

type wireCommand struct {
	Type string `json:"type"`
	URL  string `json:"url,omitempty"`
}

// MQTT is a Bridge carried over an MQTT broker.
type MQTT struct {
	client     mqtt.Client
	topics     Topics
	ackTimeout time.Duration

	events chan Event
	done   chan struct{}

	mu      sync.Mutex
	nextID  uint32
	pending map[uint32]chan Result
	closed  bool
}

// DialMQTT connects to the broker and subscribes to the inbound topics.
func DialMQTT(opts Options) (*MQTT, error) {
	clientOpts := mqtt.NewClientOptions().
		AddBroker(opts.Broker).
		SetClientID(opts.ClientID).
		SetAutoReconnect(true)

	client := mqtt.NewClient(clientOpts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("bridge: connect %s: %w", opts.Broker, token.Error())
	}
	log.Infof("bridge: connected to MQTT broker at %s", opts.Broker)

	b, err := NewMQTT(client, opts)
	if err != nil {
		client.Disconnect(250)
		return nil, err
	}
	return b, nil
}

// NewMQTT runs the bridge on an already connected client. opts.Broker and
// opts.ClientID are ignored.
func NewMQTT(client mqtt.Client, opts Options) (*MQTT, error) {
	ackTimeout := opts.AckTimeout
	if ackTimeout <= 0 {
		ackTimeout = 5 * time.Second
	}

	b := &MQTT{
		client:     client,
		topics:     opts.Topics,
		ackTimeout: ackTimeout,
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
		pending:    make(map[uint32]chan Result),
	}

	subs := []struct {
		topic   string
		handler mqtt.MessageHandler
	}{
		{opts.Topics.Inbox, b.handleInbox},
		{opts.Topics.HostEvents, b.handleHostEvent},
		{opts.Topics.Ack, b.handleAck},
	}
	for _, s := range subs {
		token := client.Subscribe(s.topic, 1, s.handler)
		token.Wait()
		if token.Error() != nil {
			return nil, fmt.Errorf("bridge: subscribe %s: %w", s.topic, token.Error())
		}
		log.Infof("bridge: subscribed to %s", s.topic)
	}

	return b, nil
}

// Events returns inbound events in arrival order. The channel is never
// closed; consumers stop on their own context.
func (b *MQTT) Events() <-chan Event {
	return b.events
}

// Send publishes d to the watch and resolves once the watch acks it, the
// ack times out, ctx ends, or the bridge closes.
func (b *MQTT) Send(ctx context.Context, d Dict) <-chan Result {
	out := make(chan Result, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		out <- failed(0, ErrClosed.Error())
		return out
	}
	b.nextID++
	id := b.nextID
	b.mu.Unlock()

	body, err := EncodeMessage(id, d)
	if err != nil {
		out <- failed(id, err.Error())
		return out
	}

	ack := make(chan Result, 1)
	b.mu.Lock()
	b.pending[id] = ack
	b.mu.Unlock()

	go func() {
		defer b.forget(id)

		token := b.client.Publish(b.topics.Outbox, 1, false, body)
		publishTimer := time.NewTimer(b.ackTimeout)
		defer publishTimer.Stop()

		select {
		case <-token.Done():
		case <-publishTimer.C:
			out <- failed(id, "publish timeout")
			return
		case <-ctx.Done():
			out <- failed(id, ctx.Err().Error())
			return
		case <-b.done:
			out <- failed(id, ErrClosed.Error())
			return
		}
		if token.Error() != nil {
			out <- failed(id, token.Error().Error())
			return
		}

		ackTimer := time.NewTimer(b.ackTimeout)
		defer ackTimer.Stop()

		select {
		case r := <-ack:
			out <- r
		case <-ackTimer.C:
			out <- failed(id, "ack timeout")
		case <-ctx.Done():
			out <- failed(id, ctx.Err().Error())
		case <-b.done:
			out <- failed(id, ErrClosed.Error())
		}
	}()

	return out
}

// OpenURL asks the host to open url in a web view.
func (b *MQTT) OpenURL(ctx context.Context, url string) error {
	body, err := json.Marshal(wireCommand{Type: "openURL", URL: url})
	if err != nil {
		return err
	}

	token := b.client.Publish(b.topics.HostCommands, 1, false, body)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	if token.Error() != nil {
		return fmt.Errorf("bridge: open url: %w", token.Error())
	}
	return nil
}

// Close fails every pending send and disconnects from the broker.
func (b *MQTT) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)
	b.mu.Unlock()

	b.client.Disconnect(250)
	log.Info("bridge: disconnected")
	return nil
}

func (b *MQTT) forget(id uint32) {
	b.mu.Lock()
	delete(b.pending, id)
	b.mu.Unlock()
}

func (b *MQTT) handleInbox(_ mqtt.Client, msg mqtt.Message) {
	id, d, err := DecodeMessage(msg.Payload())
	if err != nil {
		log.WithError(err).Warn("bridge: inbox message rejected")
		return
	}

	b.emit(Event{Type: EventAppMessage, TransactionID: id, Payload: d})
}

func (b *MQTT) handleHostEvent(_ mqtt.Client, msg mqtt.Message) {
	var ev Event
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		log.WithError(err).Warn("bridge: host event unmarshal error")
		return
	}

	switch ev.Type {
	case EventReady, EventShowConfiguration, EventWebviewClosed:
		b.emit(ev)
	default:
		log.WithField("type", ev.Type).Warn("bridge: unknown host event")
	}
}

func (b *MQTT) handleAck(_ mqtt.Client, msg mqtt.Message) {
	var a wireAck
	if err := json.Unmarshal(msg.Payload(), &a); err != nil {
		log.WithError(err).Warn("bridge: ack unmarshal error")
		return
	}

	b.mu.Lock()
	ch, ok := b.pending[a.TransactionID]
	b.mu.Unlock()
	if !ok {
		log.WithField("transaction_id", a.TransactionID).Debug("bridge: ack for unknown transaction")
		return
	}

	r := delivered(a.TransactionID)
	if !a.OK {
		reason := a.Reason
		if reason == "" {
			reason = "nack"
		}
		r = failed(a.TransactionID, reason)
	}

	select {
	case ch <- r:
	default:
	}
}

func (b *MQTT) emit(ev Event) {
	select {
	case b.events <- ev:
	case <-b.done:
	}
}
