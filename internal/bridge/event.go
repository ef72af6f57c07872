package bridge

import (
	"context"
	"errors"
)

// ErrClosed is reported for sends issued on, or pending at, a closed bridge.
var ErrClosed = errors.New("bridge closed")

// Status is the delivery outcome of one outbound message.
type Status int

const (
	Delivered Status = iota
	Failed
)

func (s Status) String() string {
	switch s {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result reports whether the watch acknowledged a message. Reason is set
// only for Failed.
type Result struct {
	TransactionID uint32
	Status        Status
	Reason        string
}

// OK reports whether the message was delivered.
func (r Result) OK() bool {
	return r.Status == Delivered
}

func delivered(id uint32) Result {
	return Result{TransactionID: id, Status: Delivered}
}

func failed(id uint32, reason string) Result {
	return Result{TransactionID: id, Status: Failed, Reason: reason}
}

// EventType names the callbacks the host delivers to the companion.
type EventType string

const (
	EventReady             EventType = "ready"
	EventAppMessage        EventType = "appmessage"
	EventShowConfiguration EventType = "showConfiguration"
	EventWebviewClosed     EventType = "webviewclosed"
)

// Event is one inbound host or watch event.
type Event struct {
	Type          EventType `json:"type"`
	Ready         bool      `json:"ready,omitempty"`
	Response      string    `json:"response,omitempty"`
	TransactionID uint32    `json:"transaction_id,omitempty"`
	Payload       Dict      `json:"payload,omitempty"`
}

// Bridge is the channel between the companion and the watch firmware.
//
// Send is asynchronous: the returned channel yields exactly one Result.
type Bridge interface {
	Events() <-chan Event
	Send(ctx context.Context, d Dict) <-chan Result
	OpenURL(ctx context.Context, url string) error
	Close() error
}
