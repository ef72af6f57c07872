package bridge

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// wireMessage is an app message on the inbox/outbox topics. Payload keys
// are the decimal app keys.
type wireMessage struct {
	TransactionID uint32           `json:"transaction_id"`
	Payload       map[string]int32 `json:"payload"`
}

type wireAck struct {
	TransactionID uint32 `json:"transaction_id"`
	OK            bool   `json:"ok"`
	Reason        string `json:"reason,omitempty"`
}

// EncodeMessage builds the envelope for an app message in either direction.
func EncodeMessage(id uint32, d Dict) ([]byte, error) {
	keyed, err := d.Keyed()
	if err != nil {
		return nil, err
	}
	payload := make(map[string]int32, len(keyed))
	for k, v := range keyed {
		payload[strconv.FormatUint(uint64(k), 10)] = v
	}
	return json.Marshal(wireMessage{TransactionID: id, Payload: payload})
}

// DecodeMessage parses an app message envelope.
func DecodeMessage(b []byte) (uint32, Dict, error) {
	var m wireMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return 0, nil, fmt.Errorf("bridge: decode message: %w", err)
	}

	keyed := make(map[uint32]int32, len(m.Payload))
	for k, v := range m.Payload {
		n, err := strconv.ParseUint(k, 10, 32)
		if err != nil {
			return m.TransactionID, nil, fmt.Errorf("bridge: key %q is not numeric", k)
		}
		keyed[uint32(n)] = v
	}
	d, err := FromKeyed(keyed)
	if err != nil {
		return m.TransactionID, nil, err
	}
	return m.TransactionID, d, nil
}

// EncodeAck builds the acknowledgement the watch returns for message id.
func EncodeAck(id uint32, ok bool, reason string) ([]byte, error) {
	return json.Marshal(wireAck{TransactionID: id, OK: ok, Reason: reason})
}
