package messaging

import (
	"context"
	"encoding/json"
)

// Broker defines the interface for message brokers
type Broker interface {
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	Close() error
}

// Message is the envelope published on a channel.
type Message struct {
	Type    string          `json:"type"`
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into an envelope.
func NewMessage(msgType, origin string, payload interface{}) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: msgType, Origin: origin, Payload: raw}, nil
}
