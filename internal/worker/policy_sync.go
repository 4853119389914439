package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jwalitptl/password-policy/pkg/logger"
	"github.com/jwalitptl/password-policy/pkg/messaging"
)

// Subscriber is the part of messaging.Broker the worker needs.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// MessageHandler applies one broker message.
type MessageHandler interface {
	HandleMessage(msg messaging.Message) error
}

type PolicySyncConfig struct {
	Channel    string
	RetryDelay time.Duration
}

// PolicySync applies policy updates published by other instances.
type PolicySync struct {
	sub     Subscriber
	handler MessageHandler
	config  PolicySyncConfig
	logger  *logger.Logger
}

func NewPolicySync(sub Subscriber, handler MessageHandler, config PolicySyncConfig, log *logger.Logger) *PolicySync {
	if config.RetryDelay <= 0 {
		config.RetryDelay = 5 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	return &PolicySync{
		sub:     sub,
		handler: handler,
		config:  config,
		logger:  log.WithFields(map[string]interface{}{"component": "policy-sync", "channel": config.Channel}),
	}
}

// Start consumes updates until ctx is done, resubscribing when the
// subscription drops.
func (w *PolicySync) Start(ctx context.Context) {
	w.logger.Info("policy sync started")

	for {
		msgs, err := w.sub.Subscribe(ctx, w.config.Channel)
		if err != nil {
			w.logger.Error(err, "subscribe failed")
		} else {
			w.consume(ctx, msgs)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("policy sync stopped")
			return
		case <-time.After(w.config.RetryDelay):
		}
	}
}

func (w *PolicySync) consume(ctx context.Context, msgs <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-msgs:
			if !ok {
				return
			}
			w.process(raw)
		}
	}
}

func (w *PolicySync) process(raw []byte) {
	var msg messaging.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		w.logger.Error(err, "dropping undecodable message")
		return
	}
	if err := w.handler.HandleMessage(msg); err != nil {
		w.logger.Error(err, "failed to apply policy update", "origin", msg.Origin)
	}
}
