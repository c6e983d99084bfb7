package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/layer-3/warden/ports"
)

const (
	TopicBound         = "warden.bound"
	TopicAuthenticated = "warden.authenticated"
)

// BoundEvent is published when an identity is bound to a wallet for the
// first time.
type BoundEvent struct {
	IDHash string `json:"id_hash"`
	Wallet string `json:"wallet"`
}

// AuthenticatedEvent is published when a session's proof timestamps are
// refreshed. Method is "primary" or "wallet".
type AuthenticatedEvent struct {
	Wallet string `json:"wallet"`
	Method string `json:"method"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill.
type WatermillPublisher struct {
	publisher message.Publisher
}

var _ ports.EventPublisher = (*WatermillPublisher)(nil)

// NewWatermillPublisher creates a new Watermill publisher.
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishBound publishes a first-bind event.
func (p *WatermillPublisher) PublishBound(ctx context.Context, idHash common.Hash, wallet common.Address) error {
	return p.publish(TopicBound, BoundEvent{
		IDHash: idHash.Hex(),
		Wallet: wallet.Hex(),
	})
}

// PublishAuthenticated publishes a proof-refresh event.
func (p *WatermillPublisher) PublishAuthenticated(ctx context.Context, wallet common.Address, method string) error {
	return p.publish(TopicAuthenticated, AuthenticatedEvent{
		Wallet: wallet.Hex(),
		Method: method,
	})
}

func (p *WatermillPublisher) publish(topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.New().String(), payload)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}
