package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/questfall/walletgate/ports"
)

const (
	LoginTopic  = "auth.login"
	LogoutTopic = "auth.logout"
)

// LoginEvent is published after a successful wallet authentication.
type LoginEvent struct {
	UserID    string `json:"user_id"`
	Address   string `json:"address"`
	IsNewUser bool   `json:"is_new_user"`
}

// LogoutEvent is published when a refresh token is revoked.
type LogoutEvent struct {
	UserID  string `json:"user_id"`
	TokenID string `json:"token_id"`
}

// WatermillPublisher implements the EventPublisher interface using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) ports.EventPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogin publishes a login event
func (p *WatermillPublisher) PublishLogin(ctx context.Context, userID uuid.UUID, address string, isNewUser bool) error {
	return p.publish(LoginTopic, LoginEvent{
		UserID:    userID.String(),
		Address:   address,
		IsNewUser: isNewUser,
	})
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, userID uuid.UUID, tokenID string) error {
	return p.publish(LogoutTopic, LogoutEvent{
		UserID:  userID.String(),
		TokenID: tokenID,
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
