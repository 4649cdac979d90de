package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// PublishedEvent records one call to the publisher.
type PublishedEvent struct {
	Kind      string // "login" or "logout"
	UserID    uuid.UUID
	Address   string
	TokenID   string
	IsNewUser bool
}

// EventPublisher collects published events for assertions in tests.
type EventPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func NewEventPublisher() *EventPublisher {
	return &EventPublisher{}
}

func (p *EventPublisher) PublishLogin(ctx context.Context, userID uuid.UUID, address string, isNewUser bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, PublishedEvent{Kind: "login", UserID: userID, Address: address, IsNewUser: isNewUser})
	return nil
}

func (p *EventPublisher) PublishLogout(ctx context.Context, userID uuid.UUID, tokenID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, PublishedEvent{Kind: "logout", UserID: userID, TokenID: tokenID})
	return nil
}

func (p *EventPublisher) Events() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]PublishedEvent(nil), p.events...)
}
