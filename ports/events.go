package ports

import (
	"context"

	"github.com/google/uuid"
)

// EventPublisher publishes auth lifecycle events to notify other
// instances and downstream consumers.
type EventPublisher interface {
	PublishLogin(ctx context.Context, userID uuid.UUID, address string, isNewUser bool) error
	PublishLogout(ctx context.Context, userID uuid.UUID, tokenID string) error
}
