package port

import (
	"context"

	"ortho-mapper/internal/domain/entity"
)

// SubscriberRepository stores bot subscribers
type SubscriberRepository interface {
	// Get returns a subscriber by ID, creating a new one if missing
	Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error)

	// Save stores the subscriber state
	Save(ctx context.Context, subscriber *entity.Subscriber) error

	// ByState returns the subscribers in the given state
	ByState(ctx context.Context, state entity.SubscriberState) ([]*entity.Subscriber, error)
}
