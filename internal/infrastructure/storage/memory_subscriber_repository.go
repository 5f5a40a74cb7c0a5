package storage

import (
	"context"
	"sort"
	"sync"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
)

// MemorySubscriberRepository keeps bot subscribers in memory. Callers get
// copies; a change is visible only after Save.
type MemorySubscriberRepository struct {
	mu          sync.RWMutex
	subscribers map[int64]entity.Subscriber
}

func NewMemorySubscriberRepository() *MemorySubscriberRepository {
	return &MemorySubscriberRepository{
		subscribers: make(map[int64]entity.Subscriber),
	}
}

// Get returns the subscriber by user ID, registering it on first contact.
// A known user writing from another chat is moved to that chat.
func (r *MemorySubscriberRepository) Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.subscribers[userID]
	if !exists {
		sub = *entity.NewSubscriber(userID, chatID)
	} else if chatID != 0 && sub.ChatID != chatID {
		sub.ChatID = chatID
	}
	r.subscribers[userID] = sub

	return &sub, nil
}

func (r *MemorySubscriberRepository) Save(ctx context.Context, sub *entity.Subscriber) error {
	r.mu.Lock()
	r.subscribers[sub.ID] = *sub
	r.mu.Unlock()

	return nil
}

// ByState returns the subscribers in the given state ordered by user ID.
func (r *MemorySubscriberRepository) ByState(ctx context.Context, state entity.SubscriberState) ([]*entity.Subscriber, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entity.Subscriber
	for _, sub := range r.subscribers {
		if sub.State == state {
			cp := sub
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out, nil
}

var _ port.SubscriberRepository = (*MemorySubscriberRepository)(nil)
