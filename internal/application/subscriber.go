package app

import (
	"context"

	"ortho-mapper/internal/domain/entity"
	"ortho-mapper/internal/domain/port"
)

type SubscriberService struct {
	repo port.SubscriberRepository
}

func NewSubscriberService(repo port.SubscriberRepository) *SubscriberService {
	return &SubscriberService{repo: repo}
}

func (s *SubscriberService) Get(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.repo.Get(ctx, userID, chatID)
}

func (s *SubscriberService) SetState(ctx context.Context, userID, chatID int64, state entity.SubscriberState) (*entity.Subscriber, error) {
	sub, err := s.repo.Get(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}

	sub.SetState(state)
	if err := s.repo.Save(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

func (s *SubscriberService) Subscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetState(ctx, userID, chatID, entity.StateSubscribed)
}

func (s *SubscriberService) Unsubscribe(ctx context.Context, userID, chatID int64) (*entity.Subscriber, error) {
	return s.SetState(ctx, userID, chatID, entity.StateUnsubscribed)
}

// Active returns the chats that receive run notifications.
func (s *SubscriberService) Active(ctx context.Context) ([]*entity.Subscriber, error) {
	return s.repo.ByState(ctx, entity.StateSubscribed)
}
