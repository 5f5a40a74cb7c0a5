package entity

// SubscriberState is whether a chat receives run notifications.
type SubscriberState string

const (
	StateSubscribed   SubscriberState = "subscribed"
	StateUnsubscribed SubscriberState = "unsubscribed"
)

// Subscriber is a Telegram chat known to the bot.
type Subscriber struct {
	ID     int64 // Telegram user ID
	ChatID int64
	State  SubscriberState
}

// NewSubscriber creates a subscriber that does not yet receive notifications.
func NewSubscriber(userID, chatID int64) *Subscriber {
	return &Subscriber{
		ID:     userID,
		ChatID: chatID,
		State:  StateUnsubscribed,
	}
}

// SetState updates the subscription state.
func (s *Subscriber) SetState(state SubscriberState) {
	s.State = state
}

// Active reports whether the subscriber should be notified.
func (s *Subscriber) Active() bool {
	return s.State == StateSubscribed
}
