package auction

import (
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/reverse-auction/internal/model"
)

// Notifier receives auction events. Publish must not block on slow consumers.
type Notifier interface {
	Publish(event model.Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(event model.Event)

// Publish calls f(event).
func (f NotifierFunc) Publish(event model.Event) {
	f(event)
}

func newEvent(eventType string) model.Event {
	return model.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}
