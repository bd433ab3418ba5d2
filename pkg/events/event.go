package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event types. On the bus each travels under "events.<type>", so
// subscribers filter by family with "events.credits.>".
const (
	TypeCreditsSpent         = "credits.spent"
	TypeProjectStatusChanged = "project.status_changed"
	TypeCreditsPurchased     = "billing.credits_purchased"
)

// Event is a ledger or project fact addressed to one user.
type Event interface {
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

// Envelope is the Event published by DomainPublisher and rebuilt by the
// subscriber from a bus message.
type Envelope struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func New(eventType string, data map[string]interface{}) Envelope {
	return Envelope{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func (e Envelope) EventType() string {
	return e.Type
}

func (e Envelope) Payload() map[string]interface{} {
	return e.Data
}

func (e Envelope) Timestamp() time.Time {
	return e.OccurredAt
}

// UserID returns the owner named by the payload's user_id.
func UserID(e Event) (uuid.UUID, error) {
	raw, ok := e.Payload()["user_id"].(string)
	if !ok {
		return uuid.Nil, fmt.Errorf("%s: user_id missing", e.EventType())
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s: user_id: %w", e.EventType(), err)
	}
	return id, nil
}
