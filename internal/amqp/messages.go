package amqp

import (
	"encoding/json"
	"time"
)

// Entity names used in routing keys.
const (
	EntityCategory    = "category"
	EntityTransaction = "transaction"
	EntityBudget      = "budget"
)

// Actions used in routing keys.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Event announces a change to a user's finance records. It carries ids only;
// consumers read the current state from the API.
type Event struct {
	Type       string    `json:"type"`
	UserID     int64     `json:"user_id"`
	EntityID   int64     `json:"entity_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent builds an event of type "<entity>.<action>".
func NewEvent(entity, action string, userID, entityID int64) Event {
	return Event{
		Type:       entity + "." + action,
		UserID:     userID,
		EntityID:   entityID,
		OccurredAt: time.Now().UTC(),
	}
}

// RoutingKey is the topic the event is published under.
func (e Event) RoutingKey() string {
	return e.Type
}

// ToJSON converts the event to JSON bytes
func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event published by Client.
func EventFromJSON(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, err
	}
	return e, nil
}
