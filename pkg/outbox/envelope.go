package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	ActorKindUser   = "user"
	ActorKindSystem = "system"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	ActorID *uuid.UUID `json:"actorId,omitempty"`
	Kind    string     `json:"kind"`
}

// ActorFor returns a user actor when id is set and the system actor otherwise.
func ActorFor(id *uuid.UUID) *ActorRef {
	if id == nil || *id == uuid.Nil {
		return &ActorRef{Kind: ActorKindSystem}
	}
	copied := *id
	return &ActorRef{ActorID: &copied, Kind: ActorKindUser}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
