package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Audience string

const (
	AudienceAccount Audience = "account"
	AudienceAdmin   Audience = "admin"
	AudienceAll     Audience = "all"
)

// Message is what every sink receives. Key and Params are set for typed
// notifications, Text for free-text admin messages.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Audience  Audience        `json:"audience"`
	AccountID uint            `json:"account_id,omitempty"`
	Key       string          `json:"key,omitempty"`
	Kind      string          `json:"kind,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Text      string          `json:"text,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewMessage stamps a fresh ID and time on a message
func NewMessage(audience Audience, accountID uint) Message {
	return Message{
		ID:        uuid.New(),
		Audience:  audience,
		AccountID: accountID,
		CreatedAt: time.Now().UTC(),
	}
}

// Sink delivers messages to one outside channel
type Sink interface {
	Name() string
	Deliver(ctx context.Context, msg Message) error
}
