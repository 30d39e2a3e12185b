package router

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// ClientMessage is the inbound envelope.
type ClientMessage struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// job is one unit of work for the event loop.
type job struct {
	ctx     context.Context
	connID  uuid.UUID
	message ClientMessage
}
