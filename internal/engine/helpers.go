package engine

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/chetanK28/PlanningPoker-Backend/pkg/pipeline"
)

// ClientResponse is the outbound envelope. Payload is omitted when nil.
type ClientResponse struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func encodeResponse(eventName string, payload any) ([]byte, error) {
	response := ClientResponse{Event: eventName}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", eventName, err)
		}
		response.Payload = raw
	}
	return json.Marshal(response)
}

// broadcast delivers payload to every session currently joined to roomID.
// Delivery is fire-and-forget; a nil payload sends a bare event.
func broadcast(pctx *pipeline.Cargo, roomID, eventName string, payload any) error {
	msgBytes, err := encodeResponse(eventName, payload)
	if err != nil {
		return err
	}

	targets, err := pctx.StateManager.RoomTransports(roomID)
	if err != nil {
		// the room vanished between mutation and fan-out; nothing to deliver
		pctx.Logger.Debug("Could not resolve room to connections", slog.String("roomID", roomID), slog.Any("error", err))
		return nil
	}

	for _, t := range targets {
		t.Send(msgBytes)
	}

	pctx.Logger.Debug("Broadcast to room",
		slog.String("roomID", roomID),
		slog.String("event", eventName),
		slog.Int("connection_count", len(targets)),
	)
	return nil
}
