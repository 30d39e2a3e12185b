package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/tidwall/gjson"
)

// Inbound event names.
const (
	EventJoinRoom            = "join-room"
	EventVote                = "vote"
	EventRevealVotes         = "reveal-votes"
	EventResetVotes          = "reset-votes"
	EventSetTitleDescription = "set-title-description"
	// EventDisconnect is raised by the transport layer, never by clients.
	EventDisconnect = "disconnect"
)

// Outbound event names.
const (
	EventRoomUpdate              = "room-update"
	EventVoteUpdate              = "vote-update"
	EventReveal                  = "reveal"
	EventReset                   = "reset"
	EventTitleDescriptionUpdated = "title-description-updated"
	EventNotification            = "notification"
)

var ErrInvalidPayload = errors.New("invalid payload")

var validate = validator.New()

type JoinRoomPayload struct {
	Room     string `json:"room" validate:"required"`
	Username string `json:"username" validate:"required"`
	Role     string `json:"role" validate:"required"`
}

type VotePayload struct {
	Room     string          `json:"room" validate:"required"`
	Username string          `json:"username" validate:"required"`
	Vote     json.RawMessage `json:"vote" validate:"required"`
}

// RoomPayload carries the target of reveal-votes and reset-votes.
type RoomPayload struct {
	Room string `json:"room" validate:"required"`
}

// Title, description and username may be empty.
type TitleDescriptionPayload struct {
	Room        string `json:"room" validate:"required"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Username    string `json:"username"`
}

type TitleDescription struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// decodePayload unmarshals raw into v and checks its required fields.
func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return fmt.Errorf("%w: not JSON", ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

// decodeRoomPayload accepts either a bare JSON string ("R1") or {"room":"R1"}.
func decodeRoomPayload(raw json.RawMessage) (RoomPayload, error) {
	var p RoomPayload
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return p, fmt.Errorf("%w: not JSON", ErrInvalidPayload)
	}
	res := gjson.ParseBytes(raw)
	switch {
	case res.Type == gjson.String:
		p.Room = res.String()
	case res.IsObject():
		if err := json.Unmarshal(raw, &p); err != nil {
			return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	default:
		return p, fmt.Errorf("%w: expected room string", ErrInvalidPayload)
	}
	if err := validate.Struct(p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}
