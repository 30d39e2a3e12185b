package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/chetanK28/PlanningPoker-Backend/pkg/pipeline"
	"github.com/chetanK28/PlanningPoker-Backend/pkg/state"
)

var errNoConnection = errors.New("event has no registered connection")

// Role is recorded but never checked: any member may run any operation.
func actionJoinRoom(pctx *pipeline.Cargo) error {
	if pctx.Connection == nil {
		return errNoConnection
	}
	var p JoinRoomPayload
	if err := decodePayload(pctx.Payload, &p); err != nil {
		return err
	}

	room := pctx.StateManager.GetOrCreateRoom(p.Room)
	room.AddMember(pctx.Connection.ID, p.Username, p.Role)
	if err := pctx.StateManager.BindRoom(pctx.Connection.ID, p.Room); err != nil {
		return fmt.Errorf("failed to bind session to room '%s': %w", p.Room, err)
	}
	pctx.Logger.Info("User joined room",
		slog.String("roomID", p.Room),
		slog.String("username", p.Username),
		slog.String("role", p.Role),
		slog.Int("members", room.MemberCount()),
	)
	return broadcast(pctx, p.Room, EventRoomUpdate, room.Snapshot())
}

// Votes are keyed by username, so any session naming the same username
// overwrites the same slot.
func actionVote(pctx *pipeline.Cargo) error {
	var p VotePayload
	if err := decodePayload(pctx.Payload, &p); err != nil {
		return err
	}
	room, ok := pctx.StateManager.FindRoom(p.Room)
	if !ok {
		return fmt.Errorf("vote in '%s': %w", p.Room, state.ErrRoomNotFound)
	}

	room.Votes().Set(p.Username, p.Vote)
	return broadcast(pctx, p.Room, EventVoteUpdate, room.Votes().Snapshot())
}

func actionRevealVotes(pctx *pipeline.Cargo) error {
	p, err := decodeRoomPayload(pctx.Payload)
	if err != nil {
		return err
	}
	room, ok := pctx.StateManager.FindRoom(p.Room)
	if !ok {
		return fmt.Errorf("reveal in '%s': %w", p.Room, state.ErrRoomNotFound)
	}
	return broadcast(pctx, p.Room, EventReveal, room.Votes().Snapshot())
}

// reset sends the cleared mapping and then a separate bare reset signal.
func actionResetVotes(pctx *pipeline.Cargo) error {
	p, err := decodeRoomPayload(pctx.Payload)
	if err != nil {
		return err
	}
	room, ok := pctx.StateManager.FindRoom(p.Room)
	if !ok {
		return fmt.Errorf("reset in '%s': %w", p.Room, state.ErrRoomNotFound)
	}

	room.Votes().Reset()
	if err := broadcast(pctx, p.Room, EventVoteUpdate, room.Votes().Snapshot()); err != nil {
		return err
	}
	if err := broadcast(pctx, p.Room, EventReset, nil); err != nil {
		return err
	}
	// a memberless room kept alive only by votes ends here.
	if room.IsEmpty() {
		pctx.StateManager.DeleteRoom(p.Room)
		pctx.Logger.Info("Room deleted after reset", slog.String("roomID", p.Room))
	}
	return nil
}

func actionSetTitleDescription(pctx *pipeline.Cargo) error {
	var p TitleDescriptionPayload
	if err := decodePayload(pctx.Payload, &p); err != nil {
		return err
	}
	room, ok := pctx.StateManager.FindRoom(p.Room)
	if !ok {
		return fmt.Errorf("set title in '%s': %w", p.Room, state.ErrRoomNotFound)
	}

	room.SetMetadata(p.Title, p.Description)
	if err := broadcast(pctx, p.Room, EventTitleDescriptionUpdated, TitleDescription{
		Title:       p.Title,
		Description: p.Description,
	}); err != nil {
		return err
	}
	return broadcast(pctx, p.Room, EventNotification, p.Username+" updated the title and description.")
}

// actionDisconnect unwinds the session from every room it joined, then
// forgets the session.
func actionDisconnect(pctx *pipeline.Cargo) error {
	if pctx.Connection == nil {
		return errNoConnection
	}
	connID := pctx.Connection.ID
	for _, roomID := range pctx.StateManager.BoundRooms(connID) {
		room, ok := pctx.StateManager.FindRoom(roomID)
		if !ok {
			continue
		}
		username, ok := room.RemoveMember(connID)
		if !ok {
			continue
		}
		pctx.Logger.Info("User left room",
			slog.String("roomID", roomID),
			slog.String("username", username),
			slog.Int("members", room.MemberCount()),
		)

		if err := broadcast(pctx, roomID, EventRoomUpdate, room.Snapshot()); err != nil {
			pctx.Logger.Warn("Failed to broadcast departure", slog.String("roomID", roomID), slog.Any("error", err))
		}
		if room.IsEmpty() {
			pctx.StateManager.DeleteRoom(roomID)
		}
	}
	return pctx.StateManager.DeregisterConnection(connID)
}
