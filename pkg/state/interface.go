package state

import (
	"github.com/google/uuid"
)

type Manager interface {
	// --- Connection Registry ---
	RegisterConnection(conn Transport, ipAddr string) (*Connection, error)
	DeregisterConnection(connID uuid.UUID) error
	GetConnection(connID uuid.UUID) (*Connection, bool)
	GetAllConnections() []*Connection
	CountConnectionsByIP(ipAddr string) int
	FindOldestConnectionByIP(ipAddr string) (*Connection, bool)

	// BindRoom records that the session joined roomID.
	BindRoom(connID uuid.UUID, roomID string) error
	// BoundRooms lists, in stable order, every room the session joined.
	BoundRooms(connID uuid.UUID) []string

	// --- Room Store ---
	// GetOrCreateRoom returns the room, initializing an empty one if absent. Never fails.
	GetOrCreateRoom(roomID string) *Room
	FindRoom(roomID string) (*Room, bool)
	// DeleteRoom removes a room. Callers must have checked Room.IsEmpty.
	DeleteRoom(roomID string)
	RoomCount() int
	// RoomTransports resolves the room's members to their live transports.
	RoomTransports(roomID string) ([]Transport, error)

	// --- Modifier store Management ---
	GetModifierState(modifierName string, connID uuid.UUID, eventName string) (state *ModifierState, found bool)

	// SetModifierState sets or updates the state data.
	SetModifierState(modifierName string, connID uuid.UUID, eventName string, state *ModifierState)

	// DeleteModifierState removes a state entry. This is typically called by
	// the expiry timer.
	DeleteModifierState(modifierName string, connID uuid.UUID, eventName string)
}
