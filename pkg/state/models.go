package state

import (
	"time"

	"github.com/google/uuid"
)

// Transport is the outbound half of a live connection.
type Transport interface {
	ID() uuid.UUID
	// Send queues msg for delivery without blocking. Delivery is best effort.
	Send(msg []byte)
	Close(err error)
}

// representation of a single transport-layer connection (a session).
type Connection struct {
	ID        uuid.UUID
	IPAddress string
	Transport Transport
	CreatedAt time.Time
	// Rooms this session has joined. Reverse index used for disconnect cleanup.
	Rooms map[string]struct{}
}

// Member is one session's presence in a room.
type Member struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Room is the per-room state. It is not safe for concurrent use; callers
// serialize access through the event loop.
type Room struct {
	ID          string
	Title       string
	Description string

	members   map[uuid.UUID]Member
	usernames map[uuid.UUID]string
	votes     *VoteLedger
}

// RoomSnapshot is the full room state as broadcast in room-update.
type RoomSnapshot struct {
	Users       map[string]Member `json:"users"`
	Votes       VoteMap           `json:"votes"`
	Usernames   map[string]string `json:"usernames"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
}

func NewRoom(id string) *Room {
	return &Room{
		ID:        id,
		members:   make(map[uuid.UUID]Member),
		usernames: make(map[uuid.UUID]string),
		votes:     NewVoteLedger(),
	}
}

// AddMember binds a session to the room, overwriting any previous binding of
// the same session.
func (r *Room) AddMember(connID uuid.UUID, username, role string) {
	r.members[connID] = Member{Username: username, Role: role}
	r.usernames[connID] = username
}

// RemoveMember unbinds a session and drops the vote held under its username.
// It reports the username the session was bound as.
func (r *Room) RemoveMember(connID uuid.UUID) (string, bool) {
	username, ok := r.usernames[connID]
	if !ok {
		return "", false
	}
	delete(r.members, connID)
	delete(r.usernames, connID)
	r.votes.Remove(username)
	return username, true
}

func (r *Room) HasMember(connID uuid.UUID) bool {
	_, ok := r.members[connID]
	return ok
}

// MemberIDs returns the sessions currently joined to the room.
func (r *Room) MemberIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	return ids
}

func (r *Room) MemberCount() int { return len(r.members) }

func (r *Room) Votes() *VoteLedger { return r.votes }

func (r *Room) SetMetadata(title, description string) {
	r.Title = title
	r.Description = description
}

// IsEmpty reports whether the room may be reclaimed: no members and no votes.
func (r *Room) IsEmpty() bool {
	return len(r.members) == 0 && r.votes.Len() == 0
}

func (r *Room) Snapshot() RoomSnapshot {
	users := make(map[string]Member, len(r.members))
	for id, m := range r.members {
		users[id.String()] = m
	}
	names := make(map[string]string, len(r.usernames))
	for id, u := range r.usernames {
		names[id.String()] = u
	}
	return RoomSnapshot{
		Users:       users,
		Votes:       r.votes.Snapshot(),
		Usernames:   names,
		Title:       r.Title,
		Description: r.Description,
	}
}

// ModifierState holds per-connection state for a pipeline modifier, such as a
// rate limit window. Timer clears the entry when the window expires.
type ModifierState struct {
	Value any
	Timer *time.Timer
}
