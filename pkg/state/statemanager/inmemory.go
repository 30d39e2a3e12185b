package statemanager

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/chetanK28/PlanningPoker-Backend/pkg/state"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type modifierKey struct {
	modifier string
	connID   uuid.UUID
	event    string
}

type InMemoryManager struct {
	conns     map[uuid.UUID]*state.Connection
	rooms     map[string]*state.Room
	modifiers map[modifierKey]*state.ModifierState

	connMu sync.RWMutex
	roomMu sync.RWMutex
	modMu  sync.Mutex

	logger *slog.Logger
}

func NewInMemoryManager(logger *slog.Logger) *InMemoryManager {
	return &InMemoryManager{
		conns:     make(map[uuid.UUID]*state.Connection),
		rooms:     make(map[string]*state.Room),
		modifiers: make(map[modifierKey]*state.ModifierState),
		logger:    logger.With(slog.String("component", "state_manager_inmemory")),
	}
}

// compile-time check to ensure InMemoryManager implements Manager.
var _ state.Manager = (*InMemoryManager)(nil)

// --- Connection Registry ---

func (m *InMemoryManager) RegisterConnection(conn state.Transport, ipAddr string) (*state.Connection, error) {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	connID := conn.ID()
	if _, exists := m.conns[connID]; exists {
		return nil, state.ErrConnectionExists
	}
	newConn := &state.Connection{
		ID:        connID,
		IPAddress: ipAddr,
		Transport: conn,
		CreatedAt: time.Now(),
		Rooms:     make(map[string]struct{}),
	}
	m.conns[connID] = newConn
	m.logger.Debug("Connection registered", slog.String("connID", connID.String()))
	return newConn, nil
}

// DeregisterConnection forgets the session and any modifier state it owns.
// Room membership is unwound by the disconnect action before this is called.
func (m *InMemoryManager) DeregisterConnection(connID uuid.UUID) error {
	m.connMu.Lock()
	if _, ok := m.conns[connID]; !ok {
		// connection is already deregistered
		m.connMu.Unlock()
		return nil
	}
	delete(m.conns, connID)
	m.connMu.Unlock()

	m.modMu.Lock()
	for key, st := range m.modifiers {
		if key.connID != connID {
			continue
		}
		if st.Timer != nil {
			st.Timer.Stop()
		}
		delete(m.modifiers, key)
	}
	m.modMu.Unlock()

	m.logger.Debug("Connection deregistered", slog.String("connID", connID.String()))
	return nil
}

func (m *InMemoryManager) GetConnection(connID uuid.UUID) (*state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	conn, ok := m.conns[connID]
	return conn, ok
}

func (m *InMemoryManager) GetAllConnections() []*state.Connection {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return lo.Values(m.conns)
}

func (m *InMemoryManager) CountConnectionsByIP(ipAddr string) int {
	m.connMu.RLock()
	defer m.connMu.RUnlock()
	return lo.CountBy(lo.Values(m.conns), func(c *state.Connection) bool {
		return c.IPAddress == ipAddr
	})
}

func (m *InMemoryManager) FindOldestConnectionByIP(ipAddr string) (*state.Connection, bool) {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	var oldestConn *state.Connection
	for _, conn := range m.conns {
		if conn.IPAddress != ipAddr {
			continue
		}
		if oldestConn == nil || conn.CreatedAt.Before(oldestConn.CreatedAt) {
			oldestConn = conn
		}
	}
	return oldestConn, oldestConn != nil
}

func (m *InMemoryManager) BindRoom(connID uuid.UUID, roomID string) error {
	m.connMu.Lock()
	defer m.connMu.Unlock()

	conn, ok := m.conns[connID]
	if !ok {
		return fmt.Errorf("cannot bind room '%s': %w", roomID, state.ErrConnectionNotFound)
	}
	conn.Rooms[roomID] = struct{}{}
	return nil
}

func (m *InMemoryManager) BoundRooms(connID uuid.UUID) []string {
	m.connMu.RLock()
	defer m.connMu.RUnlock()

	conn, ok := m.conns[connID]
	if !ok {
		return nil
	}
	rooms := lo.Keys(conn.Rooms)
	sort.Strings(rooms)
	return rooms
}

// --- Room Store ---

func (m *InMemoryManager) GetOrCreateRoom(roomID string) *state.Room {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		room = state.NewRoom(roomID)
		m.rooms[roomID] = room
		m.logger.Debug("Room created", slog.String("roomID", roomID))
	}
	return room
}

func (m *InMemoryManager) FindRoom(roomID string) (*state.Room, bool) {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()
	room, ok := m.rooms[roomID]
	return room, ok
}

func (m *InMemoryManager) DeleteRoom(roomID string) {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()
	delete(m.rooms, roomID)
	m.logger.Debug("Removed empty room", slog.String("roomID", roomID))
}

func (m *InMemoryManager) RoomCount() int {
	m.roomMu.RLock()
	defer m.roomMu.RUnlock()
	return len(m.rooms)
}

func (m *InMemoryManager) RoomTransports(roomID string) ([]state.Transport, error) {
	m.roomMu.RLock()
	room, ok := m.rooms[roomID]
	if !ok {
		m.roomMu.RUnlock()
		return nil, fmt.Errorf("room '%s': %w", roomID, state.ErrRoomNotFound)
	}
	memberIDs := room.MemberIDs()
	m.roomMu.RUnlock()

	m.connMu.RLock()
	defer m.connMu.RUnlock()
	transports := make([]state.Transport, 0, len(memberIDs))
	for _, id := range memberIDs {
		conn, ok := m.conns[id]
		if !ok {
			// already gone; the send is dropped
			continue
		}
		transports = append(transports, conn.Transport)
	}
	return transports, nil
}

// --- Modifier state ---

func (m *InMemoryManager) GetModifierState(modifierName string, connID uuid.UUID, eventName string) (*state.ModifierState, bool) {
	m.modMu.Lock()
	defer m.modMu.Unlock()
	st, ok := m.modifiers[modifierKey{modifierName, connID, eventName}]
	return st, ok
}

func (m *InMemoryManager) SetModifierState(modifierName string, connID uuid.UUID, eventName string, st *state.ModifierState) {
	m.modMu.Lock()
	defer m.modMu.Unlock()
	key := modifierKey{modifierName, connID, eventName}
	if prev, ok := m.modifiers[key]; ok && prev != st && prev.Timer != nil {
		prev.Timer.Stop()
	}
	m.modifiers[key] = st
}

func (m *InMemoryManager) DeleteModifierState(modifierName string, connID uuid.UUID, eventName string) {
	m.modMu.Lock()
	defer m.modMu.Unlock()
	delete(m.modifiers, modifierKey{modifierName, connID, eventName})
}
