package registry

import (
	"sync"

	"github.com/google/uuid"
	"github.com/kmlikithkumar/skillswap/backend/model"
	"github.com/rs/zerolog"
)

// Member is one connection currently joined to a room.
type Member struct {
	ID   uuid.UUID
	Wire model.Wire
}

// Registry tracks which connections belong to which conversation room.
// It holds delivery wires, never connection ownership; rooms are created
// on first join and pruned when the last member leaves. State is
// ephemeral and rebuilt from client joins after a restart.
type Registry struct {
	mx     *sync.RWMutex
	rooms  map[string]map[uuid.UUID]model.Wire
	joined map[uuid.UUID]map[string]struct{}
	logger zerolog.Logger
}

func New(logger *zerolog.Logger) *Registry {
	return &Registry{
		mx:     &sync.RWMutex{},
		rooms:  make(map[string]map[uuid.UUID]model.Wire),
		joined: make(map[uuid.UUID]map[string]struct{}),
		logger: logger.With().Str("component", "registry").Logger(),
	}
}

// Join adds the connection to the room. Repeated joins are no-ops, so a
// connection is a member at most once regardless of how many join frames
// it sends.
func (r *Registry) Join(connID uuid.UUID, wire model.Wire, roomID string) {
	r.mx.Lock()
	defer func() {
		r.mx.Unlock()
		r.logger.Debug().
			Str("connID", connID.String()).
			Str("roomID", roomID).
			Msg("connection joined room")
	}()

	room, ok := r.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]model.Wire)
		r.rooms[roomID] = room
	}
	room[connID] = wire

	rooms, ok := r.joined[connID]
	if !ok {
		rooms = make(map[string]struct{})
		r.joined[connID] = rooms
	}
	rooms[roomID] = struct{}{}
}

// Leave removes the connection from the room if present.
func (r *Registry) Leave(connID uuid.UUID, roomID string) {
	r.mx.Lock()
	defer r.mx.Unlock()
	r.leaveLocked(connID, roomID)
}

// LeaveAll removes the connection from every room it belongs to and
// returns the ids of the rooms it actually left.
func (r *Registry) LeaveAll(connID uuid.UUID) []string {
	r.mx.Lock()
	defer r.mx.Unlock()

	rooms := make([]string, 0, len(r.joined[connID]))
	for roomID := range r.joined[connID] {
		rooms = append(rooms, roomID)
	}
	for _, roomID := range rooms {
		r.leaveLocked(connID, roomID)
	}
	return rooms
}

func (r *Registry) leaveLocked(connID uuid.UUID, roomID string) {
	room, ok := r.rooms[roomID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.rooms, roomID)
	}

	rooms, ok := r.joined[connID]
	if ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(r.joined, connID)
		}
	}
	r.logger.Debug().
		Str("connID", connID.String()).
		Str("roomID", roomID).
		Msg("connection left room")
}

// MembersOf returns a snapshot of the room's current members. The snapshot
// is safe to iterate without holding any registry lock.
func (r *Registry) MembersOf(roomID string) []Member {
	r.mx.RLock()
	defer r.mx.RUnlock()

	room := r.rooms[roomID]
	members := make([]Member, 0, len(room))
	for id, wire := range room {
		members = append(members, Member{ID: id, Wire: wire})
	}
	return members
}
