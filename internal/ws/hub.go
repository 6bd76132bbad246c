package ws

import (
	"sync"

	"go.uber.org/zap"
)

// Hub owns the socket registry and room membership for one replica, and is
// the single fan-out point: the Pub/Sub listener and the services emit
// through it. A socket is in room list_id only while its user holds some
// role on that list (joins are permission-gated upstream).
type Hub struct {
	log *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session            // sid -> session
	rooms    map[string]map[string]*Session // room -> sid -> session
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		log:      log.Named("hub"),
		sessions: make(map[string]*Session),
		rooms:    make(map[string]map[string]*Session),
	}
}

// Register adds a session to the registry.
func (h *Hub) Register(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
}

// Unregister removes a session and pulls it out of every room.
func (h *Hub) Unregister(sid string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sid)
	for room, members := range h.rooms {
		delete(members, sid)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Join subscribes a socket to a room. Unknown sockets are ignored.
func (h *Hub) Join(sid, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[sid]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		h.rooms[room] = members
	}
	members[sid] = s
	h.log.Debug("socket joined room", zap.String("sid", sid), zap.String("room", room))
}

// Leave unsubscribes a socket from a room.
func (h *Hub) Leave(sid, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, sid)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// ToRoom emits an event to every socket in a room.
func (h *Hub) ToRoom(room, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	members := make([]*Session, 0, len(h.rooms[room]))
	for _, s := range h.rooms[room] {
		members = append(members, s)
	}
	h.mu.RUnlock()

	for _, s := range members {
		s.enqueue(frame)
	}
}

// ToSocket emits an event to one socket.
func (h *Hub) ToSocket(sid, event string, payload any) {
	frame, err := encodeFrame(event, payload)
	if err != nil {
		h.log.Error("encode frame", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.RLock()
	s, ok := h.sessions[sid]
	h.mu.RUnlock()
	if !ok {
		return
	}
	s.enqueue(frame)
}

// RoomSize returns the number of sockets in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
