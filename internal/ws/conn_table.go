package ws

import (
	"sync"

	"go.uber.org/zap"
)

// ConnStats summarizes the live socket population on this replica.
type ConnStats struct {
	TotalConnections int `json:"total_connections"`
	UniqueUsers      int `json:"unique_users"`
}

// ConnTable maps socket IDs to authenticated user IDs. Each replica tracks
// only its own sockets; there is no cross-replica replication.
type ConnTable struct {
	log *zap.Logger

	mu   sync.RWMutex
	pool map[string]string // sid -> user_id
}

func NewConnTable(log *zap.Logger) *ConnTable {
	return &ConnTable{
		log:  log.Named("conns"),
		pool: make(map[string]string),
	}
}

// Add registers a newly authenticated connection.
func (t *ConnTable) Add(sid, userID string) {
	t.mu.Lock()
	t.pool[sid] = userID
	t.mu.Unlock()
	t.log.Debug("connection added", zap.String("sid", sid), zap.String("user_id", userID))
}

// Remove drops a connection. Unknown sids are ignored.
func (t *ConnTable) Remove(sid string) {
	t.mu.Lock()
	delete(t.pool, sid)
	t.mu.Unlock()
}

// Get returns the user behind a socket, or "" when the socket is unknown.
func (t *ConnTable) Get(sid string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pool[sid]
}

// Stats counts sockets and distinct users.
func (t *ConnTable) Stats() ConnStats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	users := make(map[string]struct{}, len(t.pool))
	for _, uid := range t.pool {
		users[uid] = struct{}{}
	}
	return ConnStats{
		TotalConnections: len(t.pool),
		UniqueUsers:      len(users),
	}
}
