package ws

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pingInterval = 15 * time.Second
	pongTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second

	// Outbound frames buffered per socket before the connection is
	// considered too slow and dropped.
	sendBufferSize = 64

	maxMessageSize = 64 << 10 // inbound frame cap
)

// Session is one authenticated WebSocket connection. Outbound frames go
// through a buffered channel drained by a single writer goroutine; gorilla
// connections do not allow concurrent writers.
type Session struct {
	ID     string
	UserID string

	log  *zap.Logger
	conn *websocket.Conn
	send chan []byte
	quit chan struct{}
}

func newSession(log *zap.Logger, sid, userID string, conn *websocket.Conn) *Session {
	return &Session{
		ID:     sid,
		UserID: userID,
		log:    log.With(zap.String("sid", sid), zap.String("user_id", userID)),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		quit:   make(chan struct{}),
	}
}

// enqueue hands a pre-encoded frame to the writer goroutine. A full buffer
// means the client is not keeping up; the frame is dropped and the client
// resynchronizes via its next list_snapshot.
func (s *Session) enqueue(frame []byte) {
	select {
	case s.send <- frame:
	case <-s.quit:
	default:
		s.log.Warn("send buffer full, dropping frame")
	}
}

// writePump drains the send channel and keeps the connection alive with
// pings. Runs as the only goroutine writing to the connection.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.quit:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// close signals the writer and closes the underlying connection. Safe to
// call once; the server serializes it on the read loop exit path.
func (s *Session) close() {
	close(s.quit)
	_ = s.conn.Close()
}
