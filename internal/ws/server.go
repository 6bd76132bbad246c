package ws

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/syncboard/collab-server/internal/auth"
	"github.com/syncboard/collab-server/internal/domain/todo"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to WebSocket sessions, authenticates them and
// pumps inbound frames into the dispatcher.
type Server struct {
	log      *zap.Logger
	verifier *auth.Verifier
	conns    *ConnTable
	hub      *Hub
	dispatch *Dispatcher
	upgrader websocket.Upgrader
}

func NewServer(log *zap.Logger, verifier *auth.Verifier, conns *ConnTable, hub *Hub, dispatch *Dispatcher, allowedOrigins []string) *Server {
	return &Server{
		log:      log.Named("ws"),
		verifier: verifier,
		conns:    conns,
		hub:      hub,
		dispatch: dispatch,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(allowedOrigins),
		},
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// Handle is the gin handler for GET /ws. The bearer token rides in the
// ?token= query parameter since browsers cannot set headers on WebSocket
// upgrades. Expired and wrong-type tokens get an auth_error frame before the
// close so the client can distinguish "refresh and retry" from "log in
// again"; malformed tokens are closed silently.
func (s *Server) Handle(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Debug("upgrade failed", zap.Error(err))
		return
	}

	token := c.Query("token")
	userID, err := s.verifier.Verify(token)
	if err != nil {
		s.rejectConn(conn, err)
		return
	}

	sid := uuid.NewString()
	sess := newSession(s.log, sid, userID, conn)
	s.conns.Add(sid, userID)
	s.hub.Register(sess)
	go sess.writePump()

	s.log.Info("client connected", zap.String("sid", sid), zap.String("user_id", userID))
	s.readPump(c, sess)
}

func (s *Server) rejectConn(conn *websocket.Conn, err error) {
	var msg string
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		msg = "Token expired"
	case errors.Is(err, auth.ErrWrongTokenType):
		msg = "Access token required"
	}
	if msg != "" {
		if frame, encErr := encodeFrame(todo.EventAuthError, errorPayload{Message: msg}); encErr == nil {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_ = conn.WriteMessage(websocket.TextMessage, frame)
		}
	}
	s.log.Debug("connection rejected", zap.Error(err))
	_ = conn.Close()
}

// readPump consumes inbound frames until the peer goes away, then tears the
// session down.
func (s *Server) readPump(c *gin.Context, sess *Session) {
	defer func() {
		s.conns.Remove(sess.ID)
		s.hub.Unregister(sess.ID)
		sess.close()
		s.log.Info("client disconnected", zap.String("sid", sess.ID), zap.String("user_id", sess.UserID))
	}()

	sess.conn.SetReadLimit(maxMessageSize)
	sess.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	sess.conn.SetPongHandler(func(string) error {
		return sess.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		_, raw, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Debug("read failed", zap.String("sid", sess.ID), zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil || frame.Event == "" {
			s.hub.ToSocket(sess.ID, todo.EventError, errorPayload{Message: "Malformed frame"})
			continue
		}

		s.dispatch.Dispatch(c.Request.Context(), sess.ID, frame)
	}
}
