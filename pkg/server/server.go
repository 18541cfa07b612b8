// Package server exposes VM sessions over websockets. Every connection gets
// its own VM with a text canvas, keyboard buffer and sound queue.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/antibyte/retrocpc/pkg/auth"
	"github.com/antibyte/retrocpc/pkg/configuration"
	"github.com/antibyte/retrocpc/pkg/driver"
	"github.com/antibyte/retrocpc/pkg/logger"
)

// WebSocket-Konfiguration aus der [Server] Sektion

func getWriteWait() time.Duration {
	return configuration.GetDuration("Server", "write_wait_timeout", 10*time.Second)
}

func getPongWait() time.Duration {
	return configuration.GetDuration("Server", "pong_timeout", 90*time.Second)
}

func getPingPeriod() time.Duration {
	return (getPongWait() * 9) / 10
}

func getMaxMessageSize() int64 {
	return int64(configuration.GetInt("Server", "max_message_size_kb", 64) * 1024)
}

func getRenderInterval() time.Duration {
	return configuration.GetDuration("Server", "render_interval", 50*time.Millisecond)
}

// Store is what sessions need from storage.Store.
type Store interface {
	driver.Files
	SaveSnapshot(ctx context.Context, label string, data []byte) (string, error)
	LoadSnapshot(ctx context.Context, idOrLabel string) ([]byte, error)
	PruneSnapshots(ctx context.Context, keep int) (int, error)
}

// Server manages sessions.
type Server struct {
	store        Store
	upgrader     websocket.Upgrader
	maxSessions  int
	retention    int
	requireToken bool

	mu       sync.RWMutex
	sessions map[string]*Session
}

// New creates a server; store may be nil, file and snapshot requests then fail.
func New(store Store) *Server {
	s := &Server{
		store:        store,
		maxSessions:  configuration.GetInt("Server", "max_sessions", 50),
		retention:    configuration.GetInt("Storage", "snapshot_retention", 50),
		requireToken: configuration.GetBool("Auth", "require_token", false),
		sessions:     make(map[string]*Session),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     checkOrigin,
	}
	return s
}

// checkOrigin admits clients without Origin header (terminals, tools) and
// browsers from the configured origins.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	allowed := configuration.GetString("Server", "allowed_origins", "http://localhost:8080,http://127.0.0.1:8080")
	for _, o := range strings.Split(allowed, ",") {
		if strings.TrimSpace(o) == origin {
			return true
		}
	}
	logger.ServerWarn("origin %s rejected", origin)
	return false
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/api/session", auth.HandleCreateSession)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

// sessionID returns the id for a new connection: from its token when one is
// presented or required, a fresh uuid otherwise.
func (s *Server) sessionID(r *http.Request) (string, int) {
	id, err := auth.SessionFromRequest(r)
	switch {
	case err == nil:
		return id, 0
	case errors.Is(err, auth.ErrNoToken) && !s.requireToken:
		return uuid.New().String(), 0
	}
	return "", http.StatusUnauthorized
}

// HandleWebSocket upgrades the connection and starts a session.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.SessionCount() >= s.maxSessions {
		logger.ServerWarn("maximum sessions reached, connection from %s rejected", r.RemoteAddr)
		http.Error(w, "Server overloaded", http.StatusServiceUnavailable)
		return
	}

	id, status := s.sessionID(r)
	if status != 0 {
		http.Error(w, "Unauthorized", status)
		return
	}
	s.mu.RLock()
	_, taken := s.sessions[id]
	s.mu.RUnlock()
	if taken {
		logger.ServerWarn("session %s already connected", id)
		http.Error(w, "Session already connected", http.StatusConflict)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.ServerError("websocket upgrade failed for %s: %v", r.RemoteAddr, err)
		return
	}

	sess := newSession(s, id, conn)

	s.mu.Lock()
	s.sessions[id] = sess
	count := len(s.sessions)
	s.mu.Unlock()
	logger.ServerInfo("session %s started for %s (%d active)", id, r.RemoteAddr, count)

	sess.start()
}

// SessionCount returns the number of connected sessions.
func (s *Server) SessionCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	logger.ServerInfo("session %s closed", id)
}

// Shutdown closes all sessions.
func (s *Server) Shutdown() {
	s.mu.RLock()
	list := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		list = append(list, sess)
	}
	s.mu.RUnlock()
	for _, sess := range list {
		sess.close()
	}
}
