package chat

import (
	"sync"

	"github.com/rs/zerolog"
)

// Session is the server-side state of one connection: its optional authenticated
// identity and its current (room, username) binding.
type Session struct {
	conn Conn

	// identity is the username proven by the handshake token, empty for anonymous connections.
	identity string

	mu       sync.Mutex
	roomCode string
	username string
	detached bool

	log zerolog.Logger
}

// Conn returns the session's connection.
func (s *Session) Conn() Conn {
	return s.conn
}

// Identity returns the authenticated username, if any.
func (s *Session) Identity() string {
	return s.identity
}

// Binding returns the bound room and username; ok is false for an unbound session.
func (s *Session) Binding() (roomCode, username string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.roomCode, s.username, s.roomCode != ""
}

func (s *Session) bind(roomCode, username string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.roomCode, s.username = roomCode, username
}

// unbind clears the binding and returns the previous one.
func (s *Session) unbind() (roomCode, username string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	roomCode, username, ok = s.roomCode, s.username, s.roomCode != ""
	s.roomCode, s.username = "", ""
	return roomCode, username, ok
}

// markDetached reports whether this call detached the session.
func (s *Session) markDetached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.detached {
		return false
	}
	s.detached = true
	return true
}
