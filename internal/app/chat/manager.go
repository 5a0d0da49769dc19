package chat

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tempchat/internal/app/model"
	"tempchat/internal/app/storage"
	"tempchat/internal/app/user"
	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/metrics"
)

// Store is the part of the retention store used by the chat core.
type Store interface {
	RoomStore
	MessageStore
	DeleteRoom(ctx context.Context, code string) error
}

// Options configure a Manager.
type Options struct {
	GraceWindow  time.Duration
	MaxFileBytes int64

	// Blobs enables file offload when non-nil.
	Blobs storage.StorageService
}

// Manager owns the realtime core and routes connection events into it.
type Manager struct {
	store    Store
	blobs    storage.StorageService
	registry *Registry
	router   *Router
	presence *Presence
	ingest   *Ingestor

	mu       sync.Mutex
	sessions map[string]*Session

	logger zerolog.Logger
}

// NewManager wires the registry, router, presence reconciler and ingestor over s.
func NewManager(s Store, opts Options) *Manager {
	registry := NewRegistry(s)
	router := NewRouter(registry)

	return &Manager{
		store:    s,
		blobs:    opts.Blobs,
		registry: registry,
		router:   router,
		presence: NewPresence(registry, router, s, opts.GraceWindow),
		ingest:   NewIngestor(s, router, opts.Blobs, opts.MaxFileBytes),
		sessions: make(map[string]*Session),
		logger:   logx.Component("manager"),
	}
}

// Registry exposes the room registry.
func (m *Manager) Registry() *Registry { return m.registry }

// Ingestor exposes message ingestion.
func (m *Manager) Ingestor() *Ingestor { return m.ingest }

// Attach registers conn. identity is the authenticated username or empty.
func (m *Manager) Attach(conn Conn, identity string) *Session {
	s := &Session{
		conn:     conn,
		identity: identity,
		log: m.logger.With().
			Str("conn_id", conn.ID()).
			Str("identity", identity).
			Logger(),
	}

	m.mu.Lock()
	m.sessions[conn.ID()] = s
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveConnections.Set(float64(count))
	s.log.Debug().Msg("Session attached")
	return s
}

// Detach unbinds the session and hands its departure to the presence reconciler
// without waiting for the grace window.
func (m *Manager) Detach(s *Session) {
	if !s.markDetached() {
		return
	}

	if code, username, ok := s.unbind(); ok {
		m.presence.Leave(code, username, s.conn.ID())
	}

	m.mu.Lock()
	delete(m.sessions, s.conn.ID())
	count := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveConnections.Set(float64(count))
	s.log.Debug().Msg("Session detached")
}

// Dispatch handles one inbound frame. Every failure is reported to the originating
// connection as an error event.
func (m *Manager) Dispatch(ctx context.Context, s *Session, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		m.reject(s, errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	var err error
	switch env.Event {
	case EventJoinRoom:
		err = m.handleJoin(ctx, s, env.Data)
	case EventSendMessage:
		err = m.handleMessage(ctx, s, env.Data)
	case EventSendFile:
		err = m.handleFile(ctx, s, env.Data)
	case EventTyping:
		err = m.handleTyping(s, env.Data, EventUserTyping)
	case EventStopTyping:
		err = m.handleTyping(s, env.Data, EventUserStopTyping)
	default:
		err = errs.NewError(errs.ErrUnknownEvent, env.Event)
	}

	if err != nil {
		m.reject(s, err)
	}
}

func (m *Manager) reject(s *Session, err error) {
	code := errs.CodeOf(err)
	if code >= errs.ErrUnknown {
		s.log.Error().Err(err).Msg("Inbound event failed")
	} else {
		s.log.Debug().Int("code", code).Msg("Inbound event rejected")
	}

	if !s.conn.Enqueue(errorFrame(err)) {
		metrics.EventsDropped.WithLabelValues(EventError).Inc()
	}
}

func decodePayload(data json.RawMessage, dst any) error {
	if len(data) == 0 {
		return errs.NewError(errs.ErrInvalidParams)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}
	return nil
}

func (m *Manager) handleJoin(ctx context.Context, s *Session, data json.RawMessage) error {
	var p JoinPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	code, err := NormalizeCode(p.RoomCode)
	if err != nil {
		return err
	}

	username, cErr := user.ValidateUsername(p.Username)
	if cErr != nil {
		return cErr
	}

	if s.identity != "" && username != s.identity {
		return errs.NewError(errs.ErrIdentityMismatch)
	}

	if _, err := m.registry.EnsureRoom(ctx, code); err != nil {
		return errs.NewError(errs.ErrStorageFailed, err)
	}

	if prevCode, prevUser, ok := s.Binding(); ok && (prevCode != code || prevUser != username) {
		s.unbind()
		m.presence.Leave(prevCode, prevUser, s.conn.ID())
	}

	s.bind(code, username)
	m.router.SendTo(s.conn, EventRoomJoined, RoomJoinedPayload{RoomCode: code, Username: username})
	m.presence.Join(ctx, code, username, s.conn)

	s.log.Info().Str("room_code", code).Str("username", username).Msg("Connection joined room")
	return nil
}

// bound checks the session binding against the room and username named by a payload.
// Empty payload fields default to the binding.
func bound(s *Session, roomCode, username string) (string, string, error) {
	code, name, ok := s.Binding()
	if !ok {
		return "", "", errs.NewError(errs.ErrNotJoined)
	}

	if roomCode != "" {
		if normalized, err := NormalizeCode(roomCode); err != nil || normalized != code {
			return "", "", errs.NewError(errs.ErrBindingMismatch)
		}
	}
	if username != "" && strings.TrimSpace(username) != name {
		return "", "", errs.NewError(errs.ErrBindingMismatch)
	}
	return code, name, nil
}

func (m *Manager) handleMessage(ctx context.Context, s *Session, data json.RawMessage) error {
	var p MessagePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	code, username, err := bound(s, p.RoomCode, p.Username)
	if err != nil {
		return err
	}

	if strings.TrimSpace(p.Text) == "" {
		return errs.NewError(errs.ErrMessageEmpty)
	}

	_, err = m.ingest.SubmitMessage(ctx, code, username, model.KindText, Content{Text: p.Text})
	return err
}

func (m *Manager) handleFile(ctx context.Context, s *Session, data json.RawMessage) error {
	var p FilePayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	code, username, err := bound(s, p.RoomCode, p.Username)
	if err != nil {
		return err
	}

	_, err = m.ingest.SubmitMessage(ctx, code, username, model.KindFile, Content{File: &FileUpload{
		Name: p.FileName,
		Type: p.FileType,
		Size: p.FileSize,
		Data: p.FileData,
	}})
	return err
}

func (m *Manager) handleTyping(s *Session, data json.RawMessage, event string) error {
	var p TypingPayload
	if err := decodePayload(data, &p); err != nil {
		return err
	}

	code, username, err := bound(s, p.RoomCode, p.Username)
	if err != nil {
		return err
	}

	m.router.Publish(code, event, TypingNotice{Username: username}, s.conn.ID())
	return nil
}

// DeleteRoom removes the room record, its messages and its blobs. Live connections
// stay joined; later messages recreate the records.
func (m *Manager) DeleteRoom(ctx context.Context, code string) error {
	code, err := NormalizeCode(code)
	if err != nil {
		return err
	}

	if err := m.store.DeleteRoom(ctx, code); err != nil {
		return errs.NewError(errs.ErrStorageFailed, err)
	}

	if m.blobs != nil {
		removed, err := m.blobs.DeletePrefix(ctx, code+"/")
		if err != nil {
			m.logger.Warn().Err(err).Str("room_code", code).Msg("Failed to remove room files")
		} else if removed > 0 {
			m.logger.Info().Str("room_code", code).Int("files", removed).Msg("Room files removed")
		}
	}

	m.logger.Info().Str("room_code", code).Msg("Room deleted")
	return nil
}

// Shutdown cancels pending departures and closes every attached connection.
func (m *Manager) Shutdown() {
	m.logger.Info().Msg("Shutting down chat manager...")

	m.presence.Stop()

	m.mu.Lock()
	conns := make([]Conn, 0, len(m.sessions))
	for _, s := range m.sessions {
		conns = append(conns, s.conn)
	}
	m.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}

	m.logger.Info().Int("connections", len(conns)).Msg("Chat manager shutdown complete.")
}
