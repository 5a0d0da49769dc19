package chat

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"tempchat/internal/app/model"
	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/metrics"
	"tempchat/internal/pkg/randx"
)

// DefaultGraceWindow is how long a user without live connections stays present.
const DefaultGraceWindow = 3 * time.Second

// departureTimeout bounds the store write of a "left" announcement.
const departureTimeout = 5 * time.Second

// MessageStore is the subset of store.Store used to persist messages.
type MessageStore interface {
	AddMessage(ctx context.Context, msg *model.Message) error
}

// departure is the cancellable token of one scheduled leave. A fired timer only acts
// if its token is still the member's pending one.
type departure struct {
	timer *time.Timer
}

func (d *departure) cancel() {
	if d != nil && d.timer != nil {
		d.timer.Stop()
	}
}

// Presence reconciles connection churn into logical joins and leaves.
//
// Per (room, username) the state is ABSENT (no member entry), PRESENT (entry with live
// connections) or PENDING_DEPARTURE (entry without connections and a pending timer).
// Announcements are persisted and published while the room is locked, so joined and
// left messages of one user always alternate.
type Presence struct {
	reg    *Registry
	router *Router
	store  MessageStore
	grace  time.Duration

	stopped atomic.Bool
	log     zerolog.Logger
}

// NewPresence creates a reconciler. A non-positive grace means DefaultGraceWindow.
func NewPresence(reg *Registry, router *Router, s MessageStore, grace time.Duration) *Presence {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}
	return &Presence{
		reg:    reg,
		router: router,
		store:  s,
		grace:  grace,
		log:    logx.Component("presence"),
	}
}

// Join binds conn as a connection of username in code and subscribes it to the room.
// The first connection of an absent user announces the join; any pending departure is
// cancelled silently. The user count is always re-broadcast.
func (p *Presence) Join(ctx context.Context, code, username string, conn Conn) {
	rs := p.reg.lockRoom(code, true)
	defer rs.mu.Unlock()

	rs.subs[conn.ID()] = conn

	m, present := rs.members[username]
	switch {
	case !present:
		m = &member{conns: make(map[string]struct{})}
		rs.members[username] = m
		metrics.PresenceTransitions.WithLabelValues("joined").Inc()
	case m.pending != nil:
		m.pending.cancel()
		m.pending = nil
		metrics.PresenceTransitions.WithLabelValues("resumed").Inc()
		p.log.Debug().Str("room_code", code).Str("username", username).Msg("Pending departure cancelled")
	default:
		metrics.PresenceTransitions.WithLabelValues("rejoined").Inc()
	}
	m.conns[conn.ID()] = struct{}{}

	if !present {
		p.announceLocked(ctx, rs, fmt.Sprintf("%s joined the chat", username))
	}
	p.router.publishCountLocked(rs)
}

// Leave unbinds connID from username in code. When it was the user's last connection a
// departure is scheduled after the grace window. Leave never waits for it.
func (p *Presence) Leave(code, username, connID string) {
	rs := p.reg.lockRoom(code, false)
	if rs == nil {
		return
	}

	delete(rs.subs, connID)

	m, ok := rs.members[username]
	if ok {
		delete(m.conns, connID)
		if len(m.conns) == 0 && m.pending == nil && !p.stopped.Load() {
			d := &departure{}
			m.pending = d
			d.timer = time.AfterFunc(p.grace, func() { p.depart(code, username, d) })
			metrics.PresenceTransitions.WithLabelValues("pending").Inc()
		}
	}

	empty := rs.empty()
	rs.mu.Unlock()

	if empty {
		p.reg.reap(code)
	}
}

// depart runs when a departure timer fires.
func (p *Presence) depart(code, username string, d *departure) {
	if p.stopped.Load() {
		return
	}

	rs := p.reg.lockRoom(code, false)
	if rs == nil {
		return
	}

	m, ok := rs.members[username]
	if !ok || m.pending != d || len(m.conns) > 0 {
		rs.mu.Unlock()
		return
	}

	delete(rs.members, username)
	metrics.PresenceTransitions.WithLabelValues("left").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), departureTimeout)
	p.announceLocked(ctx, rs, fmt.Sprintf("%s left the chat", username))
	cancel()
	p.router.publishCountLocked(rs)

	empty := rs.empty()
	rs.mu.Unlock()

	if empty {
		p.reg.reap(code)
	}
}

// announceLocked persists a system message and publishes it to the room.
// A store failure is logged and the announcement is still delivered live.
func (p *Presence) announceLocked(ctx context.Context, rs *roomState, text string) {
	msg := &model.Message{
		ID:       randx.MessageID(),
		RoomCode: rs.code,
		Kind:     model.KindSystem,
		Username: model.SystemAuthor,
		Text:     text,
	}

	if err := p.store.AddMessage(ctx, msg); err != nil {
		p.log.Error().Err(err).Str("room_code", rs.code).Str("text", text).Msg("Failed to persist presence announcement")
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
	} else {
		metrics.MessagesPosted.WithLabelValues(string(model.KindSystem)).Inc()
	}

	p.router.publishLocked(rs, EventNewMessage, msg, "")
}

// Stop cancels every pending departure. Later disconnects schedule nothing.
func (p *Presence) Stop() {
	p.stopped.Store(true)

	p.reg.each(func(rs *roomState) {
		for _, m := range rs.members {
			m.pending.cancel()
			m.pending = nil
		}
	})
}
