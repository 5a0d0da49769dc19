package chat

import (
	"github.com/rs/zerolog"

	"tempchat/internal/pkg/logx"
	"tempchat/internal/pkg/metrics"
)

// Router fans events out to the subscribed connections of a room.
//
// Frames are encoded once and enqueued while the room is locked, which gives a total
// order per room. Enqueue never blocks: a full or closed connection loses the frame.
type Router struct {
	reg *Registry
	log zerolog.Logger
}

// NewRouter creates a router over reg.
func NewRouter(reg *Registry) *Router {
	return &Router{
		reg: reg,
		log: logx.Component("router"),
	}
}

// Publish delivers event to every connection in code except exceptConnID (empty for none)
// and returns how many connections accepted it. For EventUserCount the payload is ignored
// and the count is taken at publish time.
func (r *Router) Publish(code, event string, payload any, exceptConnID string) int {
	rs := r.reg.lockRoom(code, false)
	if rs == nil {
		return 0
	}
	defer rs.mu.Unlock()

	if event == EventUserCount {
		return r.publishCountLocked(rs)
	}
	return r.publishLocked(rs, event, payload, exceptConnID)
}

// SendTo enqueues one event to a single connection.
func (r *Router) SendTo(conn Conn, event string, payload any) bool {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		r.log.Error().Err(err).Str("event", event).Msg("Failed to encode event")
		return false
	}
	return r.deliver(conn, event, frame)
}

func (r *Router) publishCountLocked(rs *roomState) int {
	return r.publishLocked(rs, EventUserCount, UserCountPayload{Count: len(rs.members)}, "")
}

func (r *Router) publishLocked(rs *roomState, event string, payload any, exceptConnID string) int {
	frame, err := encodeEvent(event, payload)
	if err != nil {
		r.log.Error().Err(err).Str("room_code", rs.code).Str("event", event).Msg("Failed to encode event")
		return 0
	}

	delivered := 0
	for id, conn := range rs.subs {
		if id == exceptConnID {
			continue
		}
		if r.deliver(conn, event, frame) {
			delivered++
		}
	}
	return delivered
}

func (r *Router) deliver(conn Conn, event string, frame []byte) bool {
	if conn.Enqueue(frame) {
		return true
	}

	metrics.EventsDropped.WithLabelValues(event).Inc()
	r.log.Warn().Str("conn_id", conn.ID()).Str("event", event).Msg("Connection did not accept event, dropped")
	return false
}
