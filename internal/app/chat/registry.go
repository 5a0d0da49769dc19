package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tempchat/internal/app/model"
	"tempchat/internal/pkg/errs"
	"tempchat/internal/pkg/metrics"
	"tempchat/internal/pkg/randx"
)

// Conn is one live client connection as seen by the core.
type Conn interface {
	// ID is unique for the lifetime of the process.
	ID() string

	// Enqueue queues frame for delivery without blocking. It reports false when the
	// connection is closed or its queue is full; the frame is then dropped.
	Enqueue(frame []byte) bool

	// Close tears down the transport. It is safe to call more than once.
	Close()
}

// RoomStore is the subset of store.Store the registry needs.
type RoomStore interface {
	EnsureRoom(ctx context.Context, code string) (*model.Room, error)
}

// member is one logical user present in a room.
type member struct {
	// conns holds the ids of this user's live connections bound to the room.
	conns map[string]struct{}

	// pending is set while the user has no live connection and waits out the grace window.
	pending *departure
}

// roomState is the in-memory state of one room. All fields are guarded by mu.
type roomState struct {
	code string

	mu      sync.Mutex
	members map[string]*member
	subs    map[string]Conn

	// dead is set when the state is removed from the registry; holders must look it up again.
	dead bool
}

func (rs *roomState) empty() bool {
	return len(rs.members) == 0 && len(rs.subs) == 0
}

// Registry maps room codes to their in-memory state.
//
// Lock order is always Registry.mu before roomState.mu. Registry.mu only guards the map.
type Registry struct {
	store RoomStore

	mu    sync.Mutex
	rooms map[string]*roomState
}

// NewRegistry creates an empty registry backed by s for room records.
func NewRegistry(s RoomStore) *Registry {
	return &Registry{
		store: s,
		rooms: make(map[string]*roomState),
	}
}

// NormalizeCode case-normalizes code and validates it.
func NormalizeCode(code string) (string, error) {
	code = randx.NormalizeRoomCode(code)
	if !randx.IsValidRoomCode(code) {
		return "", errs.NewError(errs.ErrRoomCodeInvalid)
	}
	return code, nil
}

// EnsureRoom creates or fetches the persisted room record for code.
func (r *Registry) EnsureRoom(ctx context.Context, code string) (*model.Room, error) {
	code, err := NormalizeCode(code)
	if err != nil {
		return nil, err
	}

	room, err := r.store.EnsureRoom(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("ensure room %s: %w", code, err)
	}
	return room, nil
}

// lockRoom returns the live state for code with its mutex held. With create unset a
// missing room yields nil.
func (r *Registry) lockRoom(code string, create bool) *roomState {
	for {
		r.mu.Lock()
		rs, ok := r.rooms[code]
		if !ok {
			if !create {
				r.mu.Unlock()
				return nil
			}
			rs = &roomState{
				code:    code,
				members: make(map[string]*member),
				subs:    make(map[string]Conn),
			}
			r.rooms[code] = rs
			metrics.ActiveRooms.Set(float64(len(r.rooms)))
		}
		r.mu.Unlock()

		rs.mu.Lock()
		if !rs.dead {
			return rs
		}
		rs.mu.Unlock()
	}
}

// reap drops the state for code if it has neither members nor subscribers.
func (r *Registry) reap(code string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rs, ok := r.rooms[code]
	if !ok {
		return
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.empty() {
		return
	}
	rs.dead = true
	delete(r.rooms, code)
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

// AddMember marks username present in code. It reports whether the user was absent.
func (r *Registry) AddMember(code, username string) bool {
	rs := r.lockRoom(code, true)
	defer rs.mu.Unlock()

	if _, ok := rs.members[username]; ok {
		return false
	}
	rs.members[username] = &member{conns: make(map[string]struct{})}
	return true
}

// RemoveMember removes username from code, cancelling any pending departure.
// It reports whether the user was present. The room entry is dropped once empty.
func (r *Registry) RemoveMember(code, username string) bool {
	rs := r.lockRoom(code, false)
	if rs == nil {
		return false
	}

	m, ok := rs.members[username]
	if ok {
		m.pending.cancel()
		delete(rs.members, username)
	}
	empty := rs.empty()
	rs.mu.Unlock()

	if empty {
		r.reap(code)
	}
	return ok
}

// Members returns the present usernames of code in sorted order.
func (r *Registry) Members(code string) []string {
	rs := r.lockRoom(code, false)
	if rs == nil {
		return []string{}
	}
	defer rs.mu.Unlock()

	names := make([]string, 0, len(rs.members))
	for name := range rs.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MemberCount returns the number of present users in code.
func (r *Registry) MemberCount(code string) int {
	rs := r.lockRoom(code, false)
	if rs == nil {
		return 0
	}
	defer rs.mu.Unlock()

	return len(rs.members)
}

// ConnectionCount returns the number of subscribed connections in code.
func (r *Registry) ConnectionCount(code string) int {
	rs := r.lockRoom(code, false)
	if rs == nil {
		return 0
	}
	defer rs.mu.Unlock()

	return len(rs.subs)
}

// RoomCount returns the number of rooms with in-memory state.
func (r *Registry) RoomCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.rooms)
}

// each calls fn for every room with the room locked. fn must not call back into the registry.
func (r *Registry) each(fn func(rs *roomState)) {
	r.mu.Lock()
	states := make([]*roomState, 0, len(r.rooms))
	for _, rs := range r.rooms {
		states = append(states, rs)
	}
	r.mu.Unlock()

	for _, rs := range states {
		rs.mu.Lock()
		if !rs.dead {
			fn(rs)
		}
		rs.mu.Unlock()
	}
}
