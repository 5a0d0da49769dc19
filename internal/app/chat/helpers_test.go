package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"tempchat/internal/app/model"
	"tempchat/internal/app/store"
)

const testGrace = 50 * time.Millisecond

var connSeq atomic.Int64

// fakeConn records every frame it accepts. A positive capacity makes it refuse frames
// once that many are queued.
type fakeConn struct {
	id       string
	capacity int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: fmt.Sprintf("conn-%d", connSeq.Add(1))}
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Enqueue(frame []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || (f.capacity > 0 && len(f.frames) >= f.capacity) {
		return false
	}
	f.frames = append(f.frames, frame)
	return true
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type receivedEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func (f *fakeConn) events(t *testing.T) []receivedEvent {
	t.Helper()

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]receivedEvent, 0, len(f.frames))
	for _, frame := range f.frames {
		var ev receivedEvent
		require.NoError(t, json.Unmarshal(frame, &ev))
		out = append(out, ev)
	}
	return out
}

func (f *fakeConn) eventNames(t *testing.T) []string {
	t.Helper()

	var names []string
	for _, ev := range f.events(t) {
		names = append(names, ev.Event)
	}
	return names
}

// lastOf decodes the data of the most recent event named name into dst.
func (f *fakeConn) lastOf(t *testing.T, name string, dst any) bool {
	t.Helper()

	evs := f.events(t)
	for i := len(evs) - 1; i >= 0; i-- {
		if evs[i].Event == name {
			require.NoError(t, json.Unmarshal(evs[i].Data, dst))
			return true
		}
	}
	return false
}

func (f *fakeConn) lastError(t *testing.T) ErrorPayload {
	t.Helper()

	var p ErrorPayload
	require.True(t, f.lastOf(t, EventError, &p), "expected an error event")
	return p
}

func (f *fakeConn) lastCount(t *testing.T) int {
	t.Helper()

	var p UserCountPayload
	require.True(t, f.lastOf(t, EventUserCount, &p), "expected a user-count event")
	return p.Count
}

func newTestManager(t *testing.T, opts Options) (*Manager, *store.MemoryStore) {
	t.Helper()

	if opts.GraceWindow == 0 {
		opts.GraceWindow = testGrace
	}

	s := store.NewMemoryStore(store.Options{})
	m := NewManager(s, opts)
	t.Cleanup(m.Shutdown)
	return m, s
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()

	raw, err := json.Marshal(map[string]any{"event": event, "data": data})
	require.NoError(t, err)
	return raw
}

// connect attaches a new fake connection and joins it to code as username.
func connect(t *testing.T, m *Manager, code, username string) (*Session, *fakeConn) {
	t.Helper()

	conn := newFakeConn()
	s := m.Attach(conn, "")
	m.Dispatch(context.Background(), s, frame(t, EventJoinRoom, JoinPayload{RoomCode: code, Username: username}))
	return s, conn
}

func systemTexts(t *testing.T, s *store.MemoryStore, code string) []string {
	t.Helper()

	msgs, err := s.ListMessages(context.Background(), code, 0)
	require.NoError(t, err)

	var texts []string
	for _, msg := range msgs {
		if msg.Kind == model.KindSystem {
			texts = append(texts, msg.Text)
		}
	}
	return texts
}

func countText(texts []string, want string) int {
	n := 0
	for _, text := range texts {
		if text == want {
			n++
		}
	}
	return n
}
