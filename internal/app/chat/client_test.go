package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newWSServer(t *testing.T, m *Manager, readLimit int64) string {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wsConn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(wsConn, readLimit)
		session := m.Attach(client, "")
		go client.WritePump()
		client.ReadPump(context.Background(), m, session)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEvent(t *testing.T, conn *websocket.Conn) receivedEvent {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev receivedEvent
	require.NoError(t, json.Unmarshal(raw, &ev))
	return ev
}

func TestClient_JoinAndDisconnect(t *testing.T) {
	m, s := newTestManager(t, Options{})
	url := newWSServer(t, m, ReadLimit(DefaultMaxFileBytes))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame(t, EventJoinRoom, JoinPayload{RoomCode: "wsroom1", Username: "alice"})))

	assert.Equal(t, EventRoomJoined, readEvent(t, conn).Event)
	assert.Equal(t, EventNewMessage, readEvent(t, conn).Event)
	assert.Equal(t, EventUserCount, readEvent(t, conn).Event)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	ev := readEvent(t, conn)
	assert.Equal(t, EventError, ev.Event)

	require.NoError(t, conn.Close())

	require.Eventually(t, func() bool {
		return m.Registry().MemberCount("WSROOM1") == 0
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, countText(systemTexts(t, s, "WSROOM1"), "alice left the chat"))
}

func TestClient_ShutdownSendsClose(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	url := newWSServer(t, m, ReadLimit(DefaultMaxFileBytes))

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, frame(t, EventJoinRoom, JoinPayload{RoomCode: "wsroom2", Username: "bob"})))
	assert.Equal(t, EventRoomJoined, readEvent(t, conn).Event)

	m.Shutdown()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err = conn.ReadMessage()
		if err != nil {
			break
		}
	}
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}

func TestClient_OversizedFrameClosesConnection(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	url := newWSServer(t, m, 1024)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 2048))))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}

func TestReadLimitCoversEncodedFile(t *testing.T) {
	limit := ReadLimit(DefaultMaxFileBytes)
	assert.Greater(t, limit, DefaultMaxFileBytes*4/3)
	assert.Less(t, limit, DefaultMaxFileBytes*2)
}
