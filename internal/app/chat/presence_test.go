package chat

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoin_SameUserTwiceAnnouncesOnce(t *testing.T) {
	m, s := newTestManager(t, Options{})

	_, tab1 := connect(t, m, "XYZ999", "alice")
	_, tab2 := connect(t, m, "xyz999", "alice")

	assert.Equal(t, []string{"alice joined the chat"}, systemTexts(t, s, "XYZ999"))
	assert.Equal(t, 1, m.Registry().MemberCount("XYZ999"))
	assert.Equal(t, 2, m.Registry().ConnectionCount("XYZ999"))

	assert.Equal(t,
		[]string{EventRoomJoined, EventNewMessage, EventUserCount, EventUserCount},
		tab1.eventNames(t))
	assert.Equal(t, []string{EventRoomJoined, EventUserCount}, tab2.eventNames(t))
	assert.Equal(t, 1, tab2.lastCount(t))

	var ack RoomJoinedPayload
	require.True(t, tab2.lastOf(t, EventRoomJoined, &ack))
	assert.Equal(t, RoomJoinedPayload{RoomCode: "XYZ999", Username: "alice"}, ack)
}

func TestReconnectWithinGraceIsSilent(t *testing.T) {
	m, s := newTestManager(t, Options{GraceWindow: 200 * time.Millisecond})

	_, observer := connect(t, m, "XYZ999", "bob")
	sess, _ := connect(t, m, "XYZ999", "alice")

	m.Detach(sess)
	time.Sleep(20 * time.Millisecond)
	connect(t, m, "XYZ999", "alice")

	time.Sleep(400 * time.Millisecond)

	texts := systemTexts(t, s, "XYZ999")
	assert.Equal(t, 1, countText(texts, "alice joined the chat"))
	assert.Zero(t, countText(texts, "alice left the chat"))
	assert.Equal(t, 2, m.Registry().MemberCount("XYZ999"))
	assert.Equal(t, 2, observer.lastCount(t))
}

func TestDisconnectWithoutReconnectAnnouncesLeave(t *testing.T) {
	m, s := newTestManager(t, Options{})

	_, bob := connect(t, m, "XYZ999", "bob")
	sess, _ := connect(t, m, "XYZ999", "alice")
	require.Equal(t, 2, bob.lastCount(t))

	m.Detach(sess)

	// Still present inside the grace window.
	assert.Equal(t, 2, m.Registry().MemberCount("XYZ999"))

	require.Eventually(t, func() bool {
		return m.Registry().MemberCount("XYZ999") == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(2 * testGrace)
	assert.Equal(t, 1, countText(systemTexts(t, s, "XYZ999"), "alice left the chat"))
	assert.Equal(t, 1, bob.lastCount(t))
	assert.Equal(t, []string{"bob"}, m.Registry().Members("XYZ999"))
}

func TestLastMemberLeavingDropsMembershipButKeepsRoom(t *testing.T) {
	m, s := newTestManager(t, Options{})

	sess, _ := connect(t, m, "XYZ999", "alice")
	m.Detach(sess)

	require.Eventually(t, func() bool {
		return m.Registry().RoomCount() == 0
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, m.Registry().Members("XYZ999"))

	room, err := s.GetRoom(context.Background(), "XYZ999")
	require.NoError(t, err)
	assert.Equal(t, "XYZ999", room.Code)
}

func TestTwoTabs_ClosingOneTabKeepsUserPresent(t *testing.T) {
	m, s := newTestManager(t, Options{})

	tab1, _ := connect(t, m, "XYZ999", "alice")
	tab2, _ := connect(t, m, "XYZ999", "alice")

	m.Detach(tab1)
	time.Sleep(3 * testGrace)

	assert.Zero(t, countText(systemTexts(t, s, "XYZ999"), "alice left the chat"))
	assert.Equal(t, 1, m.Registry().MemberCount("XYZ999"))

	m.Detach(tab2)
	require.Eventually(t, func() bool {
		return countText(systemTexts(t, s, "XYZ999"), "alice left the chat") == 1
	}, time.Second, 5*time.Millisecond)

	time.Sleep(2 * testGrace)
	texts := systemTexts(t, s, "XYZ999")
	assert.Equal(t, []string{"alice joined the chat", "alice left the chat"}, texts)
}

func TestRejoinAfterLeaveAnnouncesAgain(t *testing.T) {
	m, s := newTestManager(t, Options{})

	sess, _ := connect(t, m, "XYZ999", "alice")
	m.Detach(sess)
	require.Eventually(t, func() bool {
		return len(systemTexts(t, s, "XYZ999")) == 2
	}, time.Second, 5*time.Millisecond)

	connect(t, m, "XYZ999", "alice")

	assert.Equal(t,
		[]string{"alice joined the chat", "alice left the chat", "alice joined the chat"},
		systemTexts(t, s, "XYZ999"))
}

func TestSwitchingRoomsReleasesPreviousBinding(t *testing.T) {
	m, s := newTestManager(t, Options{})

	sess, conn := connect(t, m, "ROOMA", "alice")
	m.Dispatch(context.Background(), sess, frame(t, EventJoinRoom, JoinPayload{RoomCode: "ROOMB", Username: "alice"}))

	code, username, ok := sess.Binding()
	require.True(t, ok)
	assert.Equal(t, "ROOMB", code)
	assert.Equal(t, "alice", username)
	assert.Equal(t, 0, m.Registry().ConnectionCount("ROOMA"))

	require.Eventually(t, func() bool {
		return countText(systemTexts(t, s, "ROOMA"), "alice left the chat") == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"alice joined the chat"}, systemTexts(t, s, "ROOMB"))
	assert.False(t, conn.isClosed())
}

func TestPresenceStopCancelsPendingDepartures(t *testing.T) {
	m, s := newTestManager(t, Options{})

	sess, _ := connect(t, m, "XYZ999", "alice")
	m.Detach(sess)
	m.presence.Stop()

	time.Sleep(3 * testGrace)
	assert.Zero(t, countText(systemTexts(t, s, "XYZ999"), "alice left the chat"))
}

// Joined and left announcements of one user must alternate no matter how connects and
// disconnects interleave.
func TestConcurrentChurnKeepsAnnouncementsAlternating(t *testing.T) {
	m, s := newTestManager(t, Options{GraceWindow: 5 * time.Millisecond})

	var wg sync.WaitGroup
	for w := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 25 {
				sess, _ := connect(t, m, "CHURN", "alice")
				if (w+i)%3 == 0 {
					time.Sleep(time.Duration(i%4) * time.Millisecond)
				}
				m.Detach(sess)
			}
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool {
		return m.Registry().MemberCount("CHURN") == 0
	}, 2*time.Second, 5*time.Millisecond)

	texts := systemTexts(t, s, "CHURN")
	require.NotEmpty(t, texts)
	for i, text := range texts {
		want := "alice joined the chat"
		if i%2 == 1 {
			want = "alice left the chat"
		}
		assert.Equal(t, want, text, fmt.Sprintf("announcement %d", i))
	}
	assert.Equal(t, "alice left the chat", texts[len(texts)-1])
}

func TestRegistryMembershipOperations(t *testing.T) {
	m, _ := newTestManager(t, Options{})
	reg := m.Registry()

	assert.True(t, reg.AddMember("ROOM", "bob"))
	assert.True(t, reg.AddMember("ROOM", "alice"))
	assert.False(t, reg.AddMember("ROOM", "alice"))

	assert.Equal(t, []string{"alice", "bob"}, reg.Members("ROOM"))
	assert.Equal(t, 2, reg.MemberCount("ROOM"))

	assert.True(t, reg.RemoveMember("ROOM", "alice"))
	assert.False(t, reg.RemoveMember("ROOM", "alice"))
	assert.True(t, reg.RemoveMember("ROOM", "bob"))

	assert.Zero(t, reg.RoomCount())
	assert.Zero(t, reg.MemberCount("ROOM"))
}

func TestRegistryEnsureRoomNormalizes(t *testing.T) {
	m, s := newTestManager(t, Options{})
	ctx := context.Background()

	var wg sync.WaitGroup
	codes := []string{"xyz999", " XYZ999 ", "Xyz999", "XYZ999"}
	for _, code := range codes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Registry().EnsureRoom(ctx, code)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	room, err := s.GetRoom(ctx, "XYZ999")
	require.NoError(t, err)
	assert.Equal(t, "XYZ999", room.Code)

	_, err = m.Registry().EnsureRoom(ctx, "not valid!")
	assert.Error(t, err)
}
