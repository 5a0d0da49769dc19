package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempchat/internal/app/model"
)

func newRedisHarness(t *testing.T) (*harness, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := newFakeClock()
	return &harness{
		store: NewRedisStore(client, Options{Retention: testRetention, Clock: clock.Now}),
		clock: clock,
		advance: func(d time.Duration) {
			clock.Advance(d)
			mr.FastForward(d)
		},
	}, mr
}

func TestRedisStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) *harness {
		h, _ := newRedisHarness(t)
		return h
	})
}

func TestRedisStore_KeysCarryTTL(t *testing.T) {
	ctx := context.Background()
	h, mr := newRedisHarness(t)

	_, err := h.store.CreateAccount(ctx, "alice", "alice", "hash")
	require.NoError(t, err)
	_, err = h.store.EnsureRoom(ctx, "XYZ999")
	require.NoError(t, err)
	require.NoError(t, h.store.AddMessage(ctx, &model.Message{
		ID: "1", RoomCode: "XYZ999", Kind: model.KindText, Username: "alice", Text: "hi",
	}))

	assert.Equal(t, testRetention.Account, mr.TTL("account:alice"))
	assert.Equal(t, testRetention.Room, mr.TTL("room:XYZ999"))
	assert.Equal(t, testRetention.Message, mr.TTL("room:XYZ999:messages"))

	// lastLogin updates keep the remaining lifetime.
	mr.FastForward(10 * time.Minute)
	require.NoError(t, h.store.TouchLastLogin(ctx, "alice", h.clock.Now()))
	assert.Equal(t, testRetention.Account-10*time.Minute, mr.TTL("account:alice"))
}

func TestRedisStore_SweepTrimsStaleMembers(t *testing.T) {
	ctx := context.Background()
	h, mr := newRedisHarness(t)

	old := h.clock.Now().Add(-2 * testRetention.Message)
	require.NoError(t, h.store.AddMessage(ctx, &model.Message{
		ID: "fresh", RoomCode: "R", Kind: model.KindText, Username: "a", Text: "x",
	}))

	// Insert a stale member directly, as a message set that stopped receiving writes would hold.
	_, err := mr.ZAdd("room:R:messages", float64(old.UnixMilli()), `{"id":"stale"}`)
	require.NoError(t, err)

	stats, err := h.store.Sweep(ctx, h.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Messages)

	members, err := mr.ZMembers("room:R:messages")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}
