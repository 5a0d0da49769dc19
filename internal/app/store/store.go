/*
Package store persists accounts, rooms and messages with a fixed retention window.

Every record gets ExpiresAt = CreatedAt + TTL when it is written. Reads never return an
expired record; removal happens through Sweep (memory, postgres) or native key expiry
(redis).
*/
package store

import (
	"context"
	"errors"
	"time"

	"tempchat/internal/app/model"
)

// MaxMessages caps ListMessages.
const MaxMessages = 500

var (
	// ErrNotFound is returned for missing or expired records.
	ErrNotFound = errors.New("store: record not found")

	// ErrConflict is returned when creating an account whose username is taken.
	ErrConflict = errors.New("store: record already exists")
)

// Retention holds the lifetime of each collection.
type Retention struct {
	Account time.Duration
	Room    time.Duration
	Message time.Duration
}

// DefaultRetention keeps everything for 24 hours.
var DefaultRetention = Retention{
	Account: 24 * time.Hour,
	Room:    24 * time.Hour,
	Message: 24 * time.Hour,
}

// Options configure every backend.
type Options struct {
	Retention Retention

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

func (o Options) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now()
}

func (o Options) withDefaults() Options {
	if o.Retention.Account <= 0 {
		o.Retention.Account = DefaultRetention.Account
	}
	if o.Retention.Room <= 0 {
		o.Retention.Room = DefaultRetention.Room
	}
	if o.Retention.Message <= 0 {
		o.Retention.Message = DefaultRetention.Message
	}
	return o
}

// SweepStats counts records removed by one Sweep call.
type SweepStats struct {
	Accounts int64
	Rooms    int64
	Messages int64
}

// Total returns the number of records removed.
func (s SweepStats) Total() int64 {
	return s.Accounts + s.Rooms + s.Messages
}

// Store is implemented by the memory, postgres and redis backends.
type Store interface {
	// CreateAccount stores a new account; ErrConflict when an unexpired account has the username.
	CreateAccount(ctx context.Context, username, displayName, passwordHash string) (*model.Account, error)
	GetAccount(ctx context.Context, username string) (*model.Account, error)
	TouchLastLogin(ctx context.Context, username string, at time.Time) error

	// EnsureRoom returns the unexpired room with code, creating it if needed.
	// Concurrent calls with the same code return the same record.
	EnsureRoom(ctx context.Context, code string) (*model.Room, error)
	GetRoom(ctx context.Context, code string) (*model.Room, error)
	// DeleteRoom removes the room and all of its messages. Deleting a missing room is not an error.
	DeleteRoom(ctx context.Context, code string) error

	// AddMessage persists msg, filling CreatedAt and ExpiresAt (and Timestamp when zero).
	AddMessage(ctx context.Context, msg *model.Message) error
	// ListMessages returns the most recent limit messages of the room in ascending order.
	// limit outside 1..MaxMessages means MaxMessages.
	ListMessages(ctx context.Context, code string, limit int) ([]model.Message, error)

	// Sweep removes records expired at now.
	Sweep(ctx context.Context, now time.Time) (SweepStats, error)
	Ping(ctx context.Context) error
	Close() error
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > MaxMessages {
		return MaxMessages
	}
	return limit
}

// stampMessage fills the time fields of msg for insertion at now.
func stampMessage(msg *model.Message, now time.Time, ttl time.Duration) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.CreatedAt = now
	msg.ExpiresAt = now.Add(ttl)
}
