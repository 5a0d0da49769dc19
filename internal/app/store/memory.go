package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"tempchat/internal/app/model"
)

// MemoryStore keeps all records in process memory. Expired records are hidden from reads
// and removed by Sweep.
type MemoryStore struct {
	opts Options

	mu       sync.RWMutex
	accounts map[string]*model.Account
	rooms    map[string]*model.Room
	// messages holds each room's messages sorted by (Timestamp, ID).
	messages map[string][]*model.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:     opts.withDefaults(),
		accounts: make(map[string]*model.Account),
		rooms:    make(map[string]*model.Room),
		messages: make(map[string][]*model.Message),
	}
}

func (s *MemoryStore) CreateAccount(_ context.Context, username, displayName, passwordHash string) (*model.Account, error) {
	now := s.opts.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.accounts[username]; ok && !model.Expired(existing.ExpiresAt, now) {
		return nil, fmt.Errorf("create account %q: %w", username, ErrConflict)
	}

	acc := &model.Account{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLogin:    now,
		ExpiresAt:    now.Add(s.opts.Retention.Account),
	}
	s.accounts[username] = acc

	out := *acc
	return &out, nil
}

func (s *MemoryStore) GetAccount(_ context.Context, username string) (*model.Account, error) {
	now := s.opts.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[username]
	if !ok || model.Expired(acc.ExpiresAt, now) {
		return nil, fmt.Errorf("get account %q: %w", username, ErrNotFound)
	}

	out := *acc
	return &out, nil
}

func (s *MemoryStore) TouchLastLogin(_ context.Context, username string, at time.Time) error {
	now := s.opts.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[username]
	if !ok || model.Expired(acc.ExpiresAt, now) {
		return fmt.Errorf("touch account %q: %w", username, ErrNotFound)
	}
	acc.LastLogin = at
	return nil
}

func (s *MemoryStore) EnsureRoom(_ context.Context, code string) (*model.Room, error) {
	now := s.opts.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[code]
	if !ok || model.Expired(room.ExpiresAt, now) {
		room = &model.Room{
			Code:      code,
			CreatedAt: now,
			ExpiresAt: now.Add(s.opts.Retention.Room),
		}
		s.rooms[code] = room
	}

	out := *room
	return &out, nil
}

func (s *MemoryStore) GetRoom(_ context.Context, code string) (*model.Room, error) {
	now := s.opts.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[code]
	if !ok || model.Expired(room.ExpiresAt, now) {
		return nil, fmt.Errorf("get room %q: %w", code, ErrNotFound)
	}

	out := *room
	return &out, nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.messages, code)
	delete(s.rooms, code)
	return nil
}

func (s *MemoryStore) AddMessage(_ context.Context, msg *model.Message) error {
	stampMessage(msg, s.opts.now(), s.opts.Retention.Message)
	stored := *msg
	if msg.File != nil {
		file := *msg.File
		stored.File = &file
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.messages[msg.RoomCode]
	i := sort.Search(len(list), func(i int) bool { return stored.Before(list[i]) })
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = &stored
	s.messages[msg.RoomCode] = list
	return nil
}

func (s *MemoryStore) ListMessages(_ context.Context, code string, limit int) ([]model.Message, error) {
	limit = clampLimit(limit)
	now := s.opts.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.messages[code]
	out := make([]model.Message, 0, min(limit, len(list)))
	for i := len(list) - 1; i >= 0 && len(out) < limit; i-- {
		if model.Expired(list[i].ExpiresAt, now) {
			continue
		}
		out = append(out, *list[i])
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (SweepStats, error) {
	var stats SweepStats

	s.mu.Lock()
	defer s.mu.Unlock()

	for username, acc := range s.accounts {
		if model.Expired(acc.ExpiresAt, now) {
			delete(s.accounts, username)
			stats.Accounts++
		}
	}

	for code, room := range s.rooms {
		if model.Expired(room.ExpiresAt, now) {
			delete(s.rooms, code)
			stats.Rooms++
		}
	}

	for code, list := range s.messages {
		kept := list[:0]
		for _, msg := range list {
			if model.Expired(msg.ExpiresAt, now) {
				stats.Messages++
				continue
			}
			kept = append(kept, msg)
		}
		if len(kept) == 0 {
			delete(s.messages, code)
			continue
		}
		clear(list[len(kept):])
		s.messages[code] = kept
	}

	return stats, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }
