package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"tempchat/internal/app/model"
)

// RedisStore keeps records under native key TTLs:
//
//	account:<username>     JSON, TTL = account retention
//	room:<CODE>            JSON, TTL = room retention
//	room:<CODE>:messages   sorted set of JSON messages scored by unix millis
//
// The message set's TTL is refreshed on every insert and stale members are trimmed
// by score, so Sweep only has to prune sets that stopped receiving messages.
type RedisStore struct {
	client *redis.Client
	opts   Options
}

// NewRedisClient parses redisURL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps client.
func NewRedisStore(client *redis.Client, opts Options) *RedisStore {
	return &RedisStore{client: client, opts: opts.withDefaults()}
}

func accountKey(username string) string {
	return "account:" + username
}

func roomKey(code string) string {
	return "room:" + code
}

func roomMessagesKey(code string) string {
	return fmt.Sprintf("room:%s:messages", code)
}

// accountRecord is the stored form of an account; model.Account hides the hash from JSON.
type accountRecord struct {
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	LastLogin    time.Time `json:"lastLogin"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (r accountRecord) toModel() *model.Account {
	return &model.Account{
		Username:     r.Username,
		DisplayName:  r.DisplayName,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		LastLogin:    r.LastLogin,
		ExpiresAt:    r.ExpiresAt,
	}
}

func (s *RedisStore) CreateAccount(ctx context.Context, username, displayName, passwordHash string) (*model.Account, error) {
	now := s.opts.now()
	rec := accountRecord{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		LastLogin:    now,
		ExpiresAt:    now.Add(s.opts.Retention.Account),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("create account %q: %w", username, err)
	}

	created, err := s.client.SetNX(ctx, accountKey(username), data, s.opts.Retention.Account).Result()
	if err != nil {
		return nil, fmt.Errorf("create account %q: %w", username, err)
	}
	if !created {
		return nil, fmt.Errorf("create account %q: %w", username, ErrConflict)
	}
	return rec.toModel(), nil
}

func (s *RedisStore) getAccountRecord(ctx context.Context, c redis.Cmdable, username string) (*accountRecord, error) {
	data, err := c.Get(ctx, accountKey(username)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec accountRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if model.Expired(rec.ExpiresAt, s.opts.now()) {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *RedisStore) GetAccount(ctx context.Context, username string) (*model.Account, error) {
	rec, err := s.getAccountRecord(ctx, s.client, username)
	if err != nil {
		return nil, fmt.Errorf("get account %q: %w", username, err)
	}
	return rec.toModel(), nil
}

// TouchLastLogin rewrites the record under WATCH, keeping the key's remaining TTL.
func (s *RedisStore) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	key := accountKey(username)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		rec, err := s.getAccountRecord(ctx, tx, username)
		if err != nil {
			return err
		}
		rec.LastLogin = at

		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.SetArgs(ctx, key, data, redis.SetArgs{Mode: "XX", KeepTTL: true})
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("touch account %q: %w", username, err)
	}
	return nil
}

// EnsureRoom relies on SET NX: the first writer wins and every caller reads back its record.
func (s *RedisStore) EnsureRoom(ctx context.Context, code string) (*model.Room, error) {
	key := roomKey(code)

	for range 3 {
		now := s.opts.now()
		fresh := model.Room{Code: code, CreatedAt: now, ExpiresAt: now.Add(s.opts.Retention.Room)}

		data, err := json.Marshal(fresh)
		if err != nil {
			return nil, fmt.Errorf("ensure room %q: %w", code, err)
		}

		created, err := s.client.SetNX(ctx, key, data, s.opts.Retention.Room).Result()
		if err != nil {
			return nil, fmt.Errorf("ensure room %q: %w", code, err)
		}
		if created {
			return &fresh, nil
		}

		room, err := s.GetRoom(ctx, code)
		if err == nil {
			return room, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}

		// Expired between SETNX and GET, or a stale record outlived its expiry.
		if err := s.client.Del(ctx, key).Err(); err != nil {
			return nil, fmt.Errorf("ensure room %q: %w", code, err)
		}
	}
	return nil, fmt.Errorf("ensure room %q: gave up after concurrent expiry", code)
}

func (s *RedisStore) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	data, err := s.client.Get(ctx, roomKey(code)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("get room %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get room %q: %w", code, err)
	}

	var room model.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return nil, fmt.Errorf("get room %q: %w", code, err)
	}
	if model.Expired(room.ExpiresAt, s.opts.now()) {
		return nil, fmt.Errorf("get room %q: %w", code, ErrNotFound)
	}
	return &room, nil
}

func (s *RedisStore) DeleteRoom(ctx context.Context, code string) error {
	if err := s.client.Del(ctx, roomMessagesKey(code), roomKey(code)).Err(); err != nil {
		return fmt.Errorf("delete room %q: %w", code, err)
	}
	return nil
}

func (s *RedisStore) cutoff(now time.Time) string {
	return strconv.FormatInt(now.Add(-s.opts.Retention.Message).UnixMilli(), 10)
}

func (s *RedisStore) AddMessage(ctx context.Context, msg *model.Message) error {
	now := s.opts.now()
	stampMessage(msg, now, s.opts.Retention.Message)

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("add message %q: %w", msg.ID, err)
	}

	key := roomMessagesKey(msg.RoomCode)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, key, redis.Z{
			Score:  float64(msg.Timestamp.UnixMilli()),
			Member: string(data),
		})
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+s.cutoff(now))
		pipe.Expire(ctx, key, s.opts.Retention.Message)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add message %q: %w", msg.ID, err)
	}
	return nil
}

// ListMessages reads newest first from the sorted set and reverses the page.
// Members sharing a score are ordered by their JSON, which begins with the id.
func (s *RedisStore) ListMessages(ctx context.Context, code string, limit int) ([]model.Message, error) {
	now := s.opts.now()

	results, err := s.client.ZRevRangeByScore(ctx, roomMessagesKey(code), &redis.ZRangeBy{
		Min:   s.cutoff(now),
		Max:   "+inf",
		Count: int64(clampLimit(limit)),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list messages %q: %w", code, err)
	}

	messages := make([]model.Message, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		var msg model.Message
		if err := json.Unmarshal([]byte(results[i]), &msg); err != nil {
			return nil, fmt.Errorf("list messages %q: %w", code, err)
		}
		if model.Expired(msg.ExpiresAt, now) {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Sweep trims expired members from every message set. Keys themselves expire natively.
func (s *RedisStore) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	var stats SweepStats
	cutoff := "(" + s.cutoff(now)

	iter := s.client.Scan(ctx, 0, "room:*:messages", 100).Iterator()
	for iter.Next(ctx) {
		removed, err := s.client.ZRemRangeByScore(ctx, iter.Val(), "-inf", cutoff).Result()
		if err != nil {
			return stats, fmt.Errorf("sweep %s: %w", iter.Val(), err)
		}
		stats.Messages += removed
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("sweep: %w", err)
	}
	return stats, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
