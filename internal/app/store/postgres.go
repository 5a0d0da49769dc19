package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tempchat/internal/app/db"
	"tempchat/internal/app/model"
)

// PostgresStore persists records in PostgreSQL. Expired rows are filtered on read and
// deleted by Sweep.
type PostgresStore struct {
	pool *pgxpool.Pool
	opts Options
}

// NewPostgresStore wraps a migrated pool (see db.NewPool).
func NewPostgresStore(pool *pgxpool.Pool, opts Options) *PostgresStore {
	return &PostgresStore{pool: pool, opts: opts.withDefaults()}
}

// now truncates to the column precision so returned values match what a later read yields.
func (s *PostgresStore) now() time.Time {
	return s.opts.now().UTC().Truncate(time.Microsecond)
}

const createAccountSQL = `
INSERT INTO accounts (username, display_name, password_hash, created_at, last_login, expires_at)
VALUES ($1, $2, $3, $4, $4, $5)
ON CONFLICT (username) DO UPDATE SET
    display_name  = EXCLUDED.display_name,
    password_hash = EXCLUDED.password_hash,
    created_at    = EXCLUDED.created_at,
    last_login    = EXCLUDED.last_login,
    expires_at    = EXCLUDED.expires_at
WHERE accounts.expires_at <= EXCLUDED.created_at
RETURNING username, display_name, password_hash, created_at, last_login, expires_at`

func (s *PostgresStore) CreateAccount(ctx context.Context, username, displayName, passwordHash string) (*model.Account, error) {
	now := s.now()

	acc, err := scanAccount(s.pool.QueryRow(ctx, createAccountSQL,
		username, displayName, passwordHash, now, now.Add(s.opts.Retention.Account)))
	if errors.Is(err, pgx.ErrNoRows) || db.IsUniqueViolation(err) {
		return nil, fmt.Errorf("create account %q: %w", username, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create account %q: %w", username, err)
	}
	return acc, nil
}

func (s *PostgresStore) GetAccount(ctx context.Context, username string) (*model.Account, error) {
	acc, err := scanAccount(s.pool.QueryRow(ctx, `
SELECT username, display_name, password_hash, created_at, last_login, expires_at
FROM accounts WHERE username = $1 AND expires_at > $2`, username, s.now()))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get account %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %q: %w", username, err)
	}
	return acc, nil
}

func (s *PostgresStore) TouchLastLogin(ctx context.Context, username string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET last_login = $2 WHERE username = $1 AND expires_at > $3`,
		username, at.UTC(), s.now())
	if err != nil {
		return fmt.Errorf("touch account %q: %w", username, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("touch account %q: %w", username, ErrNotFound)
	}
	return nil
}

func scanAccount(row pgx.Row) (*model.Account, error) {
	var acc model.Account
	if err := row.Scan(&acc.Username, &acc.DisplayName, &acc.PasswordHash,
		&acc.CreatedAt, &acc.LastLogin, &acc.ExpiresAt); err != nil {
		return nil, err
	}
	return &acc, nil
}

// An expired row is replaced in place; a live row is returned unchanged.
const ensureRoomSQL = `
INSERT INTO rooms (code, created_at, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (code) DO UPDATE SET
    created_at = CASE WHEN rooms.expires_at <= EXCLUDED.created_at THEN EXCLUDED.created_at ELSE rooms.created_at END,
    expires_at = CASE WHEN rooms.expires_at <= EXCLUDED.created_at THEN EXCLUDED.expires_at ELSE rooms.expires_at END
RETURNING code, created_at, expires_at`

func (s *PostgresStore) EnsureRoom(ctx context.Context, code string) (*model.Room, error) {
	now := s.now()

	var room model.Room
	err := s.pool.QueryRow(ctx, ensureRoomSQL, code, now, now.Add(s.opts.Retention.Room)).
		Scan(&room.Code, &room.CreatedAt, &room.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("ensure room %q: %w", code, err)
	}
	return &room, nil
}

func (s *PostgresStore) GetRoom(ctx context.Context, code string) (*model.Room, error) {
	var room model.Room
	err := s.pool.QueryRow(ctx,
		`SELECT code, created_at, expires_at FROM rooms WHERE code = $1 AND expires_at > $2`,
		code, s.now()).Scan(&room.Code, &room.CreatedAt, &room.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get room %q: %w", code, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get room %q: %w", code, err)
	}
	return &room, nil
}

func (s *PostgresStore) DeleteRoom(ctx context.Context, code string) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM messages WHERE room_code = $1`, code); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `DELETE FROM rooms WHERE code = $1`, code)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete room %q: %w", code, err)
	}
	return nil
}

const insertMessageSQL = `
INSERT INTO messages (id, room_code, kind, username, body, file_name, file_type, file_size, file_data, file_key, sent_at, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

func (s *PostgresStore) AddMessage(ctx context.Context, msg *model.Message) error {
	stampMessage(msg, s.now(), s.opts.Retention.Message)
	msg.Timestamp = msg.Timestamp.UTC().Truncate(time.Microsecond)

	var (
		fileName, fileType, fileData, fileKey *string
		fileSize                              *int64
	)
	if msg.File != nil {
		fileName, fileType = &msg.File.Name, &msg.File.Type
		fileSize = &msg.File.Size
		fileData, fileKey = nullable(msg.File.Data), nullable(msg.File.Key)
	}

	_, err := s.pool.Exec(ctx, insertMessageSQL,
		msg.ID, msg.RoomCode, string(msg.Kind), msg.Username, nullable(msg.Text),
		fileName, fileType, fileSize, fileData, fileKey,
		msg.Timestamp, msg.CreatedAt, msg.ExpiresAt)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("add message %q: %w", msg.ID, ErrConflict)
	}
	if db.IsCheckViolation(err) {
		return fmt.Errorf("add message %q: unsupported kind %q: %w", msg.ID, msg.Kind, err)
	}
	if err != nil {
		return fmt.Errorf("add message %q: %w", msg.ID, err)
	}
	return nil
}

const listMessagesSQL = `
SELECT id, room_code, kind, username, body, file_name, file_type, file_size, file_data, file_key, sent_at, created_at, expires_at
FROM (
    SELECT * FROM messages
    WHERE room_code = $1 AND expires_at > $2
    ORDER BY sent_at DESC, id DESC
    LIMIT $3
) recent
ORDER BY sent_at ASC, id ASC`

func (s *PostgresStore) ListMessages(ctx context.Context, code string, limit int) ([]model.Message, error) {
	rows, err := s.pool.Query(ctx, listMessagesSQL, code, s.now(), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages %q: %w", code, err)
	}

	messages, err := pgx.CollectRows(rows, scanMessage)
	if err != nil {
		return nil, fmt.Errorf("list messages %q: %w", code, err)
	}
	return messages, nil
}

func scanMessage(row pgx.CollectableRow) (model.Message, error) {
	var (
		msg                                         model.Message
		kind                                        string
		body, fileName, fileType, fileData, fileKey *string
		fileSize                                    *int64
	)

	err := row.Scan(&msg.ID, &msg.RoomCode, &kind, &msg.Username, &body,
		&fileName, &fileType, &fileSize, &fileData, &fileKey,
		&msg.Timestamp, &msg.CreatedAt, &msg.ExpiresAt)
	if err != nil {
		return msg, err
	}

	msg.Kind = model.Kind(kind)
	msg.Text = deref(body)
	if fileName != nil {
		msg.File = &model.FileInfo{
			Name: *fileName,
			Type: deref(fileType),
			Data: deref(fileData),
			Key:  deref(fileKey),
		}
		if fileSize != nil {
			msg.File.Size = *fileSize
		}
	}
	return msg, nil
}

func (s *PostgresStore) Sweep(ctx context.Context, now time.Time) (SweepStats, error) {
	var stats SweepStats

	targets := []struct {
		sql  string
		dest *int64
	}{
		{`DELETE FROM accounts WHERE expires_at <= $1`, &stats.Accounts},
		{`DELETE FROM rooms WHERE expires_at <= $1`, &stats.Rooms},
		{`DELETE FROM messages WHERE expires_at <= $1`, &stats.Messages},
	}

	for _, t := range targets {
		tag, err := s.pool.Exec(ctx, t.sql, now.UTC())
		if err != nil {
			return stats, fmt.Errorf("sweep: %w", err)
		}
		*t.dest = tag.RowsAffected()
	}
	return stats, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
