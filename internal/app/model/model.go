/*
Package model defines the persisted records of the chat relay: accounts, rooms and
messages. Every record carries an ExpiresAt computed once at creation from the
retention policy; stores never return a record whose expiry has passed.
*/
package model

import "time"

// Kind distinguishes message payloads.
type Kind string

const (
	KindText   Kind = "text"
	KindFile   Kind = "file"
	KindSystem Kind = "system"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindText, KindFile, KindSystem:
		return true
	}
	return false
}

// SystemAuthor is the author recorded on presence announcements.
const SystemAuthor = "System"

// Account is a registered user. PasswordHash is never serialized.
type Account struct {
	Username     string    `json:"username"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	LastLogin    time.Time `json:"lastLogin"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Room is a chat room record. Code is uppercase and unique.
type Room struct {
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// FileInfo describes a file message. Exactly one of Data (inline data URL) and
// Key (blob store object key) is set on a persisted message.
type FileInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Data string `json:"data,omitempty"`
	Key  string `json:"key,omitempty"`
}

// Message is an immutable chat message.
type Message struct {
	ID        string    `json:"id"`
	RoomCode  string    `json:"roomCode"`
	Kind      Kind      `json:"type"`
	Username  string    `json:"username"`
	Text      string    `json:"text,omitempty"`
	File      *FileInfo `json:"file,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Before orders messages by timestamp, then by id.
func (m *Message) Before(other *Message) bool {
	if !m.Timestamp.Equal(other.Timestamp) {
		return m.Timestamp.Before(other.Timestamp)
	}
	return m.ID < other.ID
}

// Expired reports whether a record with the given expiry is gone at now.
func Expired(expiresAt, now time.Time) bool {
	return !now.Before(expiresAt)
}
