/*
Package chat implements the realtime core of the relay: room membership, presence
reconciliation, ordered per-room broadcast, connection sessions and message ingestion.

Frames on the wire are JSON envelopes {"event": "<name>", "data": {...}}.
*/
package chat

import (
	"encoding/json"
	"errors"

	"tempchat/internal/pkg/errs"
)

// Inbound events.
const (
	EventJoinRoom    = "join-room"
	EventSendMessage = "send-message"
	EventSendFile    = "send-file"
	EventTyping      = "typing"
	EventStopTyping  = "stop-typing"
)

// Outbound events.
const (
	EventRoomJoined     = "room-joined"
	EventNewMessage     = "new-message"
	EventUserCount      = "user-count"
	EventUserTyping     = "user-typing"
	EventUserStopTyping = "user-stop-typing"
	EventError          = "error"
)

// Envelope is an inbound frame; Data is decoded once the event is known.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outboundEnvelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// JoinPayload is the data of join-room.
type JoinPayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

// MessagePayload is the data of send-message. Type is accepted for compatibility
// and ignored: clients can only send text through this event.
type MessagePayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
	Text     string `json:"text"`
	Type     string `json:"type,omitempty"`
}

// FilePayload is the data of send-file. FileData is a data URL or bare base64.
type FilePayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
	FileSize int64  `json:"fileSize"`
	FileData string `json:"fileData"`
}

// TypingPayload is the data of typing and stop-typing.
type TypingPayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

// RoomJoinedPayload acknowledges a join to the joining connection.
type RoomJoinedPayload struct {
	RoomCode string `json:"roomCode"`
	Username string `json:"username"`
}

// UserCountPayload carries the number of present users.
type UserCountPayload struct {
	Count int `json:"count"`
}

// TypingNotice is sent to the other connections of a room.
type TypingNotice struct {
	Username string `json:"username"`
}

// ErrorPayload is the data of the error event.
type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// encodeEvent marshals one outbound frame.
func encodeEvent(event string, data any) ([]byte, error) {
	return json.Marshal(outboundEnvelope{Event: event, Data: data})
}

// errorFrame builds the error event for err. Errors without a code are reported as ErrUnknown.
func errorFrame(err error) []byte {
	var customErr *errs.CustomError
	if !errors.As(err, &customErr) {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	frame, _ := encodeEvent(EventError, ErrorPayload{Code: customErr.Code, Message: customErr.Message})
	return frame
}
