package errs

import "net/http"

// errorMap holds the client-facing message and HTTP status for every code.
// A zero Status means the error is reported with HTTP 200 and the code in the body.
var errorMap = map[int]CustomError{
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters."},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format."},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Unsupported request format."},
	ErrExtraContentInBody:    {Code: ErrExtraContentInBody, Message: "Request contains unexpected data."},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},
	ErrUnknownEvent:          {Code: ErrUnknownEvent, Message: "Unsupported event %q."},

	ErrRoomCodeInvalid:  {Code: ErrRoomCodeInvalid, Message: "Invalid room code."},
	ErrRoomNotFound:     {Code: ErrRoomNotFound, Message: "Room not found.", Status: http.StatusNotFound},
	ErrNotJoined:        {Code: ErrNotJoined, Message: "Join a room first."},
	ErrBindingMismatch:  {Code: ErrBindingMismatch, Message: "This connection is joined to another room or user."},
	ErrMessageEmpty:     {Code: ErrMessageEmpty, Message: "Message is empty."},
	ErrOversizedPayload: {Code: ErrOversizedPayload, Message: "File too large. Maximum %d MB allowed.", Status: http.StatusRequestEntityTooLarge},
	ErrFileInvalid:      {Code: ErrFileInvalid, Message: "Invalid file."},
	ErrFileNotFound:     {Code: ErrFileNotFound, Message: "File not found.", Status: http.StatusNotFound},
	ErrMessageTooLong:   {Code: ErrMessageTooLong, Message: "Message is too long. Maximum %d characters allowed."},

	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Username must be 3-20 characters."},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Password must be at least 6 characters."},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username already taken.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid username or password.", Status: http.StatusUnauthorized},
	ErrIdentityMismatch:   {Code: ErrIdentityMismatch, Message: "You can only join as the signed-in user."},
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},

	ErrUnknown:             {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStorageFailed:       {Code: ErrStorageFailed, Message: "Storage is unavailable. Please try again.", Status: http.StatusInternalServerError},
	ErrFileStorageFailed:   {Code: ErrFileStorageFailed, Message: "File storage failed. Please try again.", Status: http.StatusBadGateway},
	ErrFileStorageDisabled: {Code: ErrFileStorageDisabled, Message: "File storage is not enabled.", Status: http.StatusNotImplemented},
}
