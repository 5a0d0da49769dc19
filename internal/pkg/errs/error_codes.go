/*
Package errs defines the application error codes shared by the HTTP API and the
websocket event stream, plus the CustomError type that carries them.
*/
package errs

// 1xxx: request handling (VALIDATION)
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates a Content-Type other than application/json.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates a body or websocket frame that is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates a body above the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates the caller exceeded its request rate.
	ErrRateLimitExceeded = 1007

	// ErrUnknownEvent indicates a websocket event name the server does not handle.
	ErrUnknownEvent = 1008
)

// 2xxx: rooms and content
const (
	// ErrRoomCodeInvalid indicates a room code outside the accepted alphabet or length.
	ErrRoomCodeInvalid = 2101

	// ErrRoomNotFound indicates the room does not exist or has expired (NOT_FOUND).
	ErrRoomNotFound = 2103

	// ErrNotJoined indicates a room operation from a connection that has not joined a room.
	ErrNotJoined = 2105

	// ErrBindingMismatch indicates an event naming a room or user other than the connection's binding.
	ErrBindingMismatch = 2106

	// ErrMessageEmpty indicates a text message without content.
	ErrMessageEmpty = 2201

	// ErrOversizedPayload indicates a file above the configured size limit.
	ErrOversizedPayload = 2202

	// ErrFileInvalid indicates malformed file metadata or payload encoding.
	ErrFileInvalid = 2203

	// ErrFileNotFound indicates an unknown or foreign file key.
	ErrFileNotFound = 2204

	// ErrMessageTooLong indicates a text message above the length limit.
	ErrMessageTooLong = 2205
)

// 3xxx: accounts and identity
const (
	// ErrInvalidUsername indicates a username outside 3-20 allowed characters.
	ErrInvalidUsername = 3001

	// ErrInvalidPassword indicates a password shorter than the minimum.
	ErrInvalidPassword = 3002

	// ErrUserAlreadyExists indicates a duplicate account registration (CONFLICT).
	ErrUserAlreadyExists = 3102

	// ErrInvalidCredentials indicates an unknown username or wrong password.
	ErrInvalidCredentials = 3104

	// ErrIdentityMismatch indicates a join under a username other than the authenticated one.
	ErrIdentityMismatch = 3105

	// ErrUnauthorized indicates a missing or invalid token.
	ErrUnauthorized = 3401
)

// 5xxx: internal
const (
	// ErrUnknown represents an unclassified internal error (INTERNAL).
	ErrUnknown = 5000

	// ErrStorageFailed indicates the retention store rejected or failed an operation.
	ErrStorageFailed = 5001

	// ErrFileStorageFailed indicates the blob store failed.
	ErrFileStorageFailed = 5002

	// ErrFileStorageDisabled indicates a file endpoint was called without a blob store configured.
	ErrFileStorageDisabled = 5003
)
