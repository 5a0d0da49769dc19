/*
Package randx provides cryptographically secure room codes and the identifiers used
for messages and connections.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

const (
	// RoomCodeChars is the alphabet for room codes (A-Z, 0-9).
	RoomCodeChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// RoomCodeLength is the length of generated room codes.
	RoomCodeLength = 12

	// MaxRoomCodeLength bounds caller-supplied room codes after normalization.
	MaxRoomCodeLength = 32
)

// RoomCode generates a random room code of RoomCodeLength characters using crypto/rand.
func RoomCode() (string, error) {
	alphabetLen := big.NewInt(int64(len(RoomCodeChars)))
	result := make([]byte, RoomCodeLength)

	for i := range RoomCodeLength {
		num, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("failed to generate random number for room code: %w", err)
		}

		result[i] = RoomCodeChars[num.Int64()]
	}

	return string(result), nil
}

// NormalizeRoomCode trims surrounding whitespace and uppercases the code.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsValidRoomCode reports whether an already normalized code is 1 to MaxRoomCodeLength
// characters drawn from RoomCodeChars.
func IsValidRoomCode(code string) bool {
	if len(code) == 0 || len(code) > MaxRoomCodeLength {
		return false
	}

	for _, char := range code {
		if !strings.ContainsRune(RoomCodeChars, char) {
			return false
		}
	}

	return true
}

// MessageID returns a new ULID. IDs created by this process sort by creation time.
func MessageID() string {
	return ulid.Make().String()
}

// ConnectionID returns a random UUID v4 identifying one transport connection.
func ConnectionID() string {
	return uuid.New().String()
}
