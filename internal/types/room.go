package types

import (
	"fmt"
	"strings"
)

const roomKeySep = "_"

// RoomKey returns the address of the conversation between a and b. The
// pair is sorted first so both participants derive the same key.
func RoomKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + roomKeySep + b
}

// ParseRoomKey splits a key produced by RoomKey into its two participants.
// Identity ids never contain the separator.
func ParseRoomKey(key string) (string, string, error) {
	a, b, ok := strings.Cut(key, roomKeySep)
	if !ok || a == "" || b == "" || strings.Contains(b, roomKeySep) {
		return "", "", fmt.Errorf("%w: malformed room key %q", ErrValidation, key)
	}

	if RoomKey(a, b) != key {
		return "", "", fmt.Errorf("%w: room key %q is not normalized", ErrValidation, key)
	}

	return a, b, nil
}

// IsParticipant reports whether id is one of the two identities addressed
// by key.
func IsParticipant(key, id string) bool {
	a, b, err := ParseRoomKey(key)
	if err != nil {
		return false
	}
	return id == a || id == b
}
