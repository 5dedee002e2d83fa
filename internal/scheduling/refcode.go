package scheduling

import (
	"crypto/rand"
	"fmt"
)

// referenceAlphabet is a 32-symbol set with ambiguous characters (0/O, 1/I)
// removed so codes survive being read over the phone.
const referenceAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const (
	referencePrefix = "APT-"
	referenceLength = 4
	maxCodeAttempts = 10
)

// NewReferenceCode generates a random human-speakable reference code such as
// "APT-7KQ2". Uniqueness is enforced by the database unique index; callers
// retry on ErrDuplicateReference.
func NewReferenceCode() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("scheduling: reference code entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return referencePrefix + string(buf), nil
}
