// Package room derives call room identities. Both participants compute the
// same room id independently, so no coordination message is needed before
// joining.
package room

import (
	"crypto/sha256"
	"encoding/hex"
)

// Role is a participant's role in the offer/answer exchange.
type Role int

const (
	// Initiator sends the first offer.
	Initiator Role = iota

	// Joiner waits for the offer and answers it.
	Joiner
)

// String returns the role name.
func (r Role) String() string {
	if r == Initiator {
		return "initiator"
	}
	return "joiner"
}

// Derive returns the room id shared by two participants. The participant
// ids are ordered lexicographically before hashing, so Derive(a, b) and
// Derive(b, a) are identical.
func Derive(userA, userB string) string {
	a, b := userA, userB
	if a > b {
		a, b = b, a
	}
	sum := sha256.Sum256([]byte(a + "\x00" + b))
	return hex.EncodeToString(sum[:16])
}

// TieBreak decides the role the local participant takes when both sides
// believe they should initiate. The decision depends only on the two ids,
// never on timing, so simultaneous offers cannot happen.
func TieBreak(localID, remoteID string) Role {
	if localID < remoteID {
		return Initiator
	}
	return Joiner
}
