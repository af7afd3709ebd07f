package event

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint is the deterministic identity digest of an event. Two
// canonicalizations of equivalent identity fields always produce the
// same value regardless of set ordering or reporting source.
type Fingerprint string

const fieldSeparator = "\x1f"
const recordSeparator = "\x1e"

// ComputeFingerprint derives the identity digest from the six identity
// fields. CanonicalSource never influences the output.
func ComputeFingerprint(fields CanonicalFields) Fingerprint {
	parts := []string{
		fields.Cluster,
		fields.EventType,
		strings.Join(fields.PrimaryEntities, fieldSeparator),
		strings.Join(fields.Geography, fieldSeparator),
		strings.Join(fields.Instruments, fieldSeparator),
		fields.Mechanism,
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, recordSeparator)))
	return Fingerprint(hex.EncodeToString(sum[:]))
}
