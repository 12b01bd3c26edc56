package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// DigestHex returns the hex SHA-256 of b. It identifies a document in logs
// without recording its contents.
func DigestHex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
