package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the content hash used to detect whether a source
// item changed since the last sync. Identical content always yields an
// identical fingerprint, which is the sync idempotence boundary.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
