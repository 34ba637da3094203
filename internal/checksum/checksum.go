// Package checksum computes content digests used as plan versions.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String returns the digest of s.
func String(s string) string {
	return Sum([]byte(s))
}

// Match reports whether an If-Match style tag names the digest of content.
// Surrounding quotes and a weak "W/" prefix are ignored; "*" matches anything.
func Match(tag, content string) bool {
	tag = strings.TrimSpace(tag)
	if tag == "*" {
		return true
	}
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.Trim(tag, `"`)
	return tag == String(content)
}
