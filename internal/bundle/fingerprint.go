package bundle

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

// hashPrefixLen is how much of the content hash lands in the file name.
// Twelve hex chars keep collisions implausible while staying readable.
const hashPrefixLen = 12

// Fingerprint returns the hex sha256 of the bundled output bytes.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintedName encodes a content hash into a logical name:
// "main.css" + hash → "main.ab12cd34ef56.css". Stable keys, content-addressed
// values, so pages can cache fingerprinted files forever.
func FingerprintedName(logical, hash string) string {
	ext := path.Ext(logical)
	base := strings.TrimSuffix(logical, ext)
	return base + "." + hash[:hashPrefixLen] + ext
}
