package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BuildKey hashes an already normalized query. versionID scopes entries so a
// prompt or schema change can invalidate everything at once.
func BuildKey(normalizedQuery, versionID string) Key {
	sum := sha256.Sum256([]byte(normalizedQuery))
	return Key{
		VersionID: strings.TrimSpace(versionID),
		Hash:      hex.EncodeToString(sum[:]),
	}
}
