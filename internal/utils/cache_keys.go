package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BuildMetadataCacheKey hashes the normalized url so arbitrary input stays a
// fixed-size, safe redis key.
func BuildMetadataCacheKey(normalizedURL string) string {
	sum := sha256.Sum256([]byte(normalizedURL))
	return "metadata:v1:" + hex.EncodeToString(sum[:])
}

func BuildLookupCacheKey(table string) string {
	return "lookup:v1:" + strings.ToLower(strings.TrimSpace(table))
}
