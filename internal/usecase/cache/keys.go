package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// globalScope marks entries not bound to an actor.
const globalScope = "global"

// Normalize canonicalizes a query for key derivation: trim, lowercase,
// collapse whitespace runs to single spaces.
func Normalize(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}

// Key derives the deterministic cache key for a query within a scope.
// Identical normalized query and scope always hash to the same key, across
// processes, so the persistent tier is shared by all workers.
func Key(query, scope string) string {
	if scope == "" {
		scope = globalScope
	}
	h := sha256.Sum256([]byte(Normalize(query) + "|" + scope))
	return hex.EncodeToString(h[:])
}
