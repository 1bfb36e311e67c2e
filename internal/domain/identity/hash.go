package identity

import (
	"hash/fnv"
	"strconv"
)

// hashString returns the 32-bit FNV-1a hash of s rendered as a decimal
// string. Non-cryptographic: uniqueness is enforced by the resolver, not
// assumed from the hash.
func hashString(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return strconv.FormatUint(uint64(h.Sum32()), 10)
}

// Derive computes the candidate pseudonymous id for a source id. Pure
// function of (salt, sourceID); collisions are possible and must be
// resolved against the persistent mapping before use.
func Derive(salt, sourceID string) string {
	return hashString(salt + "#" + sourceID)
}
