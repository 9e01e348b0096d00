package domain

import (
	"strings"

	"github.com/google/uuid"
)

// CanonicalPair orders two user ids so that every caller agrees on which
// side is "low" and which is "high".
func CanonicalPair(a, b uuid.UUID) (uuid.UUID, uuid.UUID) {
	if strings.Compare(a.String(), b.String()) <= 0 {
		return a, b
	}
	return b, a
}

// PairKey is the canonical id of an unordered user pair.
func PairKey(a, b uuid.UUID) string {
	lo, hi := CanonicalPair(a, b)
	return lo.String() + "-" + hi.String()
}

// PairJobID is the dedup key for pair analysis work.
func PairJobID(a, b uuid.UUID) string {
	return "pair:" + PairKey(a, b)
}

// EnrichmentJobID is the dedup key for descriptor enrichment work.
func EnrichmentJobID(userID uuid.UUID) string {
	return "enrich:" + userID.String()
}
