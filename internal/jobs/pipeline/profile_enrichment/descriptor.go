package profile_enrichment

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// BuildDescriptor folds the free-text profile fields into the single
// normalised text the oracle compares. Empty input gives "".
func BuildDescriptor(bio, lookingFor string, tags []string) string {
	var parts []string
	if s := squash(bio); s != "" {
		parts = append(parts, "about: "+s)
	}
	if s := squash(lookingFor); s != "" {
		parts = append(parts, "looking for: "+s)
	}
	if t := normaliseTags(tags); len(t) > 0 {
		parts = append(parts, "interests: "+strings.Join(t, ", "))
	}
	return strings.Join(parts, "\n")
}

// HashDescriptor is the hex sha256 of d, or "" for an empty descriptor.
func HashDescriptor(d string) string {
	if d == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(d))
	return hex.EncodeToString(sum[:])
}

func squash(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normaliseTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(squash(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
