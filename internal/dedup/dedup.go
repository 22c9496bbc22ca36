// Package dedup decides whether a discovered candidate already exists in
// the catalog. The check is a best-effort string-similarity heuristic,
// not an exact duplicate-detection guarantee.
package dedup

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/spotsng/discovery-be/internal/catalog"
)

const (
	// NameThreshold is the name similarity above which a candidate is a duplicate
	NameThreshold = 0.70
	// AddressThreshold is the address similarity above which a candidate is a duplicate
	AddressThreshold = 0.85
	// MinNameLength guards against spuriously high similarity between very
	// short names. Normalized names below this length never score.
	MinNameLength = 2
)

// Candidate is a not-yet-persisted point-of-interest proposed by a
// discovery source.
type Candidate struct {
	Name      string            `json:"name"`
	Address   string            `json:"address"`
	Latitude  *float64          `json:"latitude,omitempty"`
	Longitude *float64          `json:"longitude,omitempty"`
	Source    string            `json:"source"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Normalize lowercases, trims, and collapses internal whitespace.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity computes a normalized string similarity in [0,1], where 1
// means identical after normalization. Strings shorter than MinNameLength
// after normalization score 0; similarity between such short strings is
// mostly noise, and the caller is expected to live with the false
// negatives rather than trust it.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)

	if len(na) < MinNameLength || len(nb) < MinNameLength {
		return 0
	}

	if na == nb {
		return 1
	}

	dist := levenshtein.ComputeDistance(na, nb)

	maxLen := utf8.RuneCountInString(na)
	if n := utf8.RuneCountInString(nb); n > maxLen {
		maxLen = n
	}

	return 1 - float64(dist)/float64(maxLen)
}

// IsDuplicate reports whether the candidate matches any entry of the
// catalog snapshot closely enough to be treated as the same place.
// Duplicate iff nameSim > NameThreshold or addrSim > AddressThreshold;
// a candidate without an address is judged on name alone. Pure function:
// the caller supplies the snapshot, no I/O happens here.
func IsDuplicate(candidate Candidate, existing []catalog.Snapshot) bool {
	for _, loc := range existing {
		if Similarity(candidate.Name, loc.Name) > NameThreshold {
			return true
		}

		if candidate.Address == "" {
			continue
		}

		if Similarity(candidate.Address, loc.Address) > AddressThreshold {
			return true
		}
	}

	return false
}
