// Package candidates turns raw face detections into ranked bridge
// candidates: it normalizes person names, matches name variants against
// each other, and aggregates co-appearances across analyzed images.
package candidates

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// generationalSuffixes are trailing tokens stripped during normalization so
// "Robert Downey Jr." and "Robert Downey" resolve to the same node.
var generationalSuffixes = map[string]struct{}{
	"jr": {}, "jr.": {}, "sr": {}, "sr.": {}, "ii": {}, "iii": {}, "iv": {},
}

// Normalize canonicalizes a person name: lowercase, diacritics stripped via
// NFD decomposition, whitespace collapsed, generational suffixes removed.
// The result is the node id, so equal normalizations mean the same node.
func Normalize(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	decomposed := norm.NFD.String(lower)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	fields := strings.Fields(b.String())
	for len(fields) > 1 {
		last := fields[len(fields)-1]
		if _, ok := generationalSuffixes[last]; !ok {
			break
		}
		fields = fields[:len(fields)-1]
	}
	return strings.Join(fields, " ")
}

// NodeID derives the graph node id for a display name. It is a pure function
// of the normalized name.
func NodeID(name string) string {
	return Normalize(name)
}
