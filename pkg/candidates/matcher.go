package candidates

import (
	"strings"

	"github.com/snapgraph/snapgraph/pkg/models"
)

// Matcher decides whether two name spellings refer to the same person. It
// combines an alias table with structural rules over normalized names.
type Matcher struct {
	// aliases maps a normalized alias to its normalized canonical name.
	aliases map[string]string
}

// NewMatcher builds a Matcher from alias groups keyed by canonical name.
// Every alias, and the canonical name itself, resolves to the canonical form.
func NewMatcher(aliasGroups map[string][]string) *Matcher {
	aliases := make(map[string]string, len(aliasGroups)*2)
	for canonical, group := range aliasGroups {
		nc := Normalize(canonical)
		if nc == "" {
			continue
		}
		aliases[nc] = nc
		for _, alias := range group {
			if na := Normalize(alias); na != "" {
				aliases[na] = nc
			}
		}
	}
	return &Matcher{aliases: aliases}
}

// Canonical returns the normalized, alias-resolved form of a name.
func (m *Matcher) Canonical(name string) string {
	n := Normalize(name)
	if c, ok := m.aliases[n]; ok {
		return c
	}
	return n
}

// SamePerson reports whether two names refer to the same person. Rules are
// applied in order: exact normalized equality (after alias resolution),
// reversed two-word order, whole-word subset of the longer name, equal first
// and last name, and single-token surname equality.
func (m *Matcher) SamePerson(a, b string) bool {
	na, nb := m.Canonical(a), m.Canonical(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}

	wa, wb := strings.Fields(na), strings.Fields(nb)

	// "Obama Barack" vs "Barack Obama".
	if len(wa) == 2 && len(wb) == 2 && wa[0] == wb[1] && wa[1] == wb[0] {
		return true
	}

	// "Barack Obama" vs "Barack Hussein Obama". Whole words only, so short
	// names cannot match by substring accident.
	if wholeWordSubset(wa, wb) || wholeWordSubset(wb, wa) {
		return true
	}

	// "Mary Jane Watson" vs "Mary Watson": first and last name both equal.
	if len(wa) >= 2 && len(wb) >= 2 && wa[0] == wb[0] && wa[len(wa)-1] == wb[len(wb)-1] {
		return true
	}

	// "Obama" vs "Barack Obama": a lone token equal to the other surname.
	if len(wa) == 1 && len(wb) >= 2 && wa[0] == wb[len(wb)-1] {
		return true
	}
	if len(wb) == 1 && len(wa) >= 2 && wb[0] == wa[len(wa)-1] {
		return true
	}

	return false
}

// MatchesAny reports whether name matches any entry of the given list.
func (m *Matcher) MatchesAny(name string, list []string) bool {
	for _, other := range list {
		if m.SamePerson(name, other) {
			return true
		}
	}
	return false
}

// BestMatch returns the highest-confidence detection matching the target
// name, or nil when no detection matches.
func (m *Matcher) BestMatch(target string, detections []models.Detection) *models.Detection {
	var best *models.Detection
	for i := range detections {
		d := &detections[i]
		if !m.SamePerson(d.Name, target) {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}
	return best
}

// wholeWordSubset reports whether every word of shorter occurs in longer.
// Requires shorter to have at least two words and strictly fewer than longer;
// single tokens are handled by the surname rule.
func wholeWordSubset(shorter, longer []string) bool {
	if len(shorter) < 2 || len(shorter) >= len(longer) {
		return false
	}
	set := make(map[string]struct{}, len(longer))
	for _, w := range longer {
		set[w] = struct{}{}
	}
	for _, w := range shorter {
		if _, ok := set[w]; !ok {
			return false
		}
	}
	return true
}
