package resolver

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// bumpCap limits the cumulative recency bump a candidate can
// accumulate across repeated header sightings.
const bumpCap = 6.0

// maxAlternates bounds the runners-up kept alongside a winner.
const maxAlternates = 5

// Candidate is one scored address within a phase.
type Candidate struct {
	Email       string // original case preserved for display
	Score       float64
	LastSeen    time.Time
	RecencyBump float64

	// base is the best base+bonus component seen so far, excluding
	// the cumulative bump.
	base float64
}

// PhaseResult is the winner of one phase plus up to five runners-up.
type PhaseResult struct {
	Winner     Candidate
	Source     Phase
	Alternates []Candidate // score-descending
}

// FormatAlternates renders the runners-up as "email [score]" pairs.
func (p *PhaseResult) FormatAlternates() string {
	if p == nil || len(p.Alternates) == 0 {
		return ""
	}
	parts := make([]string, 0, len(p.Alternates))
	for _, c := range p.Alternates {
		parts = append(parts, fmt.Sprintf("%s [%.1f]", c.Email, c.Score))
	}
	return strings.Join(parts, ", ")
}

// candidateSet accumulates accepted candidates for one phase, keyed by
// lowercase address.
type candidateSet struct {
	byKey map[string]*Candidate
}

func newCandidateSet() *candidateSet {
	return &candidateSet{byKey: make(map[string]*Candidate)}
}

// add merges one piece of evidence. score is the base+bonus total for
// this sighting (without bump); bump is this sighting's bump
// contribution, accumulated under bumpCap. A candidate's score is
// monotonically non-decreasing: the stored base+bonus component is
// only replaced by a strictly greater one.
func (cs *candidateSet) add(email string, score float64, seen time.Time, bump float64) {
	key := strings.ToLower(email)
	c, ok := cs.byKey[key]
	if !ok {
		c = &Candidate{Email: email, LastSeen: seen}
		cs.byKey[key] = c
	}

	if bump > 0 {
		delta := bump
		if c.RecencyBump+delta > bumpCap {
			delta = bumpCap - c.RecencyBump
		}
		if delta > 0 {
			c.RecencyBump += delta
		}
	}
	if score > c.base {
		c.base = score
	}
	c.Score = c.base + c.RecencyBump
	if seen.After(c.LastSeen) {
		c.LastSeen = seen
	}
}

// result picks the winner (max score, ties broken by most recent
// evidence) and the top runners-up. Returns nil when the set is empty.
func (cs *candidateSet) result(source Phase) *PhaseResult {
	if len(cs.byKey) == 0 {
		return nil
	}

	ranked := make([]Candidate, 0, len(cs.byKey))
	for _, c := range cs.byKey {
		ranked = append(ranked, *c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].LastSeen.After(ranked[j].LastSeen)
	})

	res := &PhaseResult{Winner: ranked[0], Source: source}
	rest := ranked[1:]
	if len(rest) > maxAlternates {
		rest = rest[:maxAlternates]
	}
	if len(rest) > 0 {
		res.Alternates = append(res.Alternates, rest...)
	}
	return res
}
