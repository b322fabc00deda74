package resolver

import (
	"regexp"
	"strings"
	"time"

	"github.com/gadievron/mailmatch/internal/addrparse"
	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/textutil"
)

var (
	digitRunRe = regexp.MustCompile(`[0-9]{3,}`)
	punctRunRe = regexp.MustCompile(`[._%+\-]{2,}`)
	wordSplit  = regexp.MustCompile(`[^a-z]+`)
)

// normToken folds a name token and strips separator punctuation.
func normToken(tok string) string {
	return textutil.StripSeparators(textutil.Fold(tok))
}

// localPlain returns the fully normalized local-part of an address:
// folded with all separator punctuation removed.
func localPlain(email string) string {
	local, _ := addrparse.Split(strings.ToLower(email))
	return textutil.StripSeparators(textutil.Fold(local))
}

// localDotted folds the local-part but keeps dots, so dotted
// concatenation patterns stay distinguishable from plain ones.
func localDotted(email string) string {
	local, _ := addrparse.Split(strings.ToLower(email))
	folded := textutil.Fold(local)
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '\'', '’', '+':
			return -1
		}
		return r
	}, folded)
}

// baseScore rates how well an address's local-part matches a token
// set. Every pattern test is independent and additive: a local-part
// matching several patterns accumulates all of their bonuses.
func baseScore(email string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	first := normToken(tokens[0])
	last := normToken(tokens[len(tokens)-1])
	if first == "" || last == "" {
		return 0
	}

	rawLocal, rawDomain := addrparse.Split(strings.ToLower(email))
	dotted := localDotted(email)
	plain := localPlain(email)
	domain := textutil.Fold(rawDomain)

	var score float64

	// Exact concatenations, plain and dotted, in either order.
	for _, pat := range []string{first + last, last + first, first + "." + last, last + "." + first} {
		if dotted == pat {
			score += 20
		}
	}

	hasFirst := strings.Contains(plain, first)
	hasLast := strings.Contains(plain, last)
	if hasFirst && hasLast {
		score += 12
	}

	// Exact single-name local, stronger when the domain carries the
	// other name.
	if plain == first {
		if strings.Contains(domain, last) {
			score += 10
		} else {
			score += 6
		}
	}
	if plain == last && last != first {
		if strings.Contains(domain, first) {
			score += 10
		} else {
			score += 6
		}
	}

	if strings.HasPrefix(plain, first) {
		score += 8
	}
	if strings.HasPrefix(plain, last) && last != first {
		score += 8
	}

	initial := first[:1]
	if strings.HasPrefix(plain, initial+last) {
		score += 8
	}
	if strings.HasPrefix(plain, last+initial) {
		score += 8
	}

	if hasFirst {
		score += 4
	}
	if hasLast {
		score += 4
	}

	if digitRunRe.MatchString(rawLocal) {
		score -= 3
	}
	if punctRunRe.MatchString(rawLocal) {
		score -= 2
	}
	return score
}

// bestBase scores the address against the plain token set and, when
// the name has a compound surname, against the merged variant, and
// keeps the higher score.
func bestBase(email string, q namequery.NameQuery) float64 {
	score := baseScore(email, q.Tokens)
	if ct := q.CompoundTokens(); ct != nil {
		if c := baseScore(email, ct); c > score {
			score = c
		}
	}
	return score
}

// recencyBonus rewards recent evidence: +6 inside one year, +3 inside
// three years, 0 beyond.
func recencyBonus(date, now time.Time) float64 {
	if date.IsZero() {
		return 0
	}
	switch {
	case !date.Before(now.AddDate(-1, 0, 0)):
		return 6
	case !date.Before(now.AddDate(-3, 0, 0)):
		return 3
	default:
		return 0
	}
}

// surnameVariants returns the simple surname and, when different, the
// compound variant, both normalized.
func surnameVariants(q namequery.NameQuery) []string {
	simple := normToken(q.LastSimple)
	if q.HasCompound() {
		return []string{simple, normToken(q.LastCompound)}
	}
	return []string{simple}
}

// tokenHits counts the tokens appearing as substrings of the folded
// haystack. The haystack gets the same separator stripping as the
// tokens, so a punctuated surname matches its own display form.
func tokenHits(haystackFold string, tokens []string) int {
	hay := textutil.StripSeparators(haystackFold)
	n := 0
	for _, tok := range tokens {
		if t := normToken(tok); t != "" && strings.Contains(hay, t) {
			n++
		}
	}
	return n
}

// wordHits counts the tokens appearing as whole words of a display
// name split on non-alphabetic characters.
func wordHits(displayFold string, tokens []string) int {
	words := make(map[string]bool)
	for _, w := range wordSplit.Split(displayFold, -1) {
		if w != "" {
			words[w] = true
		}
	}
	n := 0
	for _, tok := range tokens {
		if words[normToken(tok)] {
			n++
		}
	}
	return n
}

// strongLocalMatch is the acceptance-gate fallback for evidence with
// no usable display name: the local-part must contain both the first
// name and a surname variant, or start with initial+surname or
// surname+initial.
func strongLocalMatch(email string, q namequery.NameQuery) bool {
	plain := localPlain(email)
	first := normToken(q.First)
	if plain == "" || first == "" {
		return false
	}
	initial := first[:1]
	for _, last := range surnameVariants(q) {
		if last == "" {
			continue
		}
		if strings.Contains(plain, first) && strings.Contains(plain, last) {
			return true
		}
		if strings.HasPrefix(plain, initial+last) || strings.HasPrefix(plain, last+initial) {
			return true
		}
	}
	return false
}

// missingNameToken reports which of {first, surname} is covered by
// neither the local-part nor the display name, provided the other one
// is. Used by the header phase's corroboration bonus.
func missingNameToken(q namequery.NameQuery, plain, displayFold string) (string, bool) {
	display := textutil.StripSeparators(displayFold)
	first := normToken(q.First)
	hasFirst := strings.Contains(plain, first) || strings.Contains(display, first)

	hasLast := false
	for _, last := range surnameVariants(q) {
		if strings.Contains(plain, last) || strings.Contains(display, last) {
			hasLast = true
			break
		}
	}

	switch {
	case hasFirst && !hasLast:
		return normToken(q.LastSimple), true
	case hasLast && !hasFirst:
		return first, true
	}
	return "", false
}

// ConfidenceLabel maps a final score to its confidence band.
func ConfidenceLabel(score float64) string {
	switch {
	case score >= 20:
		return "High"
	case score >= 10:
		return "Medium"
	default:
		return "Low"
	}
}
