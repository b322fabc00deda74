// Package namequery derives search tokens from raw display names.
package namequery

import (
	"errors"
	"strings"
)

// ErrEmptyName is returned when a name contains no usable tokens.
var ErrEmptyName = errors.New("empty name")

// participles are surname prefixes treated as part of a compound
// surname when they appear directly before the final token.
var participles = map[string]bool{
	"de":  true,
	"da":  true,
	"del": true,
	"la":  true,
	"van": true,
	"von": true,
}

// NameQuery holds the tokens derived from a raw display name.
// Immutable once built.
type NameQuery struct {
	Raw          string
	Tokens       []string // lowercased, whitespace-split
	First        string
	LastSimple   string
	LastCompound string // participle+last when present, else LastSimple
}

// Parse splits a raw name into lowercase tokens and derives the first
// and surname variants. Returns ErrEmptyName when nothing remains
// after splitting.
func Parse(raw string) (NameQuery, error) {
	tokens := strings.Fields(strings.ToLower(raw))
	if len(tokens) == 0 {
		return NameQuery{}, ErrEmptyName
	}

	q := NameQuery{
		Raw:        raw,
		Tokens:     tokens,
		First:      tokens[0],
		LastSimple: tokens[len(tokens)-1],
	}
	q.LastCompound = q.LastSimple
	if len(tokens) >= 2 && participles[tokens[len(tokens)-2]] {
		q.LastCompound = tokens[len(tokens)-2] + q.LastSimple
	}
	return q, nil
}

// HasCompound reports whether the name carries a compound surname.
func (q NameQuery) HasCompound() bool {
	return q.LastCompound != q.LastSimple
}

// CompoundTokens returns the token list with the participle merged into
// the final token, or nil when the name has no compound surname.
func (q NameQuery) CompoundTokens() []string {
	if !q.HasCompound() {
		return nil
	}
	merged := make([]string, 0, len(q.Tokens)-1)
	merged = append(merged, q.Tokens[:len(q.Tokens)-2]...)
	merged = append(merged, q.LastCompound)
	return merged
}
