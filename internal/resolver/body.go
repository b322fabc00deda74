package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gadievron/mailmatch/internal/addrparse"
	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/textutil"
)

// bodyQuery searches for the literal name inside message text.
func (r *Resolver) bodyQuery(q namequery.NameQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, `"%s" newer_than:%dy`, strings.Join(q.Tokens, " "), r.opts.HeaderWindowYears)
	for _, d := range r.opts.NoiseDomains {
		fmt.Fprintf(&b, " -from:%s", d)
	}
	return b.String()
}

// bodyPhase scans matched message bodies for email-shaped substrings.
func (r *Resolver) bodyPhase(ctx context.Context, q namequery.NameQuery) (*PhaseResult, error) {
	threads, err := r.mail.SearchMessages(ctx, r.bodyQuery(q), r.opts.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search message bodies: %w", err)
	}

	cs := newCandidateSet()
	now := r.now()
	for _, th := range threads {
		for _, m := range th.Messages {
			text := m.bodyPlain()
			if text == "" {
				continue
			}
			for _, addr := range addrparse.FindAddresses(text) {
				r.considerBodyAddress(cs, q, addr, m.Date, now)
			}
		}
	}
	return cs.result(PhaseBody), nil
}

// considerBodyAddress keeps a body-scanned address only when a surname
// variant appears in its local-part or domain. Body evidence is noisier
// than header evidence, hence the flat penalty.
func (r *Resolver) considerBodyAddress(cs *candidateSet, q namequery.NameQuery, addr string, date, now time.Time) {
	if r.isJunk(addr) {
		return
	}

	plain := localPlain(addr)
	_, rawDomain := addrparse.Split(strings.ToLower(addr))
	domain := textutil.Fold(rawDomain)

	retained := false
	for _, last := range surnameVariants(q) {
		if last != "" && (strings.Contains(plain, last) || strings.Contains(domain, last)) {
			retained = true
			break
		}
	}
	if !retained {
		return
	}

	score := bestBase(addr, q)
	if first := normToken(q.First); first != "" && strings.HasPrefix(plain, first[:1]) {
		score += 2
	}
	score += recencyBonus(date, now)
	score -= 2

	cs.add(addr, score, date, 0)
}
