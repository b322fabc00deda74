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

// headerQuery builds one search query for a header channel: the full
// name plus its "Last, First" variant, bounded to the recency window,
// with noise domains excluded.
func (r *Resolver) headerQuery(q namequery.NameQuery, ch Phase) string {
	name := strings.Join(q.Tokens, " ")
	lastFirst := q.LastSimple + ", " + q.First

	var b strings.Builder
	fmt.Fprintf(&b, `%s:("%s" OR "%s") newer_than:%dy`, ch, name, lastFirst, r.opts.HeaderWindowYears)
	for _, d := range r.opts.NoiseDomains {
		fmt.Fprintf(&b, " -%s:%s", ch, d)
	}
	return b.String()
}

// headerPhase runs one channel of the header strategy.
func (r *Resolver) headerPhase(ctx context.Context, q namequery.NameQuery, ch Phase) (*PhaseResult, error) {
	threads, err := r.mail.SearchMessages(ctx, r.headerQuery(q, ch), r.opts.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search %s headers: %w", ch, err)
	}

	cs := newCandidateSet()
	now := r.now()
	for _, th := range threads {
		for _, m := range th.Messages {
			raw := m.header(ch)
			if raw == "" {
				continue
			}
			// Bcc only appears on sent mail, so it is trivially outbound.
			outbound := ch == PhaseBcc || r.isSelf(m.From)
			for _, a := range addrparse.ParseList(raw) {
				r.considerHeaderAddress(cs, q, ch, a, m, outbound, now)
			}
		}
	}
	return cs.result(ch), nil
}

// considerHeaderAddress junk-filters, gates, and scores one
// (display name, address) pair from a header.
func (r *Resolver) considerHeaderAddress(cs *candidateSet, q namequery.NameQuery, ch Phase, a addrparse.Address, m Message, outbound bool, now time.Time) {
	if r.isJunk(a.Email) {
		return
	}

	displayFold := textutil.Fold(a.Name)
	hits := tokenHits(displayFold, q.Tokens)
	if hits == 0 && !strongLocalMatch(a.Email, q) {
		return
	}

	score := bestBase(a.Email, q)

	rb := recencyBonus(m.Date, now)
	score += 1.5 * rb

	switch {
	case hits >= 2:
		score += 4
	case hits == 1:
		score += 2
	}

	plain := localPlain(a.Email)
	overlap := tokenHits(plain, q.Tokens)

	// Opaque local-part but an exact display-name match: trust the
	// display name, more so on mail the owner sent.
	if hits >= 2 && overlap == 0 {
		if outbound {
			score += 8
		} else {
			score += 4
		}
	}

	if outbound && (ch == PhaseTo || ch == PhaseCc) {
		score += 4
	}

	if missing, ok := missingNameToken(q, plain, displayFold); ok {
		if body := m.bodyPlain(); body != "" && strings.Contains(textutil.Fold(body), missing) {
			score += 4
		}
	}

	var bump float64
	switch {
	case rb >= 6:
		bump = 2
	case rb >= 3:
		bump = 1
	}

	cs.add(a.Email, score, m.Date, bump)
}
