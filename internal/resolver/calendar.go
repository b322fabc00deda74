package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/gadievron/mailmatch/internal/addrparse"
	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/textutil"
)

// calendarPhase searches the guest lists of the calendar window.
func (r *Resolver) calendarPhase(ctx context.Context, q namequery.NameQuery) (*PhaseResult, error) {
	now := r.now()
	from := now.AddDate(-r.opts.CalendarWindowYears, 0, 0)

	events, err := r.cal.SearchEvents(ctx, from, now)
	if err != nil {
		return nil, fmt.Errorf("search calendar guests: %w", err)
	}

	cs := newCandidateSet()
	for _, ev := range events {
		for _, g := range ev.Guests {
			r.considerGuest(cs, q, g, ev.Start, now)
		}
	}
	return cs.result(PhaseCalendar), nil
}

// considerGuest gates and scores one calendar attendee.
func (r *Resolver) considerGuest(cs *candidateSet, q namequery.NameQuery, g Guest, start, now time.Time) {
	if g.Email == "" || !addrparse.ValidShape(g.Email) || r.isJunk(g.Email) {
		return
	}

	displayFold := textutil.Fold(g.DisplayName)
	hits := wordHits(displayFold, q.Tokens)
	if hits == 0 && !strongLocalMatch(g.Email, q) {
		return
	}

	score := bestBase(g.Email, q)

	rb := recencyBonus(start, now)
	score += rb

	switch {
	case hits >= 2:
		score += 4
	case hits == 1:
		score += 2
	}

	plain := localPlain(g.Email)
	overlap := tokenHits(plain, q.Tokens)
	if hits >= 2 && overlap == 0 {
		score += 4
	}

	// Being on a guest list is strong evidence when the event is
	// recent; weaker when the local-part shares nothing with the name.
	var participant float64
	switch {
	case rb >= 6:
		participant = 10
	case rb >= 3:
		participant = 5
	}
	if overlap == 0 {
		score -= 8
		participant -= 5
		if participant < 0 {
			participant = 0
		}
	}
	score += participant

	cs.add(g.Email, score, start, 0)
}
