// Package resolver guesses which email address belongs to a display
// name by searching message headers, calendar guest lists, and message
// bodies, in that order, and scoring every candidate it finds.
package resolver

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/gadievron/mailmatch/internal/addrparse"
	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/textutil"
)

// Phase identifies one strategy in the resolution cascade.
type Phase string

const (
	PhaseFrom     Phase = "from"
	PhaseTo       Phase = "to"
	PhaseCc       Phase = "cc"
	PhaseBcc      Phase = "bcc"
	PhaseCalendar Phase = "calendar"
	PhaseBody     Phase = "body"
)

// headerChannels is the fixed priority order of the header phases.
var headerChannels = []Phase{PhaseFrom, PhaseTo, PhaseCc, PhaseBcc}

// HumanStatus returns the row status label for a hit in this phase.
func (p Phase) HumanStatus() string {
	switch p {
	case PhaseFrom:
		return "Found in FROM headers"
	case PhaseTo:
		return "Found in TO headers"
	case PhaseCc:
		return "Found in CC headers"
	case PhaseBcc:
		return "Found in BCC headers"
	case PhaseCalendar:
		return "Found in calendar invites"
	case PhaseBody:
		return "Found in email bodies"
	}
	return "Not found"
}

// Message is one mail message returned by a search. Header fields hold
// the raw header values; addrparse turns them into address pairs.
type Message struct {
	From     string
	To       string
	Cc       string
	Bcc      string
	Date     time.Time
	BodyText string
	BodyHTML string
}

// header returns the raw header value for a header channel.
func (m Message) header(ch Phase) string {
	switch ch {
	case PhaseFrom:
		return m.From
	case PhaseTo:
		return m.To
	case PhaseCc:
		return m.Cc
	case PhaseBcc:
		return m.Bcc
	}
	return ""
}

// bodyPlain returns the plain-text body, falling back to the
// HTML-stripped body, repaired to valid UTF-8.
func (m Message) bodyPlain() string {
	if m.BodyText != "" {
		return textutil.EnsureUTF8(m.BodyText)
	}
	if m.BodyHTML != "" {
		return textutil.EnsureUTF8(textutil.HTMLToText(m.BodyHTML))
	}
	return ""
}

// Thread groups the messages of one conversation.
type Thread struct {
	Messages []Message
}

// MessageSearcher issues one mail search query.
type MessageSearcher interface {
	SearchMessages(ctx context.Context, query string, limit int) ([]Thread, error)
}

// Guest is one calendar event attendee.
type Guest struct {
	Email       string
	DisplayName string
}

// Event is one calendar event with its guest list.
type Event struct {
	Start  time.Time
	Guests []Guest
}

// CalendarSearcher lists events whose guests may match a name.
type CalendarSearcher interface {
	SearchEvents(ctx context.Context, from, to time.Time) ([]Event, error)
}

// Options tune the resolver's search windows and filters.
type Options struct {
	HeaderWindowYears   int      // header and body search window (default 3)
	CalendarWindowYears int      // calendar search window (default 5)
	SearchLimit         int      // max threads per search (default 40)
	NoiseDomains        []string // domains excluded from search queries
	JunkDomains         []string // appended to the built-in junk domain list
}

func (o Options) withDefaults() Options {
	if o.HeaderWindowYears <= 0 {
		o.HeaderWindowYears = 3
	}
	if o.CalendarWindowYears <= 0 {
		o.CalendarWindowYears = 5
	}
	if o.SearchLimit <= 0 {
		o.SearchLimit = 40
	}
	return o
}

// Resolver runs the phase cascade for one account. The search clients,
// owner identity, and settings are passed in explicitly; nothing is
// read from ambient state.
type Resolver struct {
	mail        MessageSearcher
	cal         CalendarSearcher
	self        map[string]struct{}
	opts        Options
	junkDomains []string
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Resolver. selfAddrs is the account owner's primary
// address plus aliases, used for outbound detection; cal may be nil to
// skip the calendar phase.
func New(mail MessageSearcher, cal CalendarSearcher, selfAddrs []string, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	self := make(map[string]struct{}, len(selfAddrs))
	for _, a := range selfAddrs {
		a = strings.ToLower(strings.TrimSpace(a))
		if a != "" {
			self[a] = struct{}{}
		}
	}

	return &Resolver{
		mail:        mail,
		cal:         cal,
		self:        self,
		opts:        opts,
		junkDomains: append(append([]string{}, defaultJunkDomains...), opts.JunkDomains...),
		logger:      logger,
		now:         time.Now,
	}
}

// Resolve runs the phases in strict priority order and returns the
// first phase's result, or nil when no phase produced an accepted
// candidate. A failed search query aborts the whole resolution; the
// caller decides how to record it.
func (r *Resolver) Resolve(ctx context.Context, q namequery.NameQuery) (*PhaseResult, error) {
	for _, ch := range headerChannels {
		res, err := r.headerPhase(ctx, q, ch)
		if err != nil {
			return nil, err
		}
		if res != nil {
			r.logger.Debug("resolved via headers", "name", q.Raw, "phase", ch, "email", res.Winner.Email, "score", res.Winner.Score)
			return res, nil
		}
	}

	if r.cal != nil {
		res, err := r.calendarPhase(ctx, q)
		if err != nil {
			return nil, err
		}
		if res != nil {
			r.logger.Debug("resolved via calendar", "name", q.Raw, "email", res.Winner.Email, "score", res.Winner.Score)
			return res, nil
		}
	}

	res, err := r.bodyPhase(ctx, q)
	if err != nil {
		return nil, err
	}
	if res != nil {
		r.logger.Debug("resolved via bodies", "name", q.Raw, "email", res.Winner.Email, "score", res.Winner.Score)
	}
	return res, nil
}

// isSelf reports whether a From header belongs to the account owner.
func (r *Resolver) isSelf(fromHeader string) bool {
	for _, a := range addrparse.ParseList(fromHeader) {
		if _, ok := r.self[strings.ToLower(a.Email)]; ok {
			return true
		}
	}
	return false
}
