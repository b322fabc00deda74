package resolver

import (
	"regexp"
	"strings"

	"github.com/gadievron/mailmatch/internal/addrparse"
)

// junkLocalRe matches automated-sender local-parts that never identify
// a person.
var junkLocalRe = regexp.MustCompile(`no[-_.]?reply|do[-_.]?not[-_.]?reply|mailer[-_.]?daemon|bounce`)

// defaultJunkDomains are internal service domains whose addresses are
// machinery, not people.
var defaultJunkDomains = []string{
	"docs.google.com",
	"docos.google.com",
	"calendar.google.com",
	"resource.calendar.google.com",
	"group.calendar.google.com",
}

// isJunk rejects an address outright before acceptance gating.
func (r *Resolver) isJunk(email string) bool {
	local, domain := addrparse.Split(strings.ToLower(email))
	if local == "notifications" || junkLocalRe.MatchString(local) {
		return true
	}
	for _, d := range r.junkDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}
