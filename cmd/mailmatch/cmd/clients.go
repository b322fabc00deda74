package cmd

import (
	"context"
	"fmt"

	"github.com/gadievron/mailmatch/internal/gcal"
	"github.com/gadievron/mailmatch/internal/gmail"
	"github.com/gadievron/mailmatch/internal/oauth"
	"github.com/gadievron/mailmatch/internal/ratelimit"
	"github.com/gadievron/mailmatch/internal/resolver"
)

// buildResolver wires the OAuth token, API clients, and owner identity
// into a resolver for the given account. withCalendar disables the
// calendar phase when false.
func buildResolver(ctx context.Context, account string, withCalendar bool) (*resolver.Resolver, error) {
	if cfg.OAuth.ClientSecrets == "" {
		return nil, errOAuthNotConfigured()
	}

	oauthMgr, err := oauth.NewManager(cfg.OAuth.ClientSecrets, cfg.TokensDir(), logger)
	if err != nil {
		return nil, wrapOAuthError(fmt.Errorf("create oauth manager: %w", err))
	}

	tokenSource, err := getTokenSourceWithReauth(ctx, oauthMgr, account)
	if err != nil {
		return nil, err
	}

	qps := float64(cfg.Resolve.RateLimitQPS)
	if qps <= 0 {
		qps = 5
	}

	mail := gmail.NewClient(tokenSource,
		gmail.WithLogger(logger),
		// Search quota: 5 units per list or fetch.
		gmail.WithRateLimiter(ratelimit.New(qps*5, 250)),
	)

	// The profile email plus configured aliases identify outbound mail.
	profile, err := mail.GetProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("get profile for %s: %w", account, err)
	}
	selfAddrs := append([]string{profile.EmailAddress}, cfg.Identity.Aliases...)

	var cal resolver.CalendarSearcher
	if withCalendar {
		cal = gcal.NewClient(tokenSource,
			gcal.WithLogger(logger),
			gcal.WithRateLimiter(ratelimit.New(qps, 25)),
		)
	}

	opts := resolver.Options{
		HeaderWindowYears:   cfg.Resolve.HeaderWindowYears,
		CalendarWindowYears: cfg.Resolve.CalendarWindowYears,
		SearchLimit:         cfg.Resolve.SearchLimit,
		NoiseDomains:        cfg.Resolve.NoiseDomains,
		JunkDomains:         cfg.Resolve.JunkDomains,
	}

	return resolver.New(mail, cal, selfAddrs, opts, logger), nil
}
