// Package gcal is a minimal Google Calendar REST client that lists the
// events whose guest lists the resolver scans.
package gcal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/gadievron/mailmatch/internal/ratelimit"
	"github.com/gadievron/mailmatch/internal/resolver"
)

const (
	defaultBaseURL = "https://www.googleapis.com/calendar/v3"
	pageSize       = 250
	maxPages       = 40 // hard stop on runaway calendars
)

// Client implements resolver.CalendarSearcher against the Calendar API.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	logger     *slog.Logger
	baseURL    string
	calendarID string // "primary" for the authenticated user
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimiter sets a custom rate limiter.
func WithRateLimiter(l *ratelimit.Limiter) ClientOption {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithBaseURL overrides the API endpoint. Used by tests.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithCalendarID targets a calendar other than the primary one.
func WithCalendarID(id string) ClientOption {
	return func(c *Client) {
		c.calendarID = id
	}
}

// NewClient creates a new Calendar API client.
func NewClient(tokenSource oauth2.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: oauth2.NewClient(context.Background(), tokenSource),
		baseURL:    defaultBaseURL,
		calendarID: "primary",
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		c.limiter = ratelimit.New(5.0, 25)
	}

	return c
}

// Calendar API JSON response types.

type attendeeJSON struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Resource    bool   `json:"resource"`
}

type eventTimeJSON struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type eventJSON struct {
	Start     eventTimeJSON  `json:"start"`
	Attendees []attendeeJSON `json:"attendees"`
}

type listEventsResponse struct {
	Items         []eventJSON `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

// SearchEvents lists events in [from, to) that have at least one guest.
// Room and resource attendees are dropped.
func (c *Client) SearchEvents(ctx context.Context, from, to time.Time) ([]resolver.Event, error) {
	var events []resolver.Event
	pageToken := ""

	for page := 0; page < maxPages; page++ {
		resp, err := c.listPage(ctx, from, to, pageToken)
		if err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			ev, ok := toEvent(item)
			if !ok {
				continue
			}
			events = append(events, ev)
		}

		if resp.NextPageToken == "" {
			return events, nil
		}
		pageToken = resp.NextPageToken
	}

	c.logger.Warn("calendar listing truncated", "pages", maxPages, "events", len(events))
	return events, nil
}

// listPage fetches one page of events.
func (c *Client) listPage(ctx context.Context, from, to time.Time, pageToken string) (*listEventsResponse, error) {
	if err := c.limiter.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	params := url.Values{}
	params.Set("timeMin", from.UTC().Format(time.RFC3339))
	params.Set("timeMax", to.UTC().Format(time.RFC3339))
	params.Set("singleEvents", "true")
	params.Set("orderBy", "startTime")
	params.Set("maxResults", fmt.Sprintf("%d", pageSize))
	params.Set("fields", "items(start,attendees),nextPageToken")
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	reqURL := fmt.Sprintf("%s/calendars/%s/events?%s",
		c.baseURL, url.PathEscape(c.calendarID), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode == 429 || httpResp.StatusCode == 403 {
		c.limiter.Throttle(30 * time.Second)
		return nil, fmt.Errorf("calendar rate limited (%d)", httpResp.StatusCode)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar request failed (%d): %s", httpResp.StatusCode, string(body))
	}

	var resp listEventsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}

	return &resp, nil
}

// toEvent converts an API event to the resolver's shape, dropping events
// without guests and guests that are rooms or resources.
func toEvent(item eventJSON) (resolver.Event, bool) {
	start, ok := parseStart(item.Start)
	if !ok {
		return resolver.Event{}, false
	}

	var guests []resolver.Guest
	for _, a := range item.Attendees {
		if a.Resource || a.Email == "" {
			continue
		}
		guests = append(guests, resolver.Guest{
			Email:       a.Email,
			DisplayName: a.DisplayName,
		})
	}
	if len(guests) == 0 {
		return resolver.Event{}, false
	}

	return resolver.Event{Start: start, Guests: guests}, true
}

// parseStart handles both timed events (dateTime) and all-day events (date).
func parseStart(et eventTimeJSON) (time.Time, bool) {
	if et.DateTime != "" {
		t, err := time.Parse(time.RFC3339, et.DateTime)
		if err == nil {
			return t.UTC(), true
		}
	}
	if et.Date != "" {
		t, err := time.Parse("2006-01-02", et.Date)
		if err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Ensure Client satisfies the calendar contract.
var _ resolver.CalendarSearcher = (*Client)(nil)
