// Package gmail is a minimal Gmail REST client covering the operations
// mailmatch needs: profile lookup and rate-limited message search.
package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	"github.com/gadievron/mailmatch/internal/ratelimit"
	"github.com/gadievron/mailmatch/internal/resolver"
)

const (
	defaultBaseURL = "https://gmail.googleapis.com/gmail/v1"
	maxRetries     = 8
	maxBackoff     = 300 // seconds
)

// Gmail per-user quota units per operation.
const (
	costProfile        = 1
	costMessagesList   = 5
	costMessagesGetRaw = 5
)

// Client implements resolver.MessageSearcher against the Gmail REST API.
type Client struct {
	httpClient  *http.Client
	limiter     *ratelimit.Limiter
	logger      *slog.Logger
	baseURL     string
	userID      string // "me" for the authenticated user
	concurrency int    // parallel message fetches per search
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithConcurrency sets the max concurrent message fetches.
func WithConcurrency(n int) ClientOption {
	return func(c *Client) {
		c.concurrency = n
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

// NewClient creates a new Gmail API client.
func NewClient(tokenSource oauth2.TokenSource, opts ...ClientOption) *Client {
	c := &Client{
		httpClient:  oauth2.NewClient(context.Background(), tokenSource),
		baseURL:     defaultBaseURL,
		userID:      "me",
		concurrency: 10,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.limiter == nil {
		// 5 requests/sec at 5 quota units each, with room for one
		// full page of fetches in a burst.
		c.limiter = ratelimit.New(25.0, 250)
	}

	return c
}

// request makes an HTTP GET with rate limiting and retry logic.
func (c *Client) request(ctx context.Context, cost int, path string) ([]byte, error) {
	if err := c.limiter.Acquire(ctx, cost); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	reqURL := c.baseURL + path

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := calculateBackoff(attempt)
			c.logger.Debug("retrying request", "attempt", attempt, "backoff", backoff, "path", path)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue // Retry on network errors
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		switch resp.StatusCode {
		case 429:
			c.logger.Debug("rate limited, backing off 30s", "path", path, "attempt", attempt)
			c.limiter.Throttle(30 * time.Second)
			lastErr = fmt.Errorf("rate limited (429)")
			continue

		case 403:
			// Gmail reports quota exhaustion as 403 with a rateLimitExceeded reason.
			if isRateLimitError(respBody) {
				c.logger.Debug("quota exceeded, backing off 60s", "path", path, "attempt", attempt)
				c.limiter.Throttle(60 * time.Second)
				lastErr = fmt.Errorf("quota exceeded (403)")
				continue
			}
			return nil, fmt.Errorf("forbidden (403): %s", string(respBody))

		case 500, 502, 503, 504:
			lastErr = fmt.Errorf("server error (%d)", resp.StatusCode)
			continue

		case 401:
			// oauth2.Client should auto-refresh; if it fails, don't retry.
			return nil, fmt.Errorf("unauthorized (401): token may be invalid")

		case 404:
			return nil, &NotFoundError{Path: path}

		default:
			return nil, fmt.Errorf("request failed (%d): %s", resp.StatusCode, string(respBody))
		}
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// calculateBackoff returns exponential backoff with full jitter.
func calculateBackoff(attempt int) time.Duration {
	base := float64(uint(1) << uint(attempt))
	if base > maxBackoff {
		base = maxBackoff
	}
	return time.Duration(rand.Float64() * base * float64(time.Second))
}

// NotFoundError indicates a 404 response.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not found: %s", e.Path)
}

// isRateLimitError checks if a 403 response is actually a rate limit error.
func isRateLimitError(body []byte) bool {
	return bytes.Contains(body, []byte("rateLimitExceeded")) ||
		bytes.Contains(body, []byte("RATE_LIMIT_EXCEEDED")) ||
		bytes.Contains(body, []byte("Quota exceeded")) ||
		bytes.Contains(body, []byte("userRateLimitExceeded"))
}

// Gmail API JSON response types (unexported, used only for JSON unmarshaling).

type profileResponse struct {
	EmailAddress  string `json:"emailAddress"`
	MessagesTotal int64  `json:"messagesTotal"`
	ThreadsTotal  int64  `json:"threadsTotal"`
}

type gmailMessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

type listMessagesResponse struct {
	Messages           []gmailMessageRef `json:"messages"`
	NextPageToken      string            `json:"nextPageToken"`
	ResultSizeEstimate int64             `json:"resultSizeEstimate"`
}

type rawMessageResponse struct {
	ID           string `json:"id"`
	ThreadID     string `json:"threadId"`
	InternalDate string `json:"internalDate"`
	Raw          string `json:"raw"` // base64url encoded (unpadded)
}

// Profile is the authenticated user's Gmail profile.
type Profile struct {
	EmailAddress  string
	MessagesTotal int64
	ThreadsTotal  int64
}

// GetProfile returns the authenticated user's profile. The profile email
// identifies the mailbox owner for outbound detection.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	path := fmt.Sprintf("/users/%s/profile", c.userID)
	data, err := c.request(ctx, costProfile, path)
	if err != nil {
		return nil, err
	}

	var resp profileResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("parse profile: %w", err)
	}

	return &Profile{
		EmailAddress:  resp.EmailAddress,
		MessagesTotal: resp.MessagesTotal,
		ThreadsTotal:  resp.ThreadsTotal,
	}, nil
}

// listMessageIDs returns up to limit message references matching the query.
func (c *Client) listMessageIDs(ctx context.Context, query string, limit int) ([]gmailMessageRef, error) {
	var refs []gmailMessageRef
	pageToken := ""

	for len(refs) < limit {
		params := url.Values{}
		params.Set("maxResults", strconv.Itoa(limit-len(refs)))
		params.Set("q", query)
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		path := fmt.Sprintf("/users/%s/messages?%s", c.userID, params.Encode())
		data, err := c.request(ctx, costMessagesList, path)
		if err != nil {
			return nil, err
		}

		var resp listMessagesResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("parse messages: %w", err)
		}

		refs = append(refs, resp.Messages...)
		if resp.NextPageToken == "" || len(resp.Messages) == 0 {
			break
		}
		pageToken = resp.NextPageToken
	}

	if len(refs) > limit {
		refs = refs[:limit]
	}
	return refs, nil
}

// getMessage fetches one message in raw MIME form and parses it.
func (c *Client) getMessage(ctx context.Context, id string) (resolver.Message, string, error) {
	path := fmt.Sprintf("/users/%s/messages/%s?format=raw", c.userID, id)
	data, err := c.request(ctx, costMessagesGetRaw, path)
	if err != nil {
		return resolver.Message{}, "", err
	}

	var resp rawMessageResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return resolver.Message{}, "", fmt.Errorf("parse message: %w", err)
	}

	rawBytes, err := decodeBase64URL(resp.Raw)
	if err != nil {
		return resolver.Message{}, "", fmt.Errorf("decode raw MIME: %w", err)
	}

	msg, err := parseRawMessage(rawBytes)
	if err != nil {
		return resolver.Message{}, "", fmt.Errorf("parse MIME: %w", err)
	}

	// internalDate is Gmail's receipt time in epoch millis; it is more
	// reliable than the Date header.
	if ms, err := strconv.ParseInt(resp.InternalDate, 10, 64); err == nil && ms > 0 {
		msg.Date = time.UnixMilli(ms).UTC()
	}

	return msg, resp.ThreadID, nil
}

// SearchMessages runs a Gmail search and returns the matching messages
// grouped by conversation thread, in result order. Messages that fail to
// fetch or parse are skipped rather than failing the search.
func (c *Client) SearchMessages(ctx context.Context, query string, limit int) ([]resolver.Thread, error) {
	refs, err := c.listMessageIDs(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	if len(refs) == 0 {
		return nil, nil
	}

	type fetched struct {
		msg      resolver.Message
		threadID string
		ok       bool
	}
	results := make([]fetched, len(refs))
	sem := make(chan struct{}, c.concurrency)

	g, gctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		i, ref := i, ref

		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-gctx.Done():
				return gctx.Err()
			}

			msg, threadID, err := c.getMessage(gctx, ref.ID)
			if err != nil {
				c.logger.Warn("failed to fetch message", "id", ref.ID, "error", err)
				return nil
			}
			results[i] = fetched{msg: msg, threadID: threadID, ok: true}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Group by thread preserving first-seen order.
	index := make(map[string]int)
	var threads []resolver.Thread
	for _, r := range results {
		if !r.ok {
			continue
		}
		ti, seen := index[r.threadID]
		if !seen {
			ti = len(threads)
			index[r.threadID] = ti
			threads = append(threads, resolver.Thread{})
		}
		threads[ti].Messages = append(threads[ti].Messages, r.msg)
	}

	return threads, nil
}

// decodeBase64URL decodes base64url, tolerating optional padding.
func decodeBase64URL(s string) ([]byte, error) {
	if strings.ContainsRune(s, '=') {
		return base64.URLEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// Ensure Client satisfies the search contract.
var _ resolver.MessageSearcher = (*Client)(nil)
