package gcal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/gadievron/mailmatch/internal/ratelimit"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test"})
	return NewClient(ts,
		WithBaseURL(srv.URL),
		WithRateLimiter(ratelimit.New(10000, 10000)),
	)
}

func TestSearchEvents(t *testing.T) {
	from := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("timeMin"); got != "2020-06-01T00:00:00Z" {
			t.Errorf("timeMin = %q", got)
		}
		if got := q.Get("timeMax"); got != "2025-06-01T00:00:00Z" {
			t.Errorf("timeMax = %q", got)
		}
		if got := q.Get("singleEvents"); got != "true" {
			t.Errorf("singleEvents = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{
				{
					"start": map[string]string{"dateTime": "2024-03-01T09:00:00Z"},
					"attendees": []map[string]any{
						{"email": "jane.smith@x.com", "displayName": "Jane Smith"},
						{"email": "room-4a@corp.com", "displayName": "Room 4A", "resource": true},
					},
				},
				{
					// All-day event
					"start": map[string]string{"date": "2024-04-15"},
					"attendees": []map[string]any{
						{"email": "bob@x.com"},
					},
				},
				{
					// No guests: dropped
					"start": map[string]string{"dateTime": "2024-05-01T09:00:00Z"},
				},
			},
		})
	})

	c := testClient(t, mux)
	events, err := c.SearchEvents(context.Background(), from, to)
	if err != nil {
		t.Fatal(err)
	}

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if len(events[0].Guests) != 1 || events[0].Guests[0].Email != "jane.smith@x.com" {
		t.Errorf("guests = %+v, want resource filtered out", events[0].Guests)
	}
	if events[0].Guests[0].DisplayName != "Jane Smith" {
		t.Errorf("DisplayName = %q", events[0].Guests[0].DisplayName)
	}
	wantStart := time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC)
	if !events[1].Start.Equal(wantStart) {
		t.Errorf("all-day start = %v, want %v", events[1].Start, wantStart)
	}
}

func TestSearchEventsPagination(t *testing.T) {
	var calls int
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Query().Get("pageToken") == "" {
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{
					"start":     map[string]string{"dateTime": "2024-03-01T09:00:00Z"},
					"attendees": []map[string]any{{"email": "a@x.com"}},
				}},
				"nextPageToken": "page2",
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"items": []map[string]any{{
				"start":     map[string]string{"dateTime": "2024-03-02T09:00:00Z"},
				"attendees": []map[string]any{{"email": "b@x.com"}},
			}},
		})
	})

	c := testClient(t, mux)
	events, err := c.SearchEvents(context.Background(), time.Now().AddDate(-1, 0, 0), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if len(events) != 2 {
		t.Errorf("events = %d, want 2", len(events))
	}
}

func TestSearchEventsAPIError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":500}}`, http.StatusInternalServerError)
	})

	c := testClient(t, mux)
	if _, err := c.SearchEvents(context.Background(), time.Now().AddDate(-1, 0, 0), time.Now()); err == nil {
		t.Error("expected error for 500 response")
	}
}
