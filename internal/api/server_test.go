package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gadievron/mailmatch/internal/config"
	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/resolver"
	"github.com/gadievron/mailmatch/internal/store"
)

type memStore struct {
	outcomes map[string]store.Outcome
}

func newMemStore() *memStore {
	return &memStore{outcomes: make(map[string]store.Outcome)}
}

func (m *memStore) GetOutcome(_ context.Context, name string) (*store.Outcome, error) {
	o, ok := m.outcomes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *memStore) ListOutcomes(_ context.Context, limit int) ([]store.Outcome, error) {
	var out []store.Outcome
	for _, o := range m.outcomes {
		if len(out) >= limit {
			break
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memStore) CountOutcomes(_ context.Context) (int64, error) {
	return int64(len(m.outcomes)), nil
}

func (m *memStore) SaveOutcome(_ context.Context, name string, o store.Outcome) error {
	m.outcomes[strings.ToLower(strings.TrimSpace(name))] = o
	return nil
}

type fakeResolver struct {
	result *resolver.PhaseResult
	err    error
}

func (f *fakeResolver) Resolve(_ context.Context, _ namequery.NameQuery) (*resolver.PhaseResult, error) {
	return f.result, f.err
}

func testServer(t *testing.T, apiKey string, st OutcomeStore, res NameResolver) *httptest.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.APIKey = apiKey
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	s := NewServer(cfg, st, res, logger)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestHealthNoAuth(t *testing.T) {
	srv := testServer(t, "secret", newMemStore(), nil)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestAuthRequired(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, "secret", st, nil)

	// No key
	resp, err := http.Get(srv.URL + "/api/v1/stats")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("no key: status = %d, want 401", resp.StatusCode)
	}

	// X-API-Key header
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/stats", nil)
	req.Header.Set("X-API-Key", "secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("X-API-Key: status = %d, want 200", resp.StatusCode)
	}

	// Bearer token
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/stats", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Bearer: status = %d, want 200", resp.StatusCode)
	}

	// Wrong key
	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/api/v1/stats", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", resp.StatusCode)
	}
}

func TestGetOutcome(t *testing.T) {
	st := newMemStore()
	st.outcomes["jane smith"] = store.Outcome{
		Name:       "Jane Smith",
		Email:      "jane@x.com",
		Status:     "Found in FROM headers",
		Confidence: "High confidence (from: 24.5)",
		UpdatedAt:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	srv := testServer(t, "", st, nil)

	resp, err := http.Get(srv.URL + "/api/v1/outcomes/Jane%20Smith")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got OutcomeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Email != "jane@x.com" || got.Status != "Found in FROM headers" {
		t.Errorf("outcome = %+v", got)
	}
	if got.UpdatedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("UpdatedAt = %q", got.UpdatedAt)
	}
}

func TestGetOutcomeNotFound(t *testing.T) {
	srv := testServer(t, "", newMemStore(), nil)

	resp, err := http.Get(srv.URL + "/api/v1/outcomes/Nobody")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestResolveStoresOutcome(t *testing.T) {
	st := newMemStore()
	res := &fakeResolver{result: &resolver.PhaseResult{
		Winner: resolver.Candidate{Email: "jane.smith@x.com", Score: 24.5},
		Source: resolver.PhaseFrom,
	}}
	srv := testServer(t, "", st, res)

	resp, err := http.Post(srv.URL+"/api/v1/resolve", "application/json",
		strings.NewReader(`{"name":"Jane Smith"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got OutcomeResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Email != "jane.smith@x.com" {
		t.Errorf("Email = %q", got.Email)
	}
	if got.Confidence != "High confidence (from: 24.5)" {
		t.Errorf("Confidence = %q", got.Confidence)
	}

	saved, _ := st.GetOutcome(context.Background(), "Jane Smith")
	if saved == nil || saved.Email != "jane.smith@x.com" {
		t.Errorf("outcome not persisted: %+v", saved)
	}
}

func TestResolveNotFound(t *testing.T) {
	st := newMemStore()
	srv := testServer(t, "", st, &fakeResolver{})

	resp, err := http.Post(srv.URL+"/api/v1/resolve", "application/json",
		strings.NewReader(`{"name":"Jane Smith"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	saved, _ := st.GetOutcome(context.Background(), "Jane Smith")
	if saved == nil || saved.Status != "Not found" {
		t.Errorf("not-found outcome not persisted: %+v", saved)
	}
}

func TestResolveBadRequests(t *testing.T) {
	srv := testServer(t, "", newMemStore(), &fakeResolver{})

	resp, err := http.Post(srv.URL+"/api/v1/resolve", "application/json",
		strings.NewReader(`{"name":"   "}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty name: status = %d, want 400", resp.StatusCode)
	}

	resp, err = http.Post(srv.URL+"/api/v1/resolve", "application/json",
		strings.NewReader(`{not json`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad json: status = %d, want 400", resp.StatusCode)
	}
}

func TestResolveWithoutResolver(t *testing.T) {
	srv := testServer(t, "", newMemStore(), nil)

	resp, err := http.Post(srv.URL+"/api/v1/resolve", "application/json",
		strings.NewReader(`{"name":"Jane Smith"}`))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
}

func TestThrottleAllow(t *testing.T) {
	th := newThrottle(1, 2)

	if !th.allow("1.2.3.4") || !th.allow("1.2.3.4") {
		t.Error("burst requests should be allowed")
	}
	if th.allow("1.2.3.4") {
		t.Error("third immediate request should be limited")
	}
	// Separate clients have separate buckets.
	if !th.allow("5.6.7.8") {
		t.Error("distinct client should not be limited")
	}
}

func TestThrottleMiddleware(t *testing.T) {
	th := newThrottle(1, 1)
	h := th.middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:1111"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	// Same host, different source port: shares the bucket.
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "10.0.0.1:2222"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("Retry-After = %q, want 1", rec.Header().Get("Retry-After"))
	}
}

func TestClientAddr(t *testing.T) {
	tests := []struct {
		realIP string
		remote string
		want   string
	}{
		{"", "10.0.0.1:5312", "10.0.0.1"},
		{"", "10.0.0.1", "10.0.0.1"},
		{"203.0.113.7", "10.0.0.1:5312", "203.0.113.7"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.RemoteAddr = tt.remote
		if tt.realIP != "" {
			r.Header.Set("X-Real-IP", tt.realIP)
		}
		if got := clientAddr(r); got != tt.want {
			t.Errorf("clientAddr(realIP=%q, remote=%q) = %q, want %q", tt.realIP, tt.remote, got, tt.want)
		}
	}
}
