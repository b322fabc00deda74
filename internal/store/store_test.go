package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "outcomes.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveAndGetOutcome(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := Outcome{
		Name:       "Jane Smith",
		Email:      "jane@x.com",
		Status:     "Found in FROM headers",
		Alternates: "alt@x.com [12.0]",
		Confidence: "High confidence (from: 24.5)",
	}
	if err := s.SaveOutcome(ctx, "Jane Smith", want); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOutcome(ctx, "Jane Smith")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("outcome not found")
	}
	if diff := cmp.Diff(want, *got, cmpopts.IgnoreFields(Outcome{}, "UpdatedAt")); diff != "" {
		t.Errorf("outcome mismatch (-want +got):\n%s", diff)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not set")
	}
}

func TestGetOutcomeCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveOutcome(ctx, "Jane Smith", Outcome{Name: "Jane Smith", Email: "jane@x.com"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetOutcome(ctx, "  JANE smith ")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.Email != "jane@x.com" {
		t.Errorf("case-insensitive lookup failed: %+v", got)
	}
}

func TestGetOutcomeMissing(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetOutcome(context.Background(), "Nobody")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestSaveOutcomeOverwrites(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.SaveOutcome(ctx, "Jane Smith", Outcome{Name: "Jane Smith", Status: "Error: quota exceeded"}); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveOutcome(ctx, "Jane Smith", Outcome{
		Name:       "Jane Smith",
		Email:      "jane@x.com",
		Status:     "Found in TO headers",
		Confidence: "Medium confidence (to: 14.0)",
	}); err != nil {
		t.Fatal(err)
	}

	got, err := s.GetOutcome(ctx, "Jane Smith")
	if err != nil {
		t.Fatal(err)
	}
	if got.Email != "jane@x.com" || got.Status != "Found in TO headers" {
		t.Errorf("overwrite failed: %+v", got)
	}

	n, err := s.CountOutcomes(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestListOutcomes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"A One", "B Two", "C Three"} {
		if err := s.SaveOutcome(ctx, name, Outcome{Name: name, Status: "Not found"}); err != nil {
			t.Fatal(err)
		}
	}

	out, err := s.ListOutcomes(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != 2 {
		t.Errorf("len = %d, want 2", len(out))
	}
}

func TestInitSchemaIdempotent(t *testing.T) {
	s := openTestStore(t)
	if err := s.InitSchema(); err != nil {
		t.Errorf("second InitSchema: %v", err)
	}
}
