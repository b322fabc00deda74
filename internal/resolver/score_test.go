package resolver

import (
	"testing"
	"time"

	"github.com/gadievron/mailmatch/internal/namequery"
	"github.com/gadievron/mailmatch/internal/textutil"
)

func mustParse(t *testing.T, raw string) namequery.NameQuery {
	t.Helper()
	q, err := namequery.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return q
}

func TestBaseScore(t *testing.T) {
	tokens := []string{"jane", "smith"}
	tests := []struct {
		name  string
		email string
		want  float64
	}{
		{
			// dotted exact +20, both-names +12, prefix first +8,
			// weak first +4, weak last +4
			name:  "dotted exact concatenation",
			email: "jane.smith@x.com",
			want:  48,
		},
		{
			// plain exact +20, both-names +12, prefix first +8,
			// weak first +4, weak last +4
			name:  "plain exact concatenation",
			email: "janesmith@x.com",
			want:  48,
		},
		{
			// initial+surname prefix +8, weak last +4
			name:  "initial plus surname",
			email: "jsmith@x.com",
			want:  12,
		},
		{
			// exact last without domain corroboration +6,
			// prefix last +8, weak last +4
			name:  "bare surname local",
			email: "smith@acme.com",
			want:  18,
		},
		{
			// exact last with first name in domain +10,
			// prefix last +8, weak last +4
			name:  "surname local with domain corroboration",
			email: "smith@janedoe.com",
			want:  22,
		},
		{
			// prefix last +8, weak last +4, digit run -3
			name:  "digit run penalty",
			email: "smith123@x.com",
			want:  9,
		},
		{
			// initial+surname prefix +8, weak last +4,
			// consecutive punctuation -2
			name:  "punctuation run penalty",
			email: "j..smith@x.com",
			want:  10,
		},
		{
			name:  "no overlap at all",
			email: "zz@x.com",
			want:  0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := baseScore(tt.email, tokens); got != tt.want {
				t.Errorf("baseScore(%q) = %v, want %v", tt.email, got, tt.want)
			}
		})
	}
}

func TestBaseScoreDeterministic(t *testing.T) {
	tokens := []string{"jane", "smith"}
	first := baseScore("jane.smith@x.com", tokens)
	for i := 0; i < 5; i++ {
		if got := baseScore("jane.smith@x.com", tokens); got != first {
			t.Fatalf("run %d: %v != %v", i, got, first)
		}
	}
}

func TestBaseScoreDiacritics(t *testing.T) {
	got := baseScore("jose.garcia@x.com", []string{"josé", "garcía"})
	want := baseScore("jose.garcia@x.com", []string{"jose", "garcia"})
	if got != want {
		t.Errorf("folded score %v, want %v", got, want)
	}
	if got < 20 {
		t.Errorf("diacritic name scored %v, expected exact-pattern credit", got)
	}
}

func TestBestBaseCompoundSurname(t *testing.T) {
	q := mustParse(t, "Ludwig van Beethoven")
	simple := baseScore("vanbeethoven@x.com", q.Tokens)
	best := bestBase("vanbeethoven@x.com", q)
	if best <= simple {
		t.Errorf("bestBase = %v, want > simple token score %v", best, simple)
	}
}

func TestRecencyBonus(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		date time.Time
		want float64
	}{
		{"six months old", now.AddDate(0, -6, 0), 6},
		{"two years old", now.AddDate(-2, 0, 0), 3},
		{"five years old", now.AddDate(-5, 0, 0), 0},
		{"zero date", time.Time{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := recencyBonus(tt.date, now); got != tt.want {
				t.Errorf("recencyBonus = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidenceLabel(t *testing.T) {
	tests := []struct {
		score float64
		want  string
	}{
		{20.0, "High"},
		{24.5, "High"},
		{19.9, "Medium"},
		{10.0, "Medium"},
		{9.9, "Low"},
		{0, "Low"},
		{-3, "Low"},
	}
	for _, tt := range tests {
		if got := ConfidenceLabel(tt.score); got != tt.want {
			t.Errorf("ConfidenceLabel(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestStrongLocalMatch(t *testing.T) {
	q := mustParse(t, "Jane Smith")
	tests := []struct {
		email string
		want  bool
	}{
		{"jane.smith@x.com", true},
		{"jsmith@x.com", true},
		{"smithj@x.com", true},
		{"smith@x.com", false},
		{"jane@x.com", false},
		{"zz@x.com", false},
	}
	for _, tt := range tests {
		if got := strongLocalMatch(tt.email, q); got != tt.want {
			t.Errorf("strongLocalMatch(%q) = %v, want %v", tt.email, got, tt.want)
		}
	}

	// Compound variant is tried too.
	cq := mustParse(t, "Ana de Souza")
	if !strongLocalMatch("adesouza@x.com", cq) {
		t.Error("initial+compound surname should match")
	}
}

func TestTokenHitsPunctuatedNames(t *testing.T) {
	tests := []struct {
		name     string
		haystack string
		tokens   []string
		want     int
	}{
		{"apostrophe surname", "Mary O'Brien", []string{"mary", "o'brien"}, 2},
		{"hyphenated surname", "Ann Smith-Jones", []string{"ann", "smith-jones"}, 2},
		{"plain tokens against punctuated display", "Mary O'Brien", []string{"mary", "obrien"}, 2},
		{"partial overlap", "Mary O'Brien", []string{"jane", "o'brien"}, 1},
		{"no overlap", "Bob Jones", []string{"jane", "smith"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenHits(textutil.Fold(tt.haystack), tt.tokens); got != tt.want {
				t.Errorf("tokenHits(%q, %v) = %d, want %d", tt.haystack, tt.tokens, got, tt.want)
			}
		})
	}
}

func TestMissingNameToken(t *testing.T) {
	q := mustParse(t, "Jane Smith")

	missing, ok := missingNameToken(q, "jane", "")
	if !ok || missing != "smith" {
		t.Errorf("got %q, %v; want smith, true", missing, ok)
	}

	missing, ok = missingNameToken(q, "x", "smith here")
	if !ok || missing != "jane" {
		t.Errorf("got %q, %v; want jane, true", missing, ok)
	}

	if _, ok := missingNameToken(q, "janesmith", ""); ok {
		t.Error("both tokens covered, want ok=false")
	}
	if _, ok := missingNameToken(q, "zz", ""); ok {
		t.Error("neither token covered, want ok=false")
	}

	// A punctuated surname in the display name covers its own token.
	pq := mustParse(t, "Mary O'Brien")
	if _, ok := missingNameToken(pq, "mary", "mary o'brien"); ok {
		t.Error("apostrophe surname in display should count as covered")
	}
}
