package textutil

import (
	"strings"
	"testing"
)

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"José García", "jose garcia"},
		{"MÜLLER", "muller"},
		{"plain", "plain"},
		{"Ñoño", "nono"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Fold(tt.in); got != tt.want {
			t.Errorf("Fold(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStripSeparators(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"jane.smith", "janesmith"},
		{"o'brien", "obrien"},
		{"van-der_berg+tag", "vanderbergtag"},
		{"noseps", "noseps"},
	}
	for _, tt := range tests {
		if got := StripSeparators(tt.in); got != tt.want {
			t.Errorf("StripSeparators(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestEnsureUTF8(t *testing.T) {
	if got := EnsureUTF8("already valid"); got != "already valid" {
		t.Errorf("valid string changed: %q", got)
	}

	// 0xE9 is "é" in Windows-1252 / Latin-1.
	latin1 := "caf\xe9"
	got := EnsureUTF8(latin1)
	if got == latin1 {
		t.Errorf("invalid UTF-8 not repaired: %q", got)
	}
	if got != "café" && got != "caf�" {
		t.Errorf("EnsureUTF8(%q) = %q", latin1, got)
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<html><body><p>Reach me at <b>jane@example.com</b></p></body></html>")
	if got == "" {
		t.Fatal("empty conversion")
	}
	if want := "jane@example.com"; !strings.Contains(got, want) {
		t.Errorf("converted text %q missing %q", got, want)
	}
}
