// Package addrparse parses raw address header strings into
// (display name, address) pairs without depending on a full MIME stack.
//
// Header values arrive as comma-separated lists where commas may also
// appear inside angle brackets or inside quoted display names
// (`"Smith, Jane" <j@x.com>`). SplitList honors both.
package addrparse

import (
	"regexp"
	"strings"
)

// Address is one parsed header entry.
type Address struct {
	Name  string // display name, may be empty
	Email string // address with original case preserved
}

var (
	// shapeRe is the minimal local@domain.tld shape gate.
	shapeRe = regexp.MustCompile(`^[^@\s<>]+@[^@\s<>]+\.[A-Za-z]{2,}$`)

	// findRe extracts email-shaped substrings from free text.
	findRe = regexp.MustCompile(`[A-Za-z0-9._%+'\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
)

// SplitList splits a header value on commas that are outside angle
// brackets and outside double-quoted sections. Empty entries are dropped.
func SplitList(header string) []string {
	var (
		parts    []string
		start    int
		inAngle  bool
		inQuotes bool
	)
	for i := 0; i < len(header); i++ {
		switch header[i] {
		case '"':
			inQuotes = !inQuotes
		case '<':
			if !inQuotes {
				inAngle = true
			}
		case '>':
			if !inQuotes {
				inAngle = false
			}
		case ',':
			if !inAngle && !inQuotes {
				if p := strings.TrimSpace(header[start:i]); p != "" {
					parts = append(parts, p)
				}
				start = i + 1
			}
		}
	}
	if p := strings.TrimSpace(header[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

// Parse parses a single header entry. Supported forms:
//
//	Display Name <user@host>
//	"Smith, Jane" <user@host>
//	<user@host>
//	user@host
//
// Returns false when no address with a valid shape is present.
func Parse(entry string) (Address, bool) {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return Address{}, false
	}

	if open := strings.LastIndexByte(entry, '<'); open >= 0 {
		closeIdx := strings.IndexByte(entry[open:], '>')
		if closeIdx < 0 {
			return Address{}, false
		}
		email := strings.TrimSpace(entry[open+1 : open+closeIdx])
		name := strings.TrimSpace(entry[:open])
		name = strings.Trim(name, `"`)
		if !ValidShape(email) {
			return Address{}, false
		}
		return Address{Name: name, Email: email}, true
	}

	if !ValidShape(entry) {
		return Address{}, false
	}
	return Address{Email: entry}, true
}

// ParseList parses every entry of a header value, skipping malformed ones.
func ParseList(header string) []Address {
	parts := SplitList(header)
	addrs := make([]Address, 0, len(parts))
	for _, p := range parts {
		if a, ok := Parse(p); ok {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// ValidShape reports whether addr looks like local@domain.tld.
func ValidShape(addr string) bool {
	return shapeRe.MatchString(addr)
}

// Split returns the local part and domain of addr. The domain is empty
// when addr contains no '@'.
func Split(addr string) (local, domain string) {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return addr, ""
	}
	return addr[:at], addr[at+1:]
}

// FindAddresses extracts email-shaped substrings from free text,
// deduplicated case-insensitively in order of first appearance.
func FindAddresses(text string) []string {
	matches := findRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		m = strings.Trim(m, ".'")
		key := strings.ToLower(m)
		if seen[key] || !ValidShape(m) {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}
