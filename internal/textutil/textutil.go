// Package textutil provides text normalization helpers for name and
// address matching.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"github.com/jaytaylor/html2text"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldTransformer decomposes characters and drops combining marks, so
// "José" folds to "Jose".
var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases s and strips diacritical marks.
func Fold(s string) string {
	lower := strings.ToLower(s)
	out, _, err := transform.String(foldTransformer, lower)
	if err != nil {
		return lower
	}
	return out
}

// StripSeparators removes the punctuation that commonly pads email
// local-parts: dots, hyphens, underscores, apostrophes and plus tags.
func StripSeparators(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', '_', '\'', '’', '+':
			return -1
		}
		return r
	}, s)
}

// EnsureUTF8 returns s unchanged when it is already valid UTF-8.
// Otherwise it attempts charset detection and decoding, and as a last
// resort replaces invalid bytes with the replacement character.
func EnsureUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}

	data := []byte(s)
	if result, err := chardet.NewTextDetector().DetectBest(data); err == nil {
		if enc := encodingFor(result.Charset); enc != nil {
			if decoded, err := enc.NewDecoder().Bytes(data); err == nil && utf8.Valid(decoded) {
				return string(decoded)
			}
		}
	}

	// Windows-1252 decodes any byte sequence and covers most Western mail.
	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}

	return strings.ToValidUTF8(s, "�")
}

// encodingFor maps the charset names chardet reports for email content
// to decoders. Unknown charsets return nil.
func encodingFor(name string) encoding.Encoding {
	switch strings.ToLower(name) {
	case "windows-1252", "cp1252":
		return charmap.Windows1252
	case "iso-8859-1", "latin1":
		return charmap.ISO8859_1
	case "iso-8859-15":
		return charmap.ISO8859_15
	case "shift_jis", "shift-jis":
		return japanese.ShiftJIS
	case "euc-jp":
		return japanese.EUCJP
	default:
		return nil
	}
}

// HTMLToText converts an HTML body to plain text for substring scans.
// Returns the empty string when conversion fails.
func HTMLToText(html string) string {
	text, err := html2text.FromString(html, html2text.Options{TextOnly: true})
	if err != nil {
		return ""
	}
	return text
}
