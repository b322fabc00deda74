package gmail

import (
	"bytes"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"github.com/gadievron/mailmatch/internal/resolver"
)

// parseRawMessage extracts the headers and bodies the resolver scores
// against from a raw MIME message.
func parseRawMessage(raw []byte) (resolver.Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return resolver.Message{}, err
	}

	msg := resolver.Message{
		From:     env.GetHeader("From"),
		To:       env.GetHeader("To"),
		Cc:       env.GetHeader("Cc"),
		Bcc:      env.GetHeader("Bcc"),
		BodyText: env.Text,
		BodyHTML: env.HTML,
	}

	// Date header is a fallback; callers overwrite this with Gmail's
	// internalDate when available.
	if dateStr := env.GetHeader("Date"); dateStr != "" {
		if t, err := parseDate(dateStr); err == nil {
			msg.Date = t
		}
	}

	return msg, nil
}

// dateLayouts covers RFC 5322 dates plus common malformed variants.
var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"Mon, 02 Jan 2006 15:04:05 -0700 (MST)",
	time.RFC3339,
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	// Strip trailing comment like "(UTC)" that some senders append.
	if i := strings.LastIndex(s, " ("); i > 0 && strings.HasSuffix(s, ")") {
		if t, err := tryLayouts(s[:i]); err == nil {
			return t, nil
		}
	}
	return tryLayouts(s)
}

func tryLayouts(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
