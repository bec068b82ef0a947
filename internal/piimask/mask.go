// Package piimask redacts likely personally-identifying substrings (email,
// phone, payment-card, and id-like numeric tokens) before text is persisted
// anywhere outside the in-memory session buffer.
package piimask

import "regexp"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	idLikePattern = regexp.MustCompile(`\b[0-9]{6,12}\b`)
)

// Mask replaces recognized PII substrings with bracketed markers and reports
// whether anything changed. Card numbers are matched before phone numbers so
// a long digit run is not mistaken for a phone number first; id-like tokens
// are matched last so they only catch what the more specific patterns left.
func Mask(input string) (masked string, changed bool) {
	out := input
	out = cardPattern.ReplaceAllString(out, "[REDACTED_CARD]")
	out = emailPattern.ReplaceAllString(out, "[REDACTED_EMAIL]")
	out = phonePattern.ReplaceAllString(out, "[REDACTED_PHONE]")
	out = idLikePattern.ReplaceAllString(out, "[REDACTED_ID]")
	return out, out != input
}
