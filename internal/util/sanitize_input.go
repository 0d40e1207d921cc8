package util

import (
	"html"
	"strings"
)

// SanitizeInput trims whitespace and escapes HTML/script-like characters.
// Applied to free-text registration fields (names, picture reference).
func SanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return html.EscapeString(s)
}

// NormalizeEmail trims surrounding whitespace only; the stored address
// stays case-sensitive.
func NormalizeEmail(s string) string {
	return strings.TrimSpace(s)
}

// EmailDomain returns the part after the last '@', or "" when the
// address has no domain part.
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
