package sunvoy

import (
	"regexp"
	"strings"
)

// Token is the session credential sent back to the site as the Cookie header,
// ex. "sunvoy_session=KXbHj...". An empty token means there is no session.
type Token string

// NewToken keeps the part of a cookie string before its first ";".
func NewToken(rawCookie string) Token {
	before, _, _ := strings.Cut(rawCookie, ";")
	return Token(strings.TrimSpace(before))
}

func (t Token) IsEmpty() bool {
	return t == ""
}

func (t Token) String() string {
	return string(t)
}

var sessionCookieRegex = regexp.MustCompile(`(?i)sunvoy_session=[^;]+`)

// parseSessionCookie finds the first sunvoy_session cookie in a combined
// Set-Cookie/Cookie header string.
func parseSessionCookie(header string) (Token, bool) {
	match := sessionCookieRegex.FindString(header)
	if match == "" {
		return "", false
	}
	return NewToken(match), true
}
