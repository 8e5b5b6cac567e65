package service

import (
	"math/rand/v2"
	"net/url"
	"regexp"
	"strings"
)

// slugPattern accepts lowercase alphanumerics and hyphens only.
var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// hostnamePattern is a coarse "looks like a real domain" check applied
// to destinations after normalization. Bare hostnames other than
// localhost are rejected.
var hostnamePattern = regexp.MustCompile(`^([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,}$`)

var collapseHyphens = regexp.MustCompile(`-{2,}`)

const randomSlugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// SanitizeSlug normalizes user input into the slug character set:
// lowercased, invalid runs replaced by hyphens, hyphen runs collapsed,
// leading and trailing hyphens trimmed. May return "".
func SanitizeSlug(input string) string {
	s := strings.ToLower(input)
	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('-')
	}
	s = collapseHyphens.ReplaceAllString(b.String(), "-")
	return strings.Trim(s, "-")
}

// RandomSlug returns a generated slug of the form "link-xxxxxx".
func RandomSlug() string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = randomSlugAlphabet[rand.IntN(len(randomSlugAlphabet))]
	}
	return "link-" + string(b)
}

// NormalizeDestination validates and normalizes a destination URL.
// A missing scheme defaults to https. The hostname must look like a
// registrable domain, or be localhost.
func NormalizeDestination(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", ErrInvalidURL
	}

	candidate := trimmed
	if !strings.HasPrefix(strings.ToLower(candidate), "http://") &&
		!strings.HasPrefix(strings.ToLower(candidate), "https://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", ErrInvalidURL
	}

	hostname := parsed.Hostname()
	if hostname != "localhost" && !hostnamePattern.MatchString(hostname) {
		return "", ErrInvalidURL
	}

	return parsed.String(), nil
}
