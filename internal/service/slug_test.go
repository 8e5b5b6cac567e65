package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSlug(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"already clean", "promo", "promo"},
		{"uppercase lowered", "Promo-2026", "promo-2026"},
		{"invalid chars become hyphens", "my link!", "my-link"},
		{"hyphen runs collapse", "a--b---c", "a-b-c"},
		{"leading and trailing trimmed", "--edge--", "edge"},
		{"all invalid yields empty", "!!!", ""},
		{"empty stays empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeSlug(tt.input))
		})
	}
}

func TestRandomSlug(t *testing.T) {
	t.Run("has the generated shape", func(t *testing.T) {
		slug := RandomSlug()
		require.True(t, strings.HasPrefix(slug, "link-"), "slug %q missing prefix", slug)
		assert.Len(t, slug, len("link-")+6)
		assert.Regexp(t, `^link-[a-z0-9]{6}$`, slug)
	})

	t.Run("produces varied values", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			seen[RandomSlug()] = true
		}
		assert.Greater(t, len(seen), 1, "expected more than one distinct slug")
	})
}

func TestNormalizeDestination(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"full https url", "https://example.com/path", "https://example.com/path", false},
		{"http preserved", "http://example.com", "http://example.com", false},
		{"scheme defaulted to https", "example.com/page", "https://example.com/page", false},
		{"surrounding whitespace trimmed", "  https://example.com  ", "https://example.com", false},
		{"localhost allowed", "localhost:3000/dev", "https://localhost:3000/dev", false},
		{"empty rejected", "", "", true},
		{"bare word rejected", "notadomain", "", true},
		{"garbage rejected", "ht!tp://%%", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeDestination(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidURL)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
