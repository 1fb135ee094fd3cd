package service

import (
	"regexp"
	"strings"
)

const (
	maxSlugLength  = 128
	maxTitleLength = 255
)

var (
	slugWhitespace = regexp.MustCompile(`\s+`)
	slugDisallowed = regexp.MustCompile(`[^a-zA-Z0-9_.\-]`)
)

// Slugify derives the URL-safe room name of a discussion title.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugDisallowed.ReplaceAllString(slug, "")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
	}
	return slug
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return strings.TrimSpace(string(runes[:limit]))
}
