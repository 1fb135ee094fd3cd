package service

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// stripMarkup removes HTML from user supplied text. Entities escaped by the policy are decoded
// again because the text is stored as plain text, not HTML.
func stripMarkup(policy *bluemonday.Policy, value string) string {
	return strings.TrimSpace(html.UnescapeString(policy.Sanitize(value)))
}
