package feedback

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"triage_server/core/domain"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	controlPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)
	spacePattern   = regexp.MustCompile(`\s+`)
	emailPattern   = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
)

const maxEmailLength = 254

// Sanitize strips markup and control characters and collapses whitespace.
func Sanitize(content string) string {
	s := tagPattern.ReplaceAllString(content, " ")
	s = controlPattern.ReplaceAllString(s, "")
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// validateContent checks already sanitized content.
func validateContent(content string) error {
	if content == "" {
		return fmt.Errorf("content is empty: %w", domain.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(content); n > domain.MaxContentLength {
		return fmt.Errorf("content has %d characters, max %d: %w", n, domain.MaxContentLength, domain.ErrInvalidInput)
	}
	return nil
}

// normalizeEmail returns nil for a blank address.
func normalizeEmail(email string) (*string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	if len(email) > maxEmailLength || !emailPattern.MatchString(email) {
		return nil, fmt.Errorf("email %q: %w", email, domain.ErrInvalidInput)
	}
	return &email, nil
}
