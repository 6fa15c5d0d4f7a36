// Package classification assigns a category and sentiment to feedback text,
// trying the AI provider first and falling back to keyword rules.
package classification

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"triage_server/core/domain"
)

// KeywordRule maps a keyword set to a category. Rules are evaluated in order
// and the first rule with any matching keyword wins.
type KeywordRule struct {
	Category   domain.Category
	Confidence float64
	Keywords   []string
}

// Matches reports whether lowered contains any keyword as a substring.
func (r KeywordRule) Matches(lowered string) bool {
	for _, kw := range r.Keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// RuleSet is the complete fallback configuration.
type RuleSet struct {
	Categories        []KeywordRule
	DefaultCategory   domain.Category
	DefaultConfidence float64

	PositiveWords []string
	NegativeWords []string
}

// DefaultRuleSet is the built-in fallback table. Bug keywords are checked
// before feature keywords.
func DefaultRuleSet() *RuleSet {
	return &RuleSet{
		Categories: []KeywordRule{
			{
				Category:   domain.CategoryBug,
				Confidence: 0.8,
				Keywords:   []string{"bug", "error", "broken", "issue", "problem", "not working"},
			},
			{
				Category:   domain.CategoryFeature,
				Confidence: 0.7,
				Keywords:   []string{"feature", "add", "would like", "suggestion", "improve", "enhancement"},
			},
		},
		DefaultCategory:   domain.CategoryReview,
		DefaultConfidence: 0.6,
		PositiveWords: []string{
			"great", "good", "excellent", "amazing", "love", "awesome",
			"fantastic", "helpful", "nice", "perfect", "thank",
		},
		NegativeWords: []string{
			"bad", "terrible", "awful", "hate", "broken", "poor",
			"worst", "annoying", "frustrating", "useless", "disappointing",
		},
	}
}

const (
	neutralConfidence   = 0.6
	sentimentBase       = 0.6
	sentimentStep       = 0.1
	sentimentConfidence = 0.9
)

// Category returns the first matching rule's category, or the default.
func (rs *RuleSet) Category(lowered string) (domain.Category, float64) {
	for _, rule := range rs.Categories {
		if rule.Matches(lowered) {
			return rule.Category, rule.Confidence
		}
	}
	return rs.DefaultCategory, rs.DefaultConfidence
}

// countPresent counts how many words of the list occur in lowered.
// Each word counts once; a superstring match counts.
func countPresent(lowered string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lowered, w) {
			n++
		}
	}
	return n
}

// Sentiment compares positive and negative word counts. Ties, including
// zero, stay neutral.
func (rs *RuleSet) Sentiment(lowered string) (domain.Sentiment, float64) {
	pos := countPresent(lowered, rs.PositiveWords)
	neg := countPresent(lowered, rs.NegativeWords)

	switch {
	case pos > neg && pos > 0:
		return domain.SentimentPositive, scaledConfidence(pos)
	case neg > pos && neg > 0:
		return domain.SentimentNegative, scaledConfidence(neg)
	}
	return domain.SentimentNeutral, neutralConfidence
}

func scaledConfidence(count int) float64 {
	c := sentimentBase + sentimentStep*float64(count)
	if c > sentimentConfidence {
		return sentimentConfidence
	}
	// two decimals
	return float64(int(c*100+0.5)) / 100
}

// Fallback classifies content with keyword rules only. It is deterministic.
func (rs *RuleSet) Fallback(content string) *domain.ClassificationResult {
	lowered := strings.ToLower(content)
	category, catConf := rs.Category(lowered)
	sentiment, sentConf := rs.Sentiment(lowered)

	return &domain.ClassificationResult{
		Category:            category,
		Sentiment:           sentiment,
		CategoryConfidence:  catConf,
		SentimentConfidence: sentConf,
		Method:              domain.MethodFallback,
		Reasoning: fmt.Sprintf("Fallback analysis: detected %s with %s sentiment",
			strings.ToLower(string(category)), strings.ToLower(string(sentiment))),
	}
}

// ValidateContent checks the provider's input contract.
func ValidateContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("%w: content is empty", domain.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(trimmed); n > domain.MaxContentLength {
		return fmt.Errorf("%w: content has %d characters, max %d", domain.ErrInvalidInput, n, domain.MaxContentLength)
	}
	return nil
}
