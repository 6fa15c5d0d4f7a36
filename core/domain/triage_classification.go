package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Category is the triage bucket of a feedback item.
type Category string

const (
	CategoryBug     Category = "BUG"
	CategoryFeature Category = "FEATURE"
	CategoryReview  Category = "REVIEW"
)

// Sentiment is the tone of a feedback item.
type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// AnalysisMethod records which tier produced a classification.
type AnalysisMethod string

const (
	MethodAI       AnalysisMethod = "AI"
	MethodFallback AnalysisMethod = "FALLBACK"
)

// ParseCategory accepts any letter case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case CategoryBug, CategoryFeature, CategoryReview:
		return c, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// ParseSentiment accepts any letter case.
func ParseSentiment(s string) (Sentiment, error) {
	v := Sentiment(strings.ToUpper(strings.TrimSpace(s)))
	switch v {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		return v, nil
	}
	return "", fmt.Errorf("unknown sentiment %q", s)
}

// ClassificationResult is the classifier output for one piece of content.
type ClassificationResult struct {
	Category            Category       `json:"category"`
	Sentiment           Sentiment      `json:"sentiment"`
	CategoryConfidence  float64        `json:"category_confidence"`
	SentimentConfidence float64        `json:"sentiment_confidence"`
	Reasoning           string         `json:"reasoning"`
	Method              AnalysisMethod `json:"analysis_method"`
	ProcessingTime      time.Duration  `json:"-"`
}

// MarshalJSON reports ProcessingTime in fractional milliseconds.
func (r ClassificationResult) MarshalJSON() ([]byte, error) {
	type plain ClassificationResult
	return json.Marshal(struct {
		plain
		ProcessingTimeMS float64 `json:"processing_time_ms"`
	}{plain(r), float64(r.ProcessingTime.Microseconds()) / 1000})
}

// Analysis converts the result into the persisted analysis block.
func (r *ClassificationResult) Analysis(at time.Time) *Analysis {
	return &Analysis{
		Category:            r.Category,
		Sentiment:           r.Sentiment,
		CategoryConfidence:  r.CategoryConfidence,
		SentimentConfidence: r.SentimentConfidence,
		Method:              r.Method,
		Reasoning:           r.Reasoning,
		AnalyzedAt:          at,
	}
}

// ClampConfidence forces v into [0, 1]. NaN becomes 0.
func ClampConfidence(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
