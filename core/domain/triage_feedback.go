package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxContentLength bounds feedback content, counted in runes.
	MaxContentLength = 5000
	MaxNotesLength   = 10000
)

// FeedbackStatus is the operator workflow state.
type FeedbackStatus string

const (
	StatusPending  FeedbackStatus = "PENDING"
	StatusReviewed FeedbackStatus = "REVIEWED"
	StatusDone     FeedbackStatus = "DONE"
)

func ParseStatus(s string) (FeedbackStatus, error) {
	switch v := FeedbackStatus(s); v {
	case StatusPending, StatusReviewed, StatusDone:
		return v, nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Analysis is the stored classifier output.
type Analysis struct {
	Category            Category       `json:"category"`
	Sentiment           Sentiment      `json:"sentiment"`
	CategoryConfidence  float64        `json:"category_confidence"`
	SentimentConfidence float64        `json:"sentiment_confidence"`
	Method              AnalysisMethod `json:"analysis_method"`
	Reasoning           string         `json:"reasoning"`
	AnalyzedAt          time.Time      `json:"analyzed_at"`
}

// Override holds operator corrections to the analysis.
type Override struct {
	ManualCategory      *Category  `json:"manual_category,omitempty"`
	ManualSentiment     *Sentiment `json:"manual_sentiment,omitempty"`
	CategoryOverridden  bool       `json:"category_overridden"`
	SentimentOverridden bool       `json:"sentiment_overridden"`
}

func (o *Override) SetCategory(c Category) {
	o.ManualCategory = &c
	o.CategoryOverridden = true
}

// ClearCategory drops the flag and the manual value together.
func (o *Override) ClearCategory() {
	o.ManualCategory = nil
	o.CategoryOverridden = false
}

func (o *Override) SetSentiment(s Sentiment) {
	o.ManualSentiment = &s
	o.SentimentOverridden = true
}

func (o *Override) ClearSentiment() {
	o.ManualSentiment = nil
	o.SentimentOverridden = false
}

// Feedback is one submitted comment.
type Feedback struct {
	ID               uuid.UUID      `json:"id"`
	ProjectID        uuid.UUID      `json:"project_id"`
	Seq              int64          `json:"-"`
	Content          string         `json:"content"`
	ContributorEmail *string        `json:"contributor_email,omitempty"`
	Notes            *string        `json:"notes,omitempty"`
	Status           FeedbackStatus `json:"status"`
	Analysis         *Analysis      `json:"analysis,omitempty"`
	Override         Override       `json:"override"`
	Visibility       Visibility     `json:"visibility"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// EffectiveCategory is the manual value when overridden, else the analysis value.
// It is nil for rows that were never analyzed and carry no override.
func (f *Feedback) EffectiveCategory() *Category {
	if f.Override.CategoryOverridden && f.Override.ManualCategory != nil {
		c := *f.Override.ManualCategory
		return &c
	}
	if f.Analysis == nil {
		return nil
	}
	c := f.Analysis.Category
	return &c
}

// EffectiveSentiment follows the same precedence as EffectiveCategory.
func (f *Feedback) EffectiveSentiment() *Sentiment {
	if f.Override.SentimentOverridden && f.Override.ManualSentiment != nil {
		s := *f.Override.ManualSentiment
		return &s
	}
	if f.Analysis == nil {
		return nil
	}
	s := f.Analysis.Sentiment
	return &s
}

// FeedbackFilter selects rows for the operator list.
type FeedbackFilter struct {
	TenantID      uuid.UUID
	ProjectID     *uuid.UUID
	Status        *FeedbackStatus
	Category      *Category
	Sentiment     *Sentiment
	IncludeHidden bool
	Limit         int
	Offset        int
}

// Normalize clamps paging values.
func (f *FeedbackFilter) Normalize() {
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// FeedbackStats is the dashboard breakdown over a tenant's visible feedback.
type FeedbackStats struct {
	Total       int                    `json:"total"`
	ByCategory  map[Category]int       `json:"by_category"`
	BySentiment map[Sentiment]int      `json:"by_sentiment"`
	ByStatus    map[FeedbackStatus]int `json:"by_status"`
}

// NewFeedbackStats returns stats with every known key present.
func NewFeedbackStats() *FeedbackStats {
	return &FeedbackStats{
		ByCategory:  map[Category]int{CategoryBug: 0, CategoryFeature: 0, CategoryReview: 0},
		BySentiment: map[Sentiment]int{SentimentPositive: 0, SentimentNegative: 0, SentimentNeutral: 0},
		ByStatus:    map[FeedbackStatus]int{StatusPending: 0, StatusReviewed: 0, StatusDone: 0},
	}
}

// RankedRow is the minimal projection the visibility ranker works on.
type RankedRow struct {
	ID         uuid.UUID
	Visibility Visibility
}
