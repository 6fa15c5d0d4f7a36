package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"triage_server/core/domain"
	"triage_server/core/port/out"
)

const classifySystemPrompt = `You triage product feedback. Analyze the feedback and respond with JSON only.

category (pick ONE):
- BUG: something is broken, erroring or behaving incorrectly
- FEATURE: a request for new functionality or an improvement
- REVIEW: general opinion, praise or commentary

sentiment (pick ONE): POSITIVE, NEGATIVE, NEUTRAL

Respond with this exact JSON format:
{
  "sentiment": "POSITIVE|NEGATIVE|NEUTRAL",
  "category": "BUG|FEATURE|REVIEW",
  "sentimentConfidence": 0.0-1.0,
  "categoryConfidence": 0.0-1.0,
  "reasoning": "one short sentence"
}`

// classificationResponse mirrors the JSON the model is asked to produce.
type classificationResponse struct {
	Sentiment           string   `json:"sentiment"`
	Category            string   `json:"category"`
	SentimentConfidence *float64 `json:"sentimentConfidence"`
	CategoryConfidence  *float64 `json:"categoryConfidence"`
	Reasoning           string   `json:"reasoning"`
}

// BuildClassifyPrompt embeds the feedback in the fixed user template.
func BuildClassifyPrompt(content string) string {
	return fmt.Sprintf("Feedback:\n\"\"\"\n%s\n\"\"\"", content)
}

// Classify implements out.ClassificationProvider. Any response that is not
// valid JSON with known enum values and both confidences is an error.
func (c *Client) Classify(ctx context.Context, content string) (*domain.ClassificationResult, error) {
	raw, err := c.CompleteJSON(ctx, classifySystemPrompt, BuildClassifyPrompt(content))
	if err != nil {
		return nil, err
	}
	return ParseClassification(raw)
}

// ParseClassification decodes a model response. Confidences are returned as
// given; clamping happens in the classifier.
func ParseClassification(raw string) (*domain.ClassificationResult, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var resp classificationResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		return nil, fmt.Errorf("failed to parse classification response: %w", err)
	}

	category, err := domain.ParseCategory(resp.Category)
	if err != nil {
		return nil, err
	}
	sentiment, err := domain.ParseSentiment(resp.Sentiment)
	if err != nil {
		return nil, err
	}
	if resp.CategoryConfidence == nil || resp.SentimentConfidence == nil {
		return nil, fmt.Errorf("classification response missing confidence")
	}

	return &domain.ClassificationResult{
		Category:            category,
		Sentiment:           sentiment,
		CategoryConfidence:  *resp.CategoryConfidence,
		SentimentConfidence: *resp.SentimentConfidence,
		Reasoning:           resp.Reasoning,
		Method:              domain.MethodAI,
	}, nil
}

var _ out.ClassificationProvider = (*Client)(nil)
