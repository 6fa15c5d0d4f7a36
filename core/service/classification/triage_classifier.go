package classification

import (
	"context"
	"fmt"
	"strings"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/in"
	"triage_server/core/port/out"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
)

// DefaultTimeout bounds one provider call.
const DefaultTimeout = 15 * time.Second

// Config configures a Classifier.
type Config struct {
	Timeout time.Duration
	Rules   *RuleSet
}

// Classifier is the two-tier content classifier. It is safe for concurrent use.
type Classifier struct {
	provider out.ClassificationProvider
	rules    *RuleSet
	timeout  time.Duration
	latency  *metrics.LatencyRegistry
	log      *logger.Logger
}

// NewClassifier creates a classifier. provider may be nil, in which case every
// call uses the keyword rules.
func NewClassifier(provider out.ClassificationProvider, cfg Config, latency *metrics.LatencyRegistry, log *logger.Logger) *Classifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Rules == nil {
		cfg.Rules = DefaultRuleSet()
	}
	if latency == nil {
		latency = metrics.GlobalRegistry()
	}
	if log == nil {
		log = logger.Default()
	}
	return &Classifier{
		provider: provider,
		rules:    cfg.Rules,
		timeout:  cfg.Timeout,
		latency:  latency,
		log:      log.WithField("component", "classifier"),
	}
}

var _ in.Classifier = (*Classifier)(nil)

// Classify always returns a result. Provider errors, timeouts, schema
// violations and invalid input all end in the keyword fallback.
func (c *Classifier) Classify(ctx context.Context, content string) (result *domain.ClassificationResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("classifier panic, using fallback: %v", r)
			result = c.fallback(content, start)
		}
	}()

	if err := ValidateContent(content); err != nil {
		c.log.Debug("skipping provider: %v", err)
		return c.fallback(content, start)
	}
	if c.provider == nil {
		return c.fallback(content, start)
	}

	res, err := c.callProvider(ctx, strings.TrimSpace(content))
	if err != nil {
		c.log.WithError(err).Warn("AI classification failed, using fallback")
		return c.fallback(content, start)
	}

	res.ProcessingTime = time.Since(start)
	c.latency.Record(metrics.OpClassifyAI, res.ProcessingTime)
	return res
}

func (c *Classifier) callProvider(ctx context.Context, content string) (*domain.ClassificationResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.provider.Classify(ctx, content)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("provider returned no result")
	}
	return normalize(raw)
}

// normalize validates enums and clamps confidences.
func normalize(raw *domain.ClassificationResult) (*domain.ClassificationResult, error) {
	category, err := domain.ParseCategory(string(raw.Category))
	if err != nil {
		return nil, err
	}
	sentiment, err := domain.ParseSentiment(string(raw.Sentiment))
	if err != nil {
		return nil, err
	}
	return &domain.ClassificationResult{
		Category:            category,
		Sentiment:           sentiment,
		CategoryConfidence:  domain.ClampConfidence(raw.CategoryConfidence),
		SentimentConfidence: domain.ClampConfidence(raw.SentimentConfidence),
		Reasoning:           strings.TrimSpace(raw.Reasoning),
		Method:              domain.MethodAI,
	}, nil
}

func (c *Classifier) fallback(content string, start time.Time) *domain.ClassificationResult {
	res := c.rules.Fallback(content)
	res.ProcessingTime = time.Since(start)
	c.latency.Record(metrics.OpClassifyFallback, res.ProcessingTime)
	return res
}
