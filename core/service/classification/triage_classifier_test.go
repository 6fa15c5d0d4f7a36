package classification

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"triage_server/core/domain"
	"triage_server/pkg/logger"
	"triage_server/pkg/metrics"
)

type fakeProvider struct {
	calls  atomic.Int32
	result *domain.ClassificationResult
	err    error
	delay  time.Duration
	panics bool
}

func (f *fakeProvider) Classify(ctx context.Context, content string) (*domain.ClassificationResult, error) {
	f.calls.Add(1)
	if f.panics {
		panic("provider exploded")
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func newTestClassifier(p *fakeProvider, timeout time.Duration) *Classifier {
	if p == nil {
		// avoid a typed nil inside the interface
		return NewClassifier(nil, Config{Timeout: timeout}, metrics.NewLatencyRegistry(10), logger.Nop())
	}
	return NewClassifier(p, Config{Timeout: timeout}, metrics.NewLatencyRegistry(10), logger.Nop())
}

func TestClassify_AIPath(t *testing.T) {
	p := &fakeProvider{result: &domain.ClassificationResult{
		Category:            "feature",
		Sentiment:           "POSITIVE",
		CategoryConfidence:  0.93,
		SentimentConfidence: 0.81,
		Reasoning:           " asks for dark mode ",
	}}
	c := newTestClassifier(p, time.Second)

	got := c.Classify(context.Background(), "Please add dark mode, love the app")

	if got.Method != domain.MethodAI {
		t.Fatalf("Method = %s, want AI", got.Method)
	}
	if got.Category != domain.CategoryFeature || got.Sentiment != domain.SentimentPositive {
		t.Errorf("got %s/%s", got.Category, got.Sentiment)
	}
	if got.Reasoning != "asks for dark mode" {
		t.Errorf("Reasoning = %q", got.Reasoning)
	}
	if got.ProcessingTime <= 0 {
		t.Error("ProcessingTime not recorded")
	}
}

func TestClassify_ClampsConfidence(t *testing.T) {
	p := &fakeProvider{result: &domain.ClassificationResult{
		Category:            domain.CategoryBug,
		Sentiment:           domain.SentimentNegative,
		SentimentConfidence: 1.5,
		CategoryConfidence:  -0.2,
	}}
	got := newTestClassifier(p, time.Second).Classify(context.Background(), "crash on save")

	if got.Method != domain.MethodAI {
		t.Fatalf("Method = %s, want AI", got.Method)
	}
	if got.SentimentConfidence != 1.0 {
		t.Errorf("SentimentConfidence = %v, want 1.0", got.SentimentConfidence)
	}
	if got.CategoryConfidence != 0.0 {
		t.Errorf("CategoryConfidence = %v, want 0.0", got.CategoryConfidence)
	}
}

func TestClassify_FallsBack(t *testing.T) {
	valid := &domain.ClassificationResult{Category: domain.CategoryReview, Sentiment: domain.SentimentNeutral}

	tests := []struct {
		name      string
		provider  *fakeProvider
		content   string
		wantCalls int32
	}{
		{"provider error", &fakeProvider{err: errors.New("quota exceeded")}, "bug in the suggestion box", 1},
		{"unknown category", &fakeProvider{result: &domain.ClassificationResult{Category: "QUESTION", Sentiment: "NEUTRAL"}}, "bug in the suggestion box", 1},
		{"unknown sentiment", &fakeProvider{result: &domain.ClassificationResult{Category: "BUG", Sentiment: "MIXED"}}, "bug in the suggestion box", 1},
		{"timeout", &fakeProvider{result: valid, delay: time.Second}, "bug in the suggestion box", 1},
		{"panic", &fakeProvider{panics: true}, "bug in the suggestion box", 1},
		{"empty input skips provider", &fakeProvider{result: valid}, "", 0},
		{"oversized input skips provider", &fakeProvider{result: valid}, strings.Repeat("a", 6000), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClassifier(tt.provider, 20*time.Millisecond)
			got := c.Classify(context.Background(), tt.content)

			if got == nil {
				t.Fatal("Classify returned nil")
			}
			if got.Method != domain.MethodFallback {
				t.Errorf("Method = %s, want FALLBACK", got.Method)
			}
			if calls := tt.provider.calls.Load(); calls != tt.wantCalls {
				t.Errorf("provider calls = %d, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestClassify_FallbackKeywordPriority(t *testing.T) {
	c := newTestClassifier(&fakeProvider{err: errors.New("down")}, time.Second)
	got := c.Classify(context.Background(), "bug in the suggestion box")
	if got.Category != domain.CategoryBug {
		t.Errorf("Category = %s, want BUG", got.Category)
	}
}

func TestClassify_NilProvider(t *testing.T) {
	c := newTestClassifier(nil, time.Second)
	got := c.Classify(context.Background(), "great feature")
	if got.Method != domain.MethodFallback {
		t.Errorf("Method = %s, want FALLBACK", got.Method)
	}
}

func TestClassify_RecordsLatency(t *testing.T) {
	reg := metrics.NewLatencyRegistry(10)
	c := NewClassifier(&fakeProvider{err: errors.New("down")}, Config{}, reg, logger.Nop())
	c.Classify(context.Background(), "hello")

	if reg.Stats(metrics.OpClassifyFallback).Count != 1 {
		t.Error("fallback latency not recorded")
	}
}
