package domain

import (
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestClampConfidence(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{1.5, 1.0},
		{-0.2, 0.0},
		{0.42, 0.42},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := ClampConfidence(tt.in); got != tt.want {
			t.Errorf("ClampConfidence(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	if c, err := ParseCategory(" bug "); err != nil || c != CategoryBug {
		t.Errorf("ParseCategory(bug) = %v, %v", c, err)
	}
	if _, err := ParseCategory("QUESTION"); err == nil {
		t.Error("ParseCategory(QUESTION) should fail")
	}
	if s, err := ParseSentiment("Negative"); err != nil || s != SentimentNegative {
		t.Errorf("ParseSentiment(Negative) = %v, %v", s, err)
	}
}

func TestClassificationResult_JSONProcessingTime(t *testing.T) {
	res := ClassificationResult{
		Category:       CategoryBug,
		Sentiment:      SentimentNegative,
		Method:         MethodFallback,
		ProcessingTime: 2500 * time.Microsecond,
	}
	raw, err := json.Marshal(&res)
	if err != nil {
		t.Fatal(err)
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatal(err)
	}
	if got["processing_time_ms"] != 2.5 {
		t.Errorf("processing_time_ms = %v, want 2.5 (%s)", got["processing_time_ms"], raw)
	}
	if got["category"] != "BUG" || got["analysis_method"] != string(MethodFallback) {
		t.Errorf("fields lost: %s", raw)
	}
}
