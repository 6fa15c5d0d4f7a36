package domain

import "testing"

func ptr[T any](v T) *T { return &v }

func TestEffectiveCategory_OverridePrecedence(t *testing.T) {
	tests := []struct {
		name     string
		feedback Feedback
		want     *Category
	}{
		{
			name: "override active",
			feedback: Feedback{
				Analysis: &Analysis{Category: CategoryBug},
				Override: Override{ManualCategory: ptr(CategoryFeature), CategoryOverridden: true},
			},
			want: ptr(CategoryFeature),
		},
		{
			name: "flag off with stale manual value falls back to analysis",
			feedback: Feedback{
				Analysis: &Analysis{Category: CategoryBug},
				Override: Override{ManualCategory: ptr(CategoryFeature), CategoryOverridden: false},
			},
			want: ptr(CategoryBug),
		},
		{
			name: "flag on but no manual value",
			feedback: Feedback{
				Analysis: &Analysis{Category: CategoryReview},
				Override: Override{CategoryOverridden: true},
			},
			want: ptr(CategoryReview),
		},
		{
			name:     "never analyzed",
			feedback: Feedback{},
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.feedback.EffectiveCategory()
			if (got == nil) != (tt.want == nil) {
				t.Fatalf("EffectiveCategory() = %v, want %v", got, tt.want)
			}
			if got != nil && *got != *tt.want {
				t.Errorf("EffectiveCategory() = %s, want %s", *got, *tt.want)
			}
		})
	}
}

func TestOverride_ClearNullsManualValue(t *testing.T) {
	var o Override
	o.SetCategory(CategoryFeature)
	o.SetSentiment(SentimentNegative)

	o.ClearCategory()
	o.ClearSentiment()

	if o.ManualCategory != nil || o.CategoryOverridden {
		t.Errorf("category override not cleared: %+v", o)
	}
	if o.ManualSentiment != nil || o.SentimentOverridden {
		t.Errorf("sentiment override not cleared: %+v", o)
	}
}

func TestEffectiveSentiment(t *testing.T) {
	f := Feedback{Analysis: &Analysis{Sentiment: SentimentNeutral}}
	if got := f.EffectiveSentiment(); *got != SentimentNeutral {
		t.Errorf("got %s, want NEUTRAL", *got)
	}
	f.Override.SetSentiment(SentimentPositive)
	if got := f.EffectiveSentiment(); *got != SentimentPositive {
		t.Errorf("got %s, want POSITIVE", *got)
	}
}

func TestFeedbackFilter_Normalize(t *testing.T) {
	f := FeedbackFilter{Limit: 1000, Offset: -5}
	f.Normalize()
	if f.Limit != 100 || f.Offset != 0 {
		t.Errorf("Normalize() = limit %d offset %d", f.Limit, f.Offset)
	}
}

func TestProject_AllowsOrigin(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no restriction", nil, "https://evil.test", true},
		{"listed", []string{"https://shop.example"}, "https://shop.example", true},
		{"case and slash", []string{"https://Shop.example/"}, "https://shop.example", true},
		{"not listed", []string{"https://shop.example"}, "https://evil.test", false},
		{"wildcard", []string{"*"}, "https://any.test", true},
		{"no origin header", []string{"https://shop.example"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Project{AllowedOrigins: tt.allowed}
			if got := p.AllowsOrigin(tt.origin); got != tt.want {
				t.Errorf("AllowsOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
			}
		})
	}
}
