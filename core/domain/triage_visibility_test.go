package domain

import "testing"

func TestVisibility_States(t *testing.T) {
	h := Hidden()
	if h.IsVisible() {
		t.Error("Hidden() reports visible")
	}
	if _, ok := h.Rank(); ok {
		t.Error("Hidden() has a rank")
	}

	v := Visible(3)
	if r, ok := v.Rank(); !ok || r != 3 {
		t.Errorf("Visible(3).Rank() = %d, %t", r, ok)
	}

	var zero Visibility
	if zero != Hidden() {
		t.Error("zero value should be hidden")
	}
}

func TestVisible_PanicsOnNonPositiveRank(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Visible(0) did not panic")
		}
	}()
	_ = Visible(0)
}

func TestVisibilityFromColumns(t *testing.T) {
	one, zero := 1, 0
	tests := []struct {
		name    string
		visible bool
		rank    *int
		want    Visibility
		wantErr bool
	}{
		{"visible with rank", true, &one, Visible(1), false},
		{"hidden without rank", false, nil, Hidden(), false},
		{"visible without rank", true, nil, Visibility{}, true},
		{"hidden with rank", false, &one, Visibility{}, true},
		{"visible with zero rank", true, &zero, Visibility{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := VisibilityFromColumns(tt.visible, tt.rank)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisibility_ColumnsRoundTrip(t *testing.T) {
	for _, v := range []Visibility{Hidden(), Visible(1), Visible(42)} {
		isVisible, rank := v.Columns()
		back, err := VisibilityFromColumns(isVisible, rank)
		if err != nil || back != v {
			t.Errorf("round trip of %v = %v, %v", v, back, err)
		}
	}
}

func TestVisibility_MarshalJSON(t *testing.T) {
	b, _ := Visible(2).MarshalJSON()
	if string(b) != `{"visible":true,"rank":2}` {
		t.Errorf("got %s", b)
	}
	b, _ = Hidden().MarshalJSON()
	if string(b) != `{"visible":false,"rank":null}` {
		t.Errorf("got %s", b)
	}
}
