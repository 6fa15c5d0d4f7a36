package visibility

import (
	"testing"

	"github.com/google/uuid"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = uuid.New()
	}
	return out
}

func TestPartition(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		limit       int
		wantVisible int
	}{
		{"under limit", 3, 5, 3},
		{"at limit", 5, 5, 5},
		{"over limit", 20, 5, 5},
		{"empty", 0, 5, 0},
		{"zero limit", 4, 0, 0},
		{"negative limit", 4, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			all := ids(tt.total)
			visible, hidden := Partition(all, tt.limit)

			if len(visible) != tt.wantVisible {
				t.Fatalf("len(visible) = %d, want %d", len(visible), tt.wantVisible)
			}
			if len(visible)+len(hidden) != tt.total {
				t.Fatalf("partition lost rows: %d + %d != %d", len(visible), len(hidden), tt.total)
			}
			for i := range visible {
				if visible[i] != all[i] {
					t.Errorf("visible[%d] out of order", i)
				}
			}
			for i := range hidden {
				if hidden[i] != all[tt.wantVisible+i] {
					t.Errorf("hidden[%d] out of order", i)
				}
			}
		})
	}
}

func TestPartition_VisibleSliceIsCapped(t *testing.T) {
	all := ids(4)
	firstHidden := all[2]
	visible, _ := Partition(all, 2)
	_ = append(visible, uuid.New())
	if all[2] != firstHidden {
		t.Fatal("append to visible overwrote the hidden part")
	}
}
