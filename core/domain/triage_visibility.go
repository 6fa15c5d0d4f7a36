package domain

import (
	"fmt"
	"strconv"
)

// Visibility is either Visible with a 1-based rank or Hidden. The zero value is Hidden.
type Visibility struct {
	rank int
}

// Visible returns a visible state with the given rank. rank must be >= 1.
func Visible(rank int) Visibility {
	if rank < 1 {
		panic(fmt.Sprintf("domain: visibility rank must be positive, got %d", rank))
	}
	return Visibility{rank: rank}
}

// Hidden returns the hidden state.
func Hidden() Visibility {
	return Visibility{}
}

// IsVisible reports whether the item is in the visible set.
func (v Visibility) IsVisible() bool {
	return v.rank > 0
}

// Rank returns the rank and true for visible items.
func (v Visibility) Rank() (int, bool) {
	return v.rank, v.rank > 0
}

func (v Visibility) String() string {
	if v.rank == 0 {
		return "hidden"
	}
	return "visible#" + strconv.Itoa(v.rank)
}

// Columns renders the state as the (is_visible, visibility_rank) pair.
func (v Visibility) Columns() (bool, *int) {
	if v.rank == 0 {
		return false, nil
	}
	r := v.rank
	return true, &r
}

// VisibilityFromColumns rebuilds the state from storage and rejects
// combinations where the rank and the flag disagree.
func VisibilityFromColumns(isVisible bool, rank *int) (Visibility, error) {
	switch {
	case isVisible && rank != nil && *rank > 0:
		return Visibility{rank: *rank}, nil
	case !isVisible && rank == nil:
		return Hidden(), nil
	}
	return Visibility{}, fmt.Errorf("inconsistent visibility columns: is_visible=%t rank=%v", isVisible, rank)
}

// MarshalJSON renders {"visible":bool,"rank":n|null}.
func (v Visibility) MarshalJSON() ([]byte, error) {
	if v.rank == 0 {
		return []byte(`{"visible":false,"rank":null}`), nil
	}
	return []byte(`{"visible":true,"rank":` + strconv.Itoa(v.rank) + `}`), nil
}
