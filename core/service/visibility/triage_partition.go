// Package visibility enforces the soft plan limit: the newest N feedback items
// of a tenant are visible with dense ranks 1..N, everything older is hidden.
package visibility

import "github.com/google/uuid"

// Partition splits ids, which must be ordered newest first, into the visible
// prefix of at most limit items and the hidden remainder. The rank of
// visible[i] is i+1.
func Partition(ids []uuid.UUID, limit int) (visible, hidden []uuid.UUID) {
	if limit < 0 {
		limit = 0
	}
	n := min(limit, len(ids))
	return ids[:n:n], ids[n:]
}
