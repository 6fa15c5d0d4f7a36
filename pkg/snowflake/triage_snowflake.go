// Package snowflake produces monotonically increasing 64-bit keys used as the
// insertion-order tie breaker for feedback rows created in the same instant.
//
// Layout (64 bits):
//
//	┌─────────┬─────────────────────┬────────────┬──────────────┐
//	│ 1 bit   │      41 bits        │  10 bits   │   12 bits    │
//	│ sign(0) │ timestamp (ms)      │ node_id    │  sequence    │
//	└─────────┴─────────────────────┴────────────┴──────────────┘
//
// Keys from one node never go backwards, even when the wall clock does.
package snowflake

import (
	"errors"
	"sync"
	"time"
)

const (
	// 2025-01-01 00:00:00 UTC
	epoch int64 = 1735689600000

	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	timestampShift = nodeBits + sequenceBits
	nodeShift      = sequenceBits
)

var ErrInvalidNodeID = errors.New("node ID must be between 0 and 1023")

// Generator generates unique, ordered keys.
type Generator struct {
	mu       sync.Mutex
	nodeID   int64
	sequence int64
	lastTime int64
	now      func() int64
}

// NewGenerator creates a generator for the given node. nodeID must be in [0, 1023].
func NewGenerator(nodeID int64) (*Generator, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrInvalidNodeID
	}
	return &Generator{
		nodeID: nodeID,
		now:    func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Next returns the next key. When the clock moves backwards the generator keeps
// counting from the last observed millisecond instead of failing.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now < g.lastTime {
		now = g.lastTime
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// sequence exhausted for this millisecond
			now++
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return ((now - epoch) << timestampShift) | (g.nodeID << nodeShift) | g.sequence
}

// Parse extracts components from a key.
func Parse(id int64) (timestamp time.Time, nodeID int64, sequence int64) {
	timestamp = time.UnixMilli((id >> timestampShift) + epoch)
	nodeID = (id >> nodeShift) & maxNodeID
	sequence = id & maxSequence
	return
}
