package snowflake

import (
	"sync"
	"testing"
	"time"
)

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		name    string
		nodeID  int64
		wantErr bool
	}{
		{"node 0", 0, false},
		{"node max", 1023, false},
		{"negative node", -1, true},
		{"node too large", 1024, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGenerator(tt.nodeID)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewGenerator(%d) error = %v, wantErr %v", tt.nodeID, err, tt.wantErr)
			}
		})
	}
}

func TestNext_Concurrent(t *testing.T) {
	gen, err := NewGenerator(1)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	ids := sync.Map{}
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if _, loaded := ids.LoadOrStore(gen.Next(), true); loaded {
					t.Error("duplicate key")
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestNext_MonotonicWhenClockMovesBack(t *testing.T) {
	gen, _ := NewGenerator(3)
	clock := time.Now().UnixMilli()
	gen.now = func() int64 { return clock }

	first := gen.Next()
	clock -= 5000
	second := gen.Next()
	clock += 10000
	third := gen.Next()

	if !(first < second && second < third) {
		t.Fatalf("keys not increasing: %d %d %d", first, second, third)
	}
}

func TestNext_SequenceOverflow(t *testing.T) {
	gen, _ := NewGenerator(0)
	clock := time.Now().UnixMilli()
	gen.now = func() int64 { return clock }

	prev := gen.Next()
	for i := 0; i < maxSequence+10; i++ {
		next := gen.Next()
		if next <= prev {
			t.Fatalf("key %d not greater than %d at step %d", next, prev, i)
		}
		prev = next
	}
}

func TestParse(t *testing.T) {
	gen, _ := NewGenerator(42)

	before := time.Now()
	id := gen.Next()

	ts, nodeID, seq := Parse(id)
	if nodeID != 42 {
		t.Errorf("nodeID = %d, want 42", nodeID)
	}
	if seq != 0 {
		t.Errorf("sequence = %d, want 0", seq)
	}
	if ts.Before(before.Add(-time.Second)) || ts.After(before.Add(time.Second)) {
		t.Errorf("timestamp %v too far from %v", ts, before)
	}
}

func BenchmarkNext(b *testing.B) {
	gen, _ := NewGenerator(1)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		gen.Next()
	}
}
