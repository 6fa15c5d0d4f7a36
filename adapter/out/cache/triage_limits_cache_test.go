package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"triage_server/core/domain"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type memStore struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	b, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *memStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = b
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestLimitsCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c := &LimitsCache{store: store}
	tenant := uuid.New()

	if _, ok, err := c.Get(ctx, tenant); ok || err != nil {
		t.Fatalf("empty cache: ok=%v err=%v", ok, err)
	}

	want := domain.PlanCatalog[domain.PlanStarter]
	if err := c.Set(ctx, tenant, want, 5*time.Minute); err != nil {
		t.Fatal(err)
	}
	if store.ttls["plan_limits:"+tenant.String()] != 5*time.Minute {
		t.Errorf("ttl not forwarded: %v", store.ttls)
	}

	got, ok, err := c.Get(ctx, tenant)
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if *got != want {
		t.Errorf("got %+v, want %+v", *got, want)
	}

	if _, ok, _ := c.Get(ctx, uuid.New()); ok {
		t.Error("other tenant must miss")
	}

	if err := c.Invalidate(ctx, tenant); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get(ctx, tenant); ok {
		t.Error("entry survived Invalidate")
	}
}

func TestLimitsCache_GetError(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("redis down")
	c := &LimitsCache{store: store}

	got, ok, err := c.Get(context.Background(), uuid.New())
	if err == nil || ok || got != nil {
		t.Fatalf("got=%v ok=%v err=%v", got, ok, err)
	}
}
