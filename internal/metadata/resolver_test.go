package metadata

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/alanyoungcy/walletwatch/internal/domain"
)

type memCache struct {
	data   map[string]domain.MarketMeta
	puts   int
	getErr error
}

func (c *memCache) Get(_ context.Context, id string) (domain.MarketMeta, error) {
	if c.getErr != nil {
		return domain.MarketMeta{}, c.getErr
	}
	m, ok := c.data[id]
	if !ok {
		return domain.MarketMeta{}, domain.ErrNotFound
	}
	return m, nil
}

func (c *memCache) Put(_ context.Context, m domain.MarketMeta) error {
	c.puts++
	c.data[m.ConditionID] = m
	return nil
}

type stubRegistry struct {
	meta  map[string]domain.MarketMeta
	err   error
	calls int
}

func (r *stubRegistry) MarketByConditionID(_ context.Context, id string) (domain.MarketMeta, error) {
	r.calls++
	if r.err != nil {
		return domain.MarketMeta{}, r.err
	}
	m, ok := r.meta[id]
	if !ok {
		return domain.MarketMeta{}, domain.ErrNotFound
	}
	return m, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestResolveCacheHit(t *testing.T) {
	cache := &memCache{data: map[string]domain.MarketMeta{"c1": {ConditionID: "c1", Category: "politics"}}}
	reg := &stubRegistry{}
	r := NewResolver(cache, reg, discard())

	m, ok := r.Resolve(context.Background(), "c1")
	if !ok || m.Category != "politics" {
		t.Fatalf("Resolve = %+v, %v", m, ok)
	}
	if reg.calls != 0 {
		t.Errorf("registry called %d times on cache hit", reg.calls)
	}
}

func TestResolveMissFetchesAndCaches(t *testing.T) {
	cache := &memCache{data: map[string]domain.MarketMeta{}}
	reg := &stubRegistry{meta: map[string]domain.MarketMeta{"c1": {MarketID: "42", Question: "Q?"}}}
	r := NewResolver(cache, reg, discard())

	m, ok := r.Resolve(context.Background(), "c1")
	if !ok || m.MarketID != "42" || m.ConditionID != "c1" {
		t.Fatalf("Resolve = %+v, %v", m, ok)
	}
	if cache.puts != 1 {
		t.Errorf("puts = %d, want 1", cache.puts)
	}

	if _, ok := r.Resolve(context.Background(), "c1"); !ok {
		t.Fatal("second Resolve missed")
	}
	if reg.calls != 1 {
		t.Errorf("registry calls = %d, want 1", reg.calls)
	}
}

func TestResolveNoNegativeCaching(t *testing.T) {
	cache := &memCache{data: map[string]domain.MarketMeta{}}
	reg := &stubRegistry{meta: map[string]domain.MarketMeta{}}
	r := NewResolver(cache, reg, discard())

	for i := 0; i < 2; i++ {
		if _, ok := r.Resolve(context.Background(), "missing"); ok {
			t.Fatal("expected absent")
		}
	}
	if reg.calls != 2 {
		t.Errorf("registry calls = %d, want 2", reg.calls)
	}
	if cache.puts != 0 {
		t.Errorf("puts = %d, want 0", cache.puts)
	}

	reg.err = errors.New("boom")
	if _, ok := r.Resolve(context.Background(), "missing"); ok {
		t.Fatal("expected absent on registry error")
	}
	if cache.puts != 0 {
		t.Errorf("puts after error = %d, want 0", cache.puts)
	}
}

func TestResolveCacheErrorFallsThrough(t *testing.T) {
	cache := &memCache{data: map[string]domain.MarketMeta{}, getErr: errors.New("redis down")}
	reg := &stubRegistry{meta: map[string]domain.MarketMeta{"c1": {MarketID: "1"}}}
	r := NewResolver(cache, reg, discard())

	if _, ok := r.Resolve(context.Background(), "c1"); !ok {
		t.Fatal("expected registry fallback")
	}
}

func TestRefreshOverwritesWholesale(t *testing.T) {
	cache := &memCache{data: map[string]domain.MarketMeta{
		"c1": {ConditionID: "c1", Category: "politics", Slug: "old"},
	}}
	reg := &stubRegistry{meta: map[string]domain.MarketMeta{"c1": {MarketID: "7", Question: "new"}}}
	r := NewResolver(cache, reg, discard())

	if _, err := r.Refresh(context.Background(), "c1"); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	got := cache.data["c1"]
	if got.Category != "" || got.Slug != "" || got.Question != "new" {
		t.Errorf("cached = %+v, want fields replaced wholesale", got)
	}
}
