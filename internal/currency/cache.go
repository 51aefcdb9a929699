package currency

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Cache memoizes the provider's rate table for a fixed window, bounding
// external call volume. It is an injected object, not process-wide state, so
// tests can pin a snapshot.
type Cache struct {
	mu        sync.Mutex
	provider  Provider
	ttl       time.Duration
	snapshot  map[string]decimal.Decimal
	fetchedAt time.Time
	now       func() time.Time
}

const DefaultTTL = time.Hour

func NewCache(provider Provider, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		provider: provider,
		ttl:      ttl,
		now:      time.Now,
	}
}

// NewFixedCache returns a cache pinned to the given snapshot, never
// refreshing. Used by tests and offline tooling.
func NewFixedCache(rates map[string]decimal.Decimal) *Cache {
	c := &Cache{ttl: DefaultTTL, now: time.Now}
	c.snapshot = rates
	c.fetchedAt = time.Now()
	return c
}

// Rates returns a copy of the current rate snapshot, so callers cannot
// mutate the shared table. A fresh cached snapshot is reused; otherwise the
// provider is queried. On provider failure the previous snapshot is kept if
// one exists, else the hard-coded fallback table is returned. Rates never
// fails the caller.
func (c *Cache) Rates(ctx context.Context) map[string]decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.snapshot != nil && c.now().Sub(c.fetchedAt) < c.ttl {
		return copyRates(c.snapshot)
	}
	if c.provider == nil {
		if c.snapshot != nil {
			return copyRates(c.snapshot)
		}
		return FallbackRates()
	}

	rates, err := c.provider.FetchRates(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Rate provider unavailable, degrading",
			"error", err,
			"have_stale_snapshot", c.snapshot != nil)
		if c.snapshot != nil {
			return copyRates(c.snapshot)
		}
		return FallbackRates()
	}

	c.snapshot = rates
	c.fetchedAt = c.now()
	slog.DebugContext(ctx, "Exchange rates refreshed", "codes", len(rates))
	return copyRates(c.snapshot)
}

func copyRates(rates map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(rates))
	for code, rate := range rates {
		out[code] = rate
	}
	return out
}

// Refresh forces the next Rates call to hit the provider.
func (c *Cache) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchedAt = time.Time{}
}
