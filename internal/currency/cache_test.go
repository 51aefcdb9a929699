package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

type stubProvider struct {
	rates map[string]decimal.Decimal
	err   error
	calls int
}

func (s *stubProvider) FetchRates(context.Context) (map[string]decimal.Decimal, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.rates, nil
}

func TestCacheReusesFreshSnapshot(t *testing.T) {
	p := &stubProvider{rates: testSnapshot()}
	c := NewCache(p, time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Rates(context.Background())
	c.Rates(context.Background())
	if p.calls != 1 {
		t.Fatalf("provider called %d times within TTL, want 1", p.calls)
	}

	// Advance past the TTL; the next read must refresh.
	now = now.Add(time.Hour + time.Minute)
	c.Rates(context.Background())
	if p.calls != 2 {
		t.Fatalf("provider called %d times after TTL expiry, want 2", p.calls)
	}
}

func TestCacheKeepsStaleSnapshotOnProviderFailure(t *testing.T) {
	p := &stubProvider{rates: testSnapshot()}
	c := NewCache(p, time.Hour)

	first := c.Rates(context.Background())
	if len(first) == 0 {
		t.Fatal("expected initial snapshot")
	}

	p.err = errors.New("provider down")
	c.Refresh()
	got := c.Rates(context.Background())
	if !got["EUR"].Equal(first["EUR"]) {
		t.Fatal("expected stale snapshot to be reused on provider failure")
	}
}

func TestCacheRatesAreIsolatedFromCallers(t *testing.T) {
	p := &stubProvider{rates: testSnapshot()}
	c := NewCache(p, time.Hour)

	first := c.Rates(context.Background())
	want := first["EUR"]
	first["EUR"] = decimal.NewFromInt(999)
	delete(first, "GBP")

	got := c.Rates(context.Background())
	if !got["EUR"].Equal(want) {
		t.Fatalf("EUR = %s after caller mutation, want %s", got["EUR"], want)
	}
	if _, ok := got["GBP"]; !ok {
		t.Fatal("caller deletion must not reach the cached snapshot")
	}
}

func TestCacheFallsBackWithoutSnapshot(t *testing.T) {
	p := &stubProvider{err: errors.New("provider down")}
	c := NewCache(p, time.Hour)

	got := c.Rates(context.Background())
	if !got["USD"].Equal(decimal.NewFromInt(1)) {
		t.Fatal("fallback table must anchor USD at 1")
	}
	if len(got) != 20 {
		t.Fatalf("fallback table has %d codes, want 20", len(got))
	}
}
