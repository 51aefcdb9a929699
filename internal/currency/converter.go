package currency

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Amansingh0807/OptExAI/internal/core"
)

// Converter converts amounts between supported currencies by crossing
// through the USD base: amount / rate[from] * rate[to].
type Converter struct {
	cache *Cache
}

func NewConverter(cache *Cache) *Converter {
	return &Converter{cache: cache}
}

// Convert returns amount expressed in the target currency. When from and to
// match, the amount is returned untouched: no rate lookup, no rounding noise.
func (cv *Converter) Convert(ctx context.Context, amount decimal.Decimal, from, to string) (decimal.Decimal, error) {
	if !core.ValidCurrency(from) {
		return decimal.Zero, &core.InvalidCurrencyError{Code: from}
	}
	if !core.ValidCurrency(to) {
		return decimal.Zero, &core.InvalidCurrencyError{Code: to}
	}
	if from == to {
		return amount, nil
	}

	rates := cv.cache.Rates(ctx)
	rateFrom, ok := rates[from]
	if !ok || rateFrom.IsZero() {
		return decimal.Zero, &core.InvalidCurrencyError{Code: from}
	}
	rateTo, ok := rates[to]
	if !ok {
		return decimal.Zero, &core.InvalidCurrencyError{Code: to}
	}

	return amount.Div(rateFrom).Mul(rateTo), nil
}
