package currency

import "github.com/shopspring/decimal"

// fallbackRates is the last-known-good table used when the provider is
// unreachable and no cached snapshot exists. Values are rates to USD.
var fallbackRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromInt(1),
	"EUR": decimal.NewFromFloat(0.85),
	"GBP": decimal.NewFromFloat(0.73),
	"JPY": decimal.NewFromFloat(110),
	"CNY": decimal.NewFromFloat(6.45),
	"INR": decimal.NewFromFloat(74.5),
	"CAD": decimal.NewFromFloat(1.25),
	"AUD": decimal.NewFromFloat(1.35),
	"CHF": decimal.NewFromFloat(0.92),
	"SEK": decimal.NewFromFloat(8.5),
	"NZD": decimal.NewFromFloat(1.42),
	"MXN": decimal.NewFromFloat(20.1),
	"SGD": decimal.NewFromFloat(1.35),
	"HKD": decimal.NewFromFloat(7.8),
	"NOK": decimal.NewFromFloat(8.8),
	"ZAR": decimal.NewFromFloat(14.5),
	"BRL": decimal.NewFromFloat(5.2),
	"RUB": decimal.NewFromFloat(74.0),
	"KRW": decimal.NewFromFloat(1180),
	"THB": decimal.NewFromFloat(31.5),
}

// FallbackRates returns a copy of the hard-coded rate table.
func FallbackRates() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(fallbackRates))
	for code, rate := range fallbackRates {
		out[code] = rate
	}
	return out
}
