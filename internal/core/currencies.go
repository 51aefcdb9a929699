package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyInfo describes one supported currency for formatting and input
// validation.
type CurrencyInfo struct {
	Symbol string
	Name   string
}

// BaseCurrency is the pivot all cross-currency conversions are routed through.
const BaseCurrency = "USD"

// SupportedCurrencies is the closed set of currency codes the ledger accepts.
var SupportedCurrencies = map[string]CurrencyInfo{
	"USD": {Symbol: "$", Name: "US Dollar"},
	"EUR": {Symbol: "€", Name: "Euro"},
	"GBP": {Symbol: "£", Name: "British Pound"},
	"JPY": {Symbol: "¥", Name: "Japanese Yen"},
	"CNY": {Symbol: "¥", Name: "Chinese Yuan"},
	"INR": {Symbol: "₹", Name: "Indian Rupee"},
	"CAD": {Symbol: "C$", Name: "Canadian Dollar"},
	"AUD": {Symbol: "A$", Name: "Australian Dollar"},
	"CHF": {Symbol: "Fr", Name: "Swiss Franc"},
	"SEK": {Symbol: "kr", Name: "Swedish Krona"},
	"NZD": {Symbol: "NZ$", Name: "New Zealand Dollar"},
	"MXN": {Symbol: "$", Name: "Mexican Peso"},
	"SGD": {Symbol: "S$", Name: "Singapore Dollar"},
	"HKD": {Symbol: "HK$", Name: "Hong Kong Dollar"},
	"NOK": {Symbol: "kr", Name: "Norwegian Krone"},
	"ZAR": {Symbol: "R", Name: "South African Rand"},
	"BRL": {Symbol: "R$", Name: "Brazilian Real"},
	"RUB": {Symbol: "₽", Name: "Russian Ruble"},
	"KRW": {Symbol: "₩", Name: "South Korean Won"},
	"THB": {Symbol: "฿", Name: "Thai Baht"},
}

// ValidCurrency reports whether code is in the supported set.
func ValidCurrency(code string) bool {
	_, ok := SupportedCurrencies[code]
	return ok
}

// FormatAmount renders an amount with its currency symbol, two decimals.
func FormatAmount(amount decimal.Decimal, code string) string {
	info, ok := SupportedCurrencies[code]
	if !ok {
		return amount.StringFixed(2)
	}
	return fmt.Sprintf("%s%s", info.Symbol, amount.StringFixed(2))
}
