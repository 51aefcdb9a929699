// Package currency provides exchange-rate lookup and cross-currency
// conversion. Rates are relative to the USD base and come from an external
// provider through a TTL cache with a hard-coded fallback table, so a
// provider outage degrades conversions instead of failing them.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Provider fetches the latest rate table relative to the base currency.
type Provider interface {
	FetchRates(ctx context.Context) (map[string]decimal.Decimal, error)
}

const defaultProviderTimeout = 5 * time.Second

// HTTPProvider talks to an exchangerate-api compatible endpoint:
// GET {baseURL}/v4/latest/USD -> {"rates": {"EUR": 0.85, ...}}.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

func NewHTTPProvider(baseURL string, client *http.Client) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: defaultProviderTimeout}
	}
	return &HTTPProvider{baseURL: baseURL, client: client}
}

func (p *HTTPProvider) FetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultProviderTimeout)
	defer cancel()

	url := p.baseURL + "/v4/latest/USD"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build rate request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	}

	var payload struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode rate response: %w", err)
	}
	if len(payload.Rates) == 0 {
		return nil, fmt.Errorf("rate provider returned no rates")
	}

	rates := make(map[string]decimal.Decimal, len(payload.Rates)+1)
	// The provider omits the base from its table.
	rates["USD"] = decimal.NewFromInt(1)
	for code, rate := range payload.Rates {
		rates[code] = decimal.NewFromFloat(rate)
	}
	return rates, nil
}
