package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
)

// Provider is one tier of the historical-rate lookup chain. A failure of any
// kind (network, non-2xx, missing field) is just an error; the Normalizer
// moves on to the next tier.
type Provider interface {
	Name() string
	Rate(ctx context.Context, currency string, date core.Date) (decimal.Decimal, error)
}

const providerTimeout = 10 * time.Second

// eurToILS is the fixed intermediate conversion used when composing rates
// from a source that cannot quote ILS directly.
var eurToILS = decimal.NewFromFloat(3.95)

// ExchangerateHost queries api.exchangerate.host for a direct
// currency-to-ILS conversion on an exact date.
type ExchangerateHost struct {
	BaseURL string
	Client  *http.Client
}

func NewExchangerateHost() *ExchangerateHost {
	return &ExchangerateHost{
		BaseURL: "https://api.exchangerate.host",
		Client:  &http.Client{Timeout: providerTimeout},
	}
}

func (p *ExchangerateHost) Name() string { return "exchangerate-host" }

func (p *ExchangerateHost) Rate(ctx context.Context, currency string, date core.Date) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("from", currency)
	q.Set("to", core.HomeCurrency)
	q.Set("date", date.String())
	q.Set("amount", "1")

	var body struct {
		Success bool    `json:"success"`
		Result  float64 `json:"result"`
	}
	if err := p.getJSON(ctx, p.BaseURL+"/convert?"+q.Encode(), &body); err != nil {
		return decimal.Zero, err
	}
	if !body.Success || body.Result <= 0 {
		return decimal.Zero, fmt.Errorf("exchangerate.host returned no usable rate for %s on %s", currency, date)
	}
	return decimal.NewFromFloat(body.Result), nil
}

func (p *ExchangerateHost) getJSON(ctx context.Context, u string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rate source status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode rate response: %w", err)
	}
	return nil
}

// Frankfurter queries api.frankfurter.app, which serves ECB data and cannot
// quote ILS directly. The returned EUR rate is composed with the fixed
// EUR-to-ILS constant.
type Frankfurter struct {
	BaseURL string
	Client  *http.Client
}

func NewFrankfurter() *Frankfurter {
	return &Frankfurter{
		BaseURL: "https://api.frankfurter.app",
		Client:  &http.Client{Timeout: providerTimeout},
	}
}

func (p *Frankfurter) Name() string { return "frankfurter" }

func (p *Frankfurter) Rate(ctx context.Context, currency string, date core.Date) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/%s?from=%s&to=EUR", p.BaseURL, date, url.QueryEscape(currency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("build request: %w", err)
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate source status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("decode rate response: %w", err)
	}
	toEUR, ok := body.Rates["EUR"]
	if !ok || toEUR <= 0 {
		return decimal.Zero, fmt.Errorf("frankfurter returned no EUR rate for %s on %s", currency, date)
	}
	return decimal.NewFromFloat(toEUR).Mul(eurToILS), nil
}
