// Package rates normalizes transaction amounts into the home currency using
// per-date exchange rates with caching and a multi-source fallback chain.
package rates

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
)

// Lookup tiers reported in a Quote, in the order they are tried.
const (
	TierHome          = "home"
	TierCache         = "cache"
	TierStaticTable   = "static-table"
	TierStaticDefault = "static-default"
)

const defaultCacheTTL = 24 * time.Hour

// fallbackRates are approximate last-resort rates to ILS, used only when
// every provider tier has failed.
var fallbackRates = map[string]decimal.Decimal{
	"USD": decimal.NewFromFloat(3.65),
	"EUR": decimal.NewFromFloat(3.95),
	"GBP": decimal.NewFromFloat(4.55),
	"CHF": decimal.NewFromFloat(4.10),
	"CAD": decimal.NewFromFloat(2.70),
	"AUD": decimal.NewFromFloat(2.40),
	"JPY": decimal.NewFromFloat(0.024),
}

var fallbackDefault = decimal.NewFromFloat(3.65)

// Quote is the result of normalizing an amount: the rate applied, the
// resulting home-currency amount, and which tier produced the rate.
type Quote struct {
	Rate      decimal.Decimal
	AmountILS decimal.Decimal
	Tier      string
}

// Normalizer converts amounts to ILS. It owns its cache (no process-wide
// state) and tries providers in order, degrading to the static table rather
// than failing: Normalize never returns an error.
type Normalizer struct {
	providers []Provider
	cache     *rateCache
}

// Option configures a Normalizer.
type Option func(*config)

type config struct {
	providers []Provider
	ttl       time.Duration
	now       func() time.Time
}

// WithProviders replaces the default provider chain.
func WithProviders(providers ...Provider) Option {
	return func(c *config) { c.providers = providers }
}

// WithCacheTTL overrides the 24h cache TTL.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) { c.ttl = ttl }
}

// WithClock injects the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

func NewNormalizer(opts ...Option) *Normalizer {
	cfg := config{
		providers: []Provider{NewExchangerateHost(), NewFrankfurter()},
		ttl:       defaultCacheTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Normalizer{
		providers: cfg.providers,
		cache:     newRateCache(cfg.ttl, cfg.now),
	}
}

// Normalize resolves the rate for (currency, date) and applies it to amount.
// ILS short-circuits with rate 1 and no lookup. Provider failures are logged
// and absorbed; the static table guarantees a usable number.
func (n *Normalizer) Normalize(ctx context.Context, currency string, amount decimal.Decimal, date core.Date) Quote {
	if currency == core.HomeCurrency {
		return Quote{Rate: decimal.NewFromInt(1), AmountILS: amount, Tier: TierHome}
	}

	rate, tier := n.lookup(ctx, currency, date)
	return Quote{Rate: rate, AmountILS: amount.Mul(rate), Tier: tier}
}

func (n *Normalizer) lookup(ctx context.Context, currency string, date core.Date) (decimal.Decimal, string) {
	key := currency + "_" + date.String()
	if rate, ok := n.cache.Get(key); ok {
		return rate, TierCache
	}

	for _, p := range n.providers {
		rate, err := p.Rate(ctx, currency, date)
		if err != nil {
			slog.WarnContext(ctx, "Rate provider failed, trying next tier",
				"provider", p.Name(),
				"currency", currency,
				"date", date.String(),
				"error", err)
			continue
		}
		n.cache.Set(key, rate)
		return rate, p.Name()
	}

	// Static fallback rates are deliberately not cached so a recovered
	// provider takes over on the next lookup.
	if rate, ok := fallbackRates[currency]; ok {
		slog.WarnContext(ctx, "All rate providers failed, using static fallback rate",
			"currency", currency,
			"date", date.String())
		return rate, TierStaticTable
	}

	slog.WarnContext(ctx, "Unknown currency for static fallback, using default rate",
		"currency", currency,
		"date", date.String())
	return fallbackDefault, TierStaticDefault
}

// CleanExpired drops expired cache entries; intended for a periodic sweep.
func (n *Normalizer) CleanExpired() int {
	return n.cache.CleanExpired()
}
