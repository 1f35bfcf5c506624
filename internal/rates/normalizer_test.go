package rates

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
)

type fakeProvider struct {
	name  string
	rate  decimal.Decimal
	err   error
	calls int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Rate(ctx context.Context, currency string, date core.Date) (decimal.Decimal, error) {
	f.calls++
	if f.err != nil {
		return decimal.Zero, f.err
	}
	return f.rate, nil
}

var testDate = core.NewDate(2026, time.January, 5)

func TestNormalizeHomeCurrency(t *testing.T) {
	failing := &fakeProvider{name: "primary", err: errors.New("unreachable")}
	n := NewNormalizer(WithProviders(failing))

	q := n.Normalize(context.Background(), "ILS", decimal.NewFromInt(250), testDate)

	if q.Tier != TierHome {
		t.Errorf("expected tier %s, got %s", TierHome, q.Tier)
	}
	if !q.Rate.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected rate 1, got %s", q.Rate)
	}
	if !q.AmountILS.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expected amount 250, got %s", q.AmountILS)
	}
	if failing.calls != 0 {
		t.Error("home currency must not touch providers")
	}
}

func TestNormalizeProviderChain(t *testing.T) {
	t.Run("primary wins", func(t *testing.T) {
		primary := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(3.62)}
		secondary := &fakeProvider{name: "secondary", rate: decimal.NewFromFloat(3.99)}
		n := NewNormalizer(WithProviders(primary, secondary))

		q := n.Normalize(context.Background(), "USD", decimal.NewFromInt(100), testDate)

		if q.Tier != "primary" {
			t.Errorf("expected tier primary, got %s", q.Tier)
		}
		if !q.AmountILS.Equal(decimal.NewFromInt(362)) {
			t.Errorf("expected 362, got %s", q.AmountILS)
		}
		if secondary.calls != 0 {
			t.Error("secondary must not be called when primary succeeds")
		}
	})

	t.Run("falls through to secondary", func(t *testing.T) {
		primary := &fakeProvider{name: "primary", err: errors.New("boom")}
		secondary := &fakeProvider{name: "secondary", rate: decimal.NewFromFloat(3.95)}
		n := NewNormalizer(WithProviders(primary, secondary))

		q := n.Normalize(context.Background(), "EUR", decimal.NewFromInt(10), testDate)

		if q.Tier != "secondary" {
			t.Errorf("expected tier secondary, got %s", q.Tier)
		}
		if !q.Rate.Equal(decimal.NewFromFloat(3.95)) {
			t.Errorf("expected rate 3.95, got %s", q.Rate)
		}
	})

	t.Run("static table after all providers fail", func(t *testing.T) {
		primary := &fakeProvider{name: "primary", err: errors.New("boom")}
		secondary := &fakeProvider{name: "secondary", err: errors.New("boom")}
		n := NewNormalizer(WithProviders(primary, secondary))

		q := n.Normalize(context.Background(), "GBP", decimal.NewFromInt(1), testDate)

		if q.Tier != TierStaticTable {
			t.Errorf("expected tier %s, got %s", TierStaticTable, q.Tier)
		}
		if !q.Rate.Equal(decimal.NewFromFloat(4.55)) {
			t.Errorf("expected static GBP rate 4.55, got %s", q.Rate)
		}
	})

	t.Run("default rate for unknown currency", func(t *testing.T) {
		n := NewNormalizer(WithProviders(&fakeProvider{name: "p", err: errors.New("boom")}))

		q := n.Normalize(context.Background(), "XXX", decimal.NewFromInt(1), testDate)

		if q.Tier != TierStaticDefault {
			t.Errorf("expected tier %s, got %s", TierStaticDefault, q.Tier)
		}
		if !q.Rate.Equal(decimal.NewFromFloat(3.65)) {
			t.Errorf("expected default rate 3.65, got %s", q.Rate)
		}
	})
}

func TestNormalizeCaching(t *testing.T) {
	t.Run("successful lookup is cached", func(t *testing.T) {
		provider := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(3.62)}
		n := NewNormalizer(WithProviders(provider))

		n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), testDate)
		q := n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), testDate)

		if provider.calls != 1 {
			t.Errorf("expected 1 provider call, got %d", provider.calls)
		}
		if q.Tier != TierCache {
			t.Errorf("expected tier %s, got %s", TierCache, q.Tier)
		}
	})

	t.Run("different dates are distinct keys", func(t *testing.T) {
		provider := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(3.62)}
		n := NewNormalizer(WithProviders(provider))

		n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), testDate)
		n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), core.NewDate(2026, time.January, 6))

		if provider.calls != 2 {
			t.Errorf("expected 2 provider calls, got %d", provider.calls)
		}
	})

	t.Run("static fallback is not cached", func(t *testing.T) {
		provider := &fakeProvider{name: "primary", err: errors.New("down")}
		n := NewNormalizer(WithProviders(provider))

		n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), testDate)
		provider.err = nil
		provider.rate = decimal.NewFromFloat(3.70)

		q := n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), testDate)
		if q.Tier != "primary" {
			t.Errorf("recovered provider should take over, got tier %s", q.Tier)
		}
		if !q.Rate.Equal(decimal.NewFromFloat(3.70)) {
			t.Errorf("expected fresh rate 3.70, got %s", q.Rate)
		}
	})

	t.Run("expired entry refetches", func(t *testing.T) {
		moment := time.Date(2026, time.January, 5, 0, 0, 0, 0, time.UTC)
		provider := &fakeProvider{name: "primary", rate: decimal.NewFromFloat(3.62)}
		n := NewNormalizer(
			WithProviders(provider),
			WithCacheTTL(time.Hour),
			WithClock(func() time.Time { return moment }),
		)

		n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), testDate)
		moment = moment.Add(2 * time.Hour)
		n.Normalize(context.Background(), "USD", decimal.NewFromInt(1), testDate)

		if provider.calls != 2 {
			t.Errorf("expected refetch after TTL, got %d calls", provider.calls)
		}
	})
}
