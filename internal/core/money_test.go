package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestConvertToILS(t *testing.T) {
	t.Run("home currency passes through", func(t *testing.T) {
		got := ConvertToILS(decimal.NewFromInt(100), "ILS", decimal.NewFromFloat(3.65))
		if !got.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected 100, got %s", got)
		}
	})

	t.Run("foreign currency applies rate", func(t *testing.T) {
		got := ConvertToILS(decimal.NewFromInt(100), "USD", decimal.NewFromFloat(3.65))
		if !got.Equal(decimal.NewFromInt(365)) {
			t.Errorf("expected 365, got %s", got)
		}
	})
}

func TestCalculateVAT(t *testing.T) {
	rate := decimal.NewFromFloat(0.18)

	t.Run("amount excludes VAT", func(t *testing.T) {
		b := CalculateVAT(decimal.NewFromInt(100), false, rate)
		if !b.BeforeVAT.Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected before-VAT 100, got %s", b.BeforeVAT)
		}
		if !b.VAT.Equal(decimal.NewFromInt(18)) {
			t.Errorf("expected VAT 18, got %s", b.VAT)
		}
		if !b.Total.Equal(decimal.NewFromInt(118)) {
			t.Errorf("expected total 118, got %s", b.Total)
		}
	})

	t.Run("amount includes VAT", func(t *testing.T) {
		b := CalculateVAT(decimal.NewFromInt(118), true, rate)
		if !b.Total.Equal(decimal.NewFromInt(118)) {
			t.Errorf("expected total 118, got %s", b.Total)
		}
		if !b.BeforeVAT.Round(2).Equal(decimal.NewFromInt(100)) {
			t.Errorf("expected before-VAT 100, got %s", b.BeforeVAT)
		}
		if !b.BeforeVAT.Add(b.VAT).Equal(b.Total) {
			t.Errorf("breakdown does not reconcile: %s + %s != %s", b.BeforeVAT, b.VAT, b.Total)
		}
	})
}
