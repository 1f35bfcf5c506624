// Package core holds the ledger's domain types and the numeric contracts
// the balance calculations depend on.
package core

import "github.com/shopspring/decimal"

// ConvertToILS applies a captured exchange rate to a foreign amount.
// ILS amounts pass through untouched regardless of the rate argument.
func ConvertToILS(amount decimal.Decimal, currency string, rate decimal.Decimal) decimal.Decimal {
	if currency == HomeCurrency {
		return amount
	}
	return amount.Mul(rate)
}

// VATBreakdown splits an amount into its pre-VAT and VAT portions.
type VATBreakdown struct {
	Total     decimal.Decimal `json:"total"`
	BeforeVAT decimal.Decimal `json:"before_vat"`
	VAT       decimal.Decimal `json:"vat"`
}

// CalculateVAT breaks an amount down against a fractional VAT rate.
// When includesVAT is true the amount is gross and the VAT portion is
// extracted; otherwise VAT is added on top.
func CalculateVAT(amount decimal.Decimal, includesVAT bool, vatRate decimal.Decimal) VATBreakdown {
	one := decimal.NewFromInt(1)
	if includesVAT {
		beforeVAT := amount.Div(one.Add(vatRate))
		return VATBreakdown{
			Total:     amount,
			BeforeVAT: beforeVAT,
			VAT:       amount.Sub(beforeVAT),
		}
	}
	vat := amount.Mul(vatRate)
	return VATBreakdown{
		Total:     amount.Add(vat),
		BeforeVAT: amount,
		VAT:       vat,
	}
}
