package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/storage"
)

// DirectExpenseMode selects how partner-beneficiary expenses are charged.
type DirectExpenseMode string

const (
	// DirectToBeneficiary charges each partner their own direct expenses
	// plus their ratio share of business expenses. No fairness term.
	DirectToBeneficiary DirectExpenseMode = "direct"

	// ProportionalWithAdjustment splits every expense by the configured
	// ratio and claws direct-beneficiary amounts back through a fairness
	// term. Both modes produce the same net figure.
	ProportionalWithAdjustment DirectExpenseMode = "proportional"
)

// BalancePolicy parameterizes the balance computation.
type BalancePolicy struct {
	// CountedStatuses are the effective invoice statuses treated as income.
	CountedStatuses []core.InvoiceStatus

	// Ratios maps partner ID to their business split fraction. Partners
	// absent from the map get an even 0.5.
	Ratios map[string]decimal.Decimal

	Mode DirectExpenseMode
}

// DefaultBalancePolicy counts Paid invoices only and splits business
// expenses evenly.
func DefaultBalancePolicy() BalancePolicy {
	return BalancePolicy{
		CountedStatuses: []core.InvoiceStatus{core.StatusPaid},
		Mode:            ProportionalWithAdjustment,
	}
}

// PolicyForPartners builds the default policy with the configured business
// split assigned to the first listed partner and the complement to the
// second. Anything other than exactly two partners keeps the even default.
func PolicyForPartners(partners []core.Partner, ratio decimal.Decimal) BalancePolicy {
	p := DefaultBalancePolicy()
	if len(partners) == 2 {
		p.Ratios = map[string]decimal.Decimal{
			partners[0].ID: ratio,
			partners[1].ID: decimal.NewFromInt(1).Sub(ratio),
		}
	}
	return p
}

func (p BalancePolicy) ratio(partnerID string) decimal.Decimal {
	if r, ok := p.Ratios[partnerID]; ok {
		return r
	}
	return decimal.New(5, -1)
}

func (p BalancePolicy) counts(status core.InvoiceStatus) bool {
	for _, s := range p.CountedStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Ledger is the year's entry set the computation folds over. Soft-deleted
// rows must already be excluded.
type Ledger struct {
	Invoices    []core.Invoice
	Expenses    []core.Expense
	Withdrawals []core.Withdrawal
	Today       core.Date
}

// ComputeBalance reduces the ledger to one partner's report. It is a pure
// fold: deterministic, order-independent, no clock or store access beyond
// the Today the caller fixed.
func ComputeBalance(partner core.Partner, year int, ledger Ledger, policy BalancePolicy) core.PartnerBalance {
	var b core.PartnerBalanceBreakdown

	for _, inv := range ledger.Invoices {
		if !policy.counts(core.EffectiveStatus(inv, ledger.Today)) {
			continue
		}
		b.TotalCompanyIncome = b.TotalCompanyIncome.Add(inv.AmountILS)
		b.PartnerIncomeShare = b.PartnerIncomeShare.Add(inv.AmountILS.Mul(inv.SplitFor(partner.ID)))
	}

	var totalDirect, partnerDirect, shared decimal.Decimal
	for _, e := range ledger.Expenses {
		b.TotalExpenses = b.TotalExpenses.Add(e.AmountILS)
		switch {
		case e.BeneficiaryID == nil:
			shared = shared.Add(e.AmountILS)
		default:
			totalDirect = totalDirect.Add(e.AmountILS)
			if *e.BeneficiaryID == partner.ID {
				partnerDirect = partnerDirect.Add(e.AmountILS)
			}
		}
	}

	ratio := policy.ratio(partner.ID)
	switch policy.Mode {
	case DirectToBeneficiary:
		b.PartnerExpenseShare = partnerDirect.Add(shared.Mul(ratio))
		b.FairnessAdjustment = decimal.Zero
	default:
		b.PartnerExpenseShare = b.TotalExpenses.Mul(ratio)
		b.FairnessAdjustment = totalDirect.Mul(ratio).Sub(partnerDirect)
	}

	b.BaseProfitShare = b.PartnerIncomeShare.Sub(b.PartnerExpenseShare)

	position := b.BaseProfitShare.Add(b.FairnessAdjustment)
	if position.IsNegative() {
		b.PartnerOwesCompany = position.Neg()
	} else {
		b.CompanyOwesPartner = position
	}

	for _, w := range ledger.Withdrawals {
		if w.PartnerID == partner.ID {
			b.TotalWithdrawn = b.TotalWithdrawn.Add(w.Amount)
		}
	}

	notes := []string{
		fmt.Sprintf("income counted for statuses %v", policy.CountedStatuses),
		fmt.Sprintf("business split ratio %s", ratio.String()),
	}
	if policy.Mode == DirectToBeneficiary {
		notes = append(notes, "direct expenses charged to their beneficiary")
	} else {
		notes = append(notes, "expenses split proportionally with fairness adjustment")
	}

	return core.PartnerBalance{
		PartnerID:    partner.ID,
		PartnerName:  partner.Name,
		Year:         year,
		Breakdown:    b,
		NetAvailable: position.Sub(b.TotalWithdrawn),
		Notes:        notes,
	}
}

// BalanceStore is the slice of the repository the balance service needs.
type BalanceStore interface {
	GetPartner(ctx context.Context, id string) (core.Partner, error)
	ListInvoices(ctx context.Context, filter storage.InvoiceFilter) ([]core.Invoice, error)
	ListExpensesByYear(ctx context.Context, year int) ([]core.Expense, error)
	ListWithdrawals(ctx context.Context, year int, partnerID string) ([]core.Withdrawal, error)
}

// BalanceService loads a year's ledger and runs the fold.
type BalanceService struct {
	store  BalanceStore
	policy BalancePolicy
}

func NewBalanceService(store BalanceStore, policy BalancePolicy) *BalanceService {
	return &BalanceService{store: store, policy: policy}
}

func (s *BalanceService) PartnerBalance(ctx context.Context, partnerID string, year int, today core.Date) (core.PartnerBalance, error) {
	partner, err := s.store.GetPartner(ctx, partnerID)
	if err != nil {
		return core.PartnerBalance{}, err
	}

	invoices, err := s.store.ListInvoices(ctx, storage.InvoiceFilter{Year: year})
	if err != nil {
		return core.PartnerBalance{}, fmt.Errorf("load invoices: %w", err)
	}
	expenses, err := s.store.ListExpensesByYear(ctx, year)
	if err != nil {
		return core.PartnerBalance{}, fmt.Errorf("load expenses: %w", err)
	}
	withdrawals, err := s.store.ListWithdrawals(ctx, year, "")
	if err != nil {
		return core.PartnerBalance{}, fmt.Errorf("load withdrawals: %w", err)
	}

	ledger := Ledger{
		Invoices:    invoices,
		Expenses:    expenses,
		Withdrawals: withdrawals,
		Today:       today,
	}
	return ComputeBalance(partner, year, ledger, s.policy), nil
}
