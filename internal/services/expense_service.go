package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/amqp"
	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/rates"
	"github.com/heli-gil/sunny/internal/storage"
)

// ExpenseStore is the slice of the repository the expense service needs.
type ExpenseStore interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id string) (core.Expense, error)
	UpdateExpense(ctx context.Context, e core.Expense) error
	SoftDeleteExpense(ctx context.Context, id string) error
	ListExpenses(ctx context.Context, filter storage.ExpenseFilter) ([]core.Expense, error)
	ExpenseYears(ctx context.Context) ([]int, error)
	CategoryTotals(ctx context.Context, year int) ([]core.CategoryTotal, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
}

// SyncPublisher notifies the export pipeline about expense changes.
type SyncPublisher interface {
	PublishEntrySync(ctx context.Context, id, action string) error
}

// CurrencyNormalizer converts a foreign amount to ILS at a dated rate.
type CurrencyNormalizer interface {
	Normalize(ctx context.Context, currency string, amount decimal.Decimal, date core.Date) rates.Quote
}

type ExpenseService struct {
	store      ExpenseStore
	normalizer CurrencyNormalizer
	publisher  SyncPublisher // nil disables the export pipeline
}

func NewExpenseService(store ExpenseStore, normalizer CurrencyNormalizer, publisher SyncPublisher) *ExpenseService {
	return &ExpenseService{store: store, normalizer: normalizer, publisher: publisher}
}

// ExpenseInput is what callers supply; derived fields (rate, ILS amount,
// tax default) are filled in by the service.
type ExpenseInput struct {
	Date              core.Date
	SupplierName      string
	Amount            decimal.Decimal
	Currency          string
	CategoryID        string
	AccountID         string
	BeneficiaryID     *string
	AppliedTaxPercent *decimal.Decimal // nil defaults to the category's fraction
	ClientID          *string
	InvoiceURL        *string
	Notes             *string
	CreatedBy         *string
}

// Create normalizes the amount to ILS at the expense date, snapshots the
// rate, and persists the entry. The rate and ILS amount are frozen at this
// point and never recomputed.
func (s *ExpenseService) Create(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	taxPct, err := s.resolveTaxPercent(ctx, in.CategoryID, in.AppliedTaxPercent)
	if err != nil {
		return core.Expense{}, err
	}

	e := core.Expense{
		ID:                uuid.NewString(),
		Date:              in.Date,
		SupplierName:      in.SupplierName,
		Amount:            in.Amount,
		Currency:          in.Currency,
		CategoryID:        in.CategoryID,
		AccountID:         in.AccountID,
		BeneficiaryID:     in.BeneficiaryID,
		AppliedTaxPercent: taxPct,
		ClientID:          in.ClientID,
		InvoiceURL:        in.InvoiceURL,
		Notes:             in.Notes,
		CreatedBy:         in.CreatedBy,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	quote := s.normalizer.Normalize(ctx, e.Currency, e.Amount, e.Date)
	e.ExchangeRate = quote.Rate
	e.AmountILS = quote.AmountILS

	created, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	slog.InfoContext(ctx, "Created expense",
		"id", created.ID,
		"supplier", created.SupplierName,
		"amount_ils", created.AmountILS.String(),
		"rate_tier", quote.Tier)

	s.publish(ctx, created.ID, amqp.ActionSync)
	return created, nil
}

// Update rewrites a mutable entry. If the amount, currency, or date changed,
// the ILS snapshot is recomputed at the new date; otherwise the stored rate
// is kept.
func (s *ExpenseService) Update(ctx context.Context, id string, in ExpenseInput) (core.Expense, error) {
	existing, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}

	taxPct, err := s.resolveTaxPercent(ctx, in.CategoryID, in.AppliedTaxPercent)
	if err != nil {
		return core.Expense{}, err
	}

	e := existing
	e.Date = in.Date
	e.SupplierName = in.SupplierName
	e.Amount = in.Amount
	e.Currency = in.Currency
	e.CategoryID = in.CategoryID
	e.AccountID = in.AccountID
	e.BeneficiaryID = in.BeneficiaryID
	e.AppliedTaxPercent = taxPct
	e.ClientID = in.ClientID
	e.InvoiceURL = in.InvoiceURL
	e.Notes = in.Notes
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if !e.Amount.Equal(existing.Amount) || e.Currency != existing.Currency || !e.Date.Equal(existing.Date) {
		quote := s.normalizer.Normalize(ctx, e.Currency, e.Amount, e.Date)
		e.ExchangeRate = quote.Rate
		e.AmountILS = quote.AmountILS
	}

	if err := s.store.UpdateExpense(ctx, e); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.publish(ctx, e.ID, amqp.ActionSync)
	return e, nil
}

func (s *ExpenseService) Get(ctx context.Context, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, id)
}

func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	if err := s.store.SoftDeleteExpense(ctx, id); err != nil {
		return err
	}
	s.publish(ctx, id, amqp.ActionDelete)
	return nil
}

func (s *ExpenseService) List(ctx context.Context, filter storage.ExpenseFilter) ([]core.Expense, error) {
	return s.store.ListExpenses(ctx, filter)
}

func (s *ExpenseService) Years(ctx context.Context) ([]int, error) {
	return s.store.ExpenseYears(ctx)
}

func (s *ExpenseService) CategoryTotals(ctx context.Context, year int) ([]core.CategoryTotal, error) {
	return s.store.CategoryTotals(ctx, year)
}

func (s *ExpenseService) resolveTaxPercent(ctx context.Context, categoryID string, override *decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		return *override, nil
	}
	cat, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("resolve tax percent: %w", err)
	}
	return cat.TaxRecognitionPct, nil
}

// publish is best effort: the periodic backlog sweep picks up anything the
// broker missed, so a publish failure never fails the write.
func (s *ExpenseService) publish(ctx context.Context, id, action string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishEntrySync(ctx, id, action); err != nil {
		slog.WarnContext(ctx, "Failed to publish entry sync message",
			"id", id,
			"action", action,
			"error", err)
	}
}
