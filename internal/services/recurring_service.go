package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
)

// TemplateStore is the slice of the repository the template service needs.
type TemplateStore interface {
	CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error)
	GetRecurringExpense(ctx context.Context, id string) (core.RecurringExpense, error)
	ListRecurringExpenses(ctx context.Context) ([]core.RecurringExpense, error)
	UpdateRecurringExpense(ctx context.Context, re core.RecurringExpense) error
	SetRecurringActive(ctx context.Context, id string, active bool) error
	SoftDeleteRecurringExpense(ctx context.Context, id string) error
	GetCategory(ctx context.Context, id string) (core.Category, error)
}

type RecurringService struct {
	store     TemplateStore
	processor *RecurringProcessor
}

func NewRecurringService(store TemplateStore, processor *RecurringProcessor) *RecurringService {
	return &RecurringService{store: store, processor: processor}
}

// RecurringInput is what callers supply for a template.
type RecurringInput struct {
	SupplierName      string
	Amount            decimal.Decimal
	Currency          string
	CategoryID        string
	AccountID         string
	BeneficiaryID     *string
	AppliedTaxPercent *decimal.Decimal // nil defaults to the category's fraction
	Notes             *string
	RecurrenceDay     int
	StartDate         core.Date
	EndDate           *core.Date
	IsActive          *bool // nil keeps the stored flag; new templates start active
	CreatedBy         *string
}

func (s *RecurringService) Create(ctx context.Context, in RecurringInput) (core.RecurringExpense, error) {
	taxPct := decimal.Zero
	if in.AppliedTaxPercent != nil {
		taxPct = *in.AppliedTaxPercent
	} else {
		cat, err := s.store.GetCategory(ctx, in.CategoryID)
		if err != nil {
			return core.RecurringExpense{}, fmt.Errorf("resolve tax percent: %w", err)
		}
		taxPct = cat.TaxRecognitionPct
	}

	re := core.RecurringExpense{
		ID:                uuid.NewString(),
		SupplierName:      in.SupplierName,
		Amount:            in.Amount,
		Currency:          in.Currency,
		CategoryID:        in.CategoryID,
		AccountID:         in.AccountID,
		BeneficiaryID:     in.BeneficiaryID,
		AppliedTaxPercent: taxPct,
		Notes:             in.Notes,
		RecurrenceDay:     in.RecurrenceDay,
		StartDate:         in.StartDate,
		EndDate:           in.EndDate,
		IsActive:          in.IsActive == nil || *in.IsActive,
		CreatedBy:         in.CreatedBy,
	}
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}

	created, err := s.store.CreateRecurringExpense(ctx, re)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("create recurring expense: %w", err)
	}
	return created, nil
}

// CreateWithFirstExpense creates the template and immediately generates
// this month's expense, instead of waiting a full cycle for the trigger
// day to come around again. The template survives a failed second step;
// the error surfaces so the caller knows the first expense is missing.
// A returned zero Expense means today falls outside the template window
// and the daily pass will produce the first entry instead.
func (s *RecurringService) CreateWithFirstExpense(ctx context.Context, in RecurringInput, today core.Date) (core.RecurringExpense, core.Expense, error) {
	created, err := s.Create(ctx, in)
	if err != nil {
		return core.RecurringExpense{}, core.Expense{}, err
	}

	// Same window rules the daily pass applies. Generating outside them
	// would advance the marker for a month the template does not cover.
	if created.StartDate.After(today) || (created.EndDate != nil && created.EndDate.Before(today)) {
		return created, core.Expense{}, nil
	}

	month := today.YearMonth()
	expense, err := s.processor.generate(ctx, created, today, month)
	if err != nil {
		slog.ErrorContext(ctx, "Template created but first expense failed",
			"template_id", created.ID,
			"error", err)
		return created, core.Expense{}, fmt.Errorf("generate first expense: %w", err)
	}
	created.LastGenerated = month
	return created, expense, nil
}

func (s *RecurringService) Get(ctx context.Context, id string) (core.RecurringExpense, error) {
	return s.store.GetRecurringExpense(ctx, id)
}

func (s *RecurringService) List(ctx context.Context) ([]core.RecurringExpense, error) {
	return s.store.ListRecurringExpenses(ctx)
}

func (s *RecurringService) Update(ctx context.Context, id string, in RecurringInput) (core.RecurringExpense, error) {
	existing, err := s.store.GetRecurringExpense(ctx, id)
	if err != nil {
		return core.RecurringExpense{}, err
	}

	re := existing
	re.SupplierName = in.SupplierName
	re.Amount = in.Amount
	re.Currency = in.Currency
	re.CategoryID = in.CategoryID
	re.AccountID = in.AccountID
	re.BeneficiaryID = in.BeneficiaryID
	if in.AppliedTaxPercent != nil {
		re.AppliedTaxPercent = *in.AppliedTaxPercent
	}
	re.Notes = in.Notes
	re.RecurrenceDay = in.RecurrenceDay
	re.StartDate = in.StartDate
	re.EndDate = in.EndDate
	if in.IsActive != nil {
		re.IsActive = *in.IsActive
	}
	if err := re.Validate(); err != nil {
		return core.RecurringExpense{}, err
	}

	if err := s.store.UpdateRecurringExpense(ctx, re); err != nil {
		return core.RecurringExpense{}, fmt.Errorf("update recurring expense: %w", err)
	}
	return re, nil
}

func (s *RecurringService) SetActive(ctx context.Context, id string, active bool) error {
	return s.store.SetRecurringActive(ctx, id, active)
}

// Delete retires the template. Expenses already generated from it stay.
func (s *RecurringService) Delete(ctx context.Context, id string) error {
	return s.store.SoftDeleteRecurringExpense(ctx, id)
}
