package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/heli-gil/sunny/internal/amqp"
	"github.com/heli-gil/sunny/internal/core"
)

// RecurringStore is the slice of the repository the processor needs.
type RecurringStore interface {
	DueRecurringExpenses(ctx context.Context, day int) ([]core.RecurringExpense, error)
	SetLastGenerated(ctx context.Context, id string, ym core.YearMonth) error
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
}

// PassResult summarizes one daily generation pass.
type PassResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// RecurringProcessor turns due recurring templates into concrete expenses.
// One template failing never blocks the rest of the pass.
type RecurringProcessor struct {
	store      RecurringStore
	normalizer CurrencyNormalizer
	publisher  SyncPublisher // nil disables the export pipeline
}

func NewRecurringProcessor(store RecurringStore, normalizer CurrencyNormalizer, publisher SyncPublisher) *RecurringProcessor {
	return &RecurringProcessor{store: store, normalizer: normalizer, publisher: publisher}
}

// RunDailyPass generates an expense for every active template whose
// recurrence day equals today's day-of-month and whose start/end window
// contains today, unless this month was already generated. A template with
// recurrence day 31 simply never fires in shorter months; there is no
// clamping to the last day.
func (p *RecurringProcessor) RunDailyPass(ctx context.Context, today core.Date) (PassResult, error) {
	var result PassResult

	templates, err := p.store.DueRecurringExpenses(ctx, today.Day())
	if err != nil {
		return result, fmt.Errorf("load due templates: %w", err)
	}

	month := today.YearMonth()
	for _, tmpl := range templates {
		switch {
		case !tmpl.LastGenerated.IsZero() && !tmpl.LastGenerated.Before(month):
			// Already generated for this month (or a later one).
			result.Skipped++
		case tmpl.EndDate != nil && tmpl.EndDate.Before(today):
			result.Skipped++
		case tmpl.StartDate.After(today):
			result.Skipped++
		default:
			if _, err := p.generate(ctx, tmpl, today, month); err != nil {
				slog.ErrorContext(ctx, "Failed to generate recurring expense",
					"template_id", tmpl.ID,
					"supplier", tmpl.SupplierName,
					"error", err)
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", tmpl.ID, err))
				continue
			}
			result.Created++
		}
	}

	slog.InfoContext(ctx, "Recurring pass finished",
		"date", today.String(),
		"created", result.Created,
		"skipped", result.Skipped,
		"errors", len(result.Errors))
	return result, nil
}

// generate persists the month's expense, then advances the template marker.
// The order matters: a marker update before the insert could silently drop
// a month if the insert fails.
func (p *RecurringProcessor) generate(ctx context.Context, tmpl core.RecurringExpense, today core.Date, month core.YearMonth) (core.Expense, error) {
	templateID := tmpl.ID
	quote := p.normalizer.Normalize(ctx, tmpl.Currency, tmpl.Amount, today)

	e := core.Expense{
		ID:                 uuid.NewString(),
		Date:               today,
		SupplierName:       tmpl.SupplierName,
		Amount:             tmpl.Amount,
		Currency:           tmpl.Currency,
		ExchangeRate:       quote.Rate,
		AmountILS:          quote.AmountILS,
		CategoryID:         tmpl.CategoryID,
		AccountID:          tmpl.AccountID,
		BeneficiaryID:      tmpl.BeneficiaryID,
		AppliedTaxPercent:  tmpl.AppliedTaxPercent,
		Notes:              tmpl.Notes,
		RecurringExpenseID: &templateID,
	}

	created, err := p.store.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}

	if err := p.store.SetLastGenerated(ctx, tmpl.ID, month); err != nil {
		return core.Expense{}, fmt.Errorf("advance generation marker: %w", err)
	}

	if p.publisher != nil {
		if err := p.publisher.PublishEntrySync(ctx, created.ID, amqp.ActionSync); err != nil {
			slog.WarnContext(ctx, "Failed to publish entry sync message",
				"id", created.ID,
				"error", err)
		}
	}
	return created, nil
}
