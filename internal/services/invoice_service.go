package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/storage"
)

// InvoiceStore is the slice of the repository the invoice service needs.
type InvoiceStore interface {
	CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error)
	GetInvoice(ctx context.Context, id string) (core.Invoice, error)
	ListInvoices(ctx context.Context, filter storage.InvoiceFilter) ([]core.Invoice, error)
	UpdateInvoice(ctx context.Context, inv core.Invoice) error
	MarkInvoicePaid(ctx context.Context, id string, paidOn core.Date) error
	SoftDeleteInvoice(ctx context.Context, id string) error
}

type InvoiceService struct {
	store      InvoiceStore
	normalizer CurrencyNormalizer
}

func NewInvoiceService(store InvoiceStore, normalizer CurrencyNormalizer) *InvoiceService {
	return &InvoiceService{store: store, normalizer: normalizer}
}

// InvoiceListFilter narrows List. Status is matched against effective
// statuses, so filtering by Overdue works even though it is never stored.
type InvoiceListFilter struct {
	Year     int
	ClientID string
	Status   core.InvoiceStatus
}

type InvoiceInput struct {
	InvoiceNumber string
	ClientID      string
	Description   *string
	Amount        decimal.Decimal
	Currency      string
	IncludesVAT   bool
	VATRate       *decimal.Decimal // nil defaults to the standard rate
	DateIssued    core.Date
	DueDate       core.Date
	Status        core.InvoiceStatus
	DatePaid      *core.Date
	Splits        []core.PartnerSplit
	InvoiceURL    *string
	Notes         *string
	CreatedBy     *string
}

// Create normalizes the amount to ILS at the issue date and persists the
// invoice with its partner splits.
func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (core.Invoice, error) {
	vatRate := core.DefaultVATRate
	if in.VATRate != nil {
		vatRate = *in.VATRate
	}

	inv := core.Invoice{
		ID:            uuid.NewString(),
		InvoiceNumber: in.InvoiceNumber,
		ClientID:      in.ClientID,
		Description:   in.Description,
		Amount:        in.Amount,
		Currency:      in.Currency,
		IncludesVAT:   in.IncludesVAT,
		VATRate:       vatRate,
		DateIssued:    in.DateIssued,
		DueDate:       in.DueDate,
		Status:        in.Status,
		DatePaid:      in.DatePaid,
		Splits:        in.Splits,
		InvoiceURL:    in.InvoiceURL,
		Notes:         in.Notes,
		CreatedBy:     in.CreatedBy,
	}
	if inv.Status == "" {
		inv.Status = core.StatusDraft
	}
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}

	quote := s.normalizer.Normalize(ctx, inv.Currency, inv.Amount, inv.DateIssued)
	inv.ExchangeRate = quote.Rate
	inv.AmountILS = quote.AmountILS

	created, err := s.store.CreateInvoice(ctx, inv)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("create invoice: %w", err)
	}

	slog.InfoContext(ctx, "Created invoice",
		"id", created.ID,
		"number", created.InvoiceNumber,
		"amount_ils", created.AmountILS.String(),
		"rate_tier", quote.Tier)
	return created, nil
}

// Get returns the invoice with its status resolved as of today.
func (s *InvoiceService) Get(ctx context.Context, id string, today core.Date) (core.Invoice, error) {
	inv, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}
	inv.Status = core.EffectiveStatus(inv, today)
	return inv, nil
}

// List returns invoices with effective statuses, filtered after derivation
// so an Overdue filter matches Sent invoices past their due date.
func (s *InvoiceService) List(ctx context.Context, filter InvoiceListFilter, today core.Date) ([]core.Invoice, error) {
	invoices, err := s.store.ListInvoices(ctx, storage.InvoiceFilter{
		Year:     filter.Year,
		ClientID: filter.ClientID,
	})
	if err != nil {
		return nil, err
	}

	out := invoices[:0]
	for _, inv := range invoices {
		inv.Status = core.EffectiveStatus(inv, today)
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *InvoiceService) Update(ctx context.Context, id string, in InvoiceInput) (core.Invoice, error) {
	existing, err := s.store.GetInvoice(ctx, id)
	if err != nil {
		return core.Invoice{}, err
	}

	vatRate := existing.VATRate
	if in.VATRate != nil {
		vatRate = *in.VATRate
	}

	inv := existing
	inv.InvoiceNumber = in.InvoiceNumber
	inv.ClientID = in.ClientID
	inv.Description = in.Description
	inv.Amount = in.Amount
	inv.Currency = in.Currency
	inv.IncludesVAT = in.IncludesVAT
	inv.VATRate = vatRate
	inv.DateIssued = in.DateIssued
	inv.DueDate = in.DueDate
	inv.Status = in.Status
	inv.DatePaid = in.DatePaid
	inv.Splits = in.Splits
	inv.InvoiceURL = in.InvoiceURL
	inv.Notes = in.Notes
	if err := inv.Validate(); err != nil {
		return core.Invoice{}, err
	}

	if !inv.Amount.Equal(existing.Amount) || inv.Currency != existing.Currency || !inv.DateIssued.Equal(existing.DateIssued) {
		quote := s.normalizer.Normalize(ctx, inv.Currency, inv.Amount, inv.DateIssued)
		inv.ExchangeRate = quote.Rate
		inv.AmountILS = quote.AmountILS
	}

	if err := s.store.UpdateInvoice(ctx, inv); err != nil {
		return core.Invoice{}, fmt.Errorf("update invoice: %w", err)
	}
	return inv, nil
}

// MarkPaid transitions the invoice to Paid as of paidOn.
func (s *InvoiceService) MarkPaid(ctx context.Context, id string, paidOn core.Date) error {
	return s.store.MarkInvoicePaid(ctx, id, paidOn)
}

func (s *InvoiceService) Delete(ctx context.Context, id string) error {
	return s.store.SoftDeleteInvoice(ctx, id)
}

// Summary aggregates a year's invoices by effective status. Outstanding
// covers Sent and Overdue; Overdue is also broken out on its own.
func (s *InvoiceService) Summary(ctx context.Context, year int, today core.Date) (core.InvoiceSummary, error) {
	invoices, err := s.store.ListInvoices(ctx, storage.InvoiceFilter{Year: year})
	if err != nil {
		return core.InvoiceSummary{}, err
	}

	summary := core.InvoiceSummary{CountByStatus: make(map[core.InvoiceStatus]int)}
	for _, inv := range invoices {
		status := core.EffectiveStatus(inv, today)
		summary.CountByStatus[status]++
		switch status {
		case core.StatusSent:
			summary.TotalOutstanding = summary.TotalOutstanding.Add(inv.AmountILS)
		case core.StatusOverdue:
			summary.TotalOutstanding = summary.TotalOutstanding.Add(inv.AmountILS)
			summary.TotalOverdue = summary.TotalOverdue.Add(inv.AmountILS)
		}
	}
	return summary, nil
}
