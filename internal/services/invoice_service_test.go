package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/storage"
)

type invoiceStore struct {
	invoices map[string]core.Invoice
	paid     map[string]core.Date
}

func newInvoiceStore(invoices ...core.Invoice) *invoiceStore {
	s := &invoiceStore{
		invoices: make(map[string]core.Invoice),
		paid:     make(map[string]core.Date),
	}
	for _, inv := range invoices {
		s.invoices[inv.ID] = inv
	}
	return s
}

func (s *invoiceStore) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	s.invoices[inv.ID] = inv
	return inv, nil
}

func (s *invoiceStore) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	inv, ok := s.invoices[id]
	if !ok {
		return core.Invoice{}, core.ErrNotFound
	}
	return inv, nil
}

func (s *invoiceStore) ListInvoices(ctx context.Context, filter storage.InvoiceFilter) ([]core.Invoice, error) {
	var out []core.Invoice
	for _, inv := range s.invoices {
		if filter.Year != 0 && inv.DateIssued.Year() != filter.Year {
			continue
		}
		if filter.ClientID != "" && inv.ClientID != filter.ClientID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (s *invoiceStore) UpdateInvoice(ctx context.Context, inv core.Invoice) error {
	if _, ok := s.invoices[inv.ID]; !ok {
		return core.ErrNotFound
	}
	s.invoices[inv.ID] = inv
	return nil
}

func (s *invoiceStore) MarkInvoicePaid(ctx context.Context, id string, paidOn core.Date) error {
	inv, ok := s.invoices[id]
	if !ok {
		return core.ErrNotFound
	}
	inv.Status = core.StatusPaid
	inv.DatePaid = &paidOn
	s.invoices[id] = inv
	s.paid[id] = paidOn
	return nil
}

func (s *invoiceStore) SoftDeleteInvoice(ctx context.Context, id string) error {
	if _, ok := s.invoices[id]; !ok {
		return core.ErrNotFound
	}
	delete(s.invoices, id)
	return nil
}

func storedInvoice(id string, status core.InvoiceStatus, due core.Date) core.Invoice {
	return core.Invoice{
		ID:            id,
		InvoiceNumber: "INV-" + id,
		ClientID:      "c1",
		Amount:        decimal.NewFromInt(1000),
		Currency:      "ILS",
		AmountILS:     decimal.NewFromInt(1000),
		VATRate:       core.DefaultVATRate,
		DateIssued:    core.NewDate(2026, time.January, 10),
		DueDate:       due,
		Status:        status,
		Splits:        evenSplit(),
	}
}

func validInvoiceInput() InvoiceInput {
	return InvoiceInput{
		InvoiceNumber: "INV-100",
		ClientID:      "c1",
		Amount:        decimal.NewFromInt(500),
		Currency:      "USD",
		DateIssued:    core.NewDate(2026, time.January, 10),
		DueDate:       core.NewDate(2026, time.February, 10),
		Status:        core.StatusSent,
		Splits:        evenSplit(),
	}
}

func TestInvoiceCreate(t *testing.T) {
	t.Run("normalizes at the issue date", func(t *testing.T) {
		store := newInvoiceStore()
		svc := NewInvoiceService(store, &countingNormalizer{rate: decimal.NewFromFloat(3.65)})

		inv, err := svc.Create(context.Background(), validInvoiceInput())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !inv.AmountILS.Equal(decimal.NewFromInt(1825)) {
			t.Errorf("expected 1825 ILS, got %s", inv.AmountILS)
		}
		if !inv.VATRate.Equal(core.DefaultVATRate) {
			t.Errorf("expected default VAT rate, got %s", inv.VATRate)
		}
	})

	t.Run("empty status defaults to draft", func(t *testing.T) {
		svc := NewInvoiceService(newInvoiceStore(), &countingNormalizer{rate: decimal.NewFromInt(1)})

		in := validInvoiceInput()
		in.Status = ""
		inv, err := svc.Create(context.Background(), in)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inv.Status != core.StatusDraft {
			t.Errorf("expected Draft, got %s", inv.Status)
		}
	})

	t.Run("stored overdue is rejected", func(t *testing.T) {
		svc := NewInvoiceService(newInvoiceStore(), &countingNormalizer{rate: decimal.NewFromInt(1)})

		in := validInvoiceInput()
		in.Status = core.StatusOverdue
		if _, err := svc.Create(context.Background(), in); err == nil {
			t.Error("overdue must never be persisted")
		}
	})

	t.Run("splits must sum to one", func(t *testing.T) {
		svc := NewInvoiceService(newInvoiceStore(), &countingNormalizer{rate: decimal.NewFromInt(1)})

		in := validInvoiceInput()
		in.Splits = []core.PartnerSplit{{PartnerID: alice.ID, Fraction: decimal.NewFromFloat(0.6)}}
		if _, err := svc.Create(context.Background(), in); !errors.Is(err, core.ErrInvalidSplit) {
			t.Errorf("expected split validation error, got %v", err)
		}
	})
}

func TestInvoiceEffectiveStatus(t *testing.T) {
	today := core.NewDate(2026, time.March, 1)
	store := newInvoiceStore(
		storedInvoice("past-due", core.StatusSent, core.NewDate(2026, time.February, 1)),
		storedInvoice("future-due", core.StatusSent, core.NewDate(2026, time.April, 1)),
		storedInvoice("paid", core.StatusPaid, core.NewDate(2026, time.February, 1)),
	)
	svc := NewInvoiceService(store, &countingNormalizer{rate: decimal.NewFromInt(1)})

	t.Run("get derives overdue", func(t *testing.T) {
		inv, err := svc.Get(context.Background(), "past-due", today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if inv.Status != core.StatusOverdue {
			t.Errorf("expected Overdue, got %s", inv.Status)
		}
		// The stored row is untouched.
		if store.invoices["past-due"].Status != core.StatusSent {
			t.Error("derivation must not write back")
		}
	})

	t.Run("overdue filter matches sent past due", func(t *testing.T) {
		out, err := svc.List(context.Background(), InvoiceListFilter{Status: core.StatusOverdue}, today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 1 || out[0].ID != "past-due" {
			t.Fatalf("expected only the past-due invoice, got %v", out)
		}
	})

	t.Run("sent filter excludes past due", func(t *testing.T) {
		out, err := svc.List(context.Background(), InvoiceListFilter{Status: core.StatusSent}, today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 1 || out[0].ID != "future-due" {
			t.Fatalf("expected only the future-due invoice, got %v", out)
		}
	})

	t.Run("client filter", func(t *testing.T) {
		out, err := svc.List(context.Background(), InvoiceListFilter{ClientID: "nobody"}, today)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(out) != 0 {
			t.Fatalf("expected no invoices for unknown client, got %d", len(out))
		}
	})
}

func TestInvoiceMarkPaid(t *testing.T) {
	store := newInvoiceStore(storedInvoice("inv1", core.StatusSent, core.NewDate(2026, time.February, 1)))
	svc := NewInvoiceService(store, &countingNormalizer{rate: decimal.NewFromInt(1)})

	paidOn := core.NewDate(2026, time.March, 3)
	if err := svc.MarkPaid(context.Background(), "inv1", paidOn); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inv := store.invoices["inv1"]
	if inv.Status != core.StatusPaid {
		t.Errorf("expected Paid, got %s", inv.Status)
	}
	if inv.DatePaid == nil || !inv.DatePaid.Equal(paidOn) {
		t.Error("expected payment date recorded")
	}
}

func TestInvoiceSummary(t *testing.T) {
	today := core.NewDate(2026, time.March, 1)
	store := newInvoiceStore(
		storedInvoice("a", core.StatusSent, core.NewDate(2026, time.February, 1)),  // overdue, 1000
		storedInvoice("b", core.StatusSent, core.NewDate(2026, time.April, 1)),     // outstanding, 1000
		storedInvoice("c", core.StatusPaid, core.NewDate(2026, time.February, 1)),  // settled
		storedInvoice("d", core.StatusDraft, core.NewDate(2026, time.February, 1)), // not yet sent
	)
	svc := NewInvoiceService(store, &countingNormalizer{rate: decimal.NewFromInt(1)})

	summary, err := svc.Summary(context.Background(), 2026, today)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !summary.TotalOutstanding.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected outstanding 2000, got %s", summary.TotalOutstanding)
	}
	if !summary.TotalOverdue.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("expected overdue 1000, got %s", summary.TotalOverdue)
	}
	wantCounts := map[core.InvoiceStatus]int{
		core.StatusOverdue: 1,
		core.StatusSent:    1,
		core.StatusPaid:    1,
		core.StatusDraft:   1,
	}
	for status, want := range wantCounts {
		if got := summary.CountByStatus[status]; got != want {
			t.Errorf("expected %d %s invoices, got %d", want, status, got)
		}
	}
}
