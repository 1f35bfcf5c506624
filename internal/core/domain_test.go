package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validExpense() Expense {
	return Expense{
		ID:                "e1",
		Date:              NewDate(2026, time.January, 10),
		SupplierName:      "Hosting Co",
		Amount:            decimal.NewFromInt(100),
		Currency:          "USD",
		CategoryID:        "cat1",
		AccountID:         "acc1",
		AppliedTaxPercent: decimal.NewFromFloat(0.66),
	}
}

func TestExpenseValidate(t *testing.T) {
	t.Run("valid expense passes", func(t *testing.T) {
		if err := validExpense().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	cases := []struct {
		name   string
		mutate func(*Expense)
		want   error
	}{
		{"empty supplier", func(e *Expense) { e.SupplierName = "  " }, ErrEmptySupplier},
		{"zero amount", func(e *Expense) { e.Amount = decimal.Zero }, ErrInvalidAmount},
		{"negative amount", func(e *Expense) { e.Amount = decimal.NewFromInt(-5) }, ErrInvalidAmount},
		{"unsupported currency", func(e *Expense) { e.Currency = "BTC" }, ErrInvalidCurrency},
		{"missing category", func(e *Expense) { e.CategoryID = "" }, ErrMissingCategory},
		{"missing account", func(e *Expense) { e.AccountID = "" }, ErrMissingAccount},
		{"tax percent above one", func(e *Expense) { e.AppliedTaxPercent = decimal.NewFromInt(18) }, ErrInvalidPercent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := validExpense()
			tc.mutate(&e)
			err := e.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Error("expected a ValidationError wrapper")
			}
		})
	}
}

func validRecurring() RecurringExpense {
	return RecurringExpense{
		ID:                "r1",
		SupplierName:      "Hosting Co",
		Amount:            decimal.NewFromInt(50),
		Currency:          "ILS",
		CategoryID:        "cat1",
		AccountID:         "acc1",
		AppliedTaxPercent: decimal.NewFromInt(1),
		RecurrenceDay:     5,
		StartDate:         NewDate(2026, time.January, 5),
		IsActive:          true,
	}
}

func TestRecurringExpenseValidate(t *testing.T) {
	t.Run("valid template passes", func(t *testing.T) {
		if err := validRecurring().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("day bounds", func(t *testing.T) {
		for _, day := range []int{0, 32, -1} {
			re := validRecurring()
			re.RecurrenceDay = day
			if err := re.Validate(); !errors.Is(err, ErrInvalidDay) {
				t.Errorf("day %d: expected ErrInvalidDay, got %v", day, err)
			}
		}
		for _, day := range []int{1, 31} {
			re := validRecurring()
			re.RecurrenceDay = day
			if err := re.Validate(); err != nil {
				t.Errorf("day %d: unexpected error: %v", day, err)
			}
		}
	})

	t.Run("end date before start date", func(t *testing.T) {
		re := validRecurring()
		end := NewDate(2025, time.December, 31)
		re.EndDate = &end
		if err := re.Validate(); !errors.Is(err, ErrDateOrder) {
			t.Errorf("expected ErrDateOrder, got %v", err)
		}
	})
}

func validInvoice() Invoice {
	return Invoice{
		ID:            "i1",
		InvoiceNumber: "INV-001",
		ClientID:      "c1",
		Amount:        decimal.NewFromInt(1000),
		Currency:      "ILS",
		VATRate:       DefaultVATRate,
		DateIssued:    NewDate(2026, time.January, 10),
		DueDate:       NewDate(2026, time.February, 10),
		Status:        StatusSent,
		Splits: []PartnerSplit{
			{PartnerID: "p1", Fraction: decimal.NewFromFloat(0.5)},
			{PartnerID: "p2", Fraction: decimal.NewFromFloat(0.5)},
		},
	}
}

func TestInvoiceValidate(t *testing.T) {
	t.Run("valid invoice passes", func(t *testing.T) {
		if err := validInvoice().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("splits must sum to one", func(t *testing.T) {
		inv := validInvoice()
		inv.Splits[1].Fraction = decimal.NewFromFloat(0.4)
		if err := inv.Validate(); !errors.Is(err, ErrInvalidSplit) {
			t.Errorf("expected ErrInvalidSplit, got %v", err)
		}
	})

	t.Run("stored overdue is rejected", func(t *testing.T) {
		inv := validInvoice()
		inv.Status = StatusOverdue
		if err := inv.Validate(); err == nil {
			t.Error("expected error: Overdue is derived, never stored")
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		inv := validInvoice()
		inv.Status = "Void"
		if err := inv.Validate(); !errors.Is(err, ErrUnknownStatus) {
			t.Errorf("expected ErrUnknownStatus, got %v", err)
		}
	})
}

func TestEffectiveStatus(t *testing.T) {
	inv := validInvoice() // Sent, due 2026-02-10

	cases := []struct {
		name  string
		today Date
		want  InvoiceStatus
	}{
		{"before due date", NewDate(2026, time.February, 9), StatusSent},
		{"on due date", NewDate(2026, time.February, 10), StatusSent},
		{"past due date", NewDate(2026, time.February, 11), StatusOverdue},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := EffectiveStatus(inv, tc.today); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}

	t.Run("paid never flips to overdue", func(t *testing.T) {
		paid := validInvoice()
		paid.Status = StatusPaid
		if got := EffectiveStatus(paid, NewDate(2027, time.January, 1)); got != StatusPaid {
			t.Errorf("expected Paid, got %s", got)
		}
	})

	t.Run("draft never flips to overdue", func(t *testing.T) {
		draft := validInvoice()
		draft.Status = StatusDraft
		if got := EffectiveStatus(draft, NewDate(2027, time.January, 1)); got != StatusDraft {
			t.Errorf("expected Draft, got %s", got)
		}
	})
}

func TestInvoiceSplitFor(t *testing.T) {
	inv := validInvoice()
	if got := inv.SplitFor("p1"); !got.Equal(decimal.NewFromFloat(0.5)) {
		t.Errorf("expected 0.5, got %s", got)
	}
	if got := inv.SplitFor("nobody"); !got.IsZero() {
		t.Errorf("expected zero for unknown partner, got %s", got)
	}
}

func TestWithdrawalValidate(t *testing.T) {
	w := Withdrawal{
		ID:        "w1",
		PartnerID: "p1",
		Amount:    decimal.NewFromInt(500),
		Date:      NewDate(2026, time.March, 1),
		Method:    MethodBankTransfer,
	}
	if err := w.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	w.Method = "Venmo"
	if err := w.Validate(); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("expected ErrUnknownMethod, got %v", err)
	}
}
