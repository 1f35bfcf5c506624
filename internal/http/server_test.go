package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/config"
	"github.com/heli-gil/sunny/internal/core"
	applog "github.com/heli-gil/sunny/internal/log"
	"github.com/heli-gil/sunny/internal/rates"
	"github.com/heli-gil/sunny/internal/services"
	"github.com/heli-gil/sunny/internal/storage"
)

const (
	allowedEmail = "alice@example.com"
	cronSecret   = "test-cron-secret"
)

// newTestServer wires the full stack against a throwaway database, with the
// broker disabled and the calendar pinned to 2026-03-05.
func newTestServer(t *testing.T) (*Server, http.Handler, *storage.Repository) {
	return newTestServerWithRatio(t, decimal.New(5, -1))
}

func newTestServerWithRatio(t *testing.T, ratio decimal.Decimal) (*Server, http.Handler, *storage.Repository) {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	seedRefs(t, repo)

	cfg := &config.Config{
		AllowedEmails:      []string{allowedEmail},
		CronSecret:         cronSecret,
		BusinessSplitRatio: ratio,
	}
	normalizer := rates.NewNormalizer()
	expenses := services.NewExpenseService(repo, normalizer, nil)
	processor := services.NewRecurringProcessor(repo, normalizer, nil)
	recurring := services.NewRecurringService(repo, processor)
	invoices := services.NewInvoiceService(repo, normalizer)

	partners, err := repo.ListPartners(context.Background())
	if err != nil {
		t.Fatalf("list partners: %v", err)
	}
	balance := services.NewBalanceService(repo, services.PolicyForPartners(partners, cfg.BusinessSplitRatio))
	logger := applog.New(applog.Config{
		Handler: slog.NewTextHandler(io.Discard, nil),
	})

	srv := NewServer(cfg, repo, expenses, recurring, processor, invoices, balance, logger)
	srv.now = func() time.Time {
		return time.Date(2026, time.March, 5, 10, 0, 0, 0, time.UTC)
	}
	return srv, srv.Routes(), repo
}

func seedRefs(t *testing.T, repo *storage.Repository) {
	t.Helper()
	ctx := context.Background()

	for _, p := range []core.Partner{
		{ID: "p1", Name: "Alice", Email: allowedEmail, IconColor: "blue"},
		{ID: "p2", Name: "Bob", Email: "bob@example.com", IconColor: "green"},
	} {
		if err := repo.UpsertPartner(ctx, p); err != nil {
			t.Fatalf("seed partner: %v", err)
		}
	}
	if _, err := repo.CreateAccount(ctx, core.Account{
		ID: "acc1", Name: "Business Card", Type: core.AccountBusinessCredit, IsActive: true,
	}); err != nil {
		t.Fatalf("seed account: %v", err)
	}
	if _, err := repo.CreateCategory(ctx, core.Category{
		ID: "cat1", Name: "Software", ParentCategory: core.ParentOPEX,
		TaxRecognitionPct: decimal.NewFromInt(1), IsActive: true,
	}); err != nil {
		t.Fatalf("seed category: %v", err)
	}
	if _, err := repo.CreateClient(ctx, core.Client{
		ID: "c1", Name: "Acme", Status: core.ClientActive,
	}); err != nil {
		t.Fatalf("seed client: %v", err)
	}
}

func doRequest(t *testing.T, h http.Handler, method, path, email string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if email != "" {
		req.Header.Set("X-Auth-Email", email)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestAuth(t *testing.T) {
	_, h, _ := newTestServer(t)

	t.Run("missing identity header", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/expenses/", "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("email off the allow list", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/expenses/", "mallory@example.com", nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("expected 403, got %d", rec.Code)
		}
	})

	t.Run("allow list is case insensitive", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/expenses/", "ALICE@example.com", nil)
		if rec.Code != http.StatusOK {
			t.Errorf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("health endpoints are open", func(t *testing.T) {
		for _, path := range []string{"/healthz", "/readyz"} {
			rec := doRequest(t, h, http.MethodGet, path, "", nil)
			if rec.Code != http.StatusOK {
				t.Errorf("%s: expected 200, got %d", path, rec.Code)
			}
		}
	})
}

func TestCronTrigger(t *testing.T) {
	t.Run("wrong secret", func(t *testing.T) {
		_, h, _ := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/cron/process-recurring", nil)
		req.Header.Set("Authorization", "Bearer wrong")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401, got %d", rec.Code)
		}
	})

	t.Run("correct secret runs the pass", func(t *testing.T) {
		_, h, _ := newTestServer(t)
		req := httptest.NewRequest(http.MethodPost, "/api/cron/process-recurring", nil)
		req.Header.Set("Authorization", "Bearer "+cronSecret)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var result services.PassResult
		decodeBody(t, rec, &result)
		if result.Created != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty pass, got %+v", result)
		}
	})

	t.Run("unset secret disables the endpoint", func(t *testing.T) {
		srv, _, _ := newTestServer(t)
		srv.cfg.CronSecret = ""
		h := srv.Routes()
		req := httptest.NewRequest(http.MethodPost, "/api/cron/process-recurring", nil)
		req.Header.Set("Authorization", "Bearer ")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("expected 401 when disabled, got %d", rec.Code)
		}
	})
}

func TestExpenseEndpoints(t *testing.T) {
	_, h, _ := newTestServer(t)

	body := map[string]any{
		"date":          "2026-03-01",
		"supplier_name": "Hosting Co",
		"amount":        "120",
		"currency":      "ILS",
		"category_id":   "cat1",
		"account_id":    "acc1",
	}

	rec := doRequest(t, h, http.MethodPost, "/api/expenses/", allowedEmail, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		Expense core.Expense `json:"expense"`
	}
	decodeBody(t, rec, &created)
	if !created.Expense.AmountILS.Equal(decimal.NewFromInt(120)) {
		t.Errorf("expected 120 ILS, got %s", created.Expense.AmountILS)
	}
	if created.Expense.CreatedBy == nil || *created.Expense.CreatedBy != "p1" {
		t.Error("expected creator attributed to the authenticated partner")
	}

	t.Run("list by year", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/expenses/?year=2026", allowedEmail, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var out struct {
			Expenses []core.Expense `json:"expenses"`
		}
		decodeBody(t, rec, &out)
		if len(out.Expenses) != 1 {
			t.Fatalf("expected 1 expense, got %d", len(out.Expenses))
		}
	})

	t.Run("invalid year is rejected", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/expenses/?year=abc", allowedEmail, nil)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("validation error is 422", func(t *testing.T) {
		bad := map[string]any{
			"date":          "2026-03-01",
			"supplier_name": "",
			"amount":        "10",
			"currency":      "ILS",
			"category_id":   "cat1",
			"account_id":    "acc1",
		}
		rec := doRequest(t, h, http.MethodPost, "/api/expenses/", allowedEmail, bad)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body)
		}
	})

	t.Run("unknown field is rejected", func(t *testing.T) {
		bad := map[string]any{"bogus_field": true}
		rec := doRequest(t, h, http.MethodPost, "/api/expenses/", allowedEmail, bad)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Errorf("expected 422, got %d", rec.Code)
		}
	})

	t.Run("delete then 404", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodDelete, "/api/expenses/"+created.Expense.ID, allowedEmail, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("delete: expected 200, got %d", rec.Code)
		}
		rec = doRequest(t, h, http.MethodDelete, "/api/expenses/"+created.Expense.ID, allowedEmail, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404 on double delete, got %d", rec.Code)
		}
	})
}

func TestRecurringOptIn(t *testing.T) {
	_, h, _ := newTestServer(t)

	// Calendar is pinned to 2026-03-05; the template's day matches today so
	// the first expense generates immediately.
	body := map[string]any{
		"date":           "2026-03-05",
		"supplier_name":  "Hosting Co",
		"amount":         "100",
		"currency":       "ILS",
		"category_id":    "cat1",
		"account_id":     "acc1",
		"is_recurring":   true,
		"recurrence_day": 5,
	}

	rec := doRequest(t, h, http.MethodPost, "/api/expenses/", allowedEmail, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var out struct {
		Expense   core.Expense          `json:"expense"`
		Recurring core.RecurringExpense `json:"recurring"`
	}
	decodeBody(t, rec, &out)
	if out.Recurring.ID == "" || out.Recurring.RecurrenceDay != 5 {
		t.Fatalf("expected template created, got %+v", out.Recurring)
	}
	if out.Expense.RecurringExpenseID == nil || *out.Expense.RecurringExpenseID != out.Recurring.ID {
		t.Error("expected first expense linked to the template")
	}
	if out.Recurring.LastGenerated.String() != "2026-03" {
		t.Errorf("expected marker 2026-03, got %q", out.Recurring.LastGenerated)
	}

	// The cron pass on the same day must not duplicate it.
	req := httptest.NewRequest(http.MethodPost, "/api/cron/process-recurring", nil)
	req.Header.Set("Authorization", "Bearer "+cronSecret)
	cronRec := httptest.NewRecorder()
	h.ServeHTTP(cronRec, req)
	var result services.PassResult
	decodeBody(t, cronRec, &result)
	if result.Created != 0 || result.Skipped != 1 {
		t.Errorf("expected idempotent cron pass, got %+v", result)
	}
}

func TestInvoiceEndpoints(t *testing.T) {
	_, h, _ := newTestServer(t)

	body := map[string]any{
		"invoice_number": "INV-100",
		"client_id":      "c1",
		"amount":         "1000",
		"currency":       "ILS",
		"date_issued":    "2026-01-10",
		"due_date":       "2026-02-10",
		"status":         "Sent",
		"splits": []map[string]any{
			{"partner_id": "p1", "fraction": "0.5"},
			{"partner_id": "p2", "fraction": "0.5"},
		},
	}
	rec := doRequest(t, h, http.MethodPost, "/api/invoices/", allowedEmail, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		Invoice core.Invoice `json:"invoice"`
	}
	decodeBody(t, rec, &created)

	t.Run("list derives overdue", func(t *testing.T) {
		// Due 2026-02-10 is past the pinned 2026-03-05.
		rec := doRequest(t, h, http.MethodGet, "/api/invoices/?status=Overdue", allowedEmail, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var out struct {
			Invoices []core.Invoice `json:"invoices"`
		}
		decodeBody(t, rec, &out)
		if len(out.Invoices) != 1 || out.Invoices[0].Status != core.StatusOverdue {
			t.Fatalf("expected one overdue invoice, got %+v", out.Invoices)
		}
	})

	t.Run("summary", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/invoices-summary?year=2026", allowedEmail, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var summary core.InvoiceSummary
		decodeBody(t, rec, &summary)
		if !summary.TotalOverdue.Equal(decimal.NewFromInt(1000)) {
			t.Errorf("expected overdue 1000, got %s", summary.TotalOverdue)
		}
	})

	t.Run("mark paid", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPost, "/api/invoices/"+created.Invoice.ID+"/mark-paid",
			allowedEmail, map[string]any{"date_paid": "2026-03-01"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}

		list := doRequest(t, h, http.MethodGet, "/api/invoices/?status=Paid", allowedEmail, nil)
		var out struct {
			Invoices []core.Invoice `json:"invoices"`
		}
		decodeBody(t, list, &out)
		if len(out.Invoices) != 1 {
			t.Fatalf("expected one paid invoice, got %d", len(out.Invoices))
		}
		if out.Invoices[0].DatePaid == nil || out.Invoices[0].DatePaid.String() != "2026-03-01" {
			t.Error("expected payment date recorded")
		}
	})
}

// seedBalanceLedger posts a paid 1000 ILS invoice split evenly plus a 200 ILS
// business expense.
func seedBalanceLedger(t *testing.T, h http.Handler) {
	t.Helper()

	invoice := map[string]any{
		"invoice_number": "INV-1",
		"client_id":      "c1",
		"amount":         "1000",
		"currency":       "ILS",
		"date_issued":    "2026-01-10",
		"due_date":       "2026-02-10",
		"status":         "Sent",
		"splits": []map[string]any{
			{"partner_id": "p1", "fraction": "0.5"},
			{"partner_id": "p2", "fraction": "0.5"},
		},
	}
	if rec := doRequest(t, h, http.MethodPost, "/api/invoices/", allowedEmail, invoice); rec.Code != http.StatusCreated {
		t.Fatalf("seed invoice: %d: %s", rec.Code, rec.Body)
	}
	var createdID string
	{
		rec := doRequest(t, h, http.MethodGet, "/api/invoices/?year=2026", allowedEmail, nil)
		var out struct {
			Invoices []core.Invoice `json:"invoices"`
		}
		decodeBody(t, rec, &out)
		createdID = out.Invoices[0].ID
	}
	if rec := doRequest(t, h, http.MethodPost, "/api/invoices/"+createdID+"/mark-paid", allowedEmail,
		map[string]any{}); rec.Code != http.StatusOK {
		t.Fatalf("mark paid: %d: %s", rec.Code, rec.Body)
	}

	expense := map[string]any{
		"date":          "2026-02-01",
		"supplier_name": "Hosting Co",
		"amount":        "200",
		"currency":      "ILS",
		"category_id":   "cat1",
		"account_id":    "acc1",
	}
	if rec := doRequest(t, h, http.MethodPost, "/api/expenses/", allowedEmail, expense); rec.Code != http.StatusCreated {
		t.Fatalf("seed expense: %d: %s", rec.Code, rec.Body)
	}
}

func TestPartnerBalanceEndpoint(t *testing.T) {
	_, h, _ := newTestServer(t)
	seedBalanceLedger(t, h)

	rec := doRequest(t, h, http.MethodGet, "/api/partners/p1/balance?year=2026", allowedEmail, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var balance core.PartnerBalance
	decodeBody(t, rec, &balance)
	if !balance.NetAvailable.Equal(decimal.NewFromInt(400)) {
		t.Errorf("expected net 400, got %s", balance.NetAvailable)
	}
	if balance.PartnerName != "Alice" {
		t.Errorf("expected Alice, got %s", balance.PartnerName)
	}

	t.Run("unknown partner", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodGet, "/api/partners/ghost/balance?year=2026", allowedEmail, nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("expected 404, got %d", rec.Code)
		}
	})
}

func TestConfiguredSplitRatio(t *testing.T) {
	// BUSINESS_SPLIT_RATIO=0.7 assigns 0.7 to the first listed partner.
	_, h, _ := newTestServerWithRatio(t, decimal.NewFromFloat(0.7))
	seedBalanceLedger(t, h)

	// Alice: income 500, expense share 0.7 x 200 = 140, net 360.
	rec := doRequest(t, h, http.MethodGet, "/api/partners/p1/balance?year=2026", allowedEmail, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var balance core.PartnerBalance
	decodeBody(t, rec, &balance)
	if !balance.NetAvailable.Equal(decimal.NewFromInt(360)) {
		t.Errorf("expected net 360 under the 0.7 split, got %s", balance.NetAvailable)
	}

	// Bob carries the complement: 500 - 0.3 x 200 = 440.
	rec = doRequest(t, h, http.MethodGet, "/api/partners/p2/balance?year=2026", allowedEmail, nil)
	decodeBody(t, rec, &balance)
	if !balance.NetAvailable.Equal(decimal.NewFromInt(440)) {
		t.Errorf("expected net 440 under the 0.3 split, got %s", balance.NetAvailable)
	}
}

func TestRecurringPatch(t *testing.T) {
	_, h, _ := newTestServer(t)

	body := map[string]any{
		"supplier_name":  "Hosting Co",
		"amount":         "50",
		"currency":       "ILS",
		"category_id":    "cat1",
		"account_id":     "acc1",
		"recurrence_day": 10,
		"start_date":     "2026-03-01",
	}
	rec := doRequest(t, h, http.MethodPost, "/api/recurring/", allowedEmail, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var created struct {
		Template core.RecurringExpense `json:"recurring_expense"`
	}
	decodeBody(t, rec, &created)

	t.Run("full body applies the active flag in one write", func(t *testing.T) {
		patch := map[string]any{
			"supplier_name":  "New Vendor",
			"amount":         "50",
			"currency":       "ILS",
			"category_id":    "cat1",
			"account_id":     "acc1",
			"recurrence_day": 10,
			"start_date":     "2026-03-01",
			"is_active":      false,
		}
		rec := doRequest(t, h, http.MethodPatch, "/api/recurring/"+created.Template.ID, allowedEmail, patch)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var out struct {
			Template core.RecurringExpense `json:"recurring_expense"`
		}
		decodeBody(t, rec, &out)
		if out.Template.SupplierName != "New Vendor" || out.Template.IsActive {
			t.Errorf("expected renamed inactive template, got %+v", out.Template)
		}
	})

	t.Run("toggle-only body flips the flag back", func(t *testing.T) {
		rec := doRequest(t, h, http.MethodPatch, "/api/recurring/"+created.Template.ID,
			allowedEmail, map[string]any{"is_active": true})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
		}
		var out struct {
			Template core.RecurringExpense `json:"recurring_expense"`
		}
		decodeBody(t, rec, &out)
		if !out.Template.IsActive || out.Template.SupplierName != "New Vendor" {
			t.Errorf("expected reactivated template, got %+v", out.Template)
		}
	})
}

func TestRecurringOptInDeferred(t *testing.T) {
	_, h, _ := newTestServer(t)

	// Start date after the pinned 2026-03-05: the template is created but
	// the first expense waits for the daily pass.
	body := map[string]any{
		"date":           "2026-03-05",
		"supplier_name":  "Hosting Co",
		"amount":         "100",
		"currency":       "ILS",
		"category_id":    "cat1",
		"account_id":     "acc1",
		"is_recurring":   true,
		"recurrence_day": 1,
		"start_date":     "2026-04-01",
	}

	rec := doRequest(t, h, http.MethodPost, "/api/expenses/", allowedEmail, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body)
	}
	var out map[string]json.RawMessage
	decodeBody(t, rec, &out)
	if _, ok := out["expense"]; ok {
		t.Error("no expense should generate before the start date")
	}
	var template core.RecurringExpense
	if err := json.Unmarshal(out["recurring"], &template); err != nil {
		t.Fatalf("decode template: %v", err)
	}
	if template.ID == "" || !template.LastGenerated.IsZero() {
		t.Errorf("expected template with untouched marker, got %+v", template)
	}

	list := doRequest(t, h, http.MethodGet, "/api/expenses/?year=2026", allowedEmail, nil)
	var expenses struct {
		Expenses []core.Expense `json:"expenses"`
	}
	decodeBody(t, list, &expenses)
	if len(expenses.Expenses) != 0 {
		t.Errorf("expected no persisted expense, got %d", len(expenses.Expenses))
	}
}
