package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/services"
	"github.com/heli-gil/sunny/internal/storage"
)

type expenseRequest struct {
	Date              core.Date        `json:"date"`
	SupplierName      string           `json:"supplier_name"`
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	CategoryID        string           `json:"category_id"`
	AccountID         string           `json:"account_id"`
	BeneficiaryID     *string          `json:"beneficiary_partner_id,omitempty"`
	AppliedTaxPercent *decimal.Decimal `json:"applied_tax_percent,omitempty"`
	ClientID          *string          `json:"client_id,omitempty"`
	InvoiceURL        *string          `json:"invoice_url,omitempty"`
	Notes             *string          `json:"notes,omitempty"`

	// Recurrence opt-in: when set, a template is created first and this
	// month's expense is generated from it.
	IsRecurring   bool       `json:"is_recurring,omitempty"`
	RecurrenceDay int        `json:"recurrence_day,omitempty"`
	StartDate     *core.Date `json:"start_date,omitempty"`
	EndDate       *core.Date `json:"end_date,omitempty"`
}

func (req expenseRequest) input(createdBy *string) services.ExpenseInput {
	return services.ExpenseInput{
		Date:              req.Date,
		SupplierName:      req.SupplierName,
		Amount:            req.Amount,
		Currency:          req.Currency,
		CategoryID:        req.CategoryID,
		AccountID:         req.AccountID,
		BeneficiaryID:     req.BeneficiaryID,
		AppliedTaxPercent: req.AppliedTaxPercent,
		ClientID:          req.ClientID,
		InvoiceURL:        req.InvoiceURL,
		Notes:             req.Notes,
		CreatedBy:         createdBy,
	}
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.ExpenseFilter{
		Search:        q.Get("search"),
		CategoryID:    q.Get("category_id"),
		BeneficiaryID: q.Get("beneficiary"),
	}
	if year := q.Get("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "year must be a number")
			return
		}
		filter.Year = y
	}

	expenses, err := s.expenses.List(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	createdBy := s.creator(r)

	if req.IsRecurring {
		startDate := req.Date
		if req.StartDate != nil {
			startDate = *req.StartDate
		}
		template, expense, err := s.recurring.CreateWithFirstExpense(r.Context(), services.RecurringInput{
			SupplierName:      req.SupplierName,
			Amount:            req.Amount,
			Currency:          req.Currency,
			CategoryID:        req.CategoryID,
			AccountID:         req.AccountID,
			BeneficiaryID:     req.BeneficiaryID,
			AppliedTaxPercent: req.AppliedTaxPercent,
			Notes:             req.Notes,
			RecurrenceDay:     req.RecurrenceDay,
			StartDate:         startDate,
			EndDate:           req.EndDate,
			CreatedBy:         createdBy,
		}, s.today())
		if err != nil {
			respondError(w, r, err)
			return
		}
		// A template starting in the future defers its first entry to the
		// daily pass; the response then carries the template alone.
		resp := map[string]any{"recurring": template}
		if expense.ID != "" {
			resp["expense"] = expense
		}
		writeJSON(w, http.StatusCreated, resp)
		return
	}

	expense, err := s.expenses.Create(r.Context(), req.input(createdBy))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"expense": expense})
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	expense, err := s.expenses.Update(r.Context(), chi.URLParam(r, "id"), req.input(s.creator(r)))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expense": expense})
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	if err := s.expenses.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleExpenseYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.expenses.Years(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	if years == nil {
		years = []int{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": years})
}
