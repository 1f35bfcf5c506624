package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/services"
)

type recurringRequest struct {
	SupplierName      string           `json:"supplier_name"`
	Amount            decimal.Decimal  `json:"amount"`
	Currency          string           `json:"currency"`
	CategoryID        string           `json:"category_id"`
	AccountID         string           `json:"account_id"`
	BeneficiaryID     *string          `json:"beneficiary_partner_id,omitempty"`
	AppliedTaxPercent *decimal.Decimal `json:"applied_tax_percent,omitempty"`
	Notes             *string          `json:"notes,omitempty"`
	RecurrenceDay     int              `json:"recurrence_day"`
	StartDate         core.Date        `json:"start_date"`
	EndDate           *core.Date       `json:"end_date,omitempty"`
}

func (req recurringRequest) input(createdBy *string) services.RecurringInput {
	return services.RecurringInput{
		SupplierName:      req.SupplierName,
		Amount:            req.Amount,
		Currency:          req.Currency,
		CategoryID:        req.CategoryID,
		AccountID:         req.AccountID,
		BeneficiaryID:     req.BeneficiaryID,
		AppliedTaxPercent: req.AppliedTaxPercent,
		Notes:             req.Notes,
		RecurrenceDay:     req.RecurrenceDay,
		StartDate:         req.StartDate,
		EndDate:           req.EndDate,
		CreatedBy:         createdBy,
	}
}

func (s *Server) handleListRecurring(w http.ResponseWriter, r *http.Request) {
	templates, err := s.recurring.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recurring_expenses": templates})
}

func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
	var req recurringRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	template, err := s.recurring.Create(r.Context(), req.input(s.creator(r)))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"recurring_expense": template})
}

// handlePatchRecurring edits a template or flips its active flag. A body
// with only is_active toggles; a full body rewrites the template.
func (s *Server) handlePatchRecurring(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		recurringRequest
		IsActive *bool `json:"is_active,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	if req.IsActive != nil && req.SupplierName == "" {
		if err := s.recurring.SetActive(r.Context(), id, *req.IsActive); err != nil {
			respondError(w, r, err)
			return
		}
		template, err := s.recurring.Get(r.Context(), id)
		if err != nil {
			respondError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"recurring_expense": template})
		return
	}

	in := req.recurringRequest.input(s.creator(r))
	in.IsActive = req.IsActive
	template, err := s.recurring.Update(r.Context(), id, in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"recurring_expense": template})
}

func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if err := s.recurring.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

// handleProcessRecurring is the shared-secret scheduler trigger.
func (s *Server) handleProcessRecurring(w http.ResponseWriter, r *http.Request) {
	result, err := s.processor.RunDailyPass(r.Context(), s.today())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
