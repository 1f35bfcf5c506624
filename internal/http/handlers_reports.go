package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
)

func (s *Server) handlePartnerBalance(w http.ResponseWriter, r *http.Request) {
	year := s.now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "year must be a number")
			return
		}
		year = y
	}

	report, err := s.balance.PartnerBalance(r.Context(), chi.URLParam(r, "id"), year, s.today())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleCategoryTotals(w http.ResponseWriter, r *http.Request) {
	year := s.now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "year must be a number")
			return
		}
		year = y
	}

	totals, err := s.expenses.CategoryTotals(r.Context(), year)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if totals == nil {
		totals = []core.CategoryTotal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"category_totals": totals, "year": year})
}

type withdrawalRequest struct {
	PartnerID string                `json:"partner_id"`
	Amount    decimal.Decimal       `json:"amount"`
	Date      core.Date             `json:"date"`
	Method    core.WithdrawalMethod `json:"method"`
	Notes     *string               `json:"notes,omitempty"`
}

func (s *Server) handleListWithdrawals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year := 0
	if y := q.Get("year"); y != "" {
		parsed, err := strconv.Atoi(y)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "year must be a number")
			return
		}
		year = parsed
	}

	withdrawals, err := s.repo.ListWithdrawals(r.Context(), year, q.Get("partner_id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"withdrawals": withdrawals})
}

func (s *Server) handleCreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req withdrawalRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	withdrawal := core.Withdrawal{
		ID:        uuid.NewString(),
		PartnerID: req.PartnerID,
		Amount:    req.Amount,
		Date:      req.Date,
		Method:    req.Method,
		Notes:     req.Notes,
		CreatedBy: s.creator(r),
	}
	if err := withdrawal.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.repo.CreateWithdrawal(r.Context(), withdrawal)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"withdrawal": created})
}

func (s *Server) handleDeleteWithdrawal(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.SoftDeleteWithdrawal(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
