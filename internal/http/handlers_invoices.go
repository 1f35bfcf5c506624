package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/services"
)

type invoiceRequest struct {
	InvoiceNumber string              `json:"invoice_number"`
	ClientID      string              `json:"client_id"`
	Description   *string             `json:"description,omitempty"`
	Amount        decimal.Decimal     `json:"amount"`
	Currency      string              `json:"currency"`
	IncludesVAT   bool                `json:"includes_vat"`
	VATRate       *decimal.Decimal    `json:"vat_rate,omitempty"`
	DateIssued    core.Date           `json:"date_issued"`
	DueDate       core.Date           `json:"due_date"`
	Status        core.InvoiceStatus  `json:"status"`
	DatePaid      *core.Date          `json:"date_paid,omitempty"`
	Splits        []core.PartnerSplit `json:"splits"`
	InvoiceURL    *string             `json:"invoice_url,omitempty"`
	Notes         *string             `json:"notes,omitempty"`
}

func (req invoiceRequest) input(createdBy *string) services.InvoiceInput {
	return services.InvoiceInput{
		InvoiceNumber: req.InvoiceNumber,
		ClientID:      req.ClientID,
		Description:   req.Description,
		Amount:        req.Amount,
		Currency:      req.Currency,
		IncludesVAT:   req.IncludesVAT,
		VATRate:       req.VATRate,
		DateIssued:    req.DateIssued,
		DueDate:       req.DueDate,
		Status:        req.Status,
		DatePaid:      req.DatePaid,
		Splits:        req.Splits,
		InvoiceURL:    req.InvoiceURL,
		Notes:         req.Notes,
		CreatedBy:     createdBy,
	}
}

func (s *Server) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := services.InvoiceListFilter{
		ClientID: q.Get("client_id"),
		Status:   core.InvoiceStatus(q.Get("status")),
	}
	if year := q.Get("year"); year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "year must be a number")
			return
		}
		filter.Year = y
	}

	invoices, err := s.invoices.List(r.Context(), filter, s.today())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	invoice, err := s.invoices.Create(r.Context(), req.input(s.creator(r)))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"invoice": invoice})
}

func (s *Server) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}

	invoice, err := s.invoices.Update(r.Context(), chi.URLParam(r, "id"), req.input(s.creator(r)))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (s *Server) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := s.invoices.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleMarkInvoicePaid(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DatePaid *core.Date `json:"date_paid,omitempty"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	paidOn := s.today()
	if req.DatePaid != nil {
		paidOn = *req.DatePaid
	}

	id := chi.URLParam(r, "id")
	if err := s.invoices.MarkPaid(r.Context(), id, paidOn); err != nil {
		respondError(w, r, err)
		return
	}
	invoice, err := s.invoices.Get(r.Context(), id, s.today())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": invoice})
}

func (s *Server) handleInvoiceSummary(w http.ResponseWriter, r *http.Request) {
	year := s.now().Year()
	if q := r.URL.Query().Get("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "validation_failed", "year must be a number")
			return
		}
		year = y
	}

	summary, err := s.invoices.Summary(r.Context(), year, s.today())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
