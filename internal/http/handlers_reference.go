package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/heli-gil/sunny/internal/core"
)

// Reference-data handlers talk to the repository directly; there is no
// derived state to compute beyond client stats.

func (s *Server) handleListPartners(w http.ResponseWriter, r *http.Request) {
	partners, err := s.repo.ListPartners(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
}

type clientRequest struct {
	Name        string             `json:"name"`
	ContactInfo *string            `json:"contact_info,omitempty"`
	LobID       *string            `json:"lob_id,omitempty"`
	Status      core.ClientStatus  `json:"status,omitempty"`
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := s.repo.ListClients(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	for i := range clients {
		stats, err := s.repo.ClientStats(r.Context(), clients[i].ID)
		if err != nil {
			respondError(w, r, err)
			return
		}
		clients[i].Stats = &stats
	}
	writeJSON(w, http.StatusOK, map[string]any{"clients": clients})
}

func (s *Server) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "name is required")
		return
	}
	status := req.Status
	if status == "" {
		status = core.ClientActive
	}

	client, err := s.repo.CreateClient(r.Context(), core.Client{
		ID:          uuid.NewString(),
		Name:        req.Name,
		ContactInfo: req.ContactInfo,
		LobID:       req.LobID,
		Status:      status,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"client": client})
}

func (s *Server) handleUpdateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "name is required")
		return
	}
	status := req.Status
	if status == "" {
		status = core.ClientActive
	}

	client := core.Client{
		ID:          chi.URLParam(r, "id"),
		Name:        req.Name,
		ContactInfo: req.ContactInfo,
		LobID:       req.LobID,
		Status:      status,
	}
	if err := s.repo.UpdateClient(r.Context(), client); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"client": client})
}

type accountRequest struct {
	Name      string           `json:"name"`
	Type      core.AccountType `json:"type"`
	PartnerID *string          `json:"partner_id,omitempty"`
	Icon      string           `json:"icon"`
	IconColor string           `json:"icon_color"`
	IsActive  *bool            `json:"is_active,omitempty"`
}

func (req accountRequest) account(id string) core.Account {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.Account{
		ID:        id,
		Name:      req.Name,
		Type:      req.Type,
		PartnerID: req.PartnerID,
		Icon:      req.Icon,
		IconColor: req.IconColor,
		IsActive:  active,
	}
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	accounts, err := s.repo.ListAccounts(r.Context(), activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": accounts})
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	account := req.account(uuid.NewString())
	if err := account.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.repo.CreateAccount(r.Context(), account)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"account": created})
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	var req accountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	account := req.account(chi.URLParam(r, "id"))
	if err := account.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.repo.UpdateAccount(r.Context(), account); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"account": account})
}

type categoryRequest struct {
	Name              string              `json:"name"`
	ParentCategory    core.ParentCategory `json:"parent_category"`
	TaxRecognitionPct decimal.Decimal     `json:"tax_recognition_percent"`
	Description       *string             `json:"description,omitempty"`
	IsActive          *bool               `json:"is_active,omitempty"`
}

func (req categoryRequest) category(id string) core.Category {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.Category{
		ID:                id,
		Name:              req.Name,
		ParentCategory:    req.ParentCategory,
		TaxRecognitionPct: req.TaxRecognitionPct,
		Description:       req.Description,
		IsActive:          active,
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	categories, err := s.repo.ListCategories(r.Context(), activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	category := req.category(uuid.NewString())
	if err := category.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	created, err := s.repo.CreateCategory(r.Context(), category)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"category": created})
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	category := req.category(chi.URLParam(r, "id"))
	if err := category.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	if err := s.repo.UpdateCategory(r.Context(), category); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"category": category})
}

type lobRequest struct {
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	IconColor string `json:"icon_color"`
	IsActive  *bool  `json:"is_active,omitempty"`
}

func (req lobRequest) lob(id string) core.LineOfBusiness {
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return core.LineOfBusiness{
		ID:        id,
		Name:      req.Name,
		Icon:      req.Icon,
		IconColor: req.IconColor,
		IsActive:  active,
	}
}

func (s *Server) handleListLinesOfBusiness(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	lobs, err := s.repo.ListLinesOfBusiness(r.Context(), activeOnly)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lines_of_business": lobs})
}

func (s *Server) handleCreateLineOfBusiness(w http.ResponseWriter, r *http.Request) {
	var req lobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "name is required")
		return
	}

	created, err := s.repo.CreateLineOfBusiness(r.Context(), req.lob(uuid.NewString()))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"line_of_business": created})
}

func (s *Server) handleUpdateLineOfBusiness(w http.ResponseWriter, r *http.Request) {
	var req lobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_failed", "name is required")
		return
	}

	lob := req.lob(chi.URLParam(r, "id"))
	if err := s.repo.UpdateLineOfBusiness(r.Context(), lob); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"line_of_business": lob})
}
