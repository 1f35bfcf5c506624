package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/heli-gil/sunny/internal/config"
	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/log"
	"github.com/heli-gil/sunny/internal/services"
	"github.com/heli-gil/sunny/internal/storage"
)

type Server struct {
	cfg       *config.Config
	repo      *storage.Repository
	expenses  *services.ExpenseService
	recurring *services.RecurringService
	processor *services.RecurringProcessor
	invoices  *services.InvoiceService
	balance   *services.BalanceService
	logger    *log.Logger

	// now is injectable so handler tests can pin the calendar day.
	now func() time.Time
}

func NewServer(
	cfg *config.Config,
	repo *storage.Repository,
	expenses *services.ExpenseService,
	recurring *services.RecurringService,
	processor *services.RecurringProcessor,
	invoices *services.InvoiceService,
	balance *services.BalanceService,
	logger *log.Logger,
) *Server {
	return &Server{
		cfg:       cfg,
		repo:      repo,
		expenses:  expenses,
		recurring: recurring,
		processor: processor,
		invoices:  invoices,
		balance:   balance,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *Server) today() core.Date {
	return core.Today(s.now())
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(log.RequestLogger(s.logger.WithComponent("http")))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(securityHeaders)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.With(requireCronSecret(s.cfg.CronSecret)).
			Post("/cron/process-recurring", s.handleProcessRecurring)

		r.Group(func(r chi.Router) {
			r.Use(requireUser(s.cfg))

			r.Route("/expenses", func(r chi.Router) {
				r.Get("/", s.handleListExpenses)
				r.Post("/", s.handleCreateExpense)
				r.Get("/years", s.handleExpenseYears)
				r.Put("/{id}", s.handleUpdateExpense)
				r.Delete("/{id}", s.handleDeleteExpense)
			})

			r.Route("/recurring", func(r chi.Router) {
				r.Get("/", s.handleListRecurring)
				r.Post("/", s.handleCreateRecurring)
				r.Patch("/{id}", s.handlePatchRecurring)
				r.Delete("/{id}", s.handleDeleteRecurring)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Get("/", s.handleListInvoices)
				r.Post("/", s.handleCreateInvoice)
				r.Put("/{id}", s.handleUpdateInvoice)
				r.Delete("/{id}", s.handleDeleteInvoice)
				r.Post("/{id}/mark-paid", s.handleMarkInvoicePaid)
			})

			r.Route("/clients", func(r chi.Router) {
				r.Get("/", s.handleListClients)
				r.Post("/", s.handleCreateClient)
				r.Put("/{id}", s.handleUpdateClient)
			})

			r.Route("/accounts", func(r chi.Router) {
				r.Get("/", s.handleListAccounts)
				r.Post("/", s.handleCreateAccount)
				r.Put("/{id}", s.handleUpdateAccount)
			})

			r.Route("/categories", func(r chi.Router) {
				r.Get("/", s.handleListCategories)
				r.Post("/", s.handleCreateCategory)
				r.Put("/{id}", s.handleUpdateCategory)
			})

			r.Route("/lines-of-business", func(r chi.Router) {
				r.Get("/", s.handleListLinesOfBusiness)
				r.Post("/", s.handleCreateLineOfBusiness)
				r.Put("/{id}", s.handleUpdateLineOfBusiness)
			})

			r.Route("/partners", func(r chi.Router) {
				r.Get("/", s.handleListPartners)
				r.Get("/{id}/balance", s.handlePartnerBalance)
			})

			r.Route("/withdrawals", func(r chi.Router) {
				r.Get("/", s.handleListWithdrawals)
				r.Post("/", s.handleCreateWithdrawal)
				r.Delete("/{id}", s.handleDeleteWithdrawal)
			})

			r.Get("/analytics/category-totals", s.handleCategoryTotals)
			r.Get("/invoices-summary", s.handleInvoiceSummary)
		})
	})

	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "database unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// creator resolves the authenticated email to a partner ID for created_by
// attribution. Unresolvable emails stay nil; attribution is informational.
func (s *Server) creator(r *http.Request) *string {
	email := userEmail(r.Context())
	if email == "" {
		return nil
	}
	partner, err := s.repo.GetPartnerByEmail(r.Context(), email)
	if err != nil {
		return nil
	}
	id := partner.ID
	return &id
}
