package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// HomeCurrency is the reporting currency every foreign amount is normalized to.
const HomeCurrency = "ILS"

// DefaultVATRate is the Israeli VAT rate, stored as a fraction.
var DefaultVATRate = decimal.NewFromFloat(0.18)

const (
	StatusDraft   InvoiceStatus = "Draft"
	StatusSent    InvoiceStatus = "Sent"
	StatusOverdue InvoiceStatus = "Overdue"
	StatusPaid    InvoiceStatus = "Paid"
)

const (
	AccountBusinessCredit AccountType = "Business_Credit"
	AccountPrivateCredit  AccountType = "Private_Credit"
	AccountBankTransfer   AccountType = "Bank_Transfer"
)

const (
	ParentCOGS      ParentCategory = "COGS"
	ParentOPEX      ParentCategory = "OPEX"
	ParentMixed     ParentCategory = "Mixed"
	ParentFinancial ParentCategory = "Financial"
)

const (
	MethodBankTransfer WithdrawalMethod = "Bank_Transfer"
	MethodCash         WithdrawalMethod = "Cash"
	MethodCheck        WithdrawalMethod = "Check"
)

const (
	ClientActive   ClientStatus = "Active"
	ClientInactive ClientStatus = "Inactive"
)

type (
	InvoiceStatus    string
	AccountType      string
	ParentCategory   string
	WithdrawalMethod string
	ClientStatus     string
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrInvalidCurrency = errors.New("unsupported currency code")
	ErrInvalidDay      = errors.New("recurrence day must be between 1 and 31")
	ErrInvalidSplit    = errors.New("partner splits must sum to 1")
	ErrInvalidPercent  = errors.New("percent must be a fraction between 0 and 1")
	ErrEmptySupplier   = errors.New("supplier name is required")
	ErrEmptyInvoiceNo  = errors.New("invoice number is required")
	ErrMissingCategory = errors.New("category is required")
	ErrMissingAccount  = errors.New("account is required")
	ErrMissingClient   = errors.New("client is required")
	ErrMissingPartner  = errors.New("partner is required")
	ErrUnknownStatus   = errors.New("unknown invoice status")
	ErrUnknownMethod   = errors.New("unknown withdrawal method")
	ErrDateOrder       = errors.New("end date must not precede start date")
	ErrNotFound        = errors.New("not found")
)

// ValidationError wraps a field-level failure so the HTTP layer can map it
// to an unprocessable-entity response.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// SupportedCurrencies are the currency codes the business transacts in.
var SupportedCurrencies = map[string]struct{}{
	"ILS": {}, "USD": {}, "EUR": {}, "GBP": {},
	"CHF": {}, "CAD": {}, "AUD": {}, "JPY": {},
}

// Partner is one of the two business owners.
type Partner struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	IconColor string    `json:"icon_color"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account is a payment account expenses are drawn from.
type Account struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	PartnerID *string     `json:"partner_id,omitempty"`
	Icon      string      `json:"icon"`
	IconColor string      `json:"icon_color"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

func (a Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return invalid("name", errors.New("account name is required"))
	}
	switch a.Type {
	case AccountBusinessCredit, AccountPrivateCredit, AccountBankTransfer:
	default:
		return invalid("type", errors.New("unknown account type"))
	}
	return nil
}

// Category classifies expenses and carries the default tax recognition
// fraction applied to new entries.
type Category struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	ParentCategory    ParentCategory  `json:"parent_category"`
	TaxRecognitionPct decimal.Decimal `json:"tax_recognition_percent"`
	Description       *string         `json:"description,omitempty"`
	IsActive          bool            `json:"is_active"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (c Category) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", errors.New("category name is required"))
	}
	switch c.ParentCategory {
	case ParentCOGS, ParentOPEX, ParentMixed, ParentFinancial:
	default:
		return invalid("parent_category", errors.New("unknown parent category"))
	}
	if err := validateFraction(c.TaxRecognitionPct); err != nil {
		return invalid("tax_recognition_percent", err)
	}
	return nil
}

// LineOfBusiness groups clients by revenue stream.
type LineOfBusiness struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Icon      string    `json:"icon"`
	IconColor string    `json:"icon_color"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Client is an invoiced customer.
type Client struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	ContactInfo *string      `json:"contact_info,omitempty"`
	LobID       *string      `json:"lob_id,omitempty"`
	Status      ClientStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	Stats       *ClientStats `json:"stats,omitempty"`
}

// ClientStats are aggregates computed from the client's invoices.
type ClientStats struct {
	TotalInvoiced    decimal.Decimal `json:"total_invoiced"`
	TotalPaid        decimal.Decimal `json:"total_paid"`
	TotalOutstanding decimal.Decimal `json:"total_outstanding"`
	InvoiceCount     int             `json:"invoice_count"`
}

// Expense is a single dated outflow. AmountILS is snapshotted at creation
// time from Amount and ExchangeRate and is never recomputed afterwards.
type Expense struct {
	ID                 string          `json:"id"`
	Date               Date            `json:"date"`
	SupplierName       string          `json:"supplier_name"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	ExchangeRate       decimal.Decimal `json:"exchange_rate_to_ils"`
	AmountILS          decimal.Decimal `json:"amount_ils"`
	CategoryID         string          `json:"category_id"`
	AccountID          string          `json:"account_id"`
	BeneficiaryID      *string         `json:"beneficiary_partner_id,omitempty"` // nil means the business
	AppliedTaxPercent  decimal.Decimal `json:"applied_tax_percent"`
	ClientID           *string         `json:"client_id,omitempty"`
	InvoiceURL         *string         `json:"invoice_url,omitempty"`
	Notes              *string         `json:"notes,omitempty"`
	RecurringExpenseID *string         `json:"recurring_expense_id,omitempty"`
	CreatedBy          *string         `json:"created_by,omitempty"` // nil means system-generated
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          *time.Time      `json:"deleted_at,omitempty"`
}

func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	if strings.TrimSpace(e.SupplierName) == "" {
		return invalid("supplier_name", ErrEmptySupplier)
	}
	if !e.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if _, ok := SupportedCurrencies[e.Currency]; !ok {
		return invalid("currency", ErrInvalidCurrency)
	}
	if e.CategoryID == "" {
		return invalid("category_id", ErrMissingCategory)
	}
	if e.AccountID == "" {
		return invalid("account_id", ErrMissingAccount)
	}
	if err := validateFraction(e.AppliedTaxPercent); err != nil {
		return invalid("applied_tax_percent", err)
	}
	return nil
}

// RecurringExpense is a template that spawns one Expense per calendar month
// on RecurrenceDay. LastGenerated records the month already produced.
type RecurringExpense struct {
	ID                string          `json:"id"`
	SupplierName      string          `json:"supplier_name"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	CategoryID        string          `json:"category_id"`
	AccountID         string          `json:"account_id"`
	BeneficiaryID     *string         `json:"beneficiary_partner_id,omitempty"`
	AppliedTaxPercent decimal.Decimal `json:"applied_tax_percent"`
	Notes             *string         `json:"notes,omitempty"`
	RecurrenceDay     int             `json:"recurrence_day"`
	StartDate         Date            `json:"start_date"`
	EndDate           *Date           `json:"end_date,omitempty"`
	LastGenerated     YearMonth       `json:"last_generated"`
	IsActive          bool            `json:"is_active"`
	CreatedBy         *string         `json:"created_by,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
	DeletedAt         *time.Time      `json:"deleted_at,omitempty"`
}

func (re RecurringExpense) Validate() error {
	if strings.TrimSpace(re.SupplierName) == "" {
		return invalid("supplier_name", ErrEmptySupplier)
	}
	if !re.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if _, ok := SupportedCurrencies[re.Currency]; !ok {
		return invalid("currency", ErrInvalidCurrency)
	}
	if re.RecurrenceDay < 1 || re.RecurrenceDay > 31 {
		return invalid("recurrence_day", ErrInvalidDay)
	}
	if re.CategoryID == "" {
		return invalid("category_id", ErrMissingCategory)
	}
	if re.AccountID == "" {
		return invalid("account_id", ErrMissingAccount)
	}
	if err := re.StartDate.Validate(); err != nil {
		return invalid("start_date", err)
	}
	if re.EndDate != nil && re.EndDate.Before(re.StartDate) {
		return invalid("end_date", ErrDateOrder)
	}
	if err := validateFraction(re.AppliedTaxPercent); err != nil {
		return invalid("applied_tax_percent", err)
	}
	return nil
}

// PartnerSplit allocates a fraction of an invoice's proceeds to a partner.
type PartnerSplit struct {
	PartnerID string          `json:"partner_id"`
	Fraction  decimal.Decimal `json:"fraction"`
}

// Invoice is a dated inflow owed by a client. The stored status never holds
// Overdue; that state is derived at read time with EffectiveStatus.
type Invoice struct {
	ID            string          `json:"id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      string          `json:"client_id"`
	Description   *string         `json:"description,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	ExchangeRate  decimal.Decimal `json:"exchange_rate_to_ils"`
	AmountILS     decimal.Decimal `json:"amount_ils"`
	IncludesVAT   bool            `json:"includes_vat"`
	VATRate       decimal.Decimal `json:"vat_rate"`
	DateIssued    Date            `json:"date_issued"`
	DueDate       Date            `json:"due_date"`
	Status        InvoiceStatus   `json:"status"`
	DatePaid      *Date           `json:"date_paid,omitempty"`
	Splits        []PartnerSplit  `json:"splits"`
	InvoiceURL    *string         `json:"invoice_url,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	CreatedBy     *string         `json:"created_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

func (inv Invoice) Validate() error {
	if strings.TrimSpace(inv.InvoiceNumber) == "" {
		return invalid("invoice_number", ErrEmptyInvoiceNo)
	}
	if inv.ClientID == "" {
		return invalid("client_id", ErrMissingClient)
	}
	if !inv.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if _, ok := SupportedCurrencies[inv.Currency]; !ok {
		return invalid("currency", ErrInvalidCurrency)
	}
	switch inv.Status {
	case StatusDraft, StatusSent, StatusPaid:
	case StatusOverdue:
		return invalid("status", errors.New("overdue is derived, not stored"))
	default:
		return invalid("status", ErrUnknownStatus)
	}
	if err := inv.DateIssued.Validate(); err != nil {
		return invalid("date_issued", err)
	}
	if err := inv.DueDate.Validate(); err != nil {
		return invalid("due_date", err)
	}
	if err := validateFraction(inv.VATRate); err != nil {
		return invalid("vat_rate", err)
	}
	sum := decimal.Zero
	for _, s := range inv.Splits {
		if s.PartnerID == "" {
			return invalid("splits", ErrMissingPartner)
		}
		if err := validateFraction(s.Fraction); err != nil {
			return invalid("splits", err)
		}
		sum = sum.Add(s.Fraction)
	}
	if !sum.Equal(decimal.NewFromInt(1)) {
		return invalid("splits", ErrInvalidSplit)
	}
	return nil
}

// SplitFor returns the fraction of the invoice allocated to partnerID.
func (inv Invoice) SplitFor(partnerID string) decimal.Decimal {
	for _, s := range inv.Splits {
		if s.PartnerID == partnerID {
			return s.Fraction
		}
	}
	return decimal.Zero
}

// EffectiveStatus derives the invoice status as of today. A Sent invoice
// whose due date has passed reads as Overdue; nothing is written back.
func EffectiveStatus(inv Invoice, today Date) InvoiceStatus {
	if inv.Status == StatusSent && inv.DueDate.Before(today) {
		return StatusOverdue
	}
	return inv.Status
}

// Withdrawal is money a partner takes out of the business, in ILS.
type Withdrawal struct {
	ID        string           `json:"id"`
	PartnerID string           `json:"partner_id"`
	Amount    decimal.Decimal  `json:"amount"`
	Date      Date             `json:"date"`
	Method    WithdrawalMethod `json:"method"`
	Notes     *string          `json:"notes,omitempty"`
	CreatedBy *string          `json:"created_by,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	DeletedAt *time.Time       `json:"deleted_at,omitempty"`
}

func (w Withdrawal) Validate() error {
	if w.PartnerID == "" {
		return invalid("partner_id", ErrMissingPartner)
	}
	if !w.Amount.IsPositive() {
		return invalid("amount", ErrInvalidAmount)
	}
	if err := w.Date.Validate(); err != nil {
		return invalid("date", err)
	}
	switch w.Method {
	case MethodBankTransfer, MethodCash, MethodCheck:
	default:
		return invalid("method", ErrUnknownMethod)
	}
	return nil
}

func validateFraction(d decimal.Decimal) error {
	if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
		return ErrInvalidPercent
	}
	return nil
}
