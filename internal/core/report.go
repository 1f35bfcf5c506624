package core

import "github.com/shopspring/decimal"

// PartnerBalanceBreakdown itemizes how a partner's net figure was reached.
type PartnerBalanceBreakdown struct {
	TotalCompanyIncome  decimal.Decimal `json:"total_company_income"`
	PartnerIncomeShare  decimal.Decimal `json:"partner_income_share"`
	TotalExpenses       decimal.Decimal `json:"total_expenses"`
	PartnerExpenseShare decimal.Decimal `json:"partner_expense_share"`
	BaseProfitShare     decimal.Decimal `json:"base_profit_share"`
	CompanyOwesPartner  decimal.Decimal `json:"company_owes_partner"`
	PartnerOwesCompany  decimal.Decimal `json:"partner_owes_company"`
	FairnessAdjustment  decimal.Decimal `json:"fairness_adjustment"`
	TotalWithdrawn      decimal.Decimal `json:"total_withdrawn"`
}

// PartnerBalance is the derived, never-persisted report for a (partner, year).
type PartnerBalance struct {
	PartnerID    string                  `json:"partner_id"`
	PartnerName  string                  `json:"partner_name"`
	Year         int                     `json:"year"`
	Breakdown    PartnerBalanceBreakdown `json:"breakdown"`
	NetAvailable decimal.Decimal         `json:"net_available"`
	Notes        []string                `json:"calculation_notes,omitempty"`
}

// CategoryTotal is an ILS amount aggregated per category.
type CategoryTotal struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Parent       ParentCategory  `json:"parent_category"`
	Total        decimal.Decimal `json:"total_ils"`
}

// InvoiceSummary aggregates a year's invoices using effective statuses.
type InvoiceSummary struct {
	TotalOutstanding decimal.Decimal       `json:"total_outstanding"`
	TotalOverdue     decimal.Decimal       `json:"total_overdue"`
	CountByStatus    map[InvoiceStatus]int `json:"count_by_status"`
}
