package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/heli-gil/sunny/internal/core"
)

const expenseColumns = `id, date, supplier_name, amount, currency, exchange_rate_to_ils, amount_ils,
	category_id, account_id, beneficiary_partner_id, applied_tax_percent, client_id, invoice_url,
	notes, recurring_expense_id, created_by, created_at, updated_at, deleted_at`

// ExpenseFilter narrows ListExpenses. Zero values mean "no filter".
type ExpenseFilter struct {
	Year          int
	Search        string
	CategoryID    string
	BeneficiaryID string // "Business" selects entries with no beneficiary partner
}

func (r *Repository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	ts := now()
	e.CreatedAt = parseTime(ts)
	e.UpdatedAt = e.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (id, date, supplier_name, amount, currency, exchange_rate_to_ils,
			amount_ils, category_id, account_id, beneficiary_partner_id, applied_tax_percent,
			client_id, invoice_url, notes, recurring_expense_id, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Date.String(), e.SupplierName, e.Amount.String(), e.Currency,
		e.ExchangeRate.String(), e.AmountILS.String(), e.CategoryID, e.AccountID,
		nullStr(e.BeneficiaryID), e.AppliedTaxPercent.String(), nullStr(e.ClientID),
		nullStr(e.InvoiceURL), nullStr(e.Notes), nullStr(e.RecurringExpenseID),
		nullStr(e.CreatedBy), ts, ts)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	return e, nil
}

func (r *Repository) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses SET date = ?, supplier_name = ?, amount = ?, currency = ?,
			exchange_rate_to_ils = ?, amount_ils = ?, category_id = ?, account_id = ?,
			beneficiary_partner_id = ?, applied_tax_percent = ?, client_id = ?, invoice_url = ?,
			notes = ?, sync_status = 'pending', updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		e.Date.String(), e.SupplierName, e.Amount.String(), e.Currency,
		e.ExchangeRate.String(), e.AmountILS.String(), e.CategoryID, e.AccountID,
		nullStr(e.BeneficiaryID), e.AppliedTaxPercent.String(), nullStr(e.ClientID),
		nullStr(e.InvoiceURL), nullStr(e.Notes), now(), e.ID)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}
	return requireRow(res, e.ID)
}

func (r *Repository) SoftDeleteExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now(), now(), id)
	if err != nil {
		return fmt.Errorf("soft delete expense: %w", err)
	}
	return requireRow(res, id)
}

func (r *Repository) ListExpenses(ctx context.Context, filter ExpenseFilter) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE deleted_at IS NULL`
	var args []any

	if filter.Year != 0 {
		start, end := core.YearRange(filter.Year)
		query += ` AND date >= ? AND date <= ?`
		args = append(args, start.String(), end.String())
	}
	if filter.Search != "" {
		query += ` AND (supplier_name LIKE ? OR notes LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}
	if filter.CategoryID != "" {
		query += ` AND category_id = ?`
		args = append(args, filter.CategoryID)
	}
	if filter.BeneficiaryID != "" {
		if strings.EqualFold(filter.BeneficiaryID, "business") {
			query += ` AND beneficiary_partner_id IS NULL`
		} else {
			query += ` AND beneficiary_partner_id = ?`
			args = append(args, filter.BeneficiaryID)
		}
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	return collectExpenses(rows)
}

// ListExpensesByYear returns every non-deleted expense dated in the year,
// for balance and analytics folds.
func (r *Repository) ListExpensesByYear(ctx context.Context, year int) ([]core.Expense, error) {
	return r.ListExpenses(ctx, ExpenseFilter{Year: year})
}

// ExpenseYears lists the distinct years that have non-deleted entries.
func (r *Repository) ExpenseYears(ctx context.Context) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT CAST(substr(date, 1, 4) AS INTEGER) AS year
		FROM expenses WHERE deleted_at IS NULL ORDER BY year DESC`)
	if err != nil {
		return nil, fmt.Errorf("expense years: %w", err)
	}
	defer rows.Close()

	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("scan year: %w", err)
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// CategoryTotals sums ILS amounts per category for a year, excluding
// soft-deleted entries.
func (r *Repository) CategoryTotals(ctx context.Context, year int) ([]core.CategoryTotal, error) {
	start, end := core.YearRange(year)
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.parent_category, e.amount_ils
		FROM expenses e JOIN categories c ON c.id = e.category_id
		WHERE e.deleted_at IS NULL AND e.date >= ? AND e.date <= ?`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("category totals: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]*core.CategoryTotal)
	var order []string
	for rows.Next() {
		var id, name, parent, amount string
		if err := rows.Scan(&id, &name, &parent, &amount); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		t, ok := totals[id]
		if !ok {
			t = &core.CategoryTotal{CategoryID: id, CategoryName: name, Parent: core.ParentCategory(parent)}
			totals[id] = t
			order = append(order, id)
		}
		t.Total = t.Total.Add(parseDecimal(amount))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]core.CategoryTotal, 0, len(order))
	for _, id := range order {
		out = append(out, *totals[id])
	}
	return out, nil
}

// Sync-state transitions for the accountant-sheet export pipeline.

func (r *Repository) MarkSynced(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'synced', updated_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (r *Repository) MarkSyncError(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET sync_status = 'error', updated_at = ? WHERE id = ?`, now(), id)
	if err != nil {
		return fmt.Errorf("mark sync error: %w", err)
	}
	return nil
}

func (r *Repository) PendingSyncExpenses(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses
		 WHERE sync_status = 'pending' AND deleted_at IS NULL
		 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync expenses: %w", err)
	}
	defer rows.Close()

	return collectExpenses(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                              core.Expense
		date, amount, rate, amountILS  string
		taxPct, createdAt, updatedAt   string
		beneficiary, clientID, invURL  sql.NullString
		notes, recurringID, createdBy  sql.NullString
		deletedAt                      sql.NullString
	)
	err := row.Scan(&e.ID, &date, &e.SupplierName, &amount, &e.Currency, &rate, &amountILS,
		&e.CategoryID, &e.AccountID, &beneficiary, &taxPct, &clientID, &invURL,
		&notes, &recurringID, &createdBy, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return core.Expense{}, err
	}

	e.Date = mustDate(date)
	e.Amount = parseDecimal(amount)
	e.ExchangeRate = parseDecimal(rate)
	e.AmountILS = parseDecimal(amountILS)
	e.AppliedTaxPercent = parseDecimal(taxPct)
	e.BeneficiaryID = strPtr(beneficiary)
	e.ClientID = strPtr(clientID)
	e.InvoiceURL = strPtr(invURL)
	e.Notes = strPtr(notes)
	e.RecurringExpenseID = strPtr(recurringID)
	e.CreatedBy = strPtr(createdBy)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	e.DeletedAt = timePtr(deletedAt)
	return e, nil
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", id, core.ErrNotFound)
	}
	return nil
}
