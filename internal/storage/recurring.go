package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/heli-gil/sunny/internal/core"
)

const recurringColumns = `id, supplier_name, amount, currency, category_id, account_id,
	beneficiary_partner_id, applied_tax_percent, notes, recurrence_day, start_date, end_date,
	last_generated, is_active, created_by, created_at, updated_at, deleted_at`

func (r *Repository) CreateRecurringExpense(ctx context.Context, re core.RecurringExpense) (core.RecurringExpense, error) {
	ts := now()
	re.CreatedAt = parseTime(ts)
	re.UpdatedAt = re.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recurring_expenses (id, supplier_name, amount, currency, category_id,
			account_id, beneficiary_partner_id, applied_tax_percent, notes, recurrence_day,
			start_date, end_date, last_generated, is_active, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		re.ID, re.SupplierName, re.Amount.String(), re.Currency, re.CategoryID,
		re.AccountID, nullStr(re.BeneficiaryID), re.AppliedTaxPercent.String(),
		nullStr(re.Notes), re.RecurrenceDay, re.StartDate.String(), nullDate(re.EndDate),
		re.LastGenerated.String(), re.IsActive, nullStr(re.CreatedBy), ts, ts)
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("insert recurring expense: %w", err)
	}
	return re, nil
}

func (r *Repository) GetRecurringExpense(ctx context.Context, id string) (core.RecurringExpense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses WHERE id = ?`, id)
	re, err := scanRecurring(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringExpense{}, fmt.Errorf("recurring expense %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.RecurringExpense{}, fmt.Errorf("get recurring expense: %w", err)
	}
	return re, nil
}

func (r *Repository) ListRecurringExpenses(ctx context.Context) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses
		 WHERE deleted_at IS NULL ORDER BY supplier_name`)
	if err != nil {
		return nil, fmt.Errorf("list recurring expenses: %w", err)
	}
	defer rows.Close()

	return collectRecurring(rows)
}

// DueRecurringExpenses selects active, non-deleted templates whose trigger
// day equals the given day-of-month. Window and month-marker checks are the
// processor's job; only the day match happens here.
func (r *Repository) DueRecurringExpenses(ctx context.Context, day int) ([]core.RecurringExpense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+recurringColumns+` FROM recurring_expenses
		 WHERE recurrence_day = ? AND is_active = 1 AND deleted_at IS NULL`, day)
	if err != nil {
		return nil, fmt.Errorf("due recurring expenses: %w", err)
	}
	defer rows.Close()

	return collectRecurring(rows)
}

// SetLastGenerated advances the template's generation marker.
func (r *Repository) SetLastGenerated(ctx context.Context, id string, ym core.YearMonth) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET last_generated = ?, updated_at = ? WHERE id = ?`,
		ym.String(), now(), id)
	if err != nil {
		return fmt.Errorf("set last generated: %w", err)
	}
	return requireRow(res, id)
}

func (r *Repository) SetRecurringActive(ctx context.Context, id string, active bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET is_active = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		active, now(), id)
	if err != nil {
		return fmt.Errorf("set recurring active: %w", err)
	}
	return requireRow(res, id)
}

func (r *Repository) UpdateRecurringExpense(ctx context.Context, re core.RecurringExpense) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recurring_expenses SET supplier_name = ?, amount = ?, currency = ?,
			category_id = ?, account_id = ?, beneficiary_partner_id = ?, applied_tax_percent = ?,
			notes = ?, recurrence_day = ?, start_date = ?, end_date = ?, is_active = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		re.SupplierName, re.Amount.String(), re.Currency, re.CategoryID, re.AccountID,
		nullStr(re.BeneficiaryID), re.AppliedTaxPercent.String(), nullStr(re.Notes),
		re.RecurrenceDay, re.StartDate.String(), nullDate(re.EndDate), re.IsActive, now(), re.ID)
	if err != nil {
		return fmt.Errorf("update recurring expense: %w", err)
	}
	return requireRow(res, re.ID)
}

func (r *Repository) SoftDeleteRecurringExpense(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE recurring_expenses SET deleted_at = ?, is_active = 0, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`, now(), now(), id)
	if err != nil {
		return fmt.Errorf("soft delete recurring expense: %w", err)
	}
	return requireRow(res, id)
}

func scanRecurring(row rowScanner) (core.RecurringExpense, error) {
	var (
		re                            core.RecurringExpense
		amount, taxPct, startDate     string
		lastGenerated                 string
		createdAt, updatedAt          string
		beneficiary, notes, createdBy sql.NullString
		endDate, deletedAt            sql.NullString
	)
	err := row.Scan(&re.ID, &re.SupplierName, &amount, &re.Currency, &re.CategoryID,
		&re.AccountID, &beneficiary, &taxPct, &notes, &re.RecurrenceDay, &startDate,
		&endDate, &lastGenerated, &re.IsActive, &createdBy, &createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return core.RecurringExpense{}, err
	}

	re.Amount = parseDecimal(amount)
	re.AppliedTaxPercent = parseDecimal(taxPct)
	re.StartDate = mustDate(startDate)
	re.EndDate = datePtr(endDate)
	re.LastGenerated, _ = core.ParseYearMonth(lastGenerated)
	re.BeneficiaryID = strPtr(beneficiary)
	re.Notes = strPtr(notes)
	re.CreatedBy = strPtr(createdBy)
	re.CreatedAt = parseTime(createdAt)
	re.UpdatedAt = parseTime(updatedAt)
	re.DeletedAt = timePtr(deletedAt)
	return re, nil
}

func collectRecurring(rows *sql.Rows) ([]core.RecurringExpense, error) {
	var templates []core.RecurringExpense
	for rows.Next() {
		re, err := scanRecurring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurring expense: %w", err)
		}
		templates = append(templates, re)
	}
	return templates, rows.Err()
}
