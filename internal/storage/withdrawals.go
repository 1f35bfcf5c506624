package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/heli-gil/sunny/internal/core"
)

const withdrawalColumns = `id, partner_id, amount, date, method, notes, created_by,
	created_at, updated_at, deleted_at`

func (r *Repository) CreateWithdrawal(ctx context.Context, w core.Withdrawal) (core.Withdrawal, error) {
	ts := now()
	w.CreatedAt = parseTime(ts)
	w.UpdatedAt = w.CreatedAt

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO withdrawals (id, partner_id, amount, date, method, notes, created_by,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.PartnerID, w.Amount.String(), w.Date.String(), string(w.Method),
		nullStr(w.Notes), nullStr(w.CreatedBy), ts, ts)
	if err != nil {
		return core.Withdrawal{}, fmt.Errorf("insert withdrawal: %w", err)
	}
	return w, nil
}

func (r *Repository) GetWithdrawal(ctx context.Context, id string) (core.Withdrawal, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = ?`, id)
	w, err := scanWithdrawal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Withdrawal{}, fmt.Errorf("withdrawal %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Withdrawal{}, fmt.Errorf("get withdrawal: %w", err)
	}
	return w, nil
}

// ListWithdrawals returns non-deleted withdrawals, optionally limited to a
// year and/or a partner.
func (r *Repository) ListWithdrawals(ctx context.Context, year int, partnerID string) ([]core.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE deleted_at IS NULL`
	var args []any

	if year != 0 {
		start, end := core.YearRange(year)
		query += ` AND date >= ? AND date <= ?`
		args = append(args, start.String(), end.String())
	}
	if partnerID != "" {
		query += ` AND partner_id = ?`
		args = append(args, partnerID)
	}
	query += ` ORDER BY date DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list withdrawals: %w", err)
	}
	defer rows.Close()

	var withdrawals []core.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

func (r *Repository) SoftDeleteWithdrawal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE withdrawals SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now(), now(), id)
	if err != nil {
		return fmt.Errorf("soft delete withdrawal: %w", err)
	}
	return requireRow(res, id)
}

func scanWithdrawal(row rowScanner) (core.Withdrawal, error) {
	var (
		w                    core.Withdrawal
		amount, date, method string
		createdAt, updatedAt string
		notes, createdBy     sql.NullString
		deletedAt            sql.NullString
	)
	err := row.Scan(&w.ID, &w.PartnerID, &amount, &date, &method, &notes, &createdBy,
		&createdAt, &updatedAt, &deletedAt)
	if err != nil {
		return core.Withdrawal{}, err
	}

	w.Amount = parseDecimal(amount)
	w.Date = mustDate(date)
	w.Method = core.WithdrawalMethod(method)
	w.Notes = strPtr(notes)
	w.CreatedBy = strPtr(createdBy)
	w.CreatedAt = parseTime(createdAt)
	w.UpdatedAt = parseTime(updatedAt)
	w.DeletedAt = timePtr(deletedAt)
	return w, nil
}
