package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/heli-gil/sunny/internal/core"
)

const invoiceColumns = `id, invoice_number, client_id, description, amount, currency,
	exchange_rate_to_ils, amount_ils, includes_vat, vat_rate, date_issued, due_date, status,
	date_paid, invoice_url, notes, created_by, created_at, updated_at, deleted_at`

// InvoiceFilter narrows ListInvoices. Status filtering happens in the
// service layer against effective statuses, not here.
type InvoiceFilter struct {
	Year     int
	ClientID string
}

func (r *Repository) CreateInvoice(ctx context.Context, inv core.Invoice) (core.Invoice, error) {
	ts := now()
	inv.CreatedAt = parseTime(ts)
	inv.UpdatedAt = inv.CreatedAt

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO invoices (id, invoice_number, client_id, description, amount, currency,
			exchange_rate_to_ils, amount_ils, includes_vat, vat_rate, date_issued, due_date,
			status, date_paid, invoice_url, notes, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.InvoiceNumber, inv.ClientID, nullStr(inv.Description), inv.Amount.String(),
		inv.Currency, inv.ExchangeRate.String(), inv.AmountILS.String(), inv.IncludesVAT,
		inv.VATRate.String(), inv.DateIssued.String(), inv.DueDate.String(), string(inv.Status),
		nullDate(inv.DatePaid), nullStr(inv.InvoiceURL), nullStr(inv.Notes),
		nullStr(inv.CreatedBy), ts, ts)
	if err != nil {
		return core.Invoice{}, fmt.Errorf("insert invoice: %w", err)
	}

	for _, s := range inv.Splits {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO invoice_splits (invoice_id, partner_id, fraction) VALUES (?, ?, ?)`,
			inv.ID, s.PartnerID, s.Fraction.String())
		if err != nil {
			return core.Invoice{}, fmt.Errorf("insert invoice split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return core.Invoice{}, fmt.Errorf("commit invoice: %w", err)
	}
	return inv, nil
}

func (r *Repository) GetInvoice(ctx context.Context, id string) (core.Invoice, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Invoice{}, fmt.Errorf("invoice %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Invoice{}, fmt.Errorf("get invoice: %w", err)
	}
	if err := r.attachSplits(ctx, []*core.Invoice{&inv}); err != nil {
		return core.Invoice{}, err
	}
	return inv, nil
}

func (r *Repository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]core.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE deleted_at IS NULL`
	var args []any

	if filter.Year != 0 {
		start, end := core.YearRange(filter.Year)
		query += ` AND date_issued >= ? AND date_issued <= ?`
		args = append(args, start.String(), end.String())
	}
	if filter.ClientID != "" {
		query += ` AND client_id = ?`
		args = append(args, filter.ClientID)
	}
	query += ` ORDER BY date_issued DESC, created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	var invoices []core.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*core.Invoice, len(invoices))
	for i := range invoices {
		ptrs[i] = &invoices[i]
	}
	if err := r.attachSplits(ctx, ptrs); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *Repository) UpdateInvoice(ctx context.Context, inv core.Invoice) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE invoices SET invoice_number = ?, client_id = ?, description = ?, amount = ?,
			currency = ?, exchange_rate_to_ils = ?, amount_ils = ?, includes_vat = ?,
			vat_rate = ?, date_issued = ?, due_date = ?, status = ?, date_paid = ?,
			invoice_url = ?, notes = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		inv.InvoiceNumber, inv.ClientID, nullStr(inv.Description), inv.Amount.String(),
		inv.Currency, inv.ExchangeRate.String(), inv.AmountILS.String(), inv.IncludesVAT,
		inv.VATRate.String(), inv.DateIssued.String(), inv.DueDate.String(), string(inv.Status),
		nullDate(inv.DatePaid), nullStr(inv.InvoiceURL), nullStr(inv.Notes), now(), inv.ID)
	if err != nil {
		return fmt.Errorf("update invoice: %w", err)
	}
	if err := requireRow(res, inv.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM invoice_splits WHERE invoice_id = ?`, inv.ID); err != nil {
		return fmt.Errorf("clear invoice splits: %w", err)
	}
	for _, s := range inv.Splits {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO invoice_splits (invoice_id, partner_id, fraction) VALUES (?, ?, ?)`,
			inv.ID, s.PartnerID, s.Fraction.String())
		if err != nil {
			return fmt.Errorf("insert invoice split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit invoice update: %w", err)
	}
	return nil
}

func (r *Repository) MarkInvoicePaid(ctx context.Context, id string, paidOn core.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = ?, date_paid = ?, updated_at = ?
		 WHERE id = ? AND deleted_at IS NULL`,
		string(core.StatusPaid), paidOn.String(), now(), id)
	if err != nil {
		return fmt.Errorf("mark invoice paid: %w", err)
	}
	return requireRow(res, id)
}

func (r *Repository) SoftDeleteInvoice(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL`,
		now(), now(), id)
	if err != nil {
		return fmt.Errorf("soft delete invoice: %w", err)
	}
	return requireRow(res, id)
}

func (r *Repository) attachSplits(ctx context.Context, invoices []*core.Invoice) error {
	if len(invoices) == 0 {
		return nil
	}
	byID := make(map[string]*core.Invoice, len(invoices))
	args := make([]any, 0, len(invoices))
	placeholders := ""
	for i, inv := range invoices {
		if i > 0 {
			placeholders += ","
		}
		placeholders += "?"
		args = append(args, inv.ID)
		byID[inv.ID] = inv
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT invoice_id, partner_id, fraction FROM invoice_splits
		 WHERE invoice_id IN (`+placeholders+`) ORDER BY partner_id`, args...)
	if err != nil {
		return fmt.Errorf("load invoice splits: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var invoiceID, partnerID, fraction string
		if err := rows.Scan(&invoiceID, &partnerID, &fraction); err != nil {
			return fmt.Errorf("scan invoice split: %w", err)
		}
		if inv, ok := byID[invoiceID]; ok {
			inv.Splits = append(inv.Splits, core.PartnerSplit{
				PartnerID: partnerID,
				Fraction:  parseDecimal(fraction),
			})
		}
	}
	return rows.Err()
}

func scanInvoice(row rowScanner) (core.Invoice, error) {
	var (
		inv                           core.Invoice
		amount, rate, amountILS       string
		vatRate, issued, due, status  string
		createdAt, updatedAt          string
		description, invURL, notes    sql.NullString
		datePaid, createdBy, deleted  sql.NullString
	)
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.ClientID, &description, &amount,
		&inv.Currency, &rate, &amountILS, &inv.IncludesVAT, &vatRate, &issued, &due,
		&status, &datePaid, &invURL, &notes, &createdBy, &createdAt, &updatedAt, &deleted)
	if err != nil {
		return core.Invoice{}, err
	}

	inv.Description = strPtr(description)
	inv.Amount = parseDecimal(amount)
	inv.ExchangeRate = parseDecimal(rate)
	inv.AmountILS = parseDecimal(amountILS)
	inv.VATRate = parseDecimal(vatRate)
	inv.DateIssued = mustDate(issued)
	inv.DueDate = mustDate(due)
	inv.Status = core.InvoiceStatus(status)
	inv.DatePaid = datePtr(datePaid)
	inv.InvoiceURL = strPtr(invURL)
	inv.Notes = strPtr(notes)
	inv.CreatedBy = strPtr(createdBy)
	inv.CreatedAt = parseTime(createdAt)
	inv.UpdatedAt = parseTime(updatedAt)
	inv.DeletedAt = timePtr(deleted)
	return inv, nil
}
