package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/heli-gil/sunny/internal/core"
)

// Reference data: partners, accounts, categories, clients, lines of business.

func (r *Repository) ListPartners(ctx context.Context) ([]core.Partner, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, icon_color, created_at, updated_at FROM partners ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list partners: %w", err)
	}
	defer rows.Close()

	var partners []core.Partner
	for rows.Next() {
		var p core.Partner
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.IconColor, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan partner: %w", err)
		}
		p.CreatedAt = parseTime(createdAt)
		p.UpdatedAt = parseTime(updatedAt)
		partners = append(partners, p)
	}
	return partners, rows.Err()
}

func (r *Repository) GetPartner(ctx context.Context, id string) (core.Partner, error) {
	var p core.Partner
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, icon_color, created_at, updated_at FROM partners WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Email, &p.IconColor, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Partner{}, fmt.Errorf("partner %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Partner{}, fmt.Errorf("get partner: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

// GetPartnerByEmail resolves the authenticated user to a partner for
// creator attribution. Missing is not an error at this layer.
func (r *Repository) GetPartnerByEmail(ctx context.Context, email string) (core.Partner, error) {
	var p core.Partner
	var createdAt, updatedAt string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, icon_color, created_at, updated_at FROM partners WHERE email = ?`, email).
		Scan(&p.ID, &p.Name, &p.Email, &p.IconColor, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Partner{}, fmt.Errorf("partner %s: %w", email, core.ErrNotFound)
	}
	if err != nil {
		return core.Partner{}, fmt.Errorf("get partner by email: %w", err)
	}
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return p, nil
}

func (r *Repository) UpsertPartner(ctx context.Context, p core.Partner) error {
	ts := now()
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO partners (id, name, email, icon_color, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (email) DO UPDATE SET name = excluded.name,
			icon_color = excluded.icon_color, updated_at = excluded.updated_at`,
		p.ID, p.Name, p.Email, p.IconColor, ts, ts)
	if err != nil {
		return fmt.Errorf("upsert partner: %w", err)
	}
	return nil
}

func (r *Repository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	ts := now()
	a.CreatedAt = parseTime(ts)
	a.UpdatedAt = a.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, type, partner_id, icon, icon_color, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, string(a.Type), nullStr(a.PartnerID), a.Icon, a.IconColor, a.IsActive, ts, ts)
	if err != nil {
		return core.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return a, nil
}

func (r *Repository) ListAccounts(ctx context.Context, activeOnly bool) ([]core.Account, error) {
	query := `SELECT id, name, type, partner_id, icon, icon_color, is_active, created_at, updated_at
		FROM accounts`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY type, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []core.Account
	for rows.Next() {
		var a core.Account
		var accType, createdAt, updatedAt string
		var partnerID sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &accType, &partnerID, &a.Icon, &a.IconColor,
			&a.IsActive, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		a.Type = core.AccountType(accType)
		a.PartnerID = strPtr(partnerID)
		a.CreatedAt = parseTime(createdAt)
		a.UpdatedAt = parseTime(updatedAt)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *Repository) UpdateAccount(ctx context.Context, a core.Account) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE accounts SET name = ?, type = ?, partner_id = ?, icon = ?, icon_color = ?,
			is_active = ?, updated_at = ?
		WHERE id = ?`,
		a.Name, string(a.Type), nullStr(a.PartnerID), a.Icon, a.IconColor, a.IsActive, now(), a.ID)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return requireRow(res, a.ID)
}

func (r *Repository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	ts := now()
	c.CreatedAt = parseTime(ts)
	c.UpdatedAt = c.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (id, name, parent_category, tax_recognition_percent, description,
			is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, string(c.ParentCategory), c.TaxRecognitionPct.String(),
		nullStr(c.Description), c.IsActive, ts, ts)
	if err != nil {
		return core.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

func (r *Repository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	var c core.Category
	var parent, taxPct, createdAt, updatedAt string
	var description sql.NullString
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, parent_category, tax_recognition_percent, description, is_active,
			created_at, updated_at
		FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &parent, &taxPct, &description, &c.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	c.ParentCategory = core.ParentCategory(parent)
	c.TaxRecognitionPct = parseDecimal(taxPct)
	c.Description = strPtr(description)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return c, nil
}

func (r *Repository) ListCategories(ctx context.Context, activeOnly bool) ([]core.Category, error) {
	query := `SELECT id, name, parent_category, tax_recognition_percent, description, is_active,
		created_at, updated_at FROM categories`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY parent_category, name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var c core.Category
		var parent, taxPct, createdAt, updatedAt string
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &parent, &taxPct, &description, &c.IsActive,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ParentCategory = core.ParentCategory(parent)
		c.TaxRecognitionPct = parseDecimal(taxPct)
		c.Description = strPtr(description)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (r *Repository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE categories SET name = ?, parent_category = ?, tax_recognition_percent = ?,
			description = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, string(c.ParentCategory), c.TaxRecognitionPct.String(),
		nullStr(c.Description), c.IsActive, now(), c.ID)
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return requireRow(res, c.ID)
}

func (r *Repository) CreateClient(ctx context.Context, c core.Client) (core.Client, error) {
	ts := now()
	c.CreatedAt = parseTime(ts)
	c.UpdatedAt = c.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO clients (id, name, contact_info, lob_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, nullStr(c.ContactInfo), nullStr(c.LobID), string(c.Status), ts, ts)
	if err != nil {
		return core.Client{}, fmt.Errorf("insert client: %w", err)
	}
	return c, nil
}

func (r *Repository) ListClients(ctx context.Context) ([]core.Client, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, contact_info, lob_id, status, created_at, updated_at
		FROM clients ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	defer rows.Close()

	var clients []core.Client
	for rows.Next() {
		var c core.Client
		var status, createdAt, updatedAt string
		var contactInfo, lobID sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &contactInfo, &lobID, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan client: %w", err)
		}
		c.ContactInfo = strPtr(contactInfo)
		c.LobID = strPtr(lobID)
		c.Status = core.ClientStatus(status)
		c.CreatedAt = parseTime(createdAt)
		c.UpdatedAt = parseTime(updatedAt)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

func (r *Repository) UpdateClient(ctx context.Context, c core.Client) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE clients SET name = ?, contact_info = ?, lob_id = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		c.Name, nullStr(c.ContactInfo), nullStr(c.LobID), string(c.Status), now(), c.ID)
	if err != nil {
		return fmt.Errorf("update client: %w", err)
	}
	return requireRow(res, c.ID)
}

// ClientStats aggregates a client's non-deleted invoices. Outstanding counts
// everything not yet Paid; Overdue is a read-time refinement of Sent, so the
// stored status is sufficient here.
func (r *Repository) ClientStats(ctx context.Context, clientID string) (core.ClientStats, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT amount_ils, status FROM invoices WHERE client_id = ? AND deleted_at IS NULL`,
		clientID)
	if err != nil {
		return core.ClientStats{}, fmt.Errorf("client stats: %w", err)
	}
	defer rows.Close()

	var stats core.ClientStats
	for rows.Next() {
		var amountILS, status string
		if err := rows.Scan(&amountILS, &status); err != nil {
			return core.ClientStats{}, fmt.Errorf("scan client stat row: %w", err)
		}
		amount := parseDecimal(amountILS)
		stats.InvoiceCount++
		stats.TotalInvoiced = stats.TotalInvoiced.Add(amount)
		if core.InvoiceStatus(status) == core.StatusPaid {
			stats.TotalPaid = stats.TotalPaid.Add(amount)
		} else {
			stats.TotalOutstanding = stats.TotalOutstanding.Add(amount)
		}
	}
	return stats, rows.Err()
}

func (r *Repository) CreateLineOfBusiness(ctx context.Context, lob core.LineOfBusiness) (core.LineOfBusiness, error) {
	ts := now()
	lob.CreatedAt = parseTime(ts)
	lob.UpdatedAt = lob.CreatedAt
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lines_of_business (id, name, icon, icon_color, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		lob.ID, lob.Name, lob.Icon, lob.IconColor, lob.IsActive, ts, ts)
	if err != nil {
		return core.LineOfBusiness{}, fmt.Errorf("insert line of business: %w", err)
	}
	return lob, nil
}

func (r *Repository) ListLinesOfBusiness(ctx context.Context, activeOnly bool) ([]core.LineOfBusiness, error) {
	query := `SELECT id, name, icon, icon_color, is_active, created_at, updated_at
		FROM lines_of_business`
	if activeOnly {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list lines of business: %w", err)
	}
	defer rows.Close()

	var lobs []core.LineOfBusiness
	for rows.Next() {
		var lob core.LineOfBusiness
		var createdAt, updatedAt string
		if err := rows.Scan(&lob.ID, &lob.Name, &lob.Icon, &lob.IconColor, &lob.IsActive,
			&createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan line of business: %w", err)
		}
		lob.CreatedAt = parseTime(createdAt)
		lob.UpdatedAt = parseTime(updatedAt)
		lobs = append(lobs, lob)
	}
	return lobs, rows.Err()
}

func (r *Repository) UpdateLineOfBusiness(ctx context.Context, lob core.LineOfBusiness) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE lines_of_business SET name = ?, icon = ?, icon_color = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		lob.Name, lob.Icon, lob.IconColor, lob.IsActive, now(), lob.ID)
	if err != nil {
		return fmt.Errorf("update line of business: %w", err)
	}
	return requireRow(res, lob.ID)
}
