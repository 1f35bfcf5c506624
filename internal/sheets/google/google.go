package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"github.com/heli-gil/sunny/internal/config"
	"github.com/heli-gil/sunny/internal/core"
	"github.com/heli-gil/sunny/internal/sheets"
)

// Client writes ledger entries to one sheet of the accountant's
// spreadsheet. Column A holds the entry ID so rewrites and deletes can
// locate their row.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

var (
	_ sheets.EntryWriter  = (*Client)(nil)
	_ sheets.EntryDeleter = (*Client)(nil)
)

func NewClient(ctx context.Context, cfg *config.Config) (*Client, error) {
	if err := cfg.ValidateSheets(); err != nil {
		return nil, err
	}

	clientJSON, err := readCredential(cfg.GoogleOAuthClientJSON, cfg.GoogleOAuthClientFile)
	if err != nil {
		return nil, fmt.Errorf("load OAuth client: %w", err)
	}
	tokenJSON, err := readCredential(cfg.GoogleOAuthTokenJSON, cfg.GoogleOAuthTokenFile)
	if err != nil {
		return nil, fmt.Errorf("load OAuth token: %w", err)
	}

	oauthCfg, err := googleoauth.ConfigFromJSON(clientJSON, gsheet.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse OAuth client: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenJSON, &token); err != nil {
		return nil, fmt.Errorf("parse OAuth token: %w", err)
	}

	svc, err := gsheet.NewService(ctx, goption.WithHTTPClient(oauthCfg.Client(ctx, &token)))
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.GoogleSpreadsheetID,
		sheetName:     cfg.GoogleSheetName,
	}, nil
}

func readCredential(inline, file string) ([]byte, error) {
	switch {
	case inline != "":
		return []byte(inline), nil
	case file != "":
		return os.ReadFile(file)
	default:
		return nil, errors.New("no credential configured")
	}
}

// AppendEntry upserts the entry's row. An existing row with the same ID is
// overwritten in place; otherwise a new row is appended.
func (c *Client) AppendEntry(ctx context.Context, e core.Expense) error {
	row := entryRow(e)

	rowIndex, err := c.findRow(ctx, e.ID)
	if err != nil {
		return err
	}

	values := &gsheet.ValueRange{Values: [][]any{row}}
	if rowIndex > 0 {
		writeRange := fmt.Sprintf("%s!A%d", c.sheetName, rowIndex)
		_, err = c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, values).
			ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("update sheet row: %w", err)
		}
		slog.InfoContext(ctx, "Rewrote ledger entry row", "id", e.ID, "row", rowIndex)
		return nil
	}

	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, c.sheetName+"!A:L", values).
		ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append sheet row: %w", err)
	}
	slog.InfoContext(ctx, "Appended ledger entry row", "id", e.ID)
	return nil
}

// DeleteEntry blanks the entry's row. Blanking instead of removing keeps
// every other entry's row index stable.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	rowIndex, err := c.findRow(ctx, id)
	if err != nil {
		return err
	}
	if rowIndex == 0 {
		slog.WarnContext(ctx, "Entry row not found for deletion", "id", id)
		return nil
	}

	clearRange := fmt.Sprintf("%s!A%d:L%d", c.sheetName, rowIndex, rowIndex)
	_, err = c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clear sheet row: %w", err)
	}
	slog.InfoContext(ctx, "Cleared ledger entry row", "id", id, "row", rowIndex)
	return nil
}

// findRow returns the 1-based row whose first cell equals id, or 0.
func (c *Client) findRow(ctx context.Context, id string) (int, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, c.sheetName+"!A:A").
		Context(ctx).Do()
	if err != nil {
		return 0, fmt.Errorf("read ID column: %w", err)
	}
	for i, row := range resp.Values {
		if len(row) > 0 {
			if cell, ok := row[0].(string); ok && cell == id {
				return i + 1, nil
			}
		}
	}
	return 0, nil
}

func entryRow(e core.Expense) []any {
	beneficiary := "Business"
	if e.BeneficiaryID != nil {
		beneficiary = *e.BeneficiaryID
	}
	notes := ""
	if e.Notes != nil {
		notes = *e.Notes
	}
	return []any{
		e.ID,
		e.Date.String(),
		e.SupplierName,
		e.Amount.String(),
		e.Currency,
		e.ExchangeRate.String(),
		e.AmountILS.String(),
		e.CategoryID,
		e.AccountID,
		beneficiary,
		e.AppliedTaxPercent.String(),
		notes,
	}
}
