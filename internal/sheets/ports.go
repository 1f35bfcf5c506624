package sheets

import (
	"context"

	"github.com/heli-gil/sunny/internal/core"
)

// EntryWriter appends one ledger entry to the accountant's spreadsheet.
// Appending the same entry ID twice replaces the earlier row.
type EntryWriter interface {
	AppendEntry(ctx context.Context, e core.Expense) error
}

// EntryDeleter removes an entry's row by its ID.
type EntryDeleter interface {
	DeleteEntry(ctx context.Context, id string) error
}
