package port

import (
	"context"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

type LedgerRepository interface {
	// Stock returns the quantity on hand for material, 0 if it was never seen.
	Stock(ctx context.Context, material string) (int, error)

	// CommitInflow adds entry.Quantity to the material's stock and appends the
	// entry in one atomic unit. Returns the stored entry and the new quantity.
	CommitInflow(ctx context.Context, entry domain.InflowEntry) (domain.InflowEntry, int, error)

	// CommitOutflow subtracts entry.Quantity and appends the entry in one atomic
	// unit. Returns domain.ErrInsufficientStock, with nothing written, when the
	// stock on hand is lower than the requested quantity.
	CommitOutflow(ctx context.Context, entry domain.OutflowEntry) (domain.OutflowEntry, int, error)

	ListInflows(ctx context.Context) ([]domain.InflowEntry, error)
	ListOutflows(ctx context.Context) ([]domain.OutflowEntry, error)
	CurrentStock(ctx context.Context) ([]domain.StockRecord, error)

	// RemoveStockRecord drops an aggregate row by id. Administrative only; the
	// ledger never calls it.
	RemoveStockRecord(ctx context.Context, id int64) error
}
