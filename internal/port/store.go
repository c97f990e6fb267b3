package port

import "context"

// Store is the single storage handle opened at startup and closed at
// shutdown. Every backend serves both the catalog and the ledger.
type Store interface {
	CatalogRepository
	LedgerRepository

	Ping(ctx context.Context) error
	Close() error
}
