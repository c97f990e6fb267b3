package domain

import "time"

// StockRecord is the current quantity on hand for one material name.
// Rows are created by the first inflow of a name and only ever mutated by
// ledger commits.
type StockRecord struct {
	ID        int64
	Material  string
	Quantity  int
	Version   int // bumped on every committed movement
	UpdatedAt time.Time
}
