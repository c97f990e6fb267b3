package domain

import "time"

// MaxQuantity bounds a single movement and the stock on hand of a material.
// Every store represents it exactly, Redis numbers included.
const MaxQuantity = 1<<31 - 1

type MovementKind string

const (
	MovementInflow  MovementKind = "inflow"
	MovementOutflow MovementKind = "outflow"
)

// InflowEntry records stock received. Entries are immutable once committed.
type InflowEntry struct {
	ID        int64
	Material  string
	Quantity  int
	Timestamp time.Time
}

// OutflowEntry records stock handed to a person. Material and Recipient are
// name snapshots taken from the catalog at commit time.
type OutflowEntry struct {
	ID        int64
	Material  string
	Quantity  int
	Recipient string
	Timestamp time.Time
}
