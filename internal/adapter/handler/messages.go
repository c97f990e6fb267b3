package handler

import (
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Wire shapes shared by the HTTP routes and the JSON-coded gRPC service.

type RecordInflowRequest struct {
	MaterialID int64     `json:"material_id"`
	Quantity   int       `json:"quantity"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

type RecordInflowResponse struct {
	ID int64 `json:"id"`
}

type RecordOutflowRequest struct {
	MaterialID int64     `json:"material_id"`
	PersonID   int64     `json:"person_id"`
	Quantity   int       `json:"quantity"`
	Timestamp  time.Time `json:"timestamp,omitzero"`
}

type RecordOutflowResponse struct {
	Success bool `json:"success"`
}

type CurrentStockRequest struct{}

type CurrentStockResponse struct {
	Records []StockRecord `json:"records"`
}

type NameRequest struct {
	Name string `json:"name"`
}

type CatalogItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type InflowEntry struct {
	ID        int64     `json:"id"`
	Material  string    `json:"material"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

type OutflowEntry struct {
	ID        int64     `json:"id"`
	Material  string    `json:"material"`
	Quantity  int       `json:"quantity"`
	Recipient string    `json:"recipient"`
	Timestamp time.Time `json:"timestamp"`
}

type StockRecord struct {
	ID        int64     `json:"id"`
	Material  string    `json:"material"`
	Quantity  int       `json:"quantity"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toStockRecords(records []domain.StockRecord) []StockRecord {
	out := make([]StockRecord, len(records))
	for i, r := range records {
		out[i] = StockRecord{ID: r.ID, Material: r.Material, Quantity: r.Quantity, UpdatedAt: r.UpdatedAt}
	}
	return out
}

func toInflowEntries(entries []domain.InflowEntry) []InflowEntry {
	out := make([]InflowEntry, len(entries))
	for i, e := range entries {
		out[i] = InflowEntry{ID: e.ID, Material: e.Material, Quantity: e.Quantity, Timestamp: e.Timestamp}
	}
	return out
}

func toOutflowEntries(entries []domain.OutflowEntry) []OutflowEntry {
	out := make([]OutflowEntry, len(entries))
	for i, e := range entries {
		out[i] = OutflowEntry{ID: e.ID, Material: e.Material, Quantity: e.Quantity, Recipient: e.Recipient, Timestamp: e.Timestamp}
	}
	return out
}

func toMaterialItems(materials []domain.Material) []CatalogItem {
	out := make([]CatalogItem, len(materials))
	for i, m := range materials {
		out[i] = CatalogItem{ID: m.ID, Name: m.Name}
	}
	return out
}

func toPersonItems(persons []domain.Person) []CatalogItem {
	out := make([]CatalogItem, len(persons))
	for i, p := range persons {
		out[i] = CatalogItem{ID: p.ID, Name: p.Name}
	}
	return out
}
