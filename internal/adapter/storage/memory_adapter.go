package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

var _ port.Store = (*MemoryAdapter)(nil)

// stockRow serialises every movement of one material. Logs are appended while
// mu is held, so the row and its entries always change together.
type stockRow struct {
	mu      sync.Mutex
	rec     domain.StockRecord
	removed bool
}

// MemoryAdapter keeps the catalog, the aggregate and both logs in process
// memory. Locking is per material for commits.
type MemoryAdapter struct {
	catalogMu sync.RWMutex
	materials map[int64]domain.Material
	persons   map[int64]domain.Person
	nextMatID int64
	nextPerID int64

	stockMu     sync.RWMutex
	stock       map[string]*stockRow
	nextStockID int64

	logMu     sync.RWMutex
	inflows   []domain.InflowEntry
	outflows  []domain.OutflowEntry
	nextInID  int64
	nextOutID int64

	now func() time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		materials: make(map[int64]domain.Material),
		persons:   make(map[int64]domain.Person),
		stock:     make(map[string]*stockRow),
		now:       time.Now,
	}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error { return ctx.Err() }

func (m *MemoryAdapter) Close() error { return nil }

func (m *MemoryAdapter) ResolveMaterialName(ctx context.Context, id int64) (string, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	mat, ok := m.materials[id]
	if !ok {
		return "", fmt.Errorf("material %d: %w", id, domain.ErrMaterialNotFound)
	}
	return mat.Name, nil
}

func (m *MemoryAdapter) ResolvePersonName(ctx context.Context, id int64) (string, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	p, ok := m.persons[id]
	if !ok {
		return "", fmt.Errorf("person %d: %w", id, domain.ErrPersonNotFound)
	}
	return p.Name, nil
}

func (m *MemoryAdapter) CreateMaterial(ctx context.Context, name string) (domain.Material, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	for _, mat := range m.materials {
		if mat.Name == name {
			return domain.Material{}, fmt.Errorf("material %q: %w", name, domain.ErrDuplicateName)
		}
	}
	m.nextMatID++
	mat := domain.Material{ID: m.nextMatID, Name: name}
	m.materials[mat.ID] = mat
	return mat, nil
}

func (m *MemoryAdapter) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	out := make([]domain.Material, 0, len(m.materials))
	for _, mat := range m.materials {
		out = append(out, mat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) DeleteMaterial(ctx context.Context, id int64) error {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	if _, ok := m.materials[id]; !ok {
		return fmt.Errorf("material %d: %w", id, domain.ErrMaterialNotFound)
	}
	delete(m.materials, id)
	return nil
}

func (m *MemoryAdapter) CreatePerson(ctx context.Context, name string) (domain.Person, error) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	for _, p := range m.persons {
		if p.Name == name {
			return domain.Person{}, fmt.Errorf("person %q: %w", name, domain.ErrDuplicateName)
		}
	}
	m.nextPerID++
	p := domain.Person{ID: m.nextPerID, Name: name}
	m.persons[p.ID] = p
	return p, nil
}

func (m *MemoryAdapter) ListPersons(ctx context.Context) ([]domain.Person, error) {
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	out := make([]domain.Person, 0, len(m.persons))
	for _, p := range m.persons {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) DeletePerson(ctx context.Context, id int64) error {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	if _, ok := m.persons[id]; !ok {
		return fmt.Errorf("person %d: %w", id, domain.ErrPersonNotFound)
	}
	delete(m.persons, id)
	return nil
}

func (m *MemoryAdapter) Stock(ctx context.Context, material string) (int, error) {
	m.stockMu.RLock()
	row := m.stock[material]
	m.stockMu.RUnlock()
	if row == nil {
		return 0, nil
	}

	row.mu.Lock()
	defer row.mu.Unlock()
	if row.removed {
		return 0, nil
	}
	return row.rec.Quantity, nil
}

// lockRow returns the locked row for material, creating it when create is
// set. A nil row means the material has no stock record.
func (m *MemoryAdapter) lockRow(material string, create bool) *stockRow {
	for {
		m.stockMu.RLock()
		row := m.stock[material]
		m.stockMu.RUnlock()

		if row == nil {
			if !create {
				return nil
			}
			m.stockMu.Lock()
			if row = m.stock[material]; row == nil {
				m.nextStockID++
				row = &stockRow{rec: domain.StockRecord{ID: m.nextStockID, Material: material}}
				m.stock[material] = row
			}
			m.stockMu.Unlock()
		}

		row.mu.Lock()
		if !row.removed {
			return row
		}
		row.mu.Unlock()
	}
}

func (m *MemoryAdapter) CommitInflow(ctx context.Context, entry domain.InflowEntry) (domain.InflowEntry, int, error) {
	if err := ctx.Err(); err != nil {
		return domain.InflowEntry{}, 0, err
	}

	row := m.lockRow(entry.Material, true)
	if row.rec.Quantity > domain.MaxQuantity-entry.Quantity {
		qty := row.rec.Quantity
		m.discardRow(row)
		return domain.InflowEntry{}, qty, domain.ErrStockLimit
	}
	defer row.mu.Unlock()

	m.logMu.Lock()
	m.nextInID++
	entry.ID = m.nextInID
	m.inflows = append(m.inflows, entry)
	m.logMu.Unlock()

	row.rec.Quantity += entry.Quantity
	row.rec.Version++
	row.rec.UpdatedAt = m.now()

	return entry, row.rec.Quantity, nil
}

// discardRow unlocks row, dropping it first when no movement ever reached it.
// stockMu is taken only after row.mu is released to keep the stockMu then
// row.mu order used by RemoveStockRecord.
func (m *MemoryAdapter) discardRow(row *stockRow) {
	fresh := row.rec.Version == 0
	if fresh {
		row.removed = true
	}
	row.mu.Unlock()
	if !fresh {
		return
	}

	m.stockMu.Lock()
	if m.stock[row.rec.Material] == row {
		delete(m.stock, row.rec.Material)
	}
	m.stockMu.Unlock()
}

func (m *MemoryAdapter) CommitOutflow(ctx context.Context, entry domain.OutflowEntry) (domain.OutflowEntry, int, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutflowEntry{}, 0, err
	}

	row := m.lockRow(entry.Material, false)
	if row == nil {
		return domain.OutflowEntry{}, 0, domain.ErrInsufficientStock
	}
	defer row.mu.Unlock()

	if row.rec.Quantity < entry.Quantity {
		return domain.OutflowEntry{}, row.rec.Quantity, domain.ErrInsufficientStock
	}

	m.logMu.Lock()
	m.nextOutID++
	entry.ID = m.nextOutID
	m.outflows = append(m.outflows, entry)
	m.logMu.Unlock()

	row.rec.Quantity -= entry.Quantity
	row.rec.Version++
	row.rec.UpdatedAt = m.now()

	return entry, row.rec.Quantity, nil
}

func (m *MemoryAdapter) ListInflows(ctx context.Context) ([]domain.InflowEntry, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()
	return append([]domain.InflowEntry(nil), m.inflows...), nil
}

func (m *MemoryAdapter) ListOutflows(ctx context.Context) ([]domain.OutflowEntry, error) {
	m.logMu.RLock()
	defer m.logMu.RUnlock()
	return append([]domain.OutflowEntry(nil), m.outflows...), nil
}

func (m *MemoryAdapter) CurrentStock(ctx context.Context) ([]domain.StockRecord, error) {
	m.stockMu.RLock()
	rows := make([]*stockRow, 0, len(m.stock))
	for _, row := range m.stock {
		rows = append(rows, row)
	}
	m.stockMu.RUnlock()

	out := make([]domain.StockRecord, 0, len(rows))
	for _, row := range rows {
		row.mu.Lock()
		if !row.removed {
			out = append(out, row.rec)
		}
		row.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryAdapter) RemoveStockRecord(ctx context.Context, id int64) error {
	m.stockMu.Lock()
	defer m.stockMu.Unlock()

	for name, row := range m.stock {
		if row.rec.ID != id {
			continue
		}
		row.mu.Lock()
		row.removed = true
		row.mu.Unlock()
		delete(m.stock, name)
		return nil
	}
	return fmt.Errorf("stock record %d: %w", id, domain.ErrStockRecordNotFound)
}
