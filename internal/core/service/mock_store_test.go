package service

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Mock store serving both catalog and ledger ports.
type mockStore struct {
	mu        sync.Mutex
	materials map[int64]string
	persons   map[int64]string
	stock     map[string]int
	stockIDs  map[string]int64
	inflows   []domain.InflowEntry
	outflows  []domain.OutflowEntry
	commitErr error
	commits   int
}

func newMockStore() *mockStore {
	return &mockStore{
		materials: make(map[int64]string),
		persons:   make(map[int64]string),
		stock:     make(map[string]int),
		stockIDs:  make(map[string]int64),
	}
}

func (m *mockStore) ResolveMaterialName(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.materials[id]
	if !ok {
		return "", fmt.Errorf("material %d: %w", id, domain.ErrMaterialNotFound)
	}
	return name, nil
}

func (m *mockStore) ResolvePersonName(ctx context.Context, id int64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.persons[id]
	if !ok {
		return "", fmt.Errorf("person %d: %w", id, domain.ErrPersonNotFound)
	}
	return name, nil
}

func (m *mockStore) CreateMaterial(ctx context.Context, name string) (domain.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.materials {
		if n == name {
			return domain.Material{}, domain.ErrDuplicateName
		}
	}
	id := int64(len(m.materials) + 1)
	m.materials[id] = name
	return domain.Material{ID: id, Name: name}, nil
}

func (m *mockStore) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Material{}
	for id, name := range m.materials {
		out = append(out, domain.Material{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) DeleteMaterial(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.materials[id]; !ok {
		return domain.ErrMaterialNotFound
	}
	delete(m.materials, id)
	return nil
}

func (m *mockStore) CreatePerson(ctx context.Context, name string) (domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := int64(len(m.persons) + 1)
	m.persons[id] = name
	return domain.Person{ID: id, Name: name}, nil
}

func (m *mockStore) ListPersons(ctx context.Context) ([]domain.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.Person{}
	for id, name := range m.persons {
		out = append(out, domain.Person{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) DeletePerson(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.persons[id]; !ok {
		return domain.ErrPersonNotFound
	}
	delete(m.persons, id)
	return nil
}

func (m *mockStore) Stock(ctx context.Context, material string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[material], nil
}

func (m *mockStore) CommitInflow(ctx context.Context, entry domain.InflowEntry) (domain.InflowEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	if m.commitErr != nil {
		return domain.InflowEntry{}, 0, m.commitErr
	}
	if _, ok := m.stockIDs[entry.Material]; !ok {
		m.stockIDs[entry.Material] = int64(len(m.stockIDs) + 1)
	}
	m.stock[entry.Material] += entry.Quantity
	entry.ID = int64(len(m.inflows) + 1)
	m.inflows = append(m.inflows, entry)
	return entry, m.stock[entry.Material], nil
}

func (m *mockStore) CommitOutflow(ctx context.Context, entry domain.OutflowEntry) (domain.OutflowEntry, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commits++
	if m.commitErr != nil {
		return domain.OutflowEntry{}, 0, m.commitErr
	}
	if m.stock[entry.Material] < entry.Quantity {
		return domain.OutflowEntry{}, m.stock[entry.Material], domain.ErrInsufficientStock
	}
	m.stock[entry.Material] -= entry.Quantity
	entry.ID = int64(len(m.outflows) + 1)
	m.outflows = append(m.outflows, entry)
	return entry, m.stock[entry.Material], nil
}

func (m *mockStore) ListInflows(ctx context.Context) ([]domain.InflowEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.InflowEntry(nil), m.inflows...), nil
}

func (m *mockStore) ListOutflows(ctx context.Context) ([]domain.OutflowEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OutflowEntry(nil), m.outflows...), nil
}

func (m *mockStore) CurrentStock(ctx context.Context) ([]domain.StockRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []domain.StockRecord{}
	for name, id := range m.stockIDs {
		out = append(out, domain.StockRecord{ID: id, Material: name, Quantity: m.stock[name]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) RemoveStockRecord(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, sid := range m.stockIDs {
		if sid == id {
			delete(m.stockIDs, name)
			delete(m.stock, name)
			return nil
		}
	}
	return domain.ErrStockRecordNotFound
}
