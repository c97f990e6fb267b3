package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/metrics"
	"github.com/rl1809/stock-ledger/internal/port"
)

// CatalogService manages the materials and persons that movements refer to,
// plus administrative removal of stock rows.
type CatalogService struct {
	catalog port.CatalogRepository
	ledger  port.LedgerRepository
	metrics *metrics.Metrics
}

func NewCatalogService(catalog port.CatalogRepository, ledger port.LedgerRepository, m *metrics.Metrics) *CatalogService {
	return &CatalogService{catalog: catalog, ledger: ledger, metrics: m}
}

func (s *CatalogService) CreateMaterial(ctx context.Context, name string) (domain.Material, error) {
	name = domain.NormalizeName(name)
	if name == "" {
		return domain.Material{}, fmt.Errorf("create material: %w", domain.ErrInvalidName)
	}

	mat, err := s.catalog.CreateMaterial(ctx, name)
	if err != nil {
		return domain.Material{}, fmt.Errorf("create material: %w", err)
	}
	slog.InfoContext(ctx, "material created", "material_id", mat.ID, "name", mat.Name)
	return mat, nil
}

func (s *CatalogService) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	return s.catalog.ListMaterials(ctx)
}

// DeleteMaterial removes the catalog entry only. Ledger entries and the stock
// row keep the name they were recorded with.
func (s *CatalogService) DeleteMaterial(ctx context.Context, id int64) error {
	if err := s.catalog.DeleteMaterial(ctx, id); err != nil {
		return fmt.Errorf("delete material: %w", err)
	}
	slog.InfoContext(ctx, "material deleted", "material_id", id)
	return nil
}

func (s *CatalogService) CreatePerson(ctx context.Context, name string) (domain.Person, error) {
	name = domain.NormalizeName(name)
	if name == "" {
		return domain.Person{}, fmt.Errorf("create person: %w", domain.ErrInvalidName)
	}

	p, err := s.catalog.CreatePerson(ctx, name)
	if err != nil {
		return domain.Person{}, fmt.Errorf("create person: %w", err)
	}
	slog.InfoContext(ctx, "person created", "person_id", p.ID, "name", p.Name)
	return p, nil
}

func (s *CatalogService) ListPersons(ctx context.Context) ([]domain.Person, error) {
	return s.catalog.ListPersons(ctx)
}

func (s *CatalogService) DeletePerson(ctx context.Context, id int64) error {
	if err := s.catalog.DeletePerson(ctx, id); err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	slog.InfoContext(ctx, "person deleted", "person_id", id)
	return nil
}

// RemoveStockRecord drops a row from the stock view. The movement logs are
// left as they are.
func (s *CatalogService) RemoveStockRecord(ctx context.Context, id int64) error {
	records, err := s.ledger.CurrentStock(ctx)
	if err != nil {
		return fmt.Errorf("remove stock record: %w", err)
	}
	if err := s.ledger.RemoveStockRecord(ctx, id); err != nil {
		return fmt.Errorf("remove stock record: %w", err)
	}
	for _, r := range records {
		if r.ID == id {
			s.metrics.ForgetStock(r.Material)
		}
	}
	slog.WarnContext(ctx, "stock record removed", "stock_id", id)
	return nil
}
