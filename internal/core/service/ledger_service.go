package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/metrics"
	"github.com/rl1809/stock-ledger/internal/port"
)

// LedgerService is the only writer of the stock aggregate. It resolves
// catalog ids to names, validates the request and hands the movement to the
// repository, which applies the stock delta and appends the entry atomically.
type LedgerService struct {
	catalog port.CatalogRepository
	ledger  port.LedgerRepository
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*LedgerService)

// WithClock sets the time source used for movements recorded without a
// timestamp.
func WithClock(now func() time.Time) Option {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(catalog port.CatalogRepository, ledger port.LedgerRepository, m *metrics.Metrics, opts ...Option) *LedgerService {
	s := &LedgerService{
		catalog: catalog,
		ledger:  ledger,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordInflow adds quantity units of the material to stock and returns the
// id of the new inflow entry. A zero timestamp is replaced by the current time.
func (s *LedgerService) RecordInflow(ctx context.Context, materialID int64, quantity int, ts time.Time) (int64, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return 0, s.reject(ctx, domain.MovementInflow, start, err, "material_id", materialID)
	}

	material, err := s.catalog.ResolveMaterialName(ctx, materialID)
	if err != nil {
		return 0, s.reject(ctx, domain.MovementInflow, start, err, "material_id", materialID)
	}
	if err := checkQuantity(quantity); err != nil {
		return 0, s.reject(ctx, domain.MovementInflow, start, err, "material", material)
	}
	if ts.IsZero() {
		ts = s.now()
	}

	entry, onHand, err := s.ledger.CommitInflow(ctx, domain.InflowEntry{
		Material:  material,
		Quantity:  quantity,
		Timestamp: ts,
	})
	if err != nil {
		return 0, s.reject(ctx, domain.MovementInflow, start, err, "material", material)
	}

	s.metrics.ObserveMovement(domain.MovementInflow, metrics.ResultOK, time.Since(start))
	s.metrics.SetStock(material, onHand)
	slog.InfoContext(ctx, "inflow recorded",
		"entry_id", entry.ID,
		"material", material,
		"quantity", quantity,
		"on_hand", onHand,
	)
	return entry.ID, nil
}

// RecordOutflow hands quantity units of the material to a person. The stock
// check and the decrement happen in the same atomic commit; when stock is
// short the call fails with domain.ErrInsufficientStock and nothing changes.
func (s *LedgerService) RecordOutflow(ctx context.Context, materialID, personID int64, quantity int, ts time.Time) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return s.reject(ctx, domain.MovementOutflow, start, err, "material_id", materialID)
	}

	material, err := s.catalog.ResolveMaterialName(ctx, materialID)
	if err != nil {
		return s.reject(ctx, domain.MovementOutflow, start, err, "material_id", materialID)
	}
	recipient, err := s.catalog.ResolvePersonName(ctx, personID)
	if err != nil {
		return s.reject(ctx, domain.MovementOutflow, start, err, "person_id", personID)
	}
	if err := checkQuantity(quantity); err != nil {
		return s.reject(ctx, domain.MovementOutflow, start, err, "material", material)
	}
	if ts.IsZero() {
		ts = s.now()
	}

	entry, onHand, err := s.ledger.CommitOutflow(ctx, domain.OutflowEntry{
		Material:  material,
		Quantity:  quantity,
		Recipient: recipient,
		Timestamp: ts,
	})
	if err != nil {
		return s.reject(ctx, domain.MovementOutflow, start,
			fmt.Errorf("%q x%d: %w", material, quantity, err), "material", material)
	}

	s.metrics.ObserveMovement(domain.MovementOutflow, metrics.ResultOK, time.Since(start))
	s.metrics.SetStock(material, onHand)
	slog.InfoContext(ctx, "outflow recorded",
		"entry_id", entry.ID,
		"material", material,
		"recipient", recipient,
		"quantity", quantity,
		"on_hand", onHand,
	)
	return nil
}

func (s *LedgerService) reject(ctx context.Context, kind domain.MovementKind, start time.Time, err error, args ...any) error {
	code := domain.ErrorCode(err)
	s.metrics.ObserveMovement(kind, code, time.Since(start))

	args = append(args, "kind", kind, "code", code, "error", err)
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		slog.WarnContext(ctx, "movement abandoned", args...)
	case code == domain.CodeStorageFailure || code == domain.CodeInternal:
		slog.ErrorContext(ctx, "movement failed", args...)
	default:
		slog.WarnContext(ctx, "movement rejected", args...)
	}
	return fmt.Errorf("record %s: %w", kind, err)
}

func checkQuantity(quantity int) error {
	if quantity <= 0 || quantity > domain.MaxQuantity {
		return fmt.Errorf("%w: got %d, want 1..%d", domain.ErrInvalidQuantity, quantity, domain.MaxQuantity)
	}
	return nil
}

// Stock returns the quantity on hand for a material name, 0 if never seen.
func (s *LedgerService) Stock(ctx context.Context, material string) (int, error) {
	return s.ledger.Stock(ctx, domain.NormalizeName(material))
}

func (s *LedgerService) ListInflows(ctx context.Context) ([]domain.InflowEntry, error) {
	return s.ledger.ListInflows(ctx)
}

func (s *LedgerService) ListOutflows(ctx context.Context) ([]domain.OutflowEntry, error) {
	return s.ledger.ListOutflows(ctx)
}

func (s *LedgerService) CurrentStock(ctx context.Context) ([]domain.StockRecord, error) {
	return s.ledger.CurrentStock(ctx)
}
