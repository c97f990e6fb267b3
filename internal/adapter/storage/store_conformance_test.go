package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/port"
)

// storeFactory returns an empty store. Cleanup is registered on t.
type storeFactory func(t *testing.T) port.Store

// runStoreConformance checks the behaviour every backend must share.
func runStoreConformance(t *testing.T, open storeFactory) {
	t.Run("InflowCreatesAndAccumulates", func(t *testing.T) {
		testInflowCreatesAndAccumulates(t, open(t))
	})
	t.Run("OutflowGuardedDecrement", func(t *testing.T) {
		testOutflowGuardedDecrement(t, open(t))
	})
	t.Run("OutflowUnseenMaterial", func(t *testing.T) {
		testOutflowUnseenMaterial(t, open(t))
	})
	t.Run("ConcurrentOutflowsSameMaterial", func(t *testing.T) {
		testConcurrentOutflows(t, open(t))
	})
	t.Run("ConcurrentDrain", func(t *testing.T) {
		testConcurrentDrain(t, open(t))
	})
	t.Run("Catalog", func(t *testing.T) {
		testCatalog(t, open(t))
	})
	t.Run("LogsKeepSnapshots", func(t *testing.T) {
		testLogsKeepSnapshots(t, open(t))
	})
	t.Run("RemoveStockRecord", func(t *testing.T) {
		testRemoveStockRecord(t, open(t))
	})
	t.Run("StockLimit", func(t *testing.T) {
		testStockLimit(t, open(t))
	})
	t.Run("CancelledContext", func(t *testing.T) {
		testCancelledContext(t, open(t))
	})
}

func inflow(material string, qty int) domain.InflowEntry {
	return domain.InflowEntry{Material: material, Quantity: qty, Timestamp: time.Now()}
}

func outflow(material string, qty int, recipient string) domain.OutflowEntry {
	return domain.OutflowEntry{Material: material, Quantity: qty, Recipient: recipient, Timestamp: time.Now()}
}

func testInflowCreatesAndAccumulates(t *testing.T, s port.Store) {
	ctx := context.Background()

	qty, err := s.Stock(ctx, "cable")
	if err != nil {
		t.Fatalf("Stock failed: %v", err)
	}
	if qty != 0 {
		t.Errorf("expected 0 for unseen material, got %d", qty)
	}

	first, qty, err := s.CommitInflow(ctx, inflow("cable", 50))
	if err != nil {
		t.Fatalf("CommitInflow failed: %v", err)
	}
	if qty != 50 {
		t.Errorf("expected quantity 50, got %d", qty)
	}
	if first.ID == 0 {
		t.Error("expected entry id to be assigned")
	}

	second, qty, err := s.CommitInflow(ctx, inflow("cable", 10))
	if err != nil {
		t.Fatalf("CommitInflow failed: %v", err)
	}
	if qty != 60 {
		t.Errorf("expected quantity 60, got %d", qty)
	}
	if second.ID <= first.ID {
		t.Errorf("expected increasing ids, got %d then %d", first.ID, second.ID)
	}

	records, err := s.CurrentStock(ctx)
	if err != nil {
		t.Fatalf("CurrentStock failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 stock record, got %d", len(records))
	}
	if records[0].Material != "cable" || records[0].Quantity != 60 {
		t.Errorf("unexpected record %+v", records[0])
	}
	if records[0].Version != 2 {
		t.Errorf("expected version 2, got %d", records[0].Version)
	}
}

func testOutflowGuardedDecrement(t *testing.T, s port.Store) {
	ctx := context.Background()

	if _, _, err := s.CommitInflow(ctx, inflow("tornillo", 10)); err != nil {
		t.Fatalf("CommitInflow failed: %v", err)
	}

	_, qty, err := s.CommitOutflow(ctx, outflow("tornillo", 4, "Ana"))
	if err != nil {
		t.Fatalf("CommitOutflow failed: %v", err)
	}
	if qty != 6 {
		t.Errorf("expected quantity 6, got %d", qty)
	}

	_, _, err = s.CommitOutflow(ctx, outflow("tornillo", 7, "Ana"))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	qty, _ = s.Stock(ctx, "tornillo")
	if qty != 6 {
		t.Errorf("expected stock unchanged at 6, got %d", qty)
	}
	outs, _ := s.ListOutflows(ctx)
	if len(outs) != 1 {
		t.Errorf("expected 1 outflow entry, got %d", len(outs))
	}

	// Draining to exactly zero is allowed.
	_, qty, err = s.CommitOutflow(ctx, outflow("tornillo", 6, "Ana"))
	if err != nil {
		t.Fatalf("CommitOutflow to zero failed: %v", err)
	}
	if qty != 0 {
		t.Errorf("expected quantity 0, got %d", qty)
	}
}

func testOutflowUnseenMaterial(t *testing.T, s port.Store) {
	ctx := context.Background()

	_, _, err := s.CommitOutflow(ctx, outflow("ghost", 1, "Ana"))
	if !errors.Is(err, domain.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}

	records, _ := s.CurrentStock(ctx)
	if len(records) != 0 {
		t.Errorf("expected no stock records, got %d", len(records))
	}
	outs, _ := s.ListOutflows(ctx)
	if len(outs) != 0 {
		t.Errorf("expected no outflow entries, got %d", len(outs))
	}
}

func testConcurrentOutflows(t *testing.T, s port.Store) {
	ctx := context.Background()

	if _, _, err := s.CommitInflow(ctx, inflow("M", 10)); err != nil {
		t.Fatalf("CommitInflow failed: %v", err)
	}

	var (
		successCount      atomic.Int32
		insufficientCount atomic.Int32
		wg                sync.WaitGroup
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.CommitOutflow(ctx, outflow("M", 6, "Ana"))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != 1 || insufficientCount.Load() != 1 {
		t.Errorf("expected 1 success and 1 insufficient, got %d/%d",
			successCount.Load(), insufficientCount.Load())
	}
	qty, _ := s.Stock(ctx, "M")
	if qty != 4 {
		t.Errorf("expected final stock 4, got %d", qty)
	}
}

func testConcurrentDrain(t *testing.T, s port.Store) {
	ctx := context.Background()
	initialStock := 20
	totalRequests := 50

	if _, _, err := s.CommitInflow(ctx, inflow("guantes", initialStock)); err != nil {
		t.Fatalf("CommitInflow failed: %v", err)
	}

	var successCount atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.CommitOutflow(ctx, outflow("guantes", 1, "Ana"))
			if err == nil {
				successCount.Add(1)
			} else if !errors.Is(err, domain.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if successCount.Load() != int32(initialStock) {
		t.Errorf("expected %d successes, got %d", initialStock, successCount.Load())
	}
	qty, _ := s.Stock(ctx, "guantes")
	if qty != 0 {
		t.Errorf("expected stock 0, got %d", qty)
	}
	outs, _ := s.ListOutflows(ctx)
	if len(outs) != initialStock {
		t.Errorf("expected %d outflow entries, got %d", initialStock, len(outs))
	}
}

func testCatalog(t *testing.T, s port.Store) {
	ctx := context.Background()

	mat, err := s.CreateMaterial(ctx, "cable")
	if err != nil {
		t.Fatalf("CreateMaterial failed: %v", err)
	}
	name, err := s.ResolveMaterialName(ctx, mat.ID)
	if err != nil {
		t.Fatalf("ResolveMaterialName failed: %v", err)
	}
	if name != "cable" {
		t.Errorf("expected cable, got %s", name)
	}

	if _, err := s.CreateMaterial(ctx, "cable"); !errors.Is(err, domain.ErrDuplicateName) {
		t.Errorf("expected ErrDuplicateName, got: %v", err)
	}
	if _, err := s.ResolveMaterialName(ctx, mat.ID+100); !errors.Is(err, domain.ErrMaterialNotFound) {
		t.Errorf("expected ErrMaterialNotFound, got: %v", err)
	}

	person, err := s.CreatePerson(ctx, "Ana")
	if err != nil {
		t.Fatalf("CreatePerson failed: %v", err)
	}
	if name, _ := s.ResolvePersonName(ctx, person.ID); name != "Ana" {
		t.Errorf("expected Ana, got %s", name)
	}
	if _, err := s.ResolvePersonName(ctx, person.ID+100); !errors.Is(err, domain.ErrPersonNotFound) {
		t.Errorf("expected ErrPersonNotFound, got: %v", err)
	}

	if _, err := s.CreateMaterial(ctx, "arnés"); err != nil {
		t.Fatalf("CreateMaterial failed: %v", err)
	}
	materials, err := s.ListMaterials(ctx)
	if err != nil {
		t.Fatalf("ListMaterials failed: %v", err)
	}
	if len(materials) != 2 || materials[0].Name != "cable" || materials[1].Name != "arnés" {
		t.Errorf("unexpected materials %+v", materials)
	}

	if err := s.DeleteMaterial(ctx, mat.ID); err != nil {
		t.Fatalf("DeleteMaterial failed: %v", err)
	}
	if _, err := s.ResolveMaterialName(ctx, mat.ID); !errors.Is(err, domain.ErrMaterialNotFound) {
		t.Errorf("expected ErrMaterialNotFound after delete, got: %v", err)
	}
	if err := s.DeleteMaterial(ctx, mat.ID); !errors.Is(err, domain.ErrMaterialNotFound) {
		t.Errorf("expected ErrMaterialNotFound on second delete, got: %v", err)
	}

	if err := s.DeletePerson(ctx, person.ID); err != nil {
		t.Fatalf("DeletePerson failed: %v", err)
	}
	persons, _ := s.ListPersons(ctx)
	if len(persons) != 0 {
		t.Errorf("expected no persons, got %d", len(persons))
	}
}

func testLogsKeepSnapshots(t *testing.T, s port.Store) {
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	t2 := time.Date(2024, 3, 2, 17, 5, 0, 0, time.UTC)

	if _, _, err := s.CommitInflow(ctx, domain.InflowEntry{Material: "casco", Quantity: 5, Timestamp: t1}); err != nil {
		t.Fatalf("CommitInflow failed: %v", err)
	}
	if _, _, err := s.CommitOutflow(ctx, domain.OutflowEntry{Material: "casco", Quantity: 2, Recipient: "Luis", Timestamp: t2}); err != nil {
		t.Fatalf("CommitOutflow failed: %v", err)
	}

	ins, err := s.ListInflows(ctx)
	if err != nil {
		t.Fatalf("ListInflows failed: %v", err)
	}
	if len(ins) != 1 || ins[0].Material != "casco" || ins[0].Quantity != 5 || !ins[0].Timestamp.Equal(t1) {
		t.Errorf("unexpected inflows %+v", ins)
	}

	outs, err := s.ListOutflows(ctx)
	if err != nil {
		t.Fatalf("ListOutflows failed: %v", err)
	}
	if len(outs) != 1 || outs[0].Recipient != "Luis" || outs[0].Quantity != 2 || !outs[0].Timestamp.Equal(t2) {
		t.Errorf("unexpected outflows %+v", outs)
	}
}

func testRemoveStockRecord(t *testing.T, s port.Store) {
	ctx := context.Background()

	if _, _, err := s.CommitInflow(ctx, inflow("botas", 3)); err != nil {
		t.Fatalf("CommitInflow failed: %v", err)
	}
	records, _ := s.CurrentStock(ctx)
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}

	if err := s.RemoveStockRecord(ctx, records[0].ID); err != nil {
		t.Fatalf("RemoveStockRecord failed: %v", err)
	}
	if err := s.RemoveStockRecord(ctx, records[0].ID); !errors.Is(err, domain.ErrStockRecordNotFound) {
		t.Errorf("expected ErrStockRecordNotFound, got: %v", err)
	}
	if qty, _ := s.Stock(ctx, "botas"); qty != 0 {
		t.Errorf("expected 0 after removal, got %d", qty)
	}

	// The log is untouched by administrative removal.
	ins, _ := s.ListInflows(ctx)
	if len(ins) != 1 {
		t.Errorf("expected inflow log to keep 1 entry, got %d", len(ins))
	}
}

func testCancelledContext(t *testing.T, s port.Store) {
	bg := context.Background()
	if _, _, err := s.CommitInflow(bg, inflow("hilo", 5)); err != nil {
		t.Fatalf("seed inflow failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := s.CommitInflow(ctx, inflow("cinta", 5)); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for inflow, got: %v", err)
	}
	if _, _, err := s.CommitOutflow(ctx, outflow("hilo", 2, "ana")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for outflow, got: %v", err)
	}

	if qty, _ := s.Stock(bg, "cinta"); qty != 0 {
		t.Errorf("expected no stock change, got %d", qty)
	}
	if qty, _ := s.Stock(bg, "hilo"); qty != 5 {
		t.Errorf("expected hilo to stay at 5, got %d", qty)
	}
	if ins, _ := s.ListInflows(bg); len(ins) != 1 {
		t.Errorf("expected only the seed inflow, got %d", len(ins))
	}
	if outs, _ := s.ListOutflows(bg); len(outs) != 0 {
		t.Errorf("expected no outflow entries, got %d", len(outs))
	}

	records, err := s.CurrentStock(bg)
	if err != nil {
		t.Fatalf("CurrentStock failed: %v", err)
	}
	if len(records) != 1 || records[0].Material != "hilo" {
		t.Errorf("expected only the hilo record, got %+v", records)
	}
}

func testStockLimit(t *testing.T, s port.Store) {
	ctx := context.Background()

	if _, _, err := s.CommitInflow(ctx, inflow("tela", domain.MaxQuantity)); err != nil {
		t.Fatalf("inflow up to the limit failed: %v", err)
	}
	_, qty, err := s.CommitInflow(ctx, inflow("tela", 1))
	if !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity past the limit, got: %v", err)
	}
	if qty != domain.MaxQuantity {
		t.Errorf("expected reported stock %d, got %d", domain.MaxQuantity, qty)
	}

	if qty, _ := s.Stock(ctx, "tela"); qty != domain.MaxQuantity {
		t.Errorf("expected stock to stay at %d, got %d", domain.MaxQuantity, qty)
	}
	if ins, _ := s.ListInflows(ctx); len(ins) != 1 {
		t.Errorf("expected 1 inflow entry, got %d", len(ins))
	}

	// A single oversized movement never creates a record.
	if _, _, err := s.CommitInflow(ctx, inflow("lona", domain.MaxQuantity+1)); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity for oversized inflow, got: %v", err)
	}
	records, err := s.CurrentStock(ctx)
	if err != nil {
		t.Fatalf("CurrentStock failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected only the tela record, got %+v", records)
	}
}
