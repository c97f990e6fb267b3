package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/domain"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/metrics"
	"github.com/rl1809/stock-ledger/internal/port"
	"github.com/rl1809/stock-ledger/pkg/logging"
)

const (
	initialStock  = 20
	totalRequests = 50
	unitsPerOrder = 1
)

type result struct {
	success    int32
	rejected   int32
	failed     int32
	finalStock int
	elapsed    time.Duration
}

func (r result) passed(initial, requests, units int) bool {
	want := int32(initial / units)
	if want > int32(requests) {
		want = int32(requests)
	}
	return r.success == want &&
		r.rejected == int32(requests)-want &&
		r.failed == 0 &&
		r.finalStock == initial-int(want)*units
}

// The store comes from STOCK_* variables; memory when STOCK_STORE is unset.
func main() {
	ctx := context.Background()
	logging.SetupWithLevel(slog.LevelWarn)

	cfg := config.Default()
	cfg.Store.Kind = config.StoreMemory
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		slog.Error("invalid environment", "error", err)
		os.Exit(1)
	}

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	res, err := run(ctx, store, initialStock, totalRequests, unitsPerOrder)
	if err != nil {
		slog.Error("stress test setup failed", "error", err)
		os.Exit(1)
	}
	report(os.Stdout, cfg.Store.Kind, res)
}

// run creates a fresh material and person, stocks initial units and fires
// requests concurrent outflows of units each.
func run(ctx context.Context, store port.Store, initial, requests, units int) (result, error) {
	m := metrics.New(prometheus.NewRegistry())
	catalog := service.NewCatalogService(store, store, m)
	ledger := service.NewLedgerService(store, store, m)

	suffix := uuid.NewString()[:8]
	mat, err := catalog.CreateMaterial(ctx, "stress-material-"+suffix)
	if err != nil {
		return result{}, err
	}
	person, err := catalog.CreatePerson(ctx, "stress-person-"+suffix)
	if err != nil {
		return result{}, err
	}
	if _, err := ledger.RecordInflow(ctx, mat.ID, initial, time.Time{}); err != nil {
		return result{}, err
	}

	var res result
	var successCount, rejectedCount, failedCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := ledger.RecordOutflow(ctx, mat.ID, person.ID, units, time.Time{})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejectedCount.Add(1)
			default:
				failedCount.Add(1)
			}
		}()
	}

	wg.Wait()
	res.elapsed = time.Since(start)
	res.success = successCount.Load()
	res.rejected = rejectedCount.Load()
	res.failed = failedCount.Load()

	res.finalStock, err = ledger.Stock(ctx, mat.Name)
	if err != nil {
		return result{}, err
	}
	return res, nil
}

func report(w io.Writer, store string, res result) {
	fmt.Fprintln(w, "========== STRESS TEST RESULTS ==========")
	fmt.Fprintf(w, "Store:            %s\n", store)
	fmt.Fprintf(w, "Initial Stock:    %d\n", initialStock)
	fmt.Fprintf(w, "Total Requests:   %d\n", totalRequests)
	fmt.Fprintf(w, "Successful:       %d\n", res.success)
	fmt.Fprintf(w, "Rejected:         %d\n", res.rejected)
	fmt.Fprintf(w, "Errors:           %d\n", res.failed)
	fmt.Fprintf(w, "Duration:         %v\n", res.elapsed)
	fmt.Fprintln(w, "==========================================")

	if res.passed(initialStock, totalRequests, unitsPerOrder) {
		fmt.Fprintf(w, "PASS: exactly %d outflows succeeded, stock drained to %d\n", res.success, res.finalStock)
	} else {
		fmt.Fprintf(w, "FAIL: got %d success/%d rejected/%d errors, final stock %d\n",
			res.success, res.rejected, res.failed, res.finalStock)
	}
}
