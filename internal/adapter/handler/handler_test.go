package handler

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/metrics"
)

type testEnv struct {
	store   *storage.MemoryAdapter
	ledger  *service.LedgerService
	catalog *service.CatalogService
}

// newTestEnv returns services over a fresh memory store seeded with material
// 1 "cable" and person 1 "Ana".
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryAdapter()
	m := metrics.New(prometheus.NewRegistry())
	env := &testEnv{
		store:   store,
		ledger:  service.NewLedgerService(store, store, m),
		catalog: service.NewCatalogService(store, store, m),
	}

	ctx := context.Background()
	_, err := env.catalog.CreateMaterial(ctx, "cable")
	require.NoError(t, err)
	_, err = env.catalog.CreatePerson(ctx, "Ana")
	require.NoError(t, err)
	return env
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }
