package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/rl1809/stock-ledger/internal/adapter/storage"
	"github.com/rl1809/stock-ledger/internal/config"
	"github.com/rl1809/stock-ledger/internal/core/service"
	"github.com/rl1809/stock-ledger/internal/metrics"
)

func seedSQLite(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stock.db")
	ctx := context.Background()

	store, err := storage.NewSQLiteAdapter(ctx, path)
	require.NoError(t, err)
	defer store.Close()

	m := metrics.New(prometheus.NewRegistry())
	catalog := service.NewCatalogService(store, store, m)
	ledger := service.NewLedgerService(store, store, m)

	mat, err := catalog.CreateMaterial(ctx, "cable")
	require.NoError(t, err)
	p, err := catalog.CreatePerson(ctx, "Ana")
	require.NoError(t, err)

	ts := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	_, err = ledger.RecordInflow(ctx, mat.ID, 50, ts)
	require.NoError(t, err)
	require.NoError(t, ledger.RecordOutflow(ctx, mat.ID, p.ID, 20, ts.Add(time.Hour)))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExportCommand_CSVToStdout(t *testing.T) {
	path := seedSQLite(t)

	out, err := runCLI(t, "export", "outflows", "--store", "sqlite", "--sqlite-path", path)
	require.NoError(t, err)
	assert.Equal(t, "ID,Material,Cantidad,Entregado a,Fecha\n1,cable,20,Ana,2025-01-10T09:00:00Z\n", out)
}

func TestExportCommand_XLSXToFile(t *testing.T) {
	path := seedSQLite(t)
	target := filepath.Join(t.TempDir(), "inventario.xlsx")

	_, err := runCLI(t, "export", "stock", "--store", "sqlite", "--sqlite-path", path, "--format", "xlsx", "-o", target)
	require.NoError(t, err)

	f, err := excelize.OpenFile(target)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Inventario")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"ID", "Material", "Cantidad"}, {"1", "cable", "30"}}, rows)
}

func TestExportCommand_OutputErrorReturned(t *testing.T) {
	path := seedSQLite(t)
	target := filepath.Join(t.TempDir(), "missing", "inventario.csv")

	_, err := runCLI(t, "export", "stock", "--store", "sqlite", "--sqlite-path", path, "-o", target)
	assert.ErrorContains(t, err, "create output")
	assert.NoFileExists(t, target)
}

func TestExportCommand_RejectsUnknownKind(t *testing.T) {
	_, err := runCLI(t, "export", "orders", "--store", "memory")
	assert.ErrorContains(t, err, "unknown export kind")
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "ledger.yaml")
	require.NoError(t, os.WriteFile(file, []byte("http_addr: \":7000\"\nstore:\n  kind: redis\n"), 0o600))

	var got config.Config
	root := newRootCommand()
	inspect := &cobra.Command{
		Use: "inspect",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			got, err = (&rootOptions{
				configPath: file,
				store:      "memory",
			}).loadConfig(cmd)
			return err
		},
	}
	root.AddCommand(inspect)
	root.SetArgs([]string{"inspect", "--store", "memory"})
	require.NoError(t, root.Execute())

	assert.Equal(t, ":7000", got.HTTPAddr)
	assert.Equal(t, config.StoreMemory, got.Store.Kind)
}

func TestLoadConfig_Invalid(t *testing.T) {
	_, err := runCLI(t, "export", "stock", "--store", "postgres")
	assert.ErrorContains(t, err, "invalid configuration")
}
