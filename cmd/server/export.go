package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rl1809/stock-ledger/internal/adapter/export"
	"github.com/rl1809/stock-ledger/internal/adapter/storage"
)

func newExportCommand(opts *rootOptions) *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <inflows|outflows|stock>",
		Short: "Write a ledger snapshot as CSV or XLSX",
		Long: `Write a snapshot of the configured store to a file or stdout.

Example:
  stock-ledger export stock --format xlsx -o inventario.xlsx
  stock-ledger export outflows --store sqlite --sqlite-path ./data/stock.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := export.ParseKind(args[0])
			if err != nil {
				return err
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := storage.Open(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			var (
				w    io.Writer = cmd.OutOrStdout()
				file *os.File
			)
			if output != "" && output != "-" {
				if file, err = os.Create(output); err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer file.Close()
				w = file
			}

			bw := bufio.NewWriter(w)
			if err := export.Export(ctx, bw, store, kind, f); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			if file != nil {
				if err := file.Close(); err != nil {
					return fmt.Errorf("close output: %w", err)
				}
			}
			slog.Info("export written", "kind", kind, "format", f, "output", output)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "csv", "output format (csv|xlsx)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}
