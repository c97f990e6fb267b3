// Package export renders ledger snapshots as CSV or XLSX spreadsheets.
package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

var (
	ErrUnknownFormat = errors.New("unknown export format")
	ErrUnknownKind   = errors.New("unknown export kind")
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

type Kind string

const (
	KindInflows  Kind = "inflows"
	KindOutflows Kind = "outflows"
	KindStock    Kind = "stock"
)

// ParseFormat accepts csv and xlsx in any case. An empty string means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(s)); k {
	case KindInflows, KindOutflows, KindStock:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// FileName is the download name for kind in format f, e.g. "stock.xlsx".
func FileName(kind Kind, f Format) string {
	return string(kind) + "." + string(f)
}

// Source is the read side of the ledger.
type Source interface {
	ListInflows(ctx context.Context) ([]domain.InflowEntry, error)
	ListOutflows(ctx context.Context) ([]domain.OutflowEntry, error)
	CurrentStock(ctx context.Context) ([]domain.StockRecord, error)
}

// Export loads the snapshot of kind from src and writes it to w.
func Export(ctx context.Context, w io.Writer, src Source, kind Kind, f Format) error {
	var t table
	switch kind {
	case KindInflows:
		entries, err := src.ListInflows(ctx)
		if err != nil {
			return err
		}
		t = inflowTable(entries)
	case KindOutflows:
		entries, err := src.ListOutflows(ctx)
		if err != nil {
			return err
		}
		t = outflowTable(entries)
	case KindStock:
		records, err := src.CurrentStock(ctx)
		if err != nil {
			return err
		}
		t = stockTable(records)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return t.write(w, f)
}

type table struct {
	sheet  string
	header []string
	rows   [][]any
}

func inflowTable(entries []domain.InflowEntry) table {
	t := table{sheet: "Ingresos", header: []string{"ID", "Material", "Cantidad", "Fecha"}}
	for _, e := range entries {
		t.rows = append(t.rows, []any{e.ID, e.Material, e.Quantity, formatTime(e.Timestamp)})
	}
	return t
}

func outflowTable(entries []domain.OutflowEntry) table {
	t := table{sheet: "Egresos", header: []string{"ID", "Material", "Cantidad", "Entregado a", "Fecha"}}
	for _, e := range entries {
		t.rows = append(t.rows, []any{e.ID, e.Material, e.Quantity, e.Recipient, formatTime(e.Timestamp)})
	}
	return t
}

// stockTable orders records by material name under Spanish collation, ties
// broken by id.
func stockTable(records []domain.StockRecord) table {
	sorted := make([]domain.StockRecord, len(records))
	copy(sorted, records)

	// Collators keep scratch buffers; one per call.
	c := collate.New(language.Spanish)
	sort.SliceStable(sorted, func(i, j int) bool {
		if cmp := c.CompareString(sorted[i].Material, sorted[j].Material); cmp != 0 {
			return cmp < 0
		}
		return sorted[i].ID < sorted[j].ID
	})

	t := table{sheet: "Inventario", header: []string{"ID", "Material", "Cantidad"}}
	for _, r := range sorted {
		t.rows = append(t.rows, []any{r.ID, r.Material, r.Quantity})
	}
	return t
}

func formatTime(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

func (t table) write(w io.Writer, f Format) error {
	switch f {
	case FormatCSV:
		return t.writeCSV(w)
	case FormatXLSX:
		return t.writeXLSX(w)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, f)
}

func (t table) writeCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.header))
	for _, row := range t.rows {
		for i, v := range row {
			record[i] = fmt.Sprint(v)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t table) writeXLSX(w io.Writer) error {
	xf := excelize.NewFile()
	defer xf.Close()

	if err := xf.SetSheetName("Sheet1", t.sheet); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	header := make([]any, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}
	if err := xf.SetSheetRow(t.sheet, "A1", &header); err != nil {
		return fmt.Errorf("write xlsx header: %w", err)
	}
	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := xf.SetSheetRow(t.sheet, cell, &row); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := xf.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}
