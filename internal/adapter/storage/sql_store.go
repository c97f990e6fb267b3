package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// dialect holds the statements that differ between SQL engines.
type dialect struct {
	name        string
	schema      []string
	upsertStock string
	isDuplicate func(error) bool
}

// sqlStore implements the catalog and the ledger on database/sql. Each commit
// runs the aggregate update and the log insert in one transaction; outflows
// use a guarded decrement so the stock check and the write are one statement.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	now func() time.Time
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrStorageFailure, op, err)
}

func (s *sqlStore) migrate(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply %s schema: %w", s.d.name, err)
		}
	}
	return nil
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return storageErr("ping", err)
	}
	return nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

func (s *sqlStore) resolveName(ctx context.Context, table string, id int64, notFound error) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM "+table+" WHERE id = ?", id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%s %d: %w", table, id, notFound)
	}
	if err != nil {
		return "", storageErr("resolve "+table, err)
	}
	return name, nil
}

func (s *sqlStore) ResolveMaterialName(ctx context.Context, id int64) (string, error) {
	return s.resolveName(ctx, "materials", id, domain.ErrMaterialNotFound)
}

func (s *sqlStore) ResolvePersonName(ctx context.Context, id int64) (string, error) {
	return s.resolveName(ctx, "persons", id, domain.ErrPersonNotFound)
}

func (s *sqlStore) insertName(ctx context.Context, table, name string) (int64, error) {
	result, err := s.db.ExecContext(ctx, "INSERT INTO "+table+" (name) VALUES (?)", name)
	if err != nil {
		if s.d.isDuplicate(err) {
			return 0, fmt.Errorf("%s %q: %w", table, name, domain.ErrDuplicateName)
		}
		return 0, storageErr("insert "+table, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, storageErr("insert "+table, err)
	}
	return id, nil
}

func (s *sqlStore) deleteByID(ctx context.Context, table string, id int64, notFound error) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE id = ?", id)
	if err != nil {
		return storageErr("delete "+table, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return storageErr("delete "+table, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %d: %w", table, id, notFound)
	}
	return nil
}

func (s *sqlStore) listNames(ctx context.Context, table string, fn func(id int64, name string)) error {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM "+table+" ORDER BY id")
	if err != nil {
		return storageErr("list "+table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return storageErr("scan "+table, err)
		}
		fn(id, name)
	}
	if err := rows.Err(); err != nil {
		return storageErr("list "+table, err)
	}
	return nil
}

func (s *sqlStore) CreateMaterial(ctx context.Context, name string) (domain.Material, error) {
	id, err := s.insertName(ctx, "materials", name)
	if err != nil {
		return domain.Material{}, err
	}
	return domain.Material{ID: id, Name: name}, nil
}

func (s *sqlStore) ListMaterials(ctx context.Context) ([]domain.Material, error) {
	out := []domain.Material{}
	err := s.listNames(ctx, "materials", func(id int64, name string) {
		out = append(out, domain.Material{ID: id, Name: name})
	})
	return out, err
}

func (s *sqlStore) DeleteMaterial(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "materials", id, domain.ErrMaterialNotFound)
}

func (s *sqlStore) CreatePerson(ctx context.Context, name string) (domain.Person, error) {
	id, err := s.insertName(ctx, "persons", name)
	if err != nil {
		return domain.Person{}, err
	}
	return domain.Person{ID: id, Name: name}, nil
}

func (s *sqlStore) ListPersons(ctx context.Context) ([]domain.Person, error) {
	out := []domain.Person{}
	err := s.listNames(ctx, "persons", func(id int64, name string) {
		out = append(out, domain.Person{ID: id, Name: name})
	})
	return out, err
}

func (s *sqlStore) DeletePerson(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "persons", id, domain.ErrPersonNotFound)
}

func (s *sqlStore) Stock(ctx context.Context, material string) (int, error) {
	var qty int
	err := s.db.QueryRowContext(ctx, "SELECT quantity FROM inventory WHERE material = ?", material).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("query stock", err)
	}
	return qty, nil
}

func (s *sqlStore) CommitInflow(ctx context.Context, entry domain.InflowEntry) (domain.InflowEntry, int, error) {
	if entry.Quantity > domain.MaxQuantity {
		return domain.InflowEntry{}, 0, domain.ErrStockLimit
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.InflowEntry{}, 0, beginErr(ctx, err)
	}
	defer tx.Rollback()

	now := s.now().UnixNano()
	if _, err := tx.ExecContext(ctx, s.d.upsertStock, entry.Material, entry.Quantity, now); err != nil {
		return domain.InflowEntry{}, 0, storageErr("upsert inventory", err)
	}

	var qty int
	if err := tx.QueryRowContext(ctx, "SELECT quantity FROM inventory WHERE material = ?", entry.Material).Scan(&qty); err != nil {
		return domain.InflowEntry{}, 0, storageErr("read inventory", err)
	}
	if qty > domain.MaxQuantity {
		return domain.InflowEntry{}, qty - entry.Quantity, domain.ErrStockLimit
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO inflows (material, quantity, occurred_at) VALUES (?, ?, ?)",
		entry.Material, entry.Quantity, entry.Timestamp.UnixNano(),
	)
	if err != nil {
		return domain.InflowEntry{}, 0, storageErr("insert inflow", err)
	}
	if entry.ID, err = result.LastInsertId(); err != nil {
		return domain.InflowEntry{}, 0, storageErr("insert inflow", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.InflowEntry{}, 0, storageErr("commit inflow", err)
	}
	return entry, qty, nil
}

func (s *sqlStore) CommitOutflow(ctx context.Context, entry domain.OutflowEntry) (domain.OutflowEntry, int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.OutflowEntry{}, 0, beginErr(ctx, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE inventory
		SET quantity = quantity - ?, version = version + 1, updated_at = ?
		WHERE material = ? AND quantity >= ?`,
		entry.Quantity, s.now().UnixNano(), entry.Material, entry.Quantity,
	)
	if err != nil {
		return domain.OutflowEntry{}, 0, storageErr("decrement inventory", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return domain.OutflowEntry{}, 0, storageErr("decrement inventory", err)
	}
	if rows == 0 {
		return domain.OutflowEntry{}, 0, domain.ErrInsufficientStock
	}

	var qty int
	if err := tx.QueryRowContext(ctx, "SELECT quantity FROM inventory WHERE material = ?", entry.Material).Scan(&qty); err != nil {
		return domain.OutflowEntry{}, 0, storageErr("read inventory", err)
	}

	result, err = tx.ExecContext(ctx,
		"INSERT INTO outflows (material, quantity, recipient, occurred_at) VALUES (?, ?, ?, ?)",
		entry.Material, entry.Quantity, entry.Recipient, entry.Timestamp.UnixNano(),
	)
	if err != nil {
		return domain.OutflowEntry{}, 0, storageErr("insert outflow", err)
	}
	if entry.ID, err = result.LastInsertId(); err != nil {
		return domain.OutflowEntry{}, 0, storageErr("insert outflow", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.OutflowEntry{}, 0, storageErr("commit outflow", err)
	}
	return entry, qty, nil
}

// beginErr keeps context cancellation distinguishable from storage faults.
func beginErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return storageErr("begin tx", err)
}

func (s *sqlStore) ListInflows(ctx context.Context) ([]domain.InflowEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, material, quantity, occurred_at FROM inflows ORDER BY id")
	if err != nil {
		return nil, storageErr("list inflows", err)
	}
	defer rows.Close()

	out := []domain.InflowEntry{}
	for rows.Next() {
		var (
			e  domain.InflowEntry
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.Material, &e.Quantity, &ts); err != nil {
			return nil, storageErr("scan inflow", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list inflows", err)
	}
	return out, nil
}

func (s *sqlStore) ListOutflows(ctx context.Context) ([]domain.OutflowEntry, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, material, quantity, recipient, occurred_at FROM outflows ORDER BY id")
	if err != nil {
		return nil, storageErr("list outflows", err)
	}
	defer rows.Close()

	out := []domain.OutflowEntry{}
	for rows.Next() {
		var (
			e  domain.OutflowEntry
			ts int64
		)
		if err := rows.Scan(&e.ID, &e.Material, &e.Quantity, &e.Recipient, &ts); err != nil {
			return nil, storageErr("scan outflow", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list outflows", err)
	}
	return out, nil
}

func (s *sqlStore) CurrentStock(ctx context.Context) ([]domain.StockRecord, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, material, quantity, version, updated_at FROM inventory ORDER BY id")
	if err != nil {
		return nil, storageErr("list inventory", err)
	}
	defer rows.Close()

	out := []domain.StockRecord{}
	for rows.Next() {
		var (
			r  domain.StockRecord
			ts int64
		)
		if err := rows.Scan(&r.ID, &r.Material, &r.Quantity, &r.Version, &ts); err != nil {
			return nil, storageErr("scan inventory", err)
		}
		r.UpdatedAt = time.Unix(0, ts).UTC()
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list inventory", err)
	}
	return out, nil
}

func (s *sqlStore) RemoveStockRecord(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "inventory", id, domain.ErrStockRecordNotFound)
}
