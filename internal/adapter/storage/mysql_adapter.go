package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/stock-ledger/internal/port"
)

var _ port.Store = (*MySQLAdapter)(nil)

const mysqlDuplicateEntry = 1062

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS materials (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		UNIQUE KEY uq_materials_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS persons (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		UNIQUE KEY uq_persons_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS inventory (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		material VARCHAR(255) NOT NULL,
		quantity BIGINT NOT NULL,
		version INT NOT NULL DEFAULT 0,
		updated_at BIGINT NOT NULL,
		UNIQUE KEY uq_inventory_material (material),
		CONSTRAINT chk_inventory_quantity CHECK (quantity >= 0)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS inflows (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		material VARCHAR(255) NOT NULL,
		quantity BIGINT NOT NULL,
		occurred_at BIGINT NOT NULL,
		KEY idx_inflows_material (material)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
	`CREATE TABLE IF NOT EXISTS outflows (
		id BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY,
		material VARCHAR(255) NOT NULL,
		quantity BIGINT NOT NULL,
		recipient VARCHAR(255) NOT NULL,
		occurred_at BIGINT NOT NULL,
		KEY idx_outflows_material (material)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_bin`,
}

// MySQLAdapter stores the ledger in InnoDB. The guarded UPDATE takes the row
// lock, so concurrent outflows on one material queue behind each other until
// commit.
type MySQLAdapter struct {
	*sqlStore
}

func NewMySQLAdapter(ctx context.Context, db *sql.DB) (*MySQLAdapter, error) {
	s := &sqlStore{
		db: db,
		d: dialect{
			name:   "mysql",
			schema: mysqlSchema,
			upsertStock: `
				INSERT INTO inventory (material, quantity, version, updated_at) VALUES (?, ?, 1, ?)
				ON DUPLICATE KEY UPDATE
					quantity = quantity + VALUES(quantity),
					version = version + 1,
					updated_at = VALUES(updated_at)`,
			isDuplicate: isMySQLDuplicate,
		},
		now: time.Now,
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return &MySQLAdapter{sqlStore: s}, nil
}

// OpenMySQL opens a pooled connection and verifies it.
func OpenMySQL(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

func isMySQLDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
