package sqlstore

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

func init() {
	sqlx.BindDriver("sqlite", sqlx.QUESTION)
}

// dialect holds what differs between the postgres and sqlite backends. Queries
// are written with ? placeholders and rebound per driver.
type dialect struct {
	name              string
	driver            string
	schema            []string
	lockSuffix        string
	columnsQuery      string
	txOptions         *sql.TxOptions
	configure         func(db *sqlx.DB)
	isUniqueViolation func(err error) bool
}

var postgresDialect = &dialect{
	name:   "postgres",
	driver: "pgx",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS staff (
			staff_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			staff_id TEXT REFERENCES staff(staff_id),
			role TEXT DEFAULT 'user'
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			product_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price NUMERIC(12,2) NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 0),
			category TEXT NOT NULL,
			staff_id TEXT NOT NULL REFERENCES staff(staff_id),
			photo_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			sale_id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC(12,2) NOT NULL,
			total_price NUMERIC(14,2) NOT NULL,
			sale_date TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_operations (
			operation_id BIGSERIAL PRIMARY KEY,
			product_id TEXT NOT NULL,
			operation_type TEXT NOT NULL CHECK (operation_type IN ('in', 'out')),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			operation_date TIMESTAMPTZ NOT NULL,
			staff_id TEXT NOT NULL REFERENCES staff(staff_id),
			notes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales (sale_date)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_operations_product ON inventory_operations (product_id, operation_date)`,
	},
	lockSuffix: " FOR UPDATE",
	columnsQuery: `
		SELECT column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ?
	`,
	txOptions: &sql.TxOptions{Isolation: sql.LevelReadCommitted},
	configure: func(db *sqlx.DB) {
		db.SetMaxIdleConns(8)
		db.SetMaxOpenConns(30)
		db.SetConnMaxLifetime(30 * time.Minute)
	},
	isUniqueViolation: func(err error) bool {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			return pgErr.Code == "23505"
		}
		return false
	},
}

var sqliteDialect = &dialect{
	name:   "sqlite",
	driver: "sqlite",
	schema: []string{
		`CREATE TABLE IF NOT EXISTS staff (
			staff_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			staff_id TEXT REFERENCES staff(staff_id),
			role TEXT DEFAULT 'user'
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			product_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price NUMERIC NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity >= 0),
			category TEXT NOT NULL,
			staff_id TEXT NOT NULL REFERENCES staff(staff_id),
			photo_path TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sales (
			sale_id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			product_name TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			unit_price NUMERIC NOT NULL,
			total_price NUMERIC NOT NULL,
			sale_date TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS inventory_operations (
			operation_id INTEGER PRIMARY KEY AUTOINCREMENT,
			product_id TEXT NOT NULL,
			operation_type TEXT NOT NULL CHECK (operation_type IN ('in', 'out')),
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			operation_date TIMESTAMP NOT NULL,
			staff_id TEXT NOT NULL REFERENCES staff(staff_id),
			notes TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sales_date ON sales (sale_date)`,
		`CREATE INDEX IF NOT EXISTS idx_inventory_operations_product ON inventory_operations (product_id, operation_date)`,
	},
	// A single pooled connection serializes sqlite transactions, which stands
	// in for row locks.
	lockSuffix:   "",
	columnsQuery: `SELECT name FROM pragma_table_info(?)`,
	configure: func(db *sqlx.DB) {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	},
	isUniqueViolation: func(err error) bool {
		var sqliteErr *sqlite.Error
		if !errors.As(err, &sqliteErr) {
			return false
		}
		switch sqliteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
		}
		return false
	},
}

func sqliteDSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
}
