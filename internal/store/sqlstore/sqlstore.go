// Package sqlstore implements store.Repository over database/sql, with
// postgres (pgx) and sqlite (modernc) backends sharing one set of queries.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/store"
)

type Store struct {
	db      *sqlx.DB
	dialect *dialect
}

func OpenPostgres(ctx context.Context, databaseURL string) (*Store, error) {
	return open(ctx, postgresDialect, databaseURL)
}

func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	return open(ctx, sqliteDialect, sqliteDSN(path))
}

func open(ctx context.Context, d *dialect, dsn string) (*Store, error) {
	db, err := sqlx.Open(d.driver, dsn)
	if err != nil {
		return nil, err
	}
	d.configure(db)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", d.name, err)
	}

	return &Store{db: db, dialect: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Driver reports which backend the store talks to.
func (s *Store) Driver() string {
	return s.dialect.name
}

func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, s.dialect.txOptions)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&sqlTx{tx: tx, dialect: s.dialect}); err != nil {
		return err
	}
	return tx.Commit()
}

const productViewQuery = `
	SELECT p.product_id, p.name, p.price, p.quantity, p.category, p.staff_id,
		COALESCE(p.photo_path, '') AS photo_path, st.name AS staff_name
	FROM products p
	LEFT JOIN staff st ON st.staff_id = p.staff_id
`

func (s *Store) GetProduct(ctx context.Context, productID string) (*domain.ProductView, error) {
	var view domain.ProductView
	err := s.db.GetContext(ctx, &view, s.db.Rebind(productViewQuery+`WHERE p.product_id = ?`), productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &view, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.ProductView, error) {
	views := make([]domain.ProductView, 0, 64)
	if err := s.db.SelectContext(ctx, &views, productViewQuery+`ORDER BY p.product_id`); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) ListProductsAtOrBelow(ctx context.Context, threshold int) ([]domain.ProductView, error) {
	views := make([]domain.ProductView, 0, 16)
	query := s.db.Rebind(productViewQuery + `WHERE p.quantity <= ? ORDER BY p.product_id`)
	if err := s.db.SelectContext(ctx, &views, query, threshold); err != nil {
		return nil, err
	}
	return views, nil
}

func (s *Store) ListSales(ctx context.Context) ([]domain.Sale, error) {
	sales := make([]domain.Sale, 0, 128)
	if err := s.db.SelectContext(ctx, &sales, `
		SELECT sale_id, product_id, product_name, quantity, unit_price, total_price, sale_date
		FROM sales
		ORDER BY sale_date DESC, sale_id DESC
	`); err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].SaleDate = sales[i].SaleDate.UTC()
	}
	return sales, nil
}

func (s *Store) ListOperations(ctx context.Context) ([]domain.OperationRecord, error) {
	records := make([]domain.OperationRecord, 0, 128)
	if err := s.db.SelectContext(ctx, &records, `
		SELECT o.operation_id, o.product_id, o.operation_type, o.quantity, o.operation_date,
			o.staff_id, COALESCE(o.notes, '') AS notes,
			p.name AS product_name, st.name AS staff_name
		FROM inventory_operations o
		LEFT JOIN products p ON p.product_id = o.product_id
		LEFT JOIN staff st ON st.staff_id = o.staff_id
		ORDER BY o.operation_date DESC, o.operation_id DESC
	`); err != nil {
		return nil, err
	}
	for i := range records {
		records[i].OperationDate = records[i].OperationDate.UTC()
	}
	return records, nil
}

func (s *Store) ListStaff(ctx context.Context) ([]domain.Staff, error) {
	staff := make([]domain.Staff, 0, 8)
	if err := s.db.SelectContext(ctx, &staff, `
		SELECT staff_id, name, position
		FROM staff
		ORDER BY staff_id
	`); err != nil {
		return nil, err
	}
	return staff, nil
}

func (s *Store) GetStaff(ctx context.Context, staffID string) (*domain.Staff, error) {
	var st domain.Staff
	err := s.db.GetContext(ctx, &st, s.db.Rebind(`
		SELECT staff_id, name, position
		FROM staff
		WHERE staff_id = ?
	`), staffID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) GetUser(ctx context.Context, username string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := s.db.GetContext(ctx, &profile, s.db.Rebind(`
		SELECT u.username, u.password, u.staff_id, COALESCE(u.role, 'user') AS role,
			st.name AS staff_name, st.position AS staff_position
		FROM users u
		LEFT JOIN staff st ON st.staff_id = u.staff_id
		WHERE u.username = ?
	`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &profile, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.User) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (username, password, staff_id, role)
		VALUES (:username, :password, :staff_id, :role)
	`, user)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users
		SET password = ?
		WHERE username = ?
	`), password, username)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
