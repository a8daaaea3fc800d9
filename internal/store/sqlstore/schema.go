package sqlstore

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"storeledger/backend/internal/store"
)

// Seed carries the passwords given to the default accounts when the users
// table is first populated.
type Seed struct {
	AdminPassword string
	UserPassword  string
}

// Init creates missing tables, brings the users table up to the current column
// set and seeds every table that is still empty. It is safe to run on every start.
func (s *Store) Init(ctx context.Context, seed Seed) error {
	for _, stmt := range s.dialect.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if err := s.migrateUsers(ctx); err != nil {
		return err
	}
	return s.seed(ctx, seed)
}

var userColumns = []struct {
	name string
	ddl  string
}{
	{"staff_id", `ALTER TABLE users ADD COLUMN staff_id TEXT REFERENCES staff(staff_id)`},
	{"role", `ALTER TABLE users ADD COLUMN role TEXT DEFAULT 'user'`},
}

// migrateUsers adds the staff link and role columns to users tables created
// before they existed. Existing columns are left alone.
func (s *Store) migrateUsers(ctx context.Context) error {
	columns, err := s.columns(ctx, "users")
	if err != nil {
		return err
	}
	for _, col := range userColumns {
		if columns[col.name] {
			continue
		}
		if _, err := s.db.ExecContext(ctx, col.ddl); err != nil {
			return fmt.Errorf("add users.%s: %w", col.name, err)
		}
		log.Printf("[store] migrated users table: added column %s", col.name)
	}
	return nil
}

func (s *Store) columns(ctx context.Context, table string) (map[string]bool, error) {
	var names []string
	if err := s.db.SelectContext(ctx, &names, s.db.Rebind(s.dialect.columnsQuery), table); err != nil {
		return nil, fmt.Errorf("list columns of %s: %w", table, err)
	}
	columns := make(map[string]bool, len(names))
	for _, name := range names {
		columns[name] = true
	}
	return columns, nil
}

func (s *Store) seed(ctx context.Context, seed Seed) error {
	tx, err := s.db.BeginTxx(ctx, s.dialect.txOptions)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	empty, err := tableEmpty(ctx, tx, "staff")
	if err != nil {
		return err
	}
	if empty {
		for _, st := range store.SeedStaff() {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO staff (staff_id, name, position)
				VALUES (:staff_id, :name, :position)
			`, st); err != nil {
				return fmt.Errorf("seed staff: %w", err)
			}
		}
		log.Printf("[store] seeded staff table")
	}

	empty, err = tableEmpty(ctx, tx, "users")
	if err != nil {
		return err
	}
	if empty {
		users, err := store.SeedUsers(seed.AdminPassword, seed.UserPassword)
		if err != nil {
			return err
		}
		for _, u := range users {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO users (username, password, staff_id, role)
				VALUES (:username, :password, :staff_id, :role)
			`, u); err != nil {
				return fmt.Errorf("seed users: %w", err)
			}
		}
		log.Printf("[store] seeded users table")
	}

	empty, err = tableEmpty(ctx, tx, "products")
	if err != nil {
		return err
	}
	if empty {
		for _, p := range store.SeedProducts() {
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO products (product_id, name, price, quantity, category, staff_id, photo_path)
				VALUES (:product_id, :name, :price, :quantity, :category, :staff_id, NULL)
			`, p); err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
		}
		log.Printf("[store] seeded products table")
	}

	return tx.Commit()
}

func tableEmpty(ctx context.Context, tx *sqlx.Tx, table string) (bool, error) {
	var count int
	if err := tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM `+table); err != nil {
		return false, fmt.Errorf("count %s: %w", table, err)
	}
	return count == 0, nil
}
