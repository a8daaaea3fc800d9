package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/store"
)

type sqlTx struct {
	tx      *sqlx.Tx
	dialect *dialect
}

func (t *sqlTx) LockProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product
	err := t.tx.GetContext(ctx, &p, t.tx.Rebind(`
		SELECT product_id, name, price, quantity, category, staff_id, COALESCE(photo_path, '') AS photo_path
		FROM products
		WHERE product_id = ?`+t.dialect.lockSuffix), productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (t *sqlTx) InsertProduct(ctx context.Context, product domain.Product) error {
	_, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		INSERT INTO products (product_id, name, price, quantity, category, staff_id, photo_path)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), product.ProductID, product.Name, product.Price, product.Quantity, product.Category, product.StaffID, nullIfEmpty(product.PhotoPath))
	if err != nil {
		if t.dialect.isUniqueViolation(err) {
			return store.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (t *sqlTx) UpdateProduct(ctx context.Context, product domain.Product) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE products
		SET name = ?, price = ?, quantity = ?, category = ?, staff_id = ?, photo_path = ?
		WHERE product_id = ?
	`), product.Name, product.Price, product.Quantity, product.Category, product.StaffID, nullIfEmpty(product.PhotoPath), product.ProductID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) DeleteProduct(ctx context.Context, productID string) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`DELETE FROM products WHERE product_id = ?`), productID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) SetQuantity(ctx context.Context, productID string, quantity int) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE products
		SET quantity = ?
		WHERE product_id = ?
	`), quantity, productID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) SetPhotoPath(ctx context.Context, productID string, path string) error {
	res, err := t.tx.ExecContext(ctx, t.tx.Rebind(`
		UPDATE products
		SET photo_path = ?
		WHERE product_id = ?
	`), nullIfEmpty(path), productID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *sqlTx) StaffExists(ctx context.Context, staffID string) (bool, error) {
	var count int
	if err := t.tx.GetContext(ctx, &count, t.tx.Rebind(`SELECT COUNT(*) FROM staff WHERE staff_id = ?`), staffID); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (t *sqlTx) InsertSale(ctx context.Context, sale *domain.Sale) error {
	return t.tx.GetContext(ctx, &sale.SaleID, t.tx.Rebind(`
		INSERT INTO sales (product_id, product_name, quantity, unit_price, total_price, sale_date)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING sale_id
	`), sale.ProductID, sale.ProductName, sale.Quantity, sale.UnitPrice, sale.TotalPrice, sale.SaleDate)
}

func (t *sqlTx) InsertOperation(ctx context.Context, op *domain.InventoryOperation) error {
	return t.tx.GetContext(ctx, &op.OperationID, t.tx.Rebind(`
		INSERT INTO inventory_operations (product_id, operation_type, quantity, operation_date, staff_id, notes)
		VALUES (?, ?, ?, ?, ?, ?)
		RETURNING operation_id
	`), op.ProductID, op.OperationType, op.Quantity, op.OperationDate, op.StaffID, nullIfEmpty(op.Notes))
}
