package store

import (
	"context"
	"errors"

	"storeledger/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrValidation        = errors.New("validation failed")
)

// Repository is the persistent state behind the ledger. Reads run outside any
// transaction; every mutation of products, sales or operations goes through InTx.
type Repository interface {
	// InTx runs fn in one transaction. The transaction commits when fn returns
	// nil and rolls back otherwise; fn's error is returned unchanged.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetProduct(ctx context.Context, productID string) (*domain.ProductView, error)
	ListProducts(ctx context.Context) ([]domain.ProductView, error)
	ListProductsAtOrBelow(ctx context.Context, threshold int) ([]domain.ProductView, error)
	ListSales(ctx context.Context) ([]domain.Sale, error)
	ListOperations(ctx context.Context) ([]domain.OperationRecord, error)

	ListStaff(ctx context.Context) ([]domain.Staff, error)
	GetStaff(ctx context.Context, staffID string) (*domain.Staff, error)

	GetUser(ctx context.Context, username string) (*domain.UserProfile, error)
	CreateUser(ctx context.Context, user domain.User) error
	UpdateUserPassword(ctx context.Context, username string, password string) error

	Close() error
}

// Tx is the write side of a Repository transaction.
type Tx interface {
	// LockProduct reads the product and holds it against concurrent writers
	// until the transaction ends.
	LockProduct(ctx context.Context, productID string) (*domain.Product, error)
	InsertProduct(ctx context.Context, product domain.Product) error
	UpdateProduct(ctx context.Context, product domain.Product) error
	DeleteProduct(ctx context.Context, productID string) error
	SetQuantity(ctx context.Context, productID string, quantity int) error
	// SetPhotoPath changes only the photo column; an empty path clears it.
	SetPhotoPath(ctx context.Context, productID string, path string) error
	StaffExists(ctx context.Context, staffID string) (bool, error)
	// InsertSale appends the sale and sets its SaleID.
	InsertSale(ctx context.Context, sale *domain.Sale) error
	// InsertOperation appends the operation and sets its OperationID.
	InsertOperation(ctx context.Context, op *domain.InventoryOperation) error
}
