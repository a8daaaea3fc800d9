package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/metrics"
	"storeledger/backend/internal/store"
)

// Ledger owns product rows and keeps every quantity at or above zero.
type Ledger struct {
	repo store.Repository
}

func NewLedger(repo store.Repository) *Ledger {
	return &Ledger{repo: repo}
}

func (l *Ledger) Create(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	product := domain.Product{
		ProductID: req.ProductID,
		Name:      req.Name,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Category:  req.Category,
		StaffID:   req.StaffID,
	}
	if err := validateProduct(&product); err != nil {
		return domain.Product{}, err
	}

	err := l.repo.InTx(ctx, func(tx store.Tx) error {
		if err := requireStaff(ctx, tx, product.StaffID); err != nil {
			return err
		}
		if err := tx.InsertProduct(ctx, product); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return fmt.Errorf("%w: product %s already exists", store.ErrDuplicateKey, product.ProductID)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Product{}, err
	}

	log.Printf("[ledger] product created id=%s qty=%d price=%s actor=%s", product.ProductID, product.Quantity, product.Price, actorName(ctx))
	return product, nil
}

// Update replaces every mutable field of the product except the photo, which
// only SetPhoto changes.
func (l *Ledger) Update(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	product := domain.Product{
		ProductID: productID,
		Name:      req.Name,
		Price:     req.Price,
		Quantity:  req.Quantity,
		Category:  req.Category,
		StaffID:   req.StaffID,
	}
	if err := validateProduct(&product); err != nil {
		return domain.Product{}, err
	}

	err := l.repo.InTx(ctx, func(tx store.Tx) error {
		existing, err := tx.LockProduct(ctx, product.ProductID)
		if err != nil {
			return notFound(err, "product", product.ProductID)
		}
		if err := requireStaff(ctx, tx, product.StaffID); err != nil {
			return err
		}
		product.PhotoPath = existing.PhotoPath
		return notFound(tx.UpdateProduct(ctx, product), "product", product.ProductID)
	})
	if err != nil {
		return domain.Product{}, err
	}

	log.Printf("[ledger] product updated id=%s qty=%d price=%s actor=%s", product.ProductID, product.Quantity, product.Price, actorName(ctx))
	return product, nil
}

// Delete removes the product and returns the row as it was, so callers can
// clean up resources it referenced. Sales and operations keep their rows.
func (l *Ledger) Delete(ctx context.Context, productID string) (domain.Product, error) {
	var deleted domain.Product
	err := l.repo.InTx(ctx, func(tx store.Tx) error {
		existing, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return notFound(err, "product", productID)
		}
		deleted = *existing
		return notFound(tx.DeleteProduct(ctx, productID), "product", productID)
	})
	if err != nil {
		return domain.Product{}, err
	}

	log.Printf("[ledger] product deleted id=%s actor=%s", productID, actorName(ctx))
	return deleted, nil
}

// SetPhoto points the product at a new photo file and returns the path it
// replaced. No other column is written.
func (l *Ledger) SetPhoto(ctx context.Context, productID string, path string) (string, error) {
	path = strings.TrimSpace(path)
	var previous string
	err := l.repo.InTx(ctx, func(tx store.Tx) error {
		existing, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return notFound(err, "product", productID)
		}
		previous = existing.PhotoPath
		return notFound(tx.SetPhotoPath(ctx, productID, path), "product", productID)
	})
	if err != nil {
		return "", err
	}

	log.Printf("[ledger] photo set id=%s path=%s actor=%s", productID, path, actorName(ctx))
	return previous, nil
}

func (l *Ledger) AdjustQuantity(ctx context.Context, productID string, delta int) (domain.Product, error) {
	if delta > maxQuantity || delta < -maxQuantity {
		return domain.Product{}, invalid("delta must be within %d", maxQuantity)
	}
	var adjusted domain.Product
	err := l.repo.InTx(ctx, func(tx store.Tx) error {
		p, err := l.adjustQuantity(ctx, tx, productID, delta)
		if err != nil {
			return err
		}
		adjusted = *p
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			metrics.StockRejections.WithLabelValues("adjust").Inc()
		}
		return domain.Product{}, err
	}

	log.Printf("[ledger] quantity adjusted id=%s delta=%d qty=%d actor=%s", productID, delta, adjusted.Quantity, actorName(ctx))
	return adjusted, nil
}

// adjustQuantity applies delta inside tx. The product row is locked before the
// check, so the check and the write see the same quantity.
func (l *Ledger) adjustQuantity(ctx context.Context, tx store.Tx, productID string, delta int) (*domain.Product, error) {
	p, err := tx.LockProduct(ctx, productID)
	if err != nil {
		return nil, notFound(err, "product", productID)
	}
	next := p.Quantity + delta
	if next < 0 {
		return nil, fmt.Errorf("%w: product %s has %d, change %d", store.ErrInsufficientStock, productID, p.Quantity, delta)
	}
	if next > maxQuantity {
		return nil, invalid("product %s would hold more than %d units", productID, maxQuantity)
	}
	if err := tx.SetQuantity(ctx, productID, next); err != nil {
		return nil, notFound(err, "product", productID)
	}
	p.Quantity = next
	return p, nil
}

func (l *Ledger) Get(ctx context.Context, productID string) (domain.ProductView, error) {
	view, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.ProductView{}, notFound(err, "product", productID)
	}
	return *view, nil
}

func (l *Ledger) ListAll(ctx context.Context) ([]domain.ProductView, error) {
	return l.repo.ListProducts(ctx)
}

// ListBelowThreshold returns products whose quantity is at or below threshold.
func (l *Ledger) ListBelowThreshold(ctx context.Context, threshold int) ([]domain.ProductView, error) {
	return l.repo.ListProductsAtOrBelow(ctx, threshold)
}

func validateProduct(p *domain.Product) error {
	trim(&p.ProductID, &p.Name, &p.Category, &p.StaffID)
	switch {
	case p.ProductID == "":
		return invalid("product_id is required")
	case strings.ContainsAny(p.ProductID, `/\`) || strings.Contains(p.ProductID, ".."):
		return invalid("product_id must not contain path separators or \"..\"")
	case p.Name == "":
		return invalid("name is required")
	case p.Category == "":
		return invalid("category is required")
	case p.StaffID == "":
		return invalid("staff_id is required")
	case !p.Price.IsPositive():
		return invalid("price must be positive")
	case !p.Price.Equal(p.Price.Round(2)):
		return invalid("price must have at most 2 decimal places")
	case p.Price.GreaterThanOrEqual(maxPrice):
		return invalid("price must be below %s", maxPrice)
	case p.Quantity < 0:
		return invalid("quantity must not be negative")
	case p.Quantity > maxQuantity:
		return invalid("quantity must not exceed %d", maxQuantity)
	}
	return nil
}

func requireStaff(ctx context.Context, tx store.Tx, staffID string) error {
	ok, err := tx.StaffExists(ctx, staffID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: staff %s", store.ErrNotFound, staffID)
	}
	return nil
}
