package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/metrics"
	"storeledger/backend/internal/store"
)

type SalesRecorder struct {
	repo   store.Repository
	ledger *Ledger
	now    func() time.Time
}

func NewSalesRecorder(repo store.Repository, ledger *Ledger) *SalesRecorder {
	return &SalesRecorder{repo: repo, ledger: ledger, now: utcNow}
}

// RecordSale appends a sale priced from the current product row and takes the
// units out of stock. Both writes commit together or not at all.
func (r *SalesRecorder) RecordSale(ctx context.Context, productID string, quantity int) (domain.Sale, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Sale{}, invalid("product_id is required")
	}
	if quantity <= 0 {
		return domain.Sale{}, invalid("quantity must be positive")
	}
	if quantity > maxQuantity {
		return domain.Sale{}, invalid("quantity must not exceed %d", maxQuantity)
	}

	var sale domain.Sale
	err := r.repo.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return notFound(err, "product", productID)
		}
		if quantity > p.Quantity {
			return fmt.Errorf("%w: product %s has %d, requested %d", store.ErrInsufficientStock, productID, p.Quantity, quantity)
		}

		sale = domain.Sale{
			ProductID:   p.ProductID,
			ProductName: p.Name,
			Quantity:    quantity,
			UnitPrice:   p.Price,
			TotalPrice:  p.Price.Mul(decimal.NewFromInt(int64(quantity))),
			SaleDate:    r.now(),
		}
		if err := tx.InsertSale(ctx, &sale); err != nil {
			return err
		}
		_, err = r.ledger.adjustQuantity(ctx, tx, productID, -quantity)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			metrics.StockRejections.WithLabelValues("sale").Inc()
		}
		return domain.Sale{}, err
	}

	metrics.SalesRecorded.Inc()
	metrics.UnitsSold.Add(float64(quantity))
	log.Printf("[sales] sale recorded id=%d product=%s qty=%d total=%s actor=%s", sale.SaleID, productID, quantity, sale.TotalPrice.StringFixed(2), actorName(ctx))
	return sale, nil
}

// ListAll returns every sale, newest first.
func (r *SalesRecorder) ListAll(ctx context.Context) ([]domain.Sale, error) {
	return r.repo.ListSales(ctx)
}
