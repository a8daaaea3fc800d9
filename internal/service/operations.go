package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/metrics"
	"storeledger/backend/internal/store"
)

type OperationLog struct {
	repo   store.Repository
	ledger *Ledger
	now    func() time.Time
}

func NewOperationLog(repo store.Repository, ledger *Ledger) *OperationLog {
	return &OperationLog{repo: repo, ledger: ledger, now: utcNow}
}

// RecordOperation appends a stock movement and applies it to the product.
// When StaffID is empty the staff linked to the calling user is used.
func (o *OperationLog) RecordOperation(ctx context.Context, req domain.OperationRequest) (domain.InventoryOperation, error) {
	trim(&req.ProductID, &req.OperationType, &req.StaffID, &req.Notes)
	req.OperationType = strings.ToLower(req.OperationType)
	if req.StaffID == "" {
		if actor, ok := ActorFromContext(ctx); ok {
			req.StaffID = actor.StaffID
		}
	}

	switch {
	case req.ProductID == "":
		return domain.InventoryOperation{}, invalid("product_id is required")
	case req.OperationType != domain.OperationIn && req.OperationType != domain.OperationOut:
		return domain.InventoryOperation{}, invalid("operation_type must be %q or %q", domain.OperationIn, domain.OperationOut)
	case req.Quantity <= 0:
		return domain.InventoryOperation{}, invalid("quantity must be positive")
	case req.Quantity > maxQuantity:
		return domain.InventoryOperation{}, invalid("quantity must not exceed %d", maxQuantity)
	case req.StaffID == "":
		return domain.InventoryOperation{}, invalid("staff_id is required")
	}

	op := domain.InventoryOperation{
		ProductID:     req.ProductID,
		OperationType: req.OperationType,
		Quantity:      req.Quantity,
		StaffID:       req.StaffID,
		Notes:         req.Notes,
	}
	err := o.repo.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.LockProduct(ctx, op.ProductID)
		if err != nil {
			return notFound(err, "product", op.ProductID)
		}
		if err := requireStaff(ctx, tx, op.StaffID); err != nil {
			return err
		}
		if op.OperationType == domain.OperationOut && op.Quantity > p.Quantity {
			return fmt.Errorf("%w: product %s has %d, requested %d", store.ErrInsufficientStock, op.ProductID, p.Quantity, op.Quantity)
		}

		op.OperationDate = o.now()
		if err := tx.InsertOperation(ctx, &op); err != nil {
			return err
		}
		_, err = o.ledger.adjustQuantity(ctx, tx, op.ProductID, op.Signed())
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrInsufficientStock) {
			metrics.StockRejections.WithLabelValues("operation").Inc()
		}
		return domain.InventoryOperation{}, err
	}

	metrics.StockOperations.WithLabelValues(op.OperationType).Inc()
	log.Printf("[inventory] operation recorded id=%d product=%s type=%s qty=%d staff=%s actor=%s", op.OperationID, op.ProductID, op.OperationType, op.Quantity, op.StaffID, actorName(ctx))
	return op, nil
}

// ListAll returns every operation, newest first, with the product's stock
// level right after each one.
func (o *OperationLog) ListAll(ctx context.Context) ([]domain.OperationEntry, error) {
	var (
		records  []domain.OperationRecord
		products []domain.ProductView
		sales    []domain.Sale
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = o.repo.ListOperations(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = o.repo.ListProducts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		sales, err = o.repo.ListSales(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	current := make(map[string]int, len(products))
	for _, p := range products {
		current[p.ProductID] = p.Quantity
	}

	after := stockAfter(records, sales, current)
	entries := make([]domain.OperationEntry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, domain.OperationEntry{
			OperationRecord: rec,
			StockAfter:      after[rec.OperationID],
		})
	}
	return entries, nil
}

// stockAfter computes the balance following each operation, keyed by
// operation id. Operations of one product are ordered by date, then id.
//
// For a product that still exists the balance is anchored to its current
// quantity and walked backwards: units sold after an operation are added
// back and the operation itself is undone. A sale stamped with the same
// instant as an operation counts as preceding it. For a deleted product the
// balance is the signed sum of its operations starting from zero, so the values
// shown after a delete are not comparable to those shown while the product
// existed: the starting stock and the sales are no longer counted.
func stockAfter(records []domain.OperationRecord, sales []domain.Sale, current map[string]int) map[int64]int {
	opsByProduct := make(map[string][]domain.InventoryOperation)
	for _, rec := range records {
		opsByProduct[rec.ProductID] = append(opsByProduct[rec.ProductID], rec.InventoryOperation)
	}
	salesByProduct := make(map[string][]domain.Sale)
	for _, s := range sales {
		salesByProduct[s.ProductID] = append(salesByProduct[s.ProductID], s)
	}

	result := make(map[int64]int, len(records))
	for productID, ops := range opsByProduct {
		slices.SortFunc(ops, func(a, b domain.InventoryOperation) int {
			if c := a.OperationDate.Compare(b.OperationDate); c != 0 {
				return c
			}
			return cmp.Compare(a.OperationID, b.OperationID)
		})

		quantity, exists := current[productID]
		if !exists {
			balance := 0
			for _, op := range ops {
				balance += op.Signed()
				result[op.OperationID] = balance
			}
			continue
		}

		sold := salesByProduct[productID]
		slices.SortFunc(sold, func(a, b domain.Sale) int {
			if c := a.SaleDate.Compare(b.SaleDate); c != 0 {
				return c
			}
			return cmp.Compare(a.SaleID, b.SaleID)
		})

		balance := quantity
		j := len(sold) - 1
		for i := len(ops) - 1; i >= 0; i-- {
			for j >= 0 && sold[j].SaleDate.After(ops[i].OperationDate) {
				balance += sold[j].Quantity
				j--
			}
			result[ops[i].OperationID] = balance
			balance -= ops[i].Signed()
		}
	}
	return result
}
