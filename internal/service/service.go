package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/store"
)

// Column limits shared by every store: quantities are 32-bit integers and
// prices are NUMERIC(12,2).
const maxQuantity = math.MaxInt32

var maxPrice = decimal.New(1, 10)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// actorName is the username recorded in log lines, "-" for calls made
// outside an authenticated request.
func actorName(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.Username != "" {
		return actor.Username
	}
	return "-"
}

// Service bundles the components that share one repository.
type Service struct {
	Ledger     *Ledger
	Sales      *SalesRecorder
	Operations *OperationLog
	Staff      *StaffDirectory
	Users      *UserDirectory
	Reports    *Reporter
}

func New(repo store.Repository) *Service {
	ledger := NewLedger(repo)
	return &Service{
		Ledger:     ledger,
		Sales:      NewSalesRecorder(repo, ledger),
		Operations: NewOperationLog(repo, ledger),
		Staff:      NewStaffDirectory(repo),
		Users:      NewUserDirectory(repo),
		Reports:    NewReporter(repo),
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrValidation, fmt.Sprintf(format, args...))
}

// notFound adds the missing entity to a store.ErrNotFound and passes any other
// error through unchanged.
func notFound(err error, entity string, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s %s", store.ErrNotFound, entity, id)
	}
	return err
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func trim(values ...*string) {
	for _, v := range values {
		*v = strings.TrimSpace(*v)
	}
}
