package service

import (
	"context"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/store"
)

// StaffDirectory is read-only: staff rows come from the seed or are managed
// directly in the database.
type StaffDirectory struct {
	repo store.Repository
}

func NewStaffDirectory(repo store.Repository) *StaffDirectory {
	return &StaffDirectory{repo: repo}
}

func (d *StaffDirectory) ListAll(ctx context.Context) ([]domain.Staff, error) {
	return d.repo.ListStaff(ctx)
}

func (d *StaffDirectory) Get(ctx context.Context, staffID string) (domain.Staff, error) {
	st, err := d.repo.GetStaff(ctx, staffID)
	if err != nil {
		return domain.Staff{}, notFound(err, "staff", staffID)
	}
	return *st, nil
}
