package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"storeledger/backend/internal/domain"
	"storeledger/backend/internal/store"
)

type Store struct {
	mu         sync.RWMutex
	staff      map[string]domain.Staff
	users      map[string]domain.User
	products   map[string]domain.Product
	sales      []domain.Sale
	operations []domain.InventoryOperation
	nextSaleID int64
	nextOpID   int64
}

func New() *Store {
	return &Store{
		staff:    make(map[string]domain.Staff),
		users:    make(map[string]domain.User),
		products: make(map[string]domain.Product),
	}
}

// NewSeeded returns a store holding the default staff, accounts and products.
func NewSeeded(adminPassword string, userPassword string) (*Store, error) {
	users, err := store.SeedUsers(adminPassword, userPassword)
	if err != nil {
		return nil, err
	}

	s := New()
	for _, st := range store.SeedStaff() {
		s.staff[st.StaffID] = st
	}
	for _, u := range users {
		s.users[u.Username] = u
	}
	for _, p := range store.SeedProducts() {
		s.products[p.ProductID] = p
	}
	return s, nil
}

func (s *Store) Close() error {
	return nil
}

// InTx holds the write lock for the whole callback, so transactions are fully
// serialized. Mutations record an inverse that is replayed when fn fails.
func (s *Store) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *Store) GetProduct(_ context.Context, productID string) (*domain.ProductView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	view := s.productView(p)
	return &view, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.ProductView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterProducts(func(domain.Product) bool { return true }), nil
}

func (s *Store) ListProductsAtOrBelow(_ context.Context, threshold int) ([]domain.ProductView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.filterProducts(func(p domain.Product) bool { return p.Quantity <= threshold }), nil
}

func (s *Store) ListSales(_ context.Context) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sales := append(make([]domain.Sale, 0, len(s.sales)), s.sales...)
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if c := b.SaleDate.Compare(a.SaleDate); c != 0 {
			return c
		}
		return cmp.Compare(b.SaleID, a.SaleID)
	})
	return sales, nil
}

func (s *Store) ListOperations(_ context.Context) ([]domain.OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.OperationRecord, 0, len(s.operations))
	for _, op := range s.operations {
		rec := domain.OperationRecord{InventoryOperation: op}
		if p, ok := s.products[op.ProductID]; ok {
			name := p.Name
			rec.ProductName = &name
		}
		if st, ok := s.staff[op.StaffID]; ok {
			name := st.Name
			rec.StaffName = &name
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b domain.OperationRecord) int {
		if c := b.OperationDate.Compare(a.OperationDate); c != 0 {
			return c
		}
		return cmp.Compare(b.OperationID, a.OperationID)
	})
	return records, nil
}

func (s *Store) ListStaff(_ context.Context) ([]domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	staff := make([]domain.Staff, 0, len(s.staff))
	for _, st := range s.staff {
		staff = append(staff, st)
	}
	slices.SortFunc(staff, func(a, b domain.Staff) int { return cmp.Compare(a.StaffID, b.StaffID) })
	return staff, nil
}

func (s *Store) GetStaff(_ context.Context, staffID string) (*domain.Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.staff[staffID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) GetUser(_ context.Context, username string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	profile := domain.UserProfile{User: cloneUser(u)}
	if u.StaffID != nil {
		if st, ok := s.staff[*u.StaffID]; ok {
			name, position := st.Name, st.Position
			profile.StaffName = &name
			profile.StaffPosition = &position
		}
	}
	return &profile, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[user.Username]; exists {
		return store.ErrDuplicateKey
	}
	s.users[user.Username] = cloneUser(user)
	return nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[username]
	if !ok {
		return store.ErrNotFound
	}
	u.Password = password
	s.users[username] = u
	return nil
}

func (s *Store) productView(p domain.Product) domain.ProductView {
	view := domain.ProductView{Product: p}
	if st, ok := s.staff[p.StaffID]; ok {
		name := st.Name
		view.StaffName = &name
	}
	return view
}

func (s *Store) filterProducts(keep func(domain.Product) bool) []domain.ProductView {
	views := make([]domain.ProductView, 0, len(s.products))
	for _, p := range s.products {
		if keep(p) {
			views = append(views, s.productView(p))
		}
	}
	slices.SortFunc(views, func(a, b domain.ProductView) int { return cmp.Compare(a.ProductID, b.ProductID) })
	return views
}

func cloneUser(u domain.User) domain.User {
	if u.StaffID != nil {
		staffID := *u.StaffID
		u.StaffID = &staffID
	}
	return u
}

type memTx struct {
	s    *Store
	undo []func()
}

func (tx *memTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memTx) restoreProduct(productID string) {
	prev, existed := tx.s.products[productID]
	tx.undo = append(tx.undo, func() {
		if existed {
			tx.s.products[productID] = prev
		} else {
			delete(tx.s.products, productID)
		}
	})
}

func (tx *memTx) LockProduct(_ context.Context, productID string) (*domain.Product, error) {
	p, ok := tx.s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (tx *memTx) InsertProduct(_ context.Context, product domain.Product) error {
	if _, exists := tx.s.products[product.ProductID]; exists {
		return store.ErrDuplicateKey
	}
	tx.restoreProduct(product.ProductID)
	tx.s.products[product.ProductID] = product
	return nil
}

func (tx *memTx) UpdateProduct(_ context.Context, product domain.Product) error {
	if _, exists := tx.s.products[product.ProductID]; !exists {
		return store.ErrNotFound
	}
	tx.restoreProduct(product.ProductID)
	tx.s.products[product.ProductID] = product
	return nil
}

func (tx *memTx) DeleteProduct(_ context.Context, productID string) error {
	if _, exists := tx.s.products[productID]; !exists {
		return store.ErrNotFound
	}
	tx.restoreProduct(productID)
	delete(tx.s.products, productID)
	return nil
}

func (tx *memTx) SetQuantity(_ context.Context, productID string, quantity int) error {
	p, exists := tx.s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	tx.restoreProduct(productID)
	p.Quantity = quantity
	tx.s.products[productID] = p
	return nil
}

func (tx *memTx) SetPhotoPath(_ context.Context, productID string, path string) error {
	p, exists := tx.s.products[productID]
	if !exists {
		return store.ErrNotFound
	}
	tx.restoreProduct(productID)
	p.PhotoPath = path
	tx.s.products[productID] = p
	return nil
}

func (tx *memTx) StaffExists(_ context.Context, staffID string) (bool, error) {
	_, ok := tx.s.staff[staffID]
	return ok, nil
}

func (tx *memTx) InsertSale(_ context.Context, sale *domain.Sale) error {
	n := len(tx.s.sales)
	tx.s.nextSaleID++
	sale.SaleID = tx.s.nextSaleID
	tx.s.sales = append(tx.s.sales, *sale)
	tx.undo = append(tx.undo, func() { tx.s.sales = tx.s.sales[:n] })
	return nil
}

func (tx *memTx) InsertOperation(_ context.Context, op *domain.InventoryOperation) error {
	n := len(tx.s.operations)
	tx.s.nextOpID++
	op.OperationID = tx.s.nextOpID
	tx.s.operations = append(tx.s.operations, *op)
	tx.undo = append(tx.undo, func() { tx.s.operations = tx.s.operations[:n] })
	return nil
}
