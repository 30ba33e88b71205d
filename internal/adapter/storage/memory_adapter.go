package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/shop-catalog/internal/core/domain"
)

// MemoryAdapter is a mutex-guarded catalog store with the same observable
// rules as MySQLAdapter: unique e-mails, restricted product deletes,
// cascading user deletes and guarded stock decrements.
type MemoryAdapter struct {
	mu       sync.Mutex
	users    map[string]domain.User
	products map[string]domain.Product
	orders   map[string]domain.Order
	last     time.Time
}

func NewMemoryAdapter() *MemoryAdapter {
	return &MemoryAdapter{
		users:    make(map[string]domain.User),
		products: make(map[string]domain.Product),
		orders:   make(map[string]domain.Order),
	}
}

func (m *MemoryAdapter) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryAdapter) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.users[user.ID]; ok {
		return domain.User{}, fmt.Errorf("user: %w", domain.ErrDuplicate)
	}
	if m.emailTaken(user.Email, "") {
		return domain.User{}, fmt.Errorf("user: %w", domain.ErrDuplicate)
	}

	now := m.tick()
	user.CreatedAt, user.UpdatedAt = now, now
	if user.Preference != nil {
		pref := *user.Preference
		pref.UserID = user.ID
		pref.CreatedAt, pref.UpdatedAt = now, now
		user.Preference = &pref
	}
	m.users[user.ID] = user
	return copyUser(user), nil
}

func (m *MemoryAdapter) GetUser(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NewNotFoundError("user", id)
	}
	return copyUser(user), nil
}

func (m *MemoryAdapter) ListUsers(ctx context.Context, params domain.ListParams) ([]domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, copyUser(u))
	}
	sort.Slice(users, func(i, j int) bool {
		return createdBefore(params.Order, users[i].CreatedAt, users[i].ID, users[j].CreatedAt, users[j].ID)
	})
	return pageOf(users, params), nil
}

func (m *MemoryAdapter) UpdateUser(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NewNotFoundError("user", id)
	}
	if patch.Email != nil && m.emailTaken(*patch.Email, id) {
		return domain.User{}, fmt.Errorf("user: %w", domain.ErrDuplicate)
	}

	now := m.tick()
	if patch.Name != nil {
		user.Name = *patch.Name
	}
	if patch.Email != nil {
		user.Email = *patch.Email
	}
	if patch.ReceiveEmail != nil {
		var pref domain.UserPreference
		if user.Preference != nil {
			pref = *user.Preference
		} else {
			pref = domain.UserPreference{ID: uuid.NewString(), UserID: id, CreatedAt: now}
		}
		pref.ReceiveEmail = *patch.ReceiveEmail
		pref.UpdatedAt = now
		user.Preference = &pref
	}
	user.UpdatedAt = now
	m.users[id] = user
	return copyUser(user), nil
}

func (m *MemoryAdapter) DeleteUser(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.NewNotFoundError("user", id)
	}
	for orderID, o := range m.orders {
		if o.UserID == id {
			delete(m.orders, orderID)
		}
	}
	delete(m.users, id)
	return copyUser(user), nil
}

func (m *MemoryAdapter) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.products[product.ID]; ok {
		return domain.Product{}, fmt.Errorf("product: %w", domain.ErrDuplicate)
	}
	now := m.tick()
	product.CreatedAt, product.UpdatedAt = now, now
	m.products[product.ID] = product
	return product, nil
}

func (m *MemoryAdapter) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[id]
	if !ok {
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	return product, nil
}

func (m *MemoryAdapter) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make([]domain.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

func (m *MemoryAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	products := make([]domain.Product, 0, len(m.products))
	for _, p := range m.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		products = append(products, p)
	}

	sort.Slice(products, func(i, j int) bool {
		a, b := products[i], products[j]
		switch filter.Order {
		case domain.SortPriceLowest, domain.SortPriceHighest:
			if c := a.Price.Cmp(b.Price); c != 0 {
				return (c < 0) == (filter.Order == domain.SortPriceLowest)
			}
			return createdBefore(domain.SortNewest, a.CreatedAt, a.ID, b.CreatedAt, b.ID)
		default:
			return createdBefore(filter.Order, a.CreatedAt, a.ID, b.CreatedAt, b.ID)
		}
	})
	return pageOf(products, filter.ListParams), nil
}

func (m *MemoryAdapter) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[id]
	if !ok {
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	if patch.Name != nil {
		product.Name = *patch.Name
	}
	if patch.Description != nil {
		product.Description = *patch.Description
	}
	if patch.Category != nil {
		product.Category = *patch.Category
	}
	if patch.Price != nil {
		product.Price = *patch.Price
	}
	if patch.Stock != nil {
		product.Stock = *patch.Stock
	}
	product.UpdatedAt = m.tick()
	m.products[id] = product
	return product, nil
}

func (m *MemoryAdapter) DeleteProduct(ctx context.Context, id string) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	product, ok := m.products[id]
	if !ok {
		return domain.Product{}, domain.NewNotFoundError("product", id)
	}
	for _, o := range m.orders {
		for _, item := range o.Items {
			if item.ProductID == id {
				return domain.Product{}, domain.NewValidationError("", "product is referenced by existing orders")
			}
		}
	}
	delete(m.products, id)
	return product, nil
}

// CommitOrder re-checks every decrement under the lock and applies none of
// them unless all pass.
func (m *MemoryAdapter) CommitOrder(ctx context.Context, placement domain.OrderPlacement) (domain.Order, error) {
	if err := placement.Validate(); err != nil {
		return domain.Order{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	order := placement.Order
	if _, ok := m.users[order.UserID]; !ok {
		return domain.Order{}, domain.NewNotFoundError("user", order.UserID)
	}
	if _, ok := m.orders[order.ID]; ok {
		return domain.Order{}, fmt.Errorf("order: %w", domain.ErrDuplicate)
	}
	for _, item := range order.Items {
		if _, ok := m.products[item.ProductID]; !ok {
			return domain.Order{}, domain.NewNotFoundError("product", item.ProductID)
		}
	}
	for _, d := range placement.Decrements {
		if m.products[d.ProductID].Stock < d.Quantity {
			return domain.Order{}, fmt.Errorf("product %s: %w", d.ProductID, domain.ErrStockConflict)
		}
	}

	now := m.tick()
	for _, d := range placement.Decrements {
		p := m.products[d.ProductID]
		p.Stock -= d.Quantity
		p.UpdatedAt = now
		m.products[d.ProductID] = p
	}

	order.CreatedAt, order.UpdatedAt = now, now
	order.Items = append([]domain.OrderItem(nil), order.Items...)
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
		order.Items[i].CreatedAt = now
	}
	m.orders[order.ID] = order
	return copyOrder(order), nil
}

func (m *MemoryAdapter) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[id]
	if !ok {
		return domain.Order{}, domain.NewNotFoundError("order", id)
	}
	return copyOrder(order), nil
}

func (m *MemoryAdapter) ListOrders(ctx context.Context, params domain.ListParams) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]domain.Order, 0, len(m.orders))
	for _, o := range m.orders {
		orders = append(orders, copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		return createdBefore(params.Order, orders[i].CreatedAt, orders[i].ID, orders[j].CreatedAt, orders[j].ID)
	})
	return pageOf(orders, params), nil
}

// tick returns a strictly increasing timestamp so creation order is total.
// Callers hold m.mu.
func (m *MemoryAdapter) tick() time.Time {
	t := time.Now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func (m *MemoryAdapter) emailTaken(email, exceptID string) bool {
	for id, u := range m.users {
		if id != exceptID && u.Email == email {
			return true
		}
	}
	return false
}

// createdBefore orders by creation time then id, newest first unless
// order is oldest. Same tiebreak as creationOrder.
func createdBefore(order domain.SortOrder, aAt time.Time, aID string, bAt time.Time, bID string) bool {
	asc := order == domain.SortOldest
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt) == asc
	}
	return (aID < bID) == asc
}

func pageOf[T any](items []T, params domain.ListParams) []T {
	if params.Offset >= len(items) {
		return []T{}
	}
	items = items[params.Offset:]
	if params.Limit > 0 && params.Limit < len(items) {
		items = items[:params.Limit]
	}
	return items
}

func copyUser(u domain.User) domain.User {
	if u.Preference != nil {
		pref := *u.Preference
		u.Preference = &pref
	}
	return u
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}
