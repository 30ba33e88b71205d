package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"pgregory.net/rapid"

	"github.com/rl1809/shop-catalog/internal/adapter/storage"
	"github.com/rl1809/shop-catalog/internal/core/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Mock IdempotencyRepository
type mockIdempotencyRepo struct {
	mu         sync.Mutex
	keys       map[string]bool
	reserveErr error
	released   []string
}

func newMockIdempotencyRepo() *mockIdempotencyRepo {
	return &mockIdempotencyRepo{keys: make(map[string]bool)}
}

func (m *mockIdempotencyRepo) Reserve(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.reserveErr != nil {
		return false, m.reserveErr
	}
	if m.keys[key] {
		return false, nil
	}
	m.keys[key] = true
	return true, nil
}

func (m *mockIdempotencyRepo) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.keys, key)
	m.released = append(m.released, key)
	return nil
}

// racingStore runs beforeCommit ahead of every commit, standing in for a
// concurrent writer that lands between the stock check and the commit.
type racingStore struct {
	*storage.MemoryAdapter
	beforeCommit func()
}

func (r *racingStore) CommitOrder(ctx context.Context, placement domain.OrderPlacement) (domain.Order, error) {
	if r.beforeCommit != nil {
		r.beforeCommit()
	}
	return r.MemoryAdapter.CommitOrder(ctx, placement)
}

type fixture struct {
	store   *storage.MemoryAdapter
	catalog *CatalogService
	orders  *OrderService
	idem    *mockIdempotencyRepo
}

func newFixture() *fixture {
	store := storage.NewMemoryAdapter()
	idem := newMockIdempotencyRepo()
	return &fixture{
		store:   store,
		catalog: NewCatalogService(store, store),
		orders:  NewOrderService(store, store, idem),
		idem:    idem,
	}
}

func (f *fixture) user(t require.TestingT) domain.User {
	u, err := f.catalog.CreateUser(context.Background(), "buyer", fmt.Sprintf("buyer-%d@example.com", userSeq.Add(1)))
	require.NoError(t, err)
	return u
}

func (f *fixture) product(t require.TestingT, price string, stock int) domain.Product {
	p, err := f.catalog.CreateProduct(context.Background(), domain.Product{
		Name:     "widget",
		Category: domain.CategoryKitchenware,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) stock(t require.TestingT, id string) int {
	p, err := f.store.GetProduct(context.Background(), id)
	require.NoError(t, err)
	return p.Stock
}

var userSeq atomic.Int64

func TestPlaceOrder_Success(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)
	product := f.product(t, "9.99", 10)

	order, err := f.orders.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: user.ID,
		Lines:  []domain.OrderLine{{ProductID: product.ID, Quantity: 3}},
	})
	require.NoError(t, err)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, user.ID, order.UserID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.RequireFromString("9.99")))
	assert.Equal(t, 7, f.stock(t, product.ID))

	stored, err := f.orders.GetOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}

func TestPlaceOrder_AggregatesDuplicateLines(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)

	exact := f.product(t, "1.00", 7)
	order, err := f.orders.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: user.ID,
		Lines: []domain.OrderLine{
			{ProductID: exact.ID, Quantity: 3},
			{ProductID: exact.ID, Quantity: 4},
		},
	})
	require.NoError(t, err)
	assert.Len(t, order.Items, 2, "lines are kept as submitted")
	assert.Equal(t, 0, f.stock(t, exact.ID))

	short := f.product(t, "1.00", 6)
	_, err = f.orders.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: user.ID,
		Lines: []domain.OrderLine{
			{ProductID: short.ID, Quantity: 3},
			{ProductID: short.ID, Quantity: 4},
		},
	})
	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, []domain.StockShortage{{ProductID: short.ID, Requested: 7, Available: 6}}, stockErr.Shortages)
	assert.Equal(t, 6, f.stock(t, short.ID))
}

func TestPlaceOrder_InsufficientStockMutatesNothing(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)

	plenty := f.product(t, "5.00", 100)
	a := f.product(t, "5.00", 1)
	b := f.product(t, "5.00", 0)

	_, err := f.orders.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: user.ID,
		Lines: []domain.OrderLine{
			{ProductID: plenty.ID, Quantity: 10},
			{ProductID: a.ID, Quantity: 2},
			{ProductID: b.ID, Quantity: 1},
		},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.True(t, IsStockFailure(err))

	var stockErr *domain.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Shortages, 2)
	assert.Less(t, stockErr.Shortages[0].ProductID, stockErr.Shortages[1].ProductID)

	assert.Equal(t, 100, f.stock(t, plenty.ID))
	assert.Equal(t, 1, f.stock(t, a.ID))
	assert.Equal(t, 0, f.stock(t, b.ID))

	orders, err := f.orders.ListOrders(ctx, domain.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_MissingProduct(t *testing.T) {
	f := newFixture()
	user := f.user(t)
	product := f.product(t, "2.00", 5)

	_, err := f.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: user.ID,
		Lines: []domain.OrderLine{
			{ProductID: product.ID, Quantity: 1},
			{ProductID: "no-such-product", Quantity: 1},
		},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "no-such-product")
	assert.Equal(t, 5, f.stock(t, product.ID))
}

func TestPlaceOrder_UnknownUser(t *testing.T) {
	f := newFixture()
	product := f.product(t, "2.00", 5)

	_, err := f.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID: "no-such-user",
		Lines:  []domain.OrderLine{{ProductID: product.ID, Quantity: 1}},
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 5, f.stock(t, product.ID))
}

func TestPlaceOrder_Validation(t *testing.T) {
	f := newFixture()

	tests := []struct {
		name string
		req  PlaceOrderRequest
	}{
		{"missing user", PlaceOrderRequest{Lines: []domain.OrderLine{{ProductID: "p", Quantity: 1}}}},
		{"no lines", PlaceOrderRequest{UserID: "u"}},
		{"missing product id", PlaceOrderRequest{UserID: "u", Lines: []domain.OrderLine{{Quantity: 1}}}},
		{"zero quantity", PlaceOrderRequest{UserID: "u", Lines: []domain.OrderLine{{ProductID: "p", Quantity: 0}}}},
		{"negative quantity", PlaceOrderRequest{UserID: "u", Lines: []domain.OrderLine{{ProductID: "p", Quantity: -2}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(context.Background(), tt.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestPlaceOrder_OversizedQuantitiesLeaveStockUnchanged(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)
	product := f.product(t, "1.00", 5)

	tests := []struct {
		name  string
		lines []domain.OrderLine
	}{
		{"wrapping total", []domain.OrderLine{
			{ProductID: product.ID, Quantity: math.MaxInt64},
			{ProductID: product.ID, Quantity: math.MaxInt64},
		}},
		{"total above bound", []domain.OrderLine{
			{ProductID: product.ID, Quantity: domain.MaxOrderQuantity},
			{ProductID: product.ID, Quantity: domain.MaxOrderQuantity},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.PlaceOrder(ctx, PlaceOrderRequest{UserID: user.ID, Lines: tt.lines})
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.False(t, IsStockFailure(err))
			assert.Equal(t, 5, f.stock(t, product.ID))
		})
	}

	orders, err := f.orders.ListOrders(ctx, domain.ListParams{})
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_CommitConflictIsReported(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)
	product := f.product(t, "3.00", 5)

	racing := &racingStore{MemoryAdapter: f.store}
	racing.beforeCommit = func() {
		taken := 4
		_, err := f.store.UpdateProduct(ctx, product.ID, domain.ProductPatch{Stock: &taken})
		require.NoError(t, err)
	}
	svc := NewOrderService(racing, racing, nil)

	_, err := svc.PlaceOrder(ctx, PlaceOrderRequest{
		UserID: user.ID,
		Lines:  []domain.OrderLine{{ProductID: product.ID, Quantity: 5}},
	})
	require.ErrorIs(t, err, domain.ErrStockConflict)
	assert.NotErrorIs(t, err, domain.ErrInsufficientStock)
	assert.True(t, IsStockFailure(err))
	assert.Equal(t, 4, f.stock(t, product.ID))
}

func TestPlaceOrder_ConcurrentNeverOversells(t *testing.T) {
	const (
		initialStock  = 20
		totalRequests = 50
	)

	f := newFixture()
	user := f.user(t)
	product := f.product(t, "1.00", initialStock)

	var successCount, stockFailures atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
				UserID: user.ID,
				Lines:  []domain.OrderLine{{ProductID: product.ID, Quantity: 1}},
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case IsStockFailure(err):
				stockFailures.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(initialStock), successCount.Load())
	assert.Equal(t, int32(totalRequests-initialStock), stockFailures.Load())
	assert.Equal(t, 0, f.stock(t, product.ID))
}

func TestPlaceOrder_DuplicateIdempotencyKey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)
	product := f.product(t, "1.00", 10)

	req := PlaceOrderRequest{
		UserID:         user.ID,
		Lines:          []domain.OrderLine{{ProductID: product.ID, Quantity: 1}},
		IdempotencyKey: "req-1",
	}

	_, err := f.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, req)
	assert.ErrorIs(t, err, domain.ErrDuplicateRequest)

	// Stock should only be decremented once
	assert.Equal(t, 9, f.stock(t, product.ID))

	other := f.user(t)
	req.UserID = other.ID
	_, err = f.orders.PlaceOrder(ctx, req)
	assert.NoError(t, err, "keys are scoped per user")
}

func TestPlaceOrder_FailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)
	product := f.product(t, "1.00", 1)

	req := PlaceOrderRequest{
		UserID:         user.ID,
		Lines:          []domain.OrderLine{{ProductID: product.ID, Quantity: 2}},
		IdempotencyKey: "retry-me",
	}

	_, err := f.orders.PlaceOrder(ctx, req)
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Len(t, f.idem.released, 1)

	restock := 5
	_, err = f.catalog.PatchProduct(ctx, product.ID, domain.ProductPatch{Stock: &restock})
	require.NoError(t, err)

	_, err = f.orders.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, f.stock(t, product.ID))
}

func TestPlaceOrder_IdempotencyStoreError(t *testing.T) {
	f := newFixture()
	user := f.user(t)
	product := f.product(t, "1.00", 1)
	f.idem.reserveErr = errors.New("redis down")

	_, err := f.orders.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:         user.ID,
		Lines:          []domain.OrderLine{{ProductID: product.ID, Quantity: 1}},
		IdempotencyKey: "k",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis down")
	assert.Equal(t, 1, f.stock(t, product.ID))
}

func TestPlaceOrder_KeyIgnoredWithoutIdempotencyStore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	user := f.user(t)
	product := f.product(t, "1.00", 5)
	svc := NewOrderService(f.store, f.store, nil)

	req := PlaceOrderRequest{
		UserID:         user.ID,
		Lines:          []domain.OrderLine{{ProductID: product.ID, Quantity: 1}},
		IdempotencyKey: "same",
	}
	_, err := svc.PlaceOrder(ctx, req)
	require.NoError(t, err)
	_, err = svc.PlaceOrder(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, 3, f.stock(t, product.ID))
}

func TestListOrders_RejectsNegativePagination(t *testing.T) {
	f := newFixture()

	_, err := f.orders.ListOrders(context.Background(), domain.ListParams{Offset: -1})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlaceOrder_StockConservation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		f := newFixture()
		ctx := context.Background()
		user := f.user(rt)

		n := rapid.IntRange(1, 4).Draw(rt, "products")
		products := make([]domain.Product, n)
		before := make(map[string]int, n)
		for i := range products {
			products[i] = f.product(rt, "1.00", rapid.IntRange(0, 10).Draw(rt, fmt.Sprintf("stock%d", i)))
			before[products[i].ID] = products[i].Stock
		}

		lines := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) domain.OrderLine {
			p := rapid.SampledFrom(products).Draw(t, "product")
			return domain.OrderLine{ProductID: p.ID, Quantity: rapid.IntRange(1, 6).Draw(t, "quantity")}
		}), 1, 6).Draw(rt, "lines")

		totals, err := domain.AggregateQuantities(lines)
		require.NoError(rt, err)
		fits := true
		for id, qty := range totals {
			if qty > before[id] {
				fits = false
			}
		}

		_, err = f.orders.PlaceOrder(ctx, PlaceOrderRequest{UserID: user.ID, Lines: lines})

		if fits {
			require.NoError(rt, err)
		} else {
			require.ErrorIs(rt, err, domain.ErrInsufficientStock)
		}

		for _, p := range products {
			got := f.stock(rt, p.ID)
			want := before[p.ID]
			if fits {
				want -= totals[p.ID]
			}
			if got != want {
				rt.Fatalf("product %s: stock %d, want %d", p.ID, got, want)
			}
			if got < 0 {
				rt.Fatalf("product %s: negative stock %d", p.ID, got)
			}
		}
	})
}
