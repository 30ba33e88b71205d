package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/rl1809/shop-catalog/internal/core/domain"
	"github.com/rl1809/shop-catalog/internal/port"
)

type OrderService struct {
	products    port.ProductRepository
	orders      port.OrderRepository
	idempotency port.IdempotencyRepository
	newID       func() string
}

// NewOrderService builds the order placement service. idempotency may be nil,
// in which case idempotency keys are ignored.
func NewOrderService(products port.ProductRepository, orders port.OrderRepository, idempotency port.IdempotencyRepository) *OrderService {
	return &OrderService{
		products:    products,
		orders:      orders,
		idempotency: idempotency,
		newID:       uuid.NewString,
	}
}

type PlaceOrderRequest struct {
	UserID         string
	Lines          []domain.OrderLine
	IdempotencyKey string
}

// PlaceOrder checks stock for the summed quantity of every referenced
// product and commits the order, its items and all stock decrements as one
// unit. A failed commit is returned as is and never retried.
func (s *OrderService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (domain.Order, error) {
	if err := domain.ValidateOrderLines(req.UserID, req.Lines); err != nil {
		return domain.Order{}, err
	}

	var reservedKey string
	if req.IdempotencyKey != "" && s.idempotency != nil {
		key := fmt.Sprintf("order:%s:%s", req.UserID, req.IdempotencyKey)
		ok, err := s.idempotency.Reserve(ctx, key)
		if err != nil {
			return domain.Order{}, fmt.Errorf("idempotency check failed: %w", err)
		}
		if !ok {
			return domain.Order{}, domain.ErrDuplicateRequest
		}
		reservedKey = key
	}

	order, err := s.placeOrder(ctx, req.UserID, req.Lines)
	if err != nil && reservedKey != "" {
		if releaseErr := s.idempotency.Release(context.WithoutCancel(ctx), reservedKey); releaseErr != nil {
			log.Printf("failed to release idempotency key %s: %v", reservedKey, releaseErr)
		}
	}
	return order, err
}

func (s *OrderService) placeOrder(ctx context.Context, userID string, lines []domain.OrderLine) (domain.Order, error) {
	ids := domain.DistinctProductIDs(lines)

	products, err := s.products.GetProducts(ctx, ids)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load products: %w", err)
	}

	byID := make(map[string]domain.Product, len(products))
	stock := make(map[string]int, len(products))
	for _, p := range products {
		byID[p.ID] = p
		stock[p.ID] = p.Stock
	}

	var missing []string
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return domain.Order{}, domain.NewNotFoundError("product", missing...)
	}

	totals, err := domain.AggregateQuantities(lines)
	if err != nil {
		return domain.Order{}, err
	}
	if shortages := domain.CheckStock(totals, stock); len(shortages) > 0 {
		return domain.Order{}, &domain.InsufficientStockError{Shortages: shortages}
	}

	placement := s.buildPlacement(userID, lines, byID, totals)

	order, err := s.orders.CommitOrder(ctx, placement)
	if err != nil {
		return domain.Order{}, fmt.Errorf("commit order: %w", err)
	}
	return order, nil
}

func (s *OrderService) buildPlacement(userID string, lines []domain.OrderLine, products map[string]domain.Product, totals map[string]int) domain.OrderPlacement {
	orderID := s.newID()

	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ID:        s.newID(),
			OrderID:   orderID,
			ProductID: l.ProductID,
			UnitPrice: products[l.ProductID].Price,
			Quantity:  l.Quantity,
		})
	}

	return domain.OrderPlacement{
		Order: domain.Order{
			ID:     orderID,
			UserID: userID,
			Items:  items,
		},
		Decrements: domain.Decrements(totals),
	}
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, params domain.ListParams) ([]domain.Order, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	orders, err := s.orders.ListOrders(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// IsStockFailure reports whether err is one of the two order-placement
// stock outcomes.
func IsStockFailure(err error) bool {
	return errors.Is(err, domain.ErrInsufficientStock) || errors.Is(err, domain.ErrStockConflict)
}
