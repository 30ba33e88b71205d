package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID        string      `json:"id"`
	UserID    string      `json:"userId"`
	Items     []OrderItem `json:"orderItems"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"orderId"`
	ProductID string          `json:"productId"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	CreatedAt time.Time       `json:"createdAt"`
}

// OrderLine is one requested line item. The same product may appear on
// several lines of one order.
type OrderLine struct {
	ProductID string
	Quantity  int
}

// OrderPlacement is the unit of work committed for one order: the order
// with its items and the stock decrements, applied together or not at all.
type OrderPlacement struct {
	Order      Order
	Decrements []StockDecrement
}

// Validate rejects decrements that would not lower stock.
func (p OrderPlacement) Validate() error {
	for _, d := range p.Decrements {
		if d.Quantity < 1 || d.Quantity > MaxOrderQuantity {
			return NewValidationError("orderItems",
				fmt.Sprintf("quantity for product %s must total between 1 and %d", d.ProductID, MaxOrderQuantity))
		}
	}
	return nil
}

// MaxOrderQuantity bounds a line's quantity and the per-product total of an
// order. It matches the range of the stock column.
const MaxOrderQuantity = math.MaxInt32

func ValidateOrderLines(userID string, lines []OrderLine) error {
	if userID == "" {
		return NewValidationError("userId", "is required")
	}
	if len(lines) == 0 {
		return NewValidationError("orderItems", "must contain at least one item")
	}
	totals := make(map[string]int, len(lines))
	for i, l := range lines {
		if l.ProductID == "" {
			return NewValidationError(fmt.Sprintf("orderItems[%d].productId", i), "is required")
		}
		if l.Quantity < 1 || l.Quantity > MaxOrderQuantity {
			return NewValidationError(fmt.Sprintf("orderItems[%d].quantity", i),
				fmt.Sprintf("must be between 1 and %d", MaxOrderQuantity))
		}
		// Both operands are at most MaxOrderQuantity, so the sum cannot wrap.
		if totals[l.ProductID]+l.Quantity > MaxOrderQuantity {
			return NewValidationError(fmt.Sprintf("orderItems[%d].quantity", i),
				fmt.Sprintf("total quantity for product %s exceeds %d", l.ProductID, MaxOrderQuantity))
		}
		totals[l.ProductID] += l.Quantity
	}
	return nil
}
