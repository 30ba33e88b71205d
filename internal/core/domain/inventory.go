package domain

import (
	"fmt"
	"sort"
)

// StockDecrement is one conditional stock update inside an order placement.
type StockDecrement struct {
	ProductID string
	Quantity  int
}

type StockShortage struct {
	ProductID string `json:"productId"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// AggregateQuantities sums requested quantities per distinct product. A line
// or total outside 1..MaxOrderQuantity is a validation error, so a total can
// never wrap into a negative decrement.
func AggregateQuantities(lines []OrderLine) (map[string]int, error) {
	totals := make(map[string]int, len(lines))
	for _, l := range lines {
		if l.Quantity < 1 || l.Quantity > MaxOrderQuantity-totals[l.ProductID] {
			return nil, NewValidationError("orderItems",
				fmt.Sprintf("quantity for product %s must total between 1 and %d", l.ProductID, MaxOrderQuantity))
		}
		totals[l.ProductID] += l.Quantity
	}
	return totals, nil
}

// DistinctProductIDs returns the product ids referenced by lines, in first-seen order.
func DistinctProductIDs(lines []OrderLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

// CheckStock compares totals against available stock and returns the
// shortages sorted by product id. Products absent from stock are ignored;
// the caller reports them as missing.
func CheckStock(totals map[string]int, stock map[string]int) []StockShortage {
	var shortages []StockShortage
	for id, requested := range totals {
		available, ok := stock[id]
		if !ok {
			continue
		}
		if available < requested {
			shortages = append(shortages, StockShortage{
				ProductID: id,
				Requested: requested,
				Available: available,
			})
		}
	}
	sort.Slice(shortages, func(i, j int) bool {
		return shortages[i].ProductID < shortages[j].ProductID
	})
	return shortages
}

// Decrements turns per-product totals into decrements ordered by product id,
// so concurrent commits lock product rows in the same order.
func Decrements(totals map[string]int) []StockDecrement {
	out := make([]StockDecrement, 0, len(totals))
	for id, qty := range totals {
		out = append(out, StockDecrement{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}
