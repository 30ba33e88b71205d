package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw         string
		wantUser    SortOrder
		wantProduct SortOrder
	}{
		{"", SortNewest, SortNewest},
		{"newest", SortNewest, SortNewest},
		{"oldest", SortOldest, SortOldest},
		{"priceLowest", SortNewest, SortPriceLowest},
		{"priceHighest", SortNewest, SortPriceHighest},
		{"bogus", SortNewest, SortNewest},
		{"OLDEST", SortNewest, SortNewest},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.wantUser, ParseUserSort(tt.raw))
			assert.Equal(t, tt.wantProduct, ParseProductSort(tt.raw))
		})
	}
}

func TestListParamsValidate(t *testing.T) {
	assert.NoError(t, ListParams{}.Validate())
	assert.NoError(t, ListParams{Offset: 3, Limit: 0}.Validate())
	assert.ErrorIs(t, ListParams{Offset: -1}.Validate(), ErrValidation)
	assert.ErrorIs(t, ListParams{Limit: -1}.Validate(), ErrValidation)
}

func TestCheckStock(t *testing.T) {
	lines := []OrderLine{
		{ProductID: "b", Quantity: 3},
		{ProductID: "a", Quantity: 2},
		{ProductID: "b", Quantity: 4},
		{ProductID: "c", Quantity: 1},
	}
	totals, err := AggregateQuantities(lines)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"a": 2, "b": 7, "c": 1}, totals)
	assert.Equal(t, []string{"b", "a", "c"}, DistinctProductIDs(lines))

	shortages := CheckStock(totals, map[string]int{"a": 1, "b": 6, "c": 1})
	assert.Equal(t, []StockShortage{
		{ProductID: "a", Requested: 2, Available: 1},
		{ProductID: "b", Requested: 7, Available: 6},
	}, shortages)

	assert.Empty(t, CheckStock(totals, map[string]int{"a": 2, "b": 7, "c": 1}))
	assert.Empty(t, CheckStock(totals, map[string]int{}), "unknown products are reported elsewhere")
}

func TestDecrementsSortedByProduct(t *testing.T) {
	got := Decrements(map[string]int{"z": 1, "m": 2, "a": 3})
	assert.Equal(t, []StockDecrement{
		{ProductID: "a", Quantity: 3},
		{ProductID: "m", Quantity: 2},
		{ProductID: "z", Quantity: 1},
	}, got)
}

func TestAggregateQuantities_PreservesTotal(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOf(rapid.Custom(func(t *rapid.T) OrderLine {
			return OrderLine{
				ProductID: rapid.SampledFrom([]string{"p1", "p2", "p3"}).Draw(t, "id"),
				Quantity:  rapid.IntRange(1, 100).Draw(t, "qty"),
			}
		})).Draw(t, "lines")

		sum := 0
		for _, l := range lines {
			sum += l.Quantity
		}

		totals, err := AggregateQuantities(lines)
		if err != nil {
			t.Fatalf("aggregate: %v", err)
		}
		decrements := Decrements(totals)

		totalOfTotals := 0
		for _, d := range decrements {
			totalOfTotals += d.Quantity
		}
		if sum != totalOfTotals {
			t.Fatalf("decrements total %d, lines total %d", totalOfTotals, sum)
		}
		if got, want := len(decrements), len(DistinctProductIDs(lines)); got != want {
			t.Fatalf("%d decrements for %d distinct products", got, want)
		}
	})
}

func TestValidateOrderLines(t *testing.T) {
	assert.NoError(t, ValidateOrderLines("u", []OrderLine{{ProductID: "p", Quantity: 1}}))

	err := ValidateOrderLines("u", []OrderLine{{ProductID: "p", Quantity: 1}, {ProductID: "q", Quantity: 0}})
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "orderItems[1].quantity", vErr.Field)
}

func TestOrderQuantityBounds(t *testing.T) {
	tests := []struct {
		name      string
		lines     []OrderLine
		wantField string
	}{
		{"line above bound", []OrderLine{{ProductID: "p", Quantity: math.MaxInt64}}, "orderItems[0].quantity"},
		{"total wraps", []OrderLine{{ProductID: "p", Quantity: math.MaxInt64}, {ProductID: "p", Quantity: math.MaxInt64}}, "orderItems[0].quantity"},
		{"total above bound", []OrderLine{{ProductID: "p", Quantity: MaxOrderQuantity}, {ProductID: "p", Quantity: 1}}, "orderItems[1].quantity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *ValidationError
			require.ErrorAs(t, ValidateOrderLines("u", tt.lines), &vErr)
			assert.Equal(t, tt.wantField, vErr.Field)

			totals, err := AggregateQuantities(tt.lines)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Nil(t, totals)
		})
	}

	totals, err := AggregateQuantities([]OrderLine{
		{ProductID: "p", Quantity: MaxOrderQuantity - 1},
		{ProductID: "p", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, MaxOrderQuantity, totals["p"])
	assert.NoError(t, ValidateOrderLines("u", []OrderLine{{ProductID: "p", Quantity: MaxOrderQuantity}}))
}

func TestErrorTaxonomy(t *testing.T) {
	wrapped := fmt.Errorf("get user: %w", NewNotFoundError("user", "u-1"))
	assert.ErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrValidation)
	assert.Equal(t, "get user: user not found: u-1", wrapped.Error())

	stockErr := fmt.Errorf("place: %w", &InsufficientStockError{Shortages: []StockShortage{{ProductID: "a"}, {ProductID: "b"}}})
	assert.ErrorIs(t, stockErr, ErrInsufficientStock)
	assert.False(t, errors.Is(stockErr, ErrStockConflict))
	assert.Contains(t, stockErr.Error(), "a, b")
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Bob@Example.ORG ")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.org", got)

	for _, bad := range []string{"", "bob", "Bob <bob@example.org>", "bob@"} {
		_, err := NormalizeEmail(bad)
		assert.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestProductValidate(t *testing.T) {
	p := Product{Name: "ok", Category: CategoryElectronics, Price: decimal.Zero}
	assert.NoError(t, p.Validate())

	p.Name = strings.Repeat("é", 60)
	assert.NoError(t, p.Validate(), "length is counted in characters")

	p.Name = strings.Repeat("é", 61)
	assert.ErrorIs(t, p.Validate(), ErrValidation)

	assert.True(t, ProductPatch{}.Empty())
	bad := Category("TOYS")
	assert.ErrorIs(t, ProductPatch{Category: &bad}.Validate(), ErrValidation)
}

func TestProductPriceAndStockBounds(t *testing.T) {
	tests := []struct {
		price string
		stock int
		ok    bool
	}{
		{"0", 0, true},
		{"19.99", 10, true},
		{"1.50", 1, true},
		{"9999999999.99", MaxStock, true},
		{"0.005", 1, false},
		{"1.999", 1, false},
		{"10000000000", 1, false},
		{"1e10", 1, false},
		{"-0.01", 1, false},
		{"1", MaxStock + 1, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%d", tt.price, tt.stock), func(t *testing.T) {
			price := decimal.RequireFromString(tt.price)
			stock := tt.stock
			p := Product{Name: "ok", Category: CategoryBeauty, Price: price, Stock: stock}
			patch := ProductPatch{Price: &price, Stock: &stock}
			if tt.ok {
				assert.NoError(t, p.Validate())
				assert.NoError(t, patch.Validate())
				return
			}
			assert.ErrorIs(t, p.Validate(), ErrValidation)
			assert.ErrorIs(t, patch.Validate(), ErrValidation)
		})
	}
}
