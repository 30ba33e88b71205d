package domain

import (
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

type Category string

const (
	CategoryFashion           Category = "FASHION"
	CategoryBeauty            Category = "BEAUTY"
	CategorySports            Category = "SPORTS"
	CategoryElectronics       Category = "ELECTRONICS"
	CategoryHomeInterior      Category = "HOME_INTERIOR"
	CategoryHouseholdSupplies Category = "HOUSEHOLD_SUPPLIES"
	CategoryKitchenware       Category = "KITCHENWARE"
)

var Categories = []Category{
	CategoryFashion,
	CategoryBeauty,
	CategorySports,
	CategoryElectronics,
	CategoryHomeInterior,
	CategoryHouseholdSupplies,
	CategoryKitchenware,
}

func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

const (
	ProductNameMinLen = 1
	ProductNameMaxLen = 60

	// PriceScale is the number of fraction digits a price may carry.
	PriceScale = 2
	MaxStock   = math.MaxInt32
)

// MaxPrice is the exclusive upper bound of a price, decimal(12,2).
var MaxPrice = decimal.New(1, 10)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    Category        `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// ProductPatch holds the fields of a partial product update; nil means unchanged.
type ProductPatch struct {
	Name        *string
	Description *string
	Category    *Category
	Price       *decimal.Decimal
	Stock       *int
}

func (p ProductPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Category == nil && p.Price == nil && p.Stock == nil
}

func (p Product) Validate() error {
	if err := validateProductName(p.Name); err != nil {
		return err
	}
	if !p.Category.Valid() {
		return NewValidationError("category", "unknown category")
	}
	if err := validatePrice(p.Price); err != nil {
		return err
	}
	return validateStock(p.Stock)
}

func (p ProductPatch) Validate() error {
	if p.Name != nil {
		if err := validateProductName(*p.Name); err != nil {
			return err
		}
	}
	if p.Category != nil && !p.Category.Valid() {
		return NewValidationError("category", "unknown category")
	}
	if p.Price != nil {
		if err := validatePrice(*p.Price); err != nil {
			return err
		}
	}
	if p.Stock != nil {
		return validateStock(*p.Stock)
	}
	return nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return NewValidationError("price", "must not be negative")
	}
	if !price.Equal(price.Round(PriceScale)) {
		return NewValidationError("price", "must have at most 2 decimal places")
	}
	if price.GreaterThanOrEqual(MaxPrice) {
		return NewValidationError("price", "must be less than "+MaxPrice.String())
	}
	return nil
}

func validateStock(stock int) error {
	if stock < 0 || stock > MaxStock {
		return NewValidationError("stock", "must be between 0 and "+strconv.Itoa(MaxStock))
	}
	return nil
}

func validateProductName(name string) error {
	n := utf8.RuneCountInString(name)
	if n < ProductNameMinLen || n > ProductNameMaxLen {
		return NewValidationError("name", "must be between 1 and 60 characters")
	}
	return nil
}
