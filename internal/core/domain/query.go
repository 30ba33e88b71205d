package domain

type SortOrder string

const (
	SortNewest       SortOrder = "newest"
	SortOldest       SortOrder = "oldest"
	SortPriceLowest  SortOrder = "priceLowest"
	SortPriceHighest SortOrder = "priceHighest"
)

// ParseUserSort maps a raw order value to a user sort key; anything
// unrecognised, including the price keys, falls back to newest.
func ParseUserSort(raw string) SortOrder {
	switch SortOrder(raw) {
	case SortOldest:
		return SortOldest
	default:
		return SortNewest
	}
}

// ParseProductSort maps a raw order value to a product sort key, falling
// back to newest.
func ParseProductSort(raw string) SortOrder {
	switch s := SortOrder(raw); s {
	case SortOldest, SortPriceLowest, SortPriceHighest:
		return s
	default:
		return SortNewest
	}
}

// ListParams paginates and sorts a list query. Limit 0 means no limit.
type ListParams struct {
	Offset int
	Limit  int
	Order  SortOrder
}

func (p ListParams) Validate() error {
	if p.Offset < 0 {
		return NewValidationError("offset", "must not be negative")
	}
	if p.Limit < 0 {
		return NewValidationError("limit", "must not be negative")
	}
	return nil
}

type ProductFilter struct {
	ListParams
	// Category filters by exact match when non-empty.
	Category Category
}
