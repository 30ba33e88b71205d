package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("duplicate value")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockConflict     = errors.New("concurrent stock conflict")
	ErrDuplicateRequest  = errors.New("duplicate request")
)

// ValidationError describes a rejected input field.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NotFoundError names the entity kind and the identifiers that were missing.
type NotFoundError struct {
	Entity string
	IDs    []string
}

func NewNotFoundError(entity string, ids ...string) *NotFoundError {
	return &NotFoundError{Entity: entity, IDs: ids}
}

func (e *NotFoundError) Error() string {
	if len(e.IDs) == 0 {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s not found: %s", e.Entity, strings.Join(e.IDs, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InsufficientStockError lists every product whose stock cannot cover the
// total quantity requested for it.
type InsufficientStockError struct {
	Shortages []StockShortage
}

func (e *InsufficientStockError) Error() string {
	ids := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		ids = append(ids, s.ProductID)
	}
	return fmt.Sprintf("insufficient stock for products: %s", strings.Join(ids, ", "))
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
