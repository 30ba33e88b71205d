package handler

import (
	"errors"
	"log"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/rl1809/shop-catalog/internal/core/domain"
)

const (
	codeValidation        = "validation_error"
	codeNotFound          = "not_found"
	codeDuplicate         = "duplicate"
	codeInsufficientStock = "insufficient_stock"
	codeStockConflict     = "concurrent_stock_conflict"
	codeDuplicateRequest  = "duplicate_request"
	codeInternal          = "internal_error"
)

type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type fieldDetail struct {
	Field string `json:"field,omitempty"`
}

func init() {
	// Report binding failures by their JSON names rather than Go field names.
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

// wrap adapts an error-returning handler to gin. All failures are written
// here, after the handler has returned, so a response is either the full
// success body or a single error body.
func wrap(fn func(c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := fn(c); err != nil {
			writeError(c, err)
		}
	}
}

func writeError(c *gin.Context, err error) {
	status, body := errorResponse(err)
	if status == http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, body)
}

func errorResponse(err error) (int, ErrorResponse) {
	var (
		stockErr      *domain.InsufficientStockError
		validationErr *domain.ValidationError
		notFoundErr   *domain.NotFoundError
	)

	switch {
	case errors.As(err, &stockErr):
		return http.StatusUnprocessableEntity, ErrorResponse{
			Error:   codeInsufficientStock,
			Message: stockErr.Error(),
			Details: stockErr.Shortages,
		}
	case errors.As(err, &validationErr):
		resp := ErrorResponse{Error: codeValidation, Message: validationErr.Error()}
		if validationErr.Field != "" {
			resp.Details = fieldDetail{Field: validationErr.Field}
		}
		return http.StatusBadRequest, resp
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrorResponse{Error: codeValidation, Message: err.Error()}
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound, ErrorResponse{Error: codeNotFound, Message: notFoundErr.Error()}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrorResponse{Error: codeNotFound, Message: err.Error()}
	case errors.Is(err, domain.ErrDuplicate):
		return http.StatusBadRequest, ErrorResponse{
			Error:   codeDuplicate,
			Message: "a record with the same unique value already exists",
		}
	case errors.Is(err, domain.ErrStockConflict):
		return http.StatusConflict, ErrorResponse{
			Error:   codeStockConflict,
			Message: "stock changed while the order was being placed",
		}
	case errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict, ErrorResponse{
			Error:   codeDuplicateRequest,
			Message: "a request with this idempotency key was already accepted",
		}
	default:
		return http.StatusInternalServerError, ErrorResponse{
			Error:   codeInternal,
			Message: "internal server error",
		}
	}
}

// bindError turns a gin binding failure into a domain validation error.
// Decoder errors name Go types, so only a fixed message reaches the client.
func bindError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return domain.NewValidationError(fieldPath(fe), describe(fe))
	}
	log.Printf("malformed request body: %v", err)
	return domain.NewValidationError("", "malformed request body")
}

// fieldPath drops the root struct name from the namespace, leaving
// e.g. "orderItems[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func describe(fe validator.FieldError) string {
	unit := ""
	if fe.Kind() == reflect.String {
		unit = " characters"
	} else if fe.Kind() == reflect.Slice {
		unit = " items"
	}

	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + unit
	case "max":
		return "must be at most " + fe.Param() + unit
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "failed " + fe.Tag() + " validation"
}
