package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-catalog/internal/core/domain"
	"github.com/rl1809/shop-catalog/internal/core/service"
	"github.com/rl1809/shop-catalog/internal/port"
)

const idempotencyHeader = "Idempotency-Key"

func init() {
	// Prices go over the wire as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type HTTPHandler struct {
	catalog *service.CatalogService
	orders  *service.OrderService
	health  port.HealthChecker
}

type CreateUserRequest struct {
	Name  string `json:"name" binding:"required,max=60"`
	Email string `json:"email" binding:"required"`
}

type PatchUserRequest struct {
	Name           *string                `json:"name" binding:"omitempty,min=1,max=60"`
	Email          *string                `json:"email" binding:"omitempty,min=1"`
	UserPreference *PreferencePatchRequest `json:"userPreference"`
}

type PreferencePatchRequest struct {
	ReceiveEmail *bool `json:"receiveEmail"`
}

type CreateProductRequest struct {
	Name        string           `json:"name" binding:"required,max=60"`
	Description string           `json:"description"`
	Category    domain.Category  `json:"category" binding:"required,oneof=FASHION BEAUTY SPORTS ELECTRONICS HOME_INTERIOR HOUSEHOLD_SUPPLIES KITCHENWARE"`
	Price       *decimal.Decimal `json:"price" binding:"required"`
	Stock       *int             `json:"stock" binding:"required,min=0,max=2147483647"`
}

type PatchProductRequest struct {
	Name        *string          `json:"name" binding:"omitempty,min=1,max=60"`
	Description *string          `json:"description"`
	Category    *domain.Category `json:"category" binding:"omitempty,oneof=FASHION BEAUTY SPORTS ELECTRONICS HOME_INTERIOR HOUSEHOLD_SUPPLIES KITCHENWARE"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock" binding:"omitempty,min=0,max=2147483647"`
}

type CreateOrderRequest struct {
	UserID     string             `json:"userId" binding:"required"`
	OrderItems []OrderItemRequest `json:"orderItems" binding:"required,min=1,dive"`
}

type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1,max=2147483647"`
}

func NewHTTPHandler(catalog *service.CatalogService, orders *service.OrderService, health port.HealthChecker) *HTTPHandler {
	return &HTTPHandler{catalog: catalog, orders: orders, health: health}
}

// Users

func (h *HTTPHandler) CreateUser(c *gin.Context) error {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return bindError(err)
	}

	user, err := h.catalog.CreateUser(c.Request.Context(), req.Name, req.Email)
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, user)
	return nil
}

func (h *HTTPHandler) ListUsers(c *gin.Context) error {
	params, err := listParams(c, domain.ParseUserSort)
	if err != nil {
		return err
	}

	users, err := h.catalog.ListUsers(c.Request.Context(), params)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, users)
	return nil
}

func (h *HTTPHandler) GetUser(c *gin.Context) error {
	user, err := h.catalog.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, user)
	return nil
}

func (h *HTTPHandler) PatchUser(c *gin.Context) error {
	var req PatchUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return bindError(err)
	}

	patch := domain.UserPatch{Name: req.Name, Email: req.Email}
	if req.UserPreference != nil {
		patch.ReceiveEmail = req.UserPreference.ReceiveEmail
	}

	user, err := h.catalog.PatchUser(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, user)
	return nil
}

func (h *HTTPHandler) DeleteUser(c *gin.Context) error {
	user, err := h.catalog.DeleteUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, user)
	return nil
}

// Products

func (h *HTTPHandler) CreateProduct(c *gin.Context) error {
	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return bindError(err)
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), domain.Product{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       *req.Price,
		Stock:       *req.Stock,
	})
	if err != nil {
		return err
	}
	c.JSON(http.StatusCreated, product)
	return nil
}

func (h *HTTPHandler) ListProducts(c *gin.Context) error {
	params, err := listParams(c, domain.ParseProductSort)
	if err != nil {
		return err
	}

	filter := domain.ProductFilter{ListParams: params}
	if raw := c.Query("category"); raw != "" {
		category := domain.Category(raw)
		if !category.Valid() {
			return domain.NewValidationError("category", "unknown category")
		}
		filter.Category = category
	}

	products, err := h.catalog.ListProducts(c.Request.Context(), filter)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, products)
	return nil
}

func (h *HTTPHandler) GetProduct(c *gin.Context) error {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, product)
	return nil
}

func (h *HTTPHandler) PatchProduct(c *gin.Context) error {
	var req PatchProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return bindError(err)
	}

	product, err := h.catalog.PatchProduct(c.Request.Context(), c.Param("id"), domain.ProductPatch{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
	})
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, product)
	return nil
}

func (h *HTTPHandler) DeleteProduct(c *gin.Context) error {
	product, err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, product)
	return nil
}

// Orders

func (h *HTTPHandler) CreateOrder(c *gin.Context) error {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return bindError(err)
	}

	lines := make([]domain.OrderLine, 0, len(req.OrderItems))
	for _, item := range req.OrderItems {
		lines = append(lines, domain.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orders.PlaceOrder(c.Request.Context(), service.PlaceOrderRequest{
		UserID:         req.UserID,
		Lines:          lines,
		IdempotencyKey: c.GetHeader(idempotencyHeader),
	})
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, order)
	return nil
}

func (h *HTTPHandler) ListOrders(c *gin.Context) error {
	params, err := listParams(c, domain.ParseUserSort)
	if err != nil {
		return err
	}

	orders, err := h.orders.ListOrders(c.Request.Context(), params)
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, orders)
	return nil
}

func (h *HTTPHandler) GetOrder(c *gin.Context) error {
	order, err := h.orders.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		return err
	}
	c.JSON(http.StatusOK, order)
	return nil
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	if err := h.health.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func listParams(c *gin.Context, parseSort func(string) domain.SortOrder) (domain.ListParams, error) {
	offset, err := queryInt(c, "offset")
	if err != nil {
		return domain.ListParams{}, err
	}
	limit, err := queryInt(c, "limit")
	if err != nil {
		return domain.ListParams{}, err
	}
	return domain.ListParams{
		Offset: offset,
		Limit:  limit,
		Order:  parseSort(c.Query("order")),
	}, nil
}

// queryInt reads a non-negative integer query parameter; absent means 0.
func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError(key, "must be a non-negative integer")
	}
	return n, nil
}
