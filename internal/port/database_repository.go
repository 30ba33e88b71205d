package port

import (
	"context"

	"github.com/rl1809/shop-catalog/internal/core/domain"
)

type UserRepository interface {
	// CreateUser persists a user together with its preference row
	CreateUser(ctx context.Context, user domain.User) (domain.User, error)

	GetUser(ctx context.Context, id string) (domain.User, error)

	ListUsers(ctx context.Context, params domain.ListParams) ([]domain.User, error)

	// UpdateUser applies only the non-nil fields of patch
	UpdateUser(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error)

	// DeleteUser removes the user and returns the row as it was
	DeleteUser(ctx context.Context, id string) (domain.User, error)
}

type ProductRepository interface {
	CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error)

	GetProduct(ctx context.Context, id string) (domain.Product, error)

	// GetProducts reads the given products in one query; missing ids are simply absent
	GetProducts(ctx context.Context, ids []string) ([]domain.Product, error)

	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)

	UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error)

	DeleteProduct(ctx context.Context, id string) (domain.Product, error)
}

type OrderRepository interface {
	// CommitOrder applies the placement atomically. Each decrement is
	// re-checked against current stock inside the commit; a failed check
	// rolls everything back with domain.ErrStockConflict.
	CommitOrder(ctx context.Context, placement domain.OrderPlacement) (domain.Order, error)

	GetOrder(ctx context.Context, id string) (domain.Order, error)

	ListOrders(ctx context.Context, params domain.ListParams) ([]domain.Order, error)
}

// CatalogRepository is the full store used by the services.
type CatalogRepository interface {
	UserRepository
	ProductRepository
	OrderRepository

	Ping(ctx context.Context) error
}
