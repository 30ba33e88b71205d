package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/rl1809/shop-catalog/internal/core/domain"
	"github.com/rl1809/shop-catalog/internal/port"
)

// CatalogService covers user and product reads and writes. These are
// validate-then-store operations with no cross-entity side effects.
type CatalogService struct {
	users    port.UserRepository
	products port.ProductRepository
	newID    func() string
}

func NewCatalogService(users port.UserRepository, products port.ProductRepository) *CatalogService {
	return &CatalogService{
		users:    users,
		products: products,
		newID:    uuid.NewString,
	}
}

func (s *CatalogService) CreateUser(ctx context.Context, name, email string) (domain.User, error) {
	if err := domain.ValidateUserName(name); err != nil {
		return domain.User{}, err
	}
	email, err := domain.NormalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}

	userID := s.newID()
	user := domain.User{
		ID:    userID,
		Name:  strings.TrimSpace(name),
		Email: email,
		Preference: &domain.UserPreference{
			ID:           s.newID(),
			UserID:       userID,
			ReceiveEmail: domain.DefaultReceiveEmail,
		},
	}

	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *CatalogService) GetUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (s *CatalogService) ListUsers(ctx context.Context, params domain.ListParams) ([]domain.User, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *CatalogService) PatchUser(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	if patch.Name != nil {
		if err := domain.ValidateUserName(*patch.Name); err != nil {
			return domain.User{}, err
		}
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Email != nil {
		email, err := domain.NormalizeEmail(*patch.Email)
		if err != nil {
			return domain.User{}, err
		}
		patch.Email = &email
	}

	user, err := s.users.UpdateUser(ctx, id, patch)
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

func (s *CatalogService) DeleteUser(ctx context.Context, id string) (domain.User, error) {
	user, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return domain.User{}, fmt.Errorf("delete user: %w", err)
	}
	return user, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	if err := product.Validate(); err != nil {
		return domain.Product{}, err
	}
	product.ID = s.newID()

	created, err := s.products.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	products, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (s *CatalogService) PatchProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	if err := patch.Validate(); err != nil {
		return domain.Product{}, err
	}
	product, err := s.products.UpdateProduct(ctx, id, patch)
	if err != nil {
		return domain.Product{}, fmt.Errorf("update product: %w", err)
	}
	return product, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.DeleteProduct(ctx, id)
	if err != nil {
		return domain.Product{}, fmt.Errorf("delete product: %w", err)
	}
	return product, nil
}
