package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rl1809/shop-catalog/internal/config"
	"github.com/rl1809/shop-catalog/internal/core/domain"
)

// MySQL error numbers translated into domain errors.
const (
	errDupEntry        = 1062
	errRowIsReferenced = 1451
	errNoReferencedRow = 1452
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
	errCheckConstraint = 3819
	errOutOfRange      = 1264
)

const unboundedLimit = math.MaxInt32

type MySQLAdapter struct {
	db *gorm.DB
}

func NewMySQLAdapter(db *gorm.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// OpenMySQL opens a pooled gorm handle and pings it. The caller owns the
// handle and closes it with Close.
func OpenMySQL(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn, err := normalizeDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(gormmysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

// normalizeDSN forces parseTime so DATETIME columns scan into time.Time.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	err := m.db.WithContext(ctx).AutoMigrate(
		&userRecord{},
		&userPreferenceRecord{},
		&productRecord{},
		&orderRecord{},
		&orderItemRecord{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func (m *MySQLAdapter) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (m *MySQLAdapter) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Users

func (m *MySQLAdapter) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	rec := toUserRecord(user)
	if err := m.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.User{}, translateError(err, "user", user.ID)
	}
	return rec.toDomain(), nil
}

func (m *MySQLAdapter) GetUser(ctx context.Context, id string) (domain.User, error) {
	var rec userRecord
	if err := m.db.WithContext(ctx).Preload("Preference").First(&rec, "id = ?", id).Error; err != nil {
		return domain.User{}, translateError(err, "user", id)
	}
	return rec.toDomain(), nil
}

func (m *MySQLAdapter) ListUsers(ctx context.Context, params domain.ListParams) ([]domain.User, error) {
	var recs []userRecord
	q := paginate(m.db.WithContext(ctx).Preload("Preference"), params)
	if err := q.Order(creationOrder(params.Order)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}

	users := make([]domain.User, 0, len(recs))
	for _, r := range recs {
		users = append(users, r.toDomain())
	}
	return users, nil
}

func (m *MySQLAdapter) UpdateUser(ctx context.Context, id string, patch domain.UserPatch) (domain.User, error) {
	var updated userRecord
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current userRecord
		if err := tx.Preload("Preference").First(&current, "id = ?", id).Error; err != nil {
			return err
		}

		updates := make(map[string]interface{})
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Email != nil {
			updates["email"] = *patch.Email
		}
		if len(updates) > 0 {
			if err := tx.Model(&current).Updates(updates).Error; err != nil {
				return err
			}
		}

		if patch.ReceiveEmail != nil {
			if current.Preference == nil {
				pref := userPreferenceRecord{
					ID:           uuid.NewString(),
					UserID:       current.ID,
					ReceiveEmail: *patch.ReceiveEmail,
				}
				if err := tx.Create(&pref).Error; err != nil {
					return err
				}
			} else if err := tx.Model(current.Preference).Update("receive_email", *patch.ReceiveEmail).Error; err != nil {
				return err
			}
		}

		return tx.Preload("Preference").First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return domain.User{}, translateError(err, "user", id)
	}
	return updated.toDomain(), nil
}

func (m *MySQLAdapter) DeleteUser(ctx context.Context, id string) (domain.User, error) {
	var rec userRecord
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Preference").First(&rec, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&userRecord{}, "id = ?", id).Error
	})
	if err != nil {
		return domain.User{}, translateError(err, "user", id)
	}
	return rec.toDomain(), nil
}

// Products

func (m *MySQLAdapter) CreateProduct(ctx context.Context, product domain.Product) (domain.Product, error) {
	rec := toProductRecord(product)
	if err := m.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Product{}, translateError(err, "product", product.ID)
	}
	return rec.toDomain(), nil
}

func (m *MySQLAdapter) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	var rec productRecord
	if err := m.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return domain.Product{}, translateError(err, "product", id)
	}
	return rec.toDomain(), nil
}

func (m *MySQLAdapter) GetProducts(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var recs []productRecord
	if err := m.db.WithContext(ctx).Where("id IN ?", ids).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	products := make([]domain.Product, 0, len(recs))
	for _, r := range recs {
		products = append(products, r.toDomain())
	}
	return products, nil
}

func (m *MySQLAdapter) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	q := paginate(m.db.WithContext(ctx), filter.ListParams)
	if filter.Category != "" {
		q = q.Where("category = ?", string(filter.Category))
	}

	var recs []productRecord
	if err := q.Order(productOrder(filter.Order)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}

	products := make([]domain.Product, 0, len(recs))
	for _, r := range recs {
		products = append(products, r.toDomain())
	}
	return products, nil
}

func (m *MySQLAdapter) UpdateProduct(ctx context.Context, id string, patch domain.ProductPatch) (domain.Product, error) {
	var updated productRecord
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current productRecord
		if err := tx.First(&current, "id = ?", id).Error; err != nil {
			return err
		}

		updates := make(map[string]interface{})
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Category != nil {
			updates["category"] = string(*patch.Category)
		}
		if patch.Price != nil {
			updates["price"] = *patch.Price
		}
		if patch.Stock != nil {
			updates["stock"] = *patch.Stock
		}
		if len(updates) > 0 {
			if err := tx.Model(&current).Updates(updates).Error; err != nil {
				return err
			}
		}

		return tx.First(&updated, "id = ?", id).Error
	})
	if err != nil {
		return domain.Product{}, translateError(err, "product", id)
	}
	return updated.toDomain(), nil
}

func (m *MySQLAdapter) DeleteProduct(ctx context.Context, id string) (domain.Product, error) {
	var rec productRecord
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&productRecord{}, "id = ?", id).Error
	})
	if err != nil {
		return domain.Product{}, translateError(err, "product", id)
	}
	return rec.toDomain(), nil
}

// Orders

// CommitOrder applies every stock decrement with a `stock >= ?` guard and
// then inserts the order and its items, all in one transaction. A guard
// that matches no row means another order took the stock after the
// caller's check, and the whole placement is rolled back.
//
// Decrements run first, in product id order, so product row locks are
// exclusive before the order_items foreign key checks touch those rows.
func (m *MySQLAdapter) CommitOrder(ctx context.Context, placement domain.OrderPlacement) (domain.Order, error) {
	if err := placement.Validate(); err != nil {
		return domain.Order{}, err
	}
	rec := toOrderRecord(placement.Order)

	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range placement.Decrements {
			result := tx.Model(&productRecord{}).
				Where("id = ? AND stock >= ?", d.ProductID, d.Quantity).
				Update("stock", gorm.Expr("stock - ?", d.Quantity))
			if result.Error != nil {
				return fmt.Errorf("update stock for %s: %w", d.ProductID, result.Error)
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("product %s: %w", d.ProductID, domain.ErrStockConflict)
			}
		}

		if err := tx.Create(&rec).Error; err != nil {
			return fmt.Errorf("insert order: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, translateOrderError(err, placement.Order)
	}
	return rec.toDomain(), nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	var rec orderRecord
	if err := m.db.WithContext(ctx).Preload("Items", orderItemsByPosition).First(&rec, "id = ?", id).Error; err != nil {
		return domain.Order{}, translateError(err, "order", id)
	}
	return rec.toDomain(), nil
}

func (m *MySQLAdapter) ListOrders(ctx context.Context, params domain.ListParams) ([]domain.Order, error) {
	var recs []orderRecord
	q := paginate(m.db.WithContext(ctx).Preload("Items", orderItemsByPosition), params)
	if err := q.Order(creationOrder(params.Order)).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}

	orders := make([]domain.Order, 0, len(recs))
	for _, r := range recs {
		orders = append(orders, r.toDomain())
	}
	return orders, nil
}

func orderItemsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// paginate applies offset and limit. Limit 0 means no limit; MySQL has no
// OFFSET without LIMIT, so an offset alone gets the largest limit instead.
func paginate(q *gorm.DB, params domain.ListParams) *gorm.DB {
	switch {
	case params.Limit > 0:
		q = q.Limit(params.Limit)
	case params.Offset > 0:
		q = q.Limit(unboundedLimit)
	}
	if params.Offset > 0 {
		q = q.Offset(params.Offset)
	}
	return q
}

func creationOrder(order domain.SortOrder) string {
	if order == domain.SortOldest {
		return "created_at ASC, id ASC"
	}
	return "created_at DESC, id DESC"
}

func productOrder(order domain.SortOrder) string {
	switch order {
	case domain.SortPriceLowest:
		return "price ASC, created_at DESC, id DESC"
	case domain.SortPriceHighest:
		return "price DESC, created_at DESC, id DESC"
	default:
		return creationOrder(order)
	}
}

// translateOrderError treats a deadlock or lock timeout inside the commit
// as a lost race for stock, like a failed stock guard.
func translateOrderError(err error, order domain.Order) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errNoReferencedRow:
			if strings.Contains(myErr.Message, "`user_id`") {
				return domain.NewNotFoundError("user", order.UserID)
			}
			return domain.NewNotFoundError("product")
		case errLockDeadlock, errLockWaitTimeout:
			return fmt.Errorf("order %s: %w: %v", order.ID, domain.ErrStockConflict, myErr)
		}
	}
	return translateError(err, "order", order.ID)
}

// translateError maps gorm and MySQL errors onto the domain taxonomy.
func translateError(err error, entity string, ids ...string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NewNotFoundError(entity, ids...)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case errDupEntry:
			return fmt.Errorf("%s: %w", entity, domain.ErrDuplicate)
		case errNoReferencedRow:
			return domain.NewNotFoundError("referenced record")
		case errRowIsReferenced:
			return domain.NewValidationError("", entity+" is referenced by existing orders")
		case errCheckConstraint:
			return domain.NewValidationError("", myErr.Message)
		case errOutOfRange:
			return domain.NewValidationError("", entity+" value is out of range")
		}
	}
	return fmt.Errorf("%s store: %w", entity, err)
}
