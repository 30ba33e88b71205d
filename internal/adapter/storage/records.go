package storage

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/shop-catalog/internal/core/domain"
)

type userRecord struct {
	ID         string                `gorm:"type:char(36);primaryKey"`
	Name       string                `gorm:"size:60;not null"`
	Email      string                `gorm:"size:255;not null;uniqueIndex"`
	Preference *userPreferenceRecord `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Orders     []orderRecord         `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt  time.Time             `gorm:"not null;index"`
	UpdatedAt  time.Time             `gorm:"not null"`
}

func (userRecord) TableName() string { return "users" }

type userPreferenceRecord struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	UserID       string    `gorm:"type:char(36);not null;uniqueIndex"`
	ReceiveEmail bool      `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (userPreferenceRecord) TableName() string { return "user_preferences" }

type productRecord struct {
	ID          string          `gorm:"type:char(36);primaryKey"`
	Name        string          `gorm:"size:60;not null"`
	Description string          `gorm:"type:text;not null"`
	Category    string          `gorm:"size:32;not null;index"`
	Price       decimal.Decimal `gorm:"type:decimal(12,2);not null;index"`
	Stock       int             `gorm:"not null;check:chk_products_stock,stock >= 0"`
	CreatedAt   time.Time       `gorm:"not null;index"`
	UpdatedAt   time.Time       `gorm:"not null"`
}

func (productRecord) TableName() string { return "products" }

type orderRecord struct {
	ID        string            `gorm:"type:char(36);primaryKey"`
	UserID    string            `gorm:"type:char(36);not null;index"`
	Items     []orderItemRecord `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	CreatedAt time.Time         `gorm:"not null;index"`
	UpdatedAt time.Time         `gorm:"not null"`
}

func (orderRecord) TableName() string { return "orders" }

type orderItemRecord struct {
	ID        string          `gorm:"type:char(36);primaryKey"`
	OrderID   string          `gorm:"type:char(36);not null;index"`
	Position  int             `gorm:"not null"`
	ProductID string          `gorm:"type:char(36);not null;index"`
	Product   *productRecord  `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity  int             `gorm:"not null;check:chk_order_items_quantity,quantity > 0"`
	CreatedAt time.Time       `gorm:"not null"`
}

func (orderItemRecord) TableName() string { return "order_items" }

func toUserRecord(u domain.User) userRecord {
	rec := userRecord{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
	}
	if u.Preference != nil {
		rec.Preference = &userPreferenceRecord{
			ID:           u.Preference.ID,
			UserID:       u.ID,
			ReceiveEmail: u.Preference.ReceiveEmail,
		}
	}
	return rec
}

func (r userRecord) toDomain() domain.User {
	u := domain.User{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.Preference != nil {
		u.Preference = &domain.UserPreference{
			ID:           r.Preference.ID,
			UserID:       r.Preference.UserID,
			ReceiveEmail: r.Preference.ReceiveEmail,
			CreatedAt:    r.Preference.CreatedAt,
			UpdatedAt:    r.Preference.UpdatedAt,
		}
	}
	return u
}

func toProductRecord(p domain.Product) productRecord {
	return productRecord{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    string(p.Category),
		Price:       p.Price,
		Stock:       p.Stock,
	}
}

func (r productRecord) toDomain() domain.Product {
	return domain.Product{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Category:    domain.Category(r.Category),
		Price:       r.Price,
		Stock:       r.Stock,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func toOrderRecord(o domain.Order) orderRecord {
	rec := orderRecord{
		ID:     o.ID,
		UserID: o.UserID,
		Items:  make([]orderItemRecord, 0, len(o.Items)),
	}
	for i, item := range o.Items {
		rec.Items = append(rec.Items, orderItemRecord{
			ID:        item.ID,
			OrderID:   o.ID,
			Position:  i,
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		})
	}
	return rec
}

func (r orderRecord) toDomain() domain.Order {
	o := domain.Order{
		ID:        r.ID,
		UserID:    r.UserID,
		Items:     make([]domain.OrderItem, 0, len(r.Items)),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for _, item := range r.Items {
		o.Items = append(o.Items, domain.OrderItem{
			ID:        item.ID,
			OrderID:   item.OrderID,
			ProductID: item.ProductID,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			CreatedAt: item.CreatedAt,
		})
	}
	return o
}
