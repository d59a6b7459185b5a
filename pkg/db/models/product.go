package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is the catalog row backing an inventory counter when it has no variants.
type Product struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	SKU           string           `gorm:"column:sku;not null;uniqueIndex"`
	Name          string           `gorm:"column:name;not null"`
	Description   *string          `gorm:"column:description"`
	ProductType   string           `gorm:"column:product_type;not null;default:'physical'"`
	Images        []string         `gorm:"column:images;type:jsonb;serializer:json"`
	TrackStock    bool             `gorm:"column:track_stock;not null;default:true"`
	StockQuantity int              `gorm:"column:stock_quantity;not null;default:0"`
	Variants      []ProductVariant `gorm:"foreignKey:ProductID"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProductVariant carries its own counter; reservations against a variant never touch the parent.
type ProductVariant struct {
	ID            uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID         `gorm:"column:product_id;type:uuid;not null;index"`
	SKU           string            `gorm:"column:sku;not null;uniqueIndex"`
	Name          string            `gorm:"column:name;not null"`
	Attributes    map[string]string `gorm:"column:attributes;type:jsonb;serializer:json"`
	TrackStock    bool              `gorm:"column:track_stock;not null;default:true"`
	StockQuantity int               `gorm:"column:stock_quantity;not null;default:0"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	ensureID(&v.ID)
	return nil
}
