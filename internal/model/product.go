package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductOption is an option a product can be ordered with.
type ProductOption struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"price_delta"`
}

// Product is the catalog entry an order item is priced from. The catalog is
// maintained elsewhere; the engine resolves prices server side so terminals
// never supply them.
type Product struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	SKU        string          `gorm:"uniqueIndex;not null"`
	Name       string          `gorm:"index;not null"`
	CategoryID *uuid.UUID      `gorm:"type:uuid;index"`
	Tags       []string        `gorm:"serializer:json;type:jsonb"`
	Price      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// TaxRate is a fraction (0.21 = 21%), prices are tax inclusive.
	TaxRate   decimal.Decimal `gorm:"type:decimal(5,4);not null;default:0"`
	Options   []ProductOption `gorm:"serializer:json;type:jsonb"`
	Active    bool            `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Category *Category `gorm:"foreignKey:CategoryID"`
}

// OptionByID returns the product option with the given id.
func (p *Product) OptionByID(id string) (ProductOption, bool) {
	for _, o := range p.Options {
		if o.ID == id {
			return o, true
		}
	}
	return ProductOption{}, false
}
