package dto

import "github.com/shopspring/decimal"

// ProductResponse is the catalog view a terminal needs to build addItem.
type ProductResponse struct {
	ID         string           `json:"id"`
	SKU        string           `json:"sku"`
	Name       string           `json:"name"`
	CategoryID *string          `json:"category_id,omitempty"`
	Price      decimal.Decimal  `json:"price"`
	TaxRate    decimal.Decimal  `json:"tax_rate"`
	Options    []OptionResponse `json:"options"`
	Active     bool             `json:"active"`
}
