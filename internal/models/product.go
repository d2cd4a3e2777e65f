package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type Product struct {
	ID                  int64           `json:"id"`
	CategoryID          int64           `json:"category_id"`
	BrandID             *int64          `json:"brand_id,omitempty"`
	Name                string          `json:"name"`
	Description         string          `json:"description"`
	PriceTTC            decimal.Decimal `json:"price_ttc"`
	Stock               int             `json:"stock"`
	MaxOrderQuantity    *int            `json:"max_order_quantity,omitempty"`
	WeightKg            *float64        `json:"weight_kg,omitempty"`
	RequiresMedicalInfo bool            `json:"requires_medical_info"`
	Status              string          `json:"status"`
	Promotions          []Promotion     `json:"promotions,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

type ProductListResponse struct {
	Products   []*Product `json:"products"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Size       int        `json:"size"`
	TotalPages int        `json:"total_pages"`
}

// LineWeight is the shipping weight contributed by quantity units of the
// product. Products with no recorded weight count as zero.
func (p *Product) LineWeight(quantity int) float64 {
	if p.WeightKg == nil {
		return 0
	}

	return *p.WeightKg * float64(quantity)
}
