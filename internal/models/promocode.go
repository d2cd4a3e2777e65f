package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

// PromoCode is a user-entered, cart-level discount, distinct from the
// product-level Promotion.
type PromoCode struct {
	ID                   int64            `json:"id"`
	Code                 string           `json:"code"`
	DiscountType         DiscountType     `json:"discount_type"`
	DiscountAmount       decimal.Decimal  `json:"discount_amount"`
	IsActive             bool             `json:"is_active"`
	StartDate            *time.Time       `json:"start_date,omitempty"`
	EndDate              *time.Time       `json:"end_date,omitempty"`
	UsageLimit           *int             `json:"usage_limit,omitempty"`
	UsageCount           int              `json:"usage_count"`
	MinCartAmount        *decimal.Decimal `json:"min_cart_amount,omitempty"`
	FreeShipping         bool             `json:"free_shipping"`
	FreeShippingMethodID *int64           `json:"free_shipping_method_id,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// NormalizePromoCode is the canonical form codes are stored and compared in.
func NormalizePromoCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (p *PromoCode) ActiveAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}

	if p.StartDate != nil && p.StartDate.After(now) {
		return false
	}

	if p.EndDate != nil && p.EndDate.Before(now) {
		return false
	}

	return true
}

// UsageExhausted reports whether the usage limit has been reached.
// A nil limit means unlimited.
func (p *PromoCode) UsageExhausted() bool {
	return p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit
}

// Discount computes the cart-level discount amount for the given subtotal,
// clamped so the discounted subtotal never goes negative.
func (p *PromoCode) Discount(subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal

	switch p.DiscountType {
	case DiscountTypePercentage:
		discount = subtotal.Mul(p.DiscountAmount).Div(decimal.NewFromInt(100))
	case DiscountTypeFixed:
		discount = p.DiscountAmount
	default:
		return decimal.Zero
	}

	if discount.GreaterThan(subtotal) {
		return subtotal
	}

	if discount.IsNegative() {
		return decimal.Zero
	}

	return discount
}

// GrantsFreeShipping reports whether the code waives shipping for the
// selected method: either the grant is unrestricted or it is pinned to
// exactly that method.
func (p *PromoCode) GrantsFreeShipping(shippingMethodID int64) bool {
	if !p.FreeShipping {
		return false
	}

	if p.FreeShippingMethodID == nil {
		return true
	}

	return *p.FreeShippingMethodID == shippingMethodID
}
