package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartIdentity is the owner of a cart: an authenticated user or a guest
// session token carried in a cookie. Resolved once per request and treated
// as immutable afterwards.
type CartIdentity struct {
	UserID       *uuid.UUID
	SessionToken string
}

func (id CartIdentity) IsZero() bool {
	return id.UserID == nil && id.SessionToken == ""
}

type Cart struct {
	ID               uuid.UUID  `json:"id"`
	UserID           *uuid.UUID `json:"user_id,omitempty"`
	SessionToken     *string    `json:"-"`
	ShippingMethodID *int64     `json:"shipping_method_id,omitempty"`
	AppliedPromoCode *string    `json:"applied_promo_code,omitempty"`
	Items            []CartItem `json:"items"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

type CartItem struct {
	ID        uuid.UUID          `json:"id"`
	CartID    uuid.UUID          `json:"cart_id"`
	ProductID int64              `json:"product_id"`
	Quantity  int                `json:"quantity"`
	Promotion *PromotionSnapshot `json:"promotion,omitempty"`
	Product   *Product           `json:"product,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// UnitPrice is the effective unit price of the line: the snapshotted
// promotion price when one is recorded, the product's full price otherwise.
func (i *CartItem) UnitPrice() decimal.Decimal {
	if i.Promotion != nil {
		return i.Promotion.Price
	}

	if i.Product != nil {
		return i.Product.PriceTTC
	}

	return decimal.Zero
}

func (i *CartItem) LineTotal() decimal.Decimal {
	return i.UnitPrice().Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal is the promotion-aware sum of all line totals, before any promo
// code discount.
func (c *Cart) Subtotal() decimal.Decimal {
	subtotal := decimal.Zero

	for i := range c.Items {
		subtotal = subtotal.Add(c.Items[i].LineTotal())
	}

	return subtotal
}

// TotalWeightKg sums product weights across lines; unknown weights count 0.
func (c *Cart) TotalWeightKg() float64 {
	var total float64

	for i := range c.Items {
		if c.Items[i].Product != nil {
			total += c.Items[i].Product.LineWeight(c.Items[i].Quantity)
		}
	}

	return total
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

type AddItemRequest struct {
	ProductID int64 `json:"product_id" validate:"required"`
	Quantity  int   `json:"quantity"   validate:"required,min=1"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type SetShippingMethodRequest struct {
	ShippingMethodID int64 `json:"shipping_method_id" validate:"required"`
}

type ApplyPromoCodeRequest struct {
	Code string `json:"code" validate:"required,min=1,max=64"`
}

// CartView is the priced cart returned to the storefront.
type CartView struct {
	Cart     *Cart           `json:"cart"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Shipping decimal.Decimal `json:"shipping"`
	Total    decimal.Decimal `json:"total"`
}
