package pricing

import (
	"sort"
	"time"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/shopspring/decimal"
)

// PromotionPrice is the result of applying a promotion to a unit price.
type PromotionPrice struct {
	HasPromotion bool
	FinalPrice   decimal.Decimal
}

// ResolveActivePromotion picks the single promotion in effect for a product
// at the given instant. Tie-break when several windows overlap: the
// promotion ending soonest wins (unbounded windows last), then the lowest
// id. The rule is deliberately stable so the choice never depends on
// database return order.
func ResolveActivePromotion(product *models.Product, now time.Time) *models.Promotion {
	eligible := make([]*models.Promotion, 0, len(product.Promotions))

	for i := range product.Promotions {
		if product.Promotions[i].ActiveAt(now) {
			eligible = append(eligible, &product.Promotions[i])
		}
	}

	if len(eligible) == 0 {
		return nil
	}

	sort.Slice(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]

		switch {
		case a.EndDate != nil && b.EndDate == nil:
			return true
		case a.EndDate == nil && b.EndDate != nil:
			return false
		case a.EndDate != nil && b.EndDate != nil && !a.EndDate.Equal(*b.EndDate):
			return a.EndDate.Before(*b.EndDate)
		}

		return a.ID < b.ID
	})

	return eligible[0]
}

// ComputePromotionPrice applies a promotion to a unit price. Percentage
// promotions scale the price down, absolute promotions subtract; the result
// is clamped at zero.
func ComputePromotionPrice(unitPrice decimal.Decimal, promotion *models.Promotion) PromotionPrice {
	if promotion == nil {
		return PromotionPrice{HasPromotion: false, FinalPrice: unitPrice}
	}

	var final decimal.Decimal

	switch promotion.Type {
	case models.PromotionTypePercentage:
		factor := decimal.NewFromInt(1).Sub(promotion.Amount.Div(decimal.NewFromInt(100)))
		final = unitPrice.Mul(factor)
	case models.PromotionTypeAbsolute:
		final = unitPrice.Sub(promotion.Amount)
	default:
		return PromotionPrice{HasPromotion: false, FinalPrice: unitPrice}
	}

	if final.IsNegative() {
		final = decimal.Zero
	}

	return PromotionPrice{HasPromotion: true, FinalPrice: final}
}

// SnapshotFor records the currently active promotion and its computed price
// for a cart line, or nil when the product sells at full price.
func SnapshotFor(product *models.Product, now time.Time) *models.PromotionSnapshot {
	promotion := ResolveActivePromotion(product, now)
	if promotion == nil {
		return nil
	}

	priced := ComputePromotionPrice(product.PriceTTC, promotion)

	return &models.PromotionSnapshot{
		PromotionID: promotion.ID,
		Price:       priced.FinalPrice,
		ComputedAt:  now,
	}
}
