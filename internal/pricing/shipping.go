package pricing

import (
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/shopspring/decimal"
)

// ResolveShippingCost determines the shipping cost for a cart.
//
//  1. A free-shipping promo code short-circuits when it is unrestricted or
//     pinned to the selected method; no rate lookup happens.
//  2. Otherwise the first rate band containing the total weight wins. A
//     weight covered by no band is an error, not a free fallback.
//  3. A method-level free-shipping threshold met by the discounted subtotal
//     zeroes the cost regardless of the matched band.
func ResolveShippingCost(method *models.ShippingMethod, totalWeightKg float64, subtotalAfterDiscount decimal.Decimal, promo *models.PromoCode) (decimal.Decimal, error) {
	if method == nil {
		return decimal.Zero, errors.NotFoundError("Shipping method not selected")
	}

	if promo != nil && promo.GrantsFreeShipping(method.ID) {
		return decimal.Zero, nil
	}

	if method.FreeShippingThreshold != nil && subtotalAfterDiscount.GreaterThanOrEqual(*method.FreeShippingThreshold) {
		return decimal.Zero, nil
	}

	for i := range method.Rates {
		if method.Rates[i].Matches(totalWeightKg) {
			return method.Rates[i].Price, nil
		}
	}

	return decimal.Zero, errors.NoShippingRateError("No shipping rate covers the cart weight").
		WithDetail(method.Name)
}
