package service

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
)

type PromoCodeService struct {
	promoCodes repository.PromoCodeRepository
	carts      repository.CartRepository
	now        func() time.Time
}

func NewPromoCodeService(promoCodes repository.PromoCodeRepository, carts repository.CartRepository) *PromoCodeService {
	return &PromoCodeService{promoCodes: promoCodes, carts: carts, now: time.Now}
}

// Validate checks a code against its activity window, usage limit and
// minimum cart amount. Pure read; no usage is consumed here.
func (s *PromoCodeService) Validate(ctx context.Context, code string, cart *models.Cart) (*models.PromoCode, error) {
	promo, err := s.promoCodes.GetByCode(ctx, code)
	if err != nil {
		if stdErrors.Is(err, repository.ErrPromoCodeNotFound) {
			return nil, errors.InvalidPromoCodeError("This promo code does not exist").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to look up promo code").WithError(err)
	}

	if !promo.ActiveAt(s.now()) {
		return nil, errors.InvalidPromoCodeError("This promo code is no longer valid")
	}

	if promo.UsageExhausted() {
		return nil, errors.InvalidPromoCodeError("This promo code has reached its usage limit")
	}

	if promo.MinCartAmount != nil && cart.Subtotal().LessThan(*promo.MinCartAmount) {
		return nil, errors.InvalidPromoCodeError("Cart total is below the minimum for this promo code").
			WithDetail("minimum: " + promo.MinCartAmount.StringFixed(2))
	}

	return promo, nil
}

// Apply validates the code and stores its normalized form on the cart.
// Usage count is consumed at settlement, not here: an abandoned cart must
// not burn a redemption. Re-applying the same code is a no-op.
func (s *PromoCodeService) Apply(ctx context.Context, identity models.CartIdentity, code string) (*models.Cart, error) {
	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		if stdErrors.Is(err, repository.ErrCartNotFound) {
			return nil, errors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	promo, err := s.Validate(ctx, code, cart)
	if err != nil {
		return nil, err
	}

	normalized := models.NormalizePromoCode(promo.Code)

	if cart.AppliedPromoCode != nil && *cart.AppliedPromoCode == normalized {
		return cart, nil
	}

	if err := s.carts.SetPromoCode(ctx, cart.ID, &normalized); err != nil {
		return nil, errors.DatabaseError("Failed to apply promo code").WithError(err)
	}

	cart.AppliedPromoCode = &normalized

	return cart, nil
}

// Remove clears the applied code. No usage rollback is needed since apply
// never consumed one.
func (s *PromoCodeService) Remove(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		if stdErrors.Is(err, repository.ErrCartNotFound) {
			return nil, errors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if err := s.carts.SetPromoCode(ctx, cart.ID, nil); err != nil {
		return nil, errors.DatabaseError("Failed to remove promo code").WithError(err)
	}

	cart.AppliedPromoCode = nil

	return cart, nil
}

// ResolveApplied resolves the cart's stored code string for pricing. The
// reference is weak: a deleted or now-invalid code simply means no discount,
// never a fault.
func (s *PromoCodeService) ResolveApplied(ctx context.Context, cart *models.Cart) *models.PromoCode {
	if cart.AppliedPromoCode == nil || *cart.AppliedPromoCode == "" {
		return nil
	}

	promo, err := s.promoCodes.GetByCode(ctx, *cart.AppliedPromoCode)
	if err != nil {
		return nil
	}

	if !promo.ActiveAt(s.now()) || promo.UsageExhausted() {
		return nil
	}

	if promo.MinCartAmount != nil && cart.Subtotal().LessThan(*promo.MinCartAmount) {
		return nil
	}

	return promo
}
