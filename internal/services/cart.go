package service

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/pricing"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
)

type CartService struct {
	carts    repository.CartRepository
	shipping repository.ShippingRepository
	now      func() time.Time
}

func NewCartService(carts repository.CartRepository, shipping repository.ShippingRepository) *CartService {
	return &CartService{carts: carts, shipping: shipping, now: time.Now}
}

// GetCart returns the identity's cart with lapsed promotion snapshots
// cleared, so every total computed from it is safe to feed checkout.
func (s *CartService) GetCart(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		if stdErrors.Is(err, repository.ErrCartNotFound) {
			return nil, errors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if err := s.carts.CleanExpiredPromotions(ctx, cart.ID); err != nil {
		return nil, errors.DatabaseError("Failed to refresh cart promotions").WithError(err)
	}

	cart, err = s.carts.GetByID(ctx, cart.ID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	return cart, nil
}

func (s *CartService) snapshotFor(product *models.Product) *models.PromotionSnapshot {
	return pricing.SnapshotFor(product, s.now())
}

func (s *CartService) AddItem(ctx context.Context, identity models.CartIdentity, req *models.AddItemRequest) (*models.Cart, error) {
	cart, err := s.carts.AddItem(ctx, identity, req.ProductID, req.Quantity, s.snapshotFor)
	if err != nil {
		return nil, mapCartError(err, "Failed to add item to cart")
	}

	return cart, nil
}

// UpdateItemQuantity treats a non-positive quantity as removal; otherwise
// the new absolute quantity is re-validated against stock and the
// max-order-quantity bound.
func (s *CartService) UpdateItemQuantity(ctx context.Context, identity models.CartIdentity, itemID uuid.UUID, quantity int) (*models.Cart, error) {
	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		if stdErrors.Is(err, repository.ErrCartNotFound) {
			return nil, errors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if quantity <= 0 {
		err = s.carts.RemoveItem(ctx, cart.ID, itemID)
	} else {
		err = s.carts.UpdateItemQuantity(ctx, cart.ID, itemID, quantity, s.snapshotFor)
	}

	if err != nil {
		return nil, mapCartError(err, "Failed to update cart item")
	}

	cart, err = s.carts.GetByID(ctx, cart.ID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	return cart, nil
}

func (s *CartService) RemoveItem(ctx context.Context, identity models.CartIdentity, itemID uuid.UUID) (*models.Cart, error) {
	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		if stdErrors.Is(err, repository.ErrCartNotFound) {
			return nil, errors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if err := s.carts.RemoveItem(ctx, cart.ID, itemID); err != nil {
		return nil, mapCartError(err, "Failed to remove cart item")
	}

	cart, err = s.carts.GetByID(ctx, cart.ID)
	if err != nil {
		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	return cart, nil
}

func (s *CartService) SetShippingMethod(ctx context.Context, identity models.CartIdentity, shippingMethodID int64) (*models.Cart, error) {
	if _, err := s.shipping.GetMethodByID(ctx, shippingMethodID); err != nil {
		return nil, errors.NotFoundError("Shipping method not found").WithError(err)
	}

	cart, err := s.carts.GetByIdentity(ctx, identity)
	if err != nil {
		if stdErrors.Is(err, repository.ErrCartNotFound) {
			return nil, errors.NotFoundError("Cart not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve cart").WithError(err)
	}

	if err := s.carts.SetShippingMethod(ctx, cart.ID, shippingMethodID); err != nil {
		return nil, errors.DatabaseError("Failed to set shipping method").WithError(err)
	}

	cart.ShippingMethodID = &shippingMethodID

	return cart, nil
}

func mapCartError(err error, fallback string) error {
	switch {
	case stdErrors.Is(err, repository.ErrProductNotFound):
		return errors.NotFoundError("Product not found").WithError(err)
	case stdErrors.Is(err, repository.ErrItemNotFound):
		return errors.NotFoundError("Cart item not found").WithError(err)
	case stdErrors.Is(err, repository.ErrCartNotFound):
		return errors.NotFoundError("Cart not found").WithError(err)
	case stdErrors.Is(err, repository.ErrInsufficientStock):
		return errors.InsufficientStockError("Not enough stock for the requested quantity").WithError(err)
	case stdErrors.Is(err, repository.ErrQuantityExceeded):
		return errors.QuantityExceededError("Requested quantity exceeds the order limit for this product").WithError(err)
	default:
		return errors.DatabaseError(fallback).WithError(err)
	}
}
