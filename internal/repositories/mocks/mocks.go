// Package mocks provides testify mocks for the repository interfaces and
// the outbound provider clients consumed by the service layer tests.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
	stripeclient "github.com/pharmaplace/pharmacy-commerce-platform/pkg/stripe"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stretchr/testify/mock"
)

type CartRepository struct {
	mock.Mock
}

func (m *CartRepository) GetByIdentity(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	args := m.Called(ctx, identity)

	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *CartRepository) GetByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	args := m.Called(ctx, cartID)

	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *CartRepository) AddItem(ctx context.Context, identity models.CartIdentity, productID int64, quantity int, snapshotFor repository.SnapshotFunc) (*models.Cart, error) {
	args := m.Called(ctx, identity, productID, quantity, snapshotFor)

	if cart, ok := args.Get(0).(*models.Cart); ok {
		return cart, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *CartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int, snapshotFor repository.SnapshotFunc) error {
	args := m.Called(ctx, cartID, itemID, quantity, snapshotFor)

	return args.Error(0)
}

func (m *CartRepository) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	args := m.Called(ctx, cartID, itemID)

	return args.Error(0)
}

func (m *CartRepository) CleanExpiredPromotions(ctx context.Context, cartID uuid.UUID) error {
	args := m.Called(ctx, cartID)

	return args.Error(0)
}

func (m *CartRepository) SetShippingMethod(ctx context.Context, cartID uuid.UUID, shippingMethodID int64) error {
	args := m.Called(ctx, cartID, shippingMethodID)

	return args.Error(0)
}

func (m *CartRepository) SetPromoCode(ctx context.Context, cartID uuid.UUID, code *string) error {
	args := m.Called(ctx, cartID, code)

	return args.Error(0)
}

func (m *CartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	args := m.Called(ctx, cartID)

	return args.Error(0)
}

type ProductRepository struct {
	mock.Mock
}

func (m *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	args := m.Called(ctx, id)

	if product, ok := args.Get(0).(*models.Product); ok {
		return product, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *ProductRepository) List(ctx context.Context, page, size int) ([]*models.Product, int, error) {
	args := m.Called(ctx, page, size)

	if products, ok := args.Get(0).([]*models.Product); ok {
		return products, args.Int(1), args.Error(2)
	}

	return nil, args.Int(1), args.Error(2)
}

type PromoCodeRepository struct {
	mock.Mock
}

func (m *PromoCodeRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	args := m.Called(ctx, code)

	if promo, ok := args.Get(0).(*models.PromoCode); ok {
		return promo, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *PromoCodeRepository) IncrementUsage(ctx context.Context, code string) error {
	args := m.Called(ctx, code)

	return args.Error(0)
}

type ShippingRepository struct {
	mock.Mock
}

func (m *ShippingRepository) GetMethodByID(ctx context.Context, id int64) (*models.ShippingMethod, error) {
	args := m.Called(ctx, id)

	if method, ok := args.Get(0).(*models.ShippingMethod); ok {
		return method, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *ShippingRepository) ListMethods(ctx context.Context) ([]*models.ShippingMethod, error) {
	args := m.Called(ctx)

	if methods, ok := args.Get(0).([]*models.ShippingMethod); ok {
		return methods, args.Error(1)
	}

	return nil, args.Error(1)
}

type OrderRepository struct {
	mock.Mock
}

func (m *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	args := m.Called(ctx, order)

	return args.Error(0)
}

func (m *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	args := m.Called(ctx, id)

	if order, ok := args.Get(0).(*models.Order); ok {
		return order, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *OrderRepository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	args := m.Called(ctx, paymentIntentID)

	if order, ok := args.Get(0).(*models.Order); ok {
		return order, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *OrderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus) error {
	args := m.Called(ctx, id, status)

	return args.Error(0)
}

func (m *OrderRepository) ListByUser(ctx context.Context, userID uuid.UUID, page, size int) ([]*models.Order, int, error) {
	args := m.Called(ctx, userID, page, size)

	if orders, ok := args.Get(0).([]*models.Order); ok {
		return orders, args.Int(1), args.Error(2)
	}

	return nil, args.Int(1), args.Error(2)
}

type UserRepository struct {
	mock.Mock
}

func (m *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)

	if user, ok := args.Get(0).(*models.User); ok {
		return user, args.Error(1)
	}

	return nil, args.Error(1)
}

type StripeClient struct {
	mock.Mock
}

func (m *StripeClient) CreatePaymentIntent(amount int64, currency string, metadata map[string]string) (*stripe.PaymentIntent, error) {
	args := m.Called(amount, currency, metadata)

	if intent, ok := args.Get(0).(*stripe.PaymentIntent); ok {
		return intent, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *StripeClient) RefundPayment(paymentIntentID string, amount int64) (*stripe.Refund, error) {
	args := m.Called(paymentIntentID, amount)

	if ref, ok := args.Get(0).(*stripe.Refund); ok {
		return ref, args.Error(1)
	}

	return nil, args.Error(1)
}

func (m *StripeClient) VerifyWebhookSignature(payload []byte, signature string) (stripeclient.Event, error) {
	args := m.Called(payload, signature)

	if event, ok := args.Get(0).(stripeclient.Event); ok {
		return event, args.Error(1)
	}

	return stripeclient.Event{}, args.Error(1)
}

type EmailService struct {
	mock.Mock
}

func (m *EmailService) SendOrderConfirmation(ctx context.Context, toAddress, firstName, orderNumber string, total decimal.Decimal) error {
	args := m.Called(ctx, toAddress, firstName, orderNumber, total)

	return args.Error(0)
}
