package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	appErrors "github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories/mocks"
	service "github.com/pharmaplace/pharmacy-commerce-platform/internal/services"
	stripeclient "github.com/pharmaplace/pharmacy-commerce-platform/pkg/stripe"
	"github.com/shopspring/decimal"
	stripe "github.com/stripe/stripe-go/v81"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type checkoutFixture struct {
	carts    *mocks.CartRepository
	orders   *mocks.OrderRepository
	promos   *mocks.PromoCodeRepository
	shipping *mocks.ShippingRepository
	users    *mocks.UserRepository
	stripe   *mocks.StripeClient
	email    *mocks.EmailService
	service  *service.CheckoutService
}

func newCheckoutFixture() *checkoutFixture {
	f := &checkoutFixture{
		carts:    new(mocks.CartRepository),
		orders:   new(mocks.OrderRepository),
		promos:   new(mocks.PromoCodeRepository),
		shipping: new(mocks.ShippingRepository),
		users:    new(mocks.UserRepository),
		stripe:   new(mocks.StripeClient),
		email:    new(mocks.EmailService),
	}

	promoService := service.NewPromoCodeService(f.promos, f.carts)
	f.service = service.NewCheckoutService(f.carts, f.orders, f.promos, f.shipping, f.users, promoService, f.stripe, f.email, "eur")

	return f
}

func int64Ptr(i int64) *int64 {
	return &i
}

// checkoutCart is a one-line cart: 2 x 19.90 EUR, 0.25 kg each, home
// delivery selected.
func checkoutCart() *models.Cart {
	weight := 0.25

	return &models.Cart{
		ID:               uuid.New(),
		ShippingMethodID: int64Ptr(2),
		Items: []models.CartItem{
			{
				ID:        uuid.New(),
				ProductID: 42,
				Quantity:  2,
				Product: &models.Product{
					ID:       42,
					PriceTTC: decimal.NewFromFloat(19.90),
					WeightKg: &weight,
				},
			},
		},
	}
}

func checkoutCartWithID(cartID uuid.UUID) *models.Cart {
	cart := checkoutCart()
	cart.ID = cartID

	return cart
}

func paidShippingMethod() *models.ShippingMethod {
	return &models.ShippingMethod{
		ID:   2,
		Name: "Home delivery",
		Type: models.ShippingHomeDelivery,
		Rates: []models.ShippingRate{
			{MinWeightKg: 0, MaxWeightKg: 1, Price: decimal.NewFromFloat(4.90)},
		},
	}
}

func TestQuote(t *testing.T) {
	ctx := context.Background()

	t.Run("Subtotal Plus Shipping", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()

		f.shipping.On("GetMethodByID", ctx, int64(2)).Return(paidShippingMethod(), nil).Once()

		quote, err := f.service.Quote(ctx, cart)

		require.NoError(t, err)
		assert.True(t, quote.Subtotal.Equal(decimal.NewFromFloat(39.80)), "subtotal %s", quote.Subtotal)
		assert.True(t, quote.Discount.IsZero())
		assert.True(t, quote.Shipping.Equal(decimal.NewFromFloat(4.90)), "shipping %s", quote.Shipping)
		assert.True(t, quote.Total.Equal(decimal.NewFromFloat(44.70)), "total %s", quote.Total)
	})

	t.Run("Applied Promo Code Discounts The Subtotal", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		cart.AppliedPromoCode = strPtr("SAVE10")

		f.promos.On("GetByCode", ctx, "SAVE10").Return(activePromo("SAVE10"), nil).Once()
		f.shipping.On("GetMethodByID", ctx, int64(2)).Return(paidShippingMethod(), nil).Once()

		quote, err := f.service.Quote(ctx, cart)

		require.NoError(t, err)
		assert.True(t, quote.Discount.Equal(decimal.NewFromFloat(3.98)), "discount %s", quote.Discount)
		assert.True(t, quote.Total.Equal(decimal.NewFromFloat(40.72)), "total %s", quote.Total)
		require.NotNil(t, quote.Promo)
		assert.Equal(t, "SAVE10", quote.Promo.Code)
	})

	t.Run("No Shipping Method Selected Quotes Zero Shipping", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		cart.ShippingMethodID = nil

		quote, err := f.service.Quote(ctx, cart)

		require.NoError(t, err)
		assert.True(t, quote.Shipping.IsZero())
	})

	t.Run("No Rate Band Is An Error", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		cart.Items[0].Quantity = 2
		heavy := 8.0
		cart.Items[0].Product.WeightKg = &heavy

		f.shipping.On("GetMethodByID", ctx, int64(2)).Return(paidShippingMethod(), nil).Once()

		_, err := f.service.Quote(ctx, cart)

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeNoShippingRate, appErr.Code)
	})
}

func TestCreatePaymentIntent(t *testing.T) {
	ctx := context.Background()
	identity := guestIdentity()

	expectCartReload := func(f *checkoutFixture, cart *models.Cart) {
		f.carts.On("GetByIdentity", ctx, identity).Return(cart, nil).Once()
		f.carts.On("CleanExpiredPromotions", ctx, cart.ID).Return(nil).Once()
		f.carts.On("GetByID", ctx, cart.ID).Return(cart, nil).Once()
	}

	t.Run("Success - Guest Checkout", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()

		expectCartReload(f, cart)
		f.shipping.On("GetMethodByID", ctx, int64(2)).Return(paidShippingMethod(), nil).Once()

		intent := &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}
		f.stripe.On("CreatePaymentIntent", int64(4470), "eur", mock.MatchedBy(func(metadata map[string]string) bool {
			return metadata["cart_id"] == cart.ID.String() &&
				metadata["user_id"] == "guest" &&
				metadata["email"] == "guest@example.com" &&
				metadata["total"] == "44.70" &&
				metadata["items"] != ""
		})).Return(intent, nil).Once()

		resp, err := f.service.CreatePaymentIntent(ctx, identity, &models.CreatePaymentIntentRequest{Email: "guest@example.com"})

		require.NoError(t, err)
		assert.Equal(t, "pi_123", resp.PaymentIntentID)
		assert.Equal(t, "pi_123_secret", resp.ClientSecret)
		assert.True(t, resp.Total.Equal(decimal.NewFromFloat(44.70)))
		f.stripe.AssertExpectations(t)
	})

	t.Run("Failure - Empty Cart", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		cart.Items = nil

		expectCartReload(f, cart)

		_, err := f.service.CreatePaymentIntent(ctx, identity, &models.CreatePaymentIntentRequest{Email: "guest@example.com"})

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeEmptyCart, appErr.Code)
		f.stripe.AssertNotCalled(t, "CreatePaymentIntent")
	})

	t.Run("Failure - Medicated Product Without Medical Info", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		cart.Items[0].Product.RequiresMedicalInfo = true

		expectCartReload(f, cart)

		_, err := f.service.CreatePaymentIntent(ctx, identity, &models.CreatePaymentIntentRequest{Email: "guest@example.com"})

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeMedicalInfoRequired, appErr.Code)
		f.stripe.AssertNotCalled(t, "CreatePaymentIntent")
	})

	t.Run("Success - Medicated Product With Complete Medical Info", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		cart.Items[0].Product.RequiresMedicalInfo = true

		expectCartReload(f, cart)
		f.shipping.On("GetMethodByID", ctx, int64(2)).Return(paidShippingMethod(), nil).Once()
		f.stripe.On("CreatePaymentIntent", int64(4470), "eur", mock.Anything).
			Return(&stripe.PaymentIntent{ID: "pi_456", ClientSecret: "secret"}, nil).Once()

		req := &models.CreatePaymentIntentRequest{
			Email:       "guest@example.com",
			MedicalInfo: &models.MedicalInfo{HeightCm: 180, WeightKg: 75, Agreement: true},
		}

		_, err := f.service.CreatePaymentIntent(ctx, identity, req)

		require.NoError(t, err)
		f.stripe.AssertExpectations(t)
	})

	t.Run("Failure - No Shipping Method Selected", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		cart.ShippingMethodID = nil

		expectCartReload(f, cart)

		_, err := f.service.CreatePaymentIntent(ctx, identity, &models.CreatePaymentIntentRequest{Email: "guest@example.com"})

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
	})

	t.Run("Failure - Guest Without Email", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()

		expectCartReload(f, cart)

		_, err := f.service.CreatePaymentIntent(ctx, identity, &models.CreatePaymentIntentRequest{})

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeBadRequest, appErr.Code)
		f.stripe.AssertNotCalled(t, "CreatePaymentIntent")
	})

	t.Run("Success - Authenticated Cart Uses Account Email", func(t *testing.T) {
		f := newCheckoutFixture()
		userID := uuid.New()
		authIdentity := models.CartIdentity{UserID: &userID}
		cart := checkoutCart()
		cart.UserID = &userID

		f.carts.On("GetByIdentity", ctx, authIdentity).Return(cart, nil).Once()
		f.carts.On("CleanExpiredPromotions", ctx, cart.ID).Return(nil).Once()
		f.carts.On("GetByID", ctx, cart.ID).Return(cart, nil).Once()
		f.users.On("GetByID", ctx, userID).Return(&models.User{ID: userID, Email: "account@example.com"}, nil).Once()
		f.shipping.On("GetMethodByID", ctx, int64(2)).Return(paidShippingMethod(), nil).Once()
		f.stripe.On("CreatePaymentIntent", int64(4470), "eur", mock.MatchedBy(func(metadata map[string]string) bool {
			return metadata["email"] == "account@example.com" && metadata["user_id"] == userID.String()
		})).Return(&stripe.PaymentIntent{ID: "pi_789", ClientSecret: "secret"}, nil).Once()

		_, err := f.service.CreatePaymentIntent(ctx, authIdentity, &models.CreatePaymentIntentRequest{})

		require.NoError(t, err)
		f.stripe.AssertExpectations(t)
	})

	t.Run("Success - Large Cart Metadata Stays Within Provider Limits", func(t *testing.T) {
		f := newCheckoutFixture()
		cart := checkoutCart()
		weight := 0.01
		cart.Items = nil

		for i := 0; i < 20; i++ {
			cart.Items = append(cart.Items, models.CartItem{
				ID:        uuid.New(),
				ProductID: int64(1000 + i),
				Quantity:  1,
				Product: &models.Product{
					ID:       int64(1000 + i),
					PriceTTC: decimal.NewFromFloat(19.90),
					WeightKg: &weight,
				},
			})
		}

		expectCartReload(f, cart)
		f.shipping.On("GetMethodByID", ctx, int64(2)).Return(paidShippingMethod(), nil).Once()

		var captured map[string]string

		f.stripe.On("CreatePaymentIntent", int64(40290), "eur", mock.Anything).
			Run(func(args mock.Arguments) {
				captured, _ = args.Get(2).(map[string]string)
			}).
			Return(&stripe.PaymentIntent{ID: "pi_chunk", ClientSecret: "secret"}, nil).Once()

		_, err := f.service.CreatePaymentIntent(ctx, identity, &models.CreatePaymentIntentRequest{Email: "guest@example.com"})

		require.NoError(t, err)
		require.NotNil(t, captured)

		for key, value := range captured {
			assert.LessOrEqual(t, len(value), 500, "metadata value %q exceeds the provider cap", key)
		}
		assert.Contains(t, captured, "items_1", "a 20-line cart must spill into a second items chunk")

		// The settlement path must reassemble the chunked payload into the
		// full set of order lines.
		object := map[string]any{"id": "pi_chunk", "metadata": map[string]any{}}
		for key, value := range captured {
			object["metadata"].(map[string]any)[key] = value
		}

		event := stripeclient.Event{ID: "evt_7", Type: "payment_intent.succeeded", Data: &stripe.EventData{Object: object}}
		payload := []byte(`{}`)
		signature := "t=1,v1=sig"

		f.stripe.On("VerifyWebhookSignature", payload, signature).Return(event, nil).Once()
		f.orders.On("Create", ctx, mock.MatchedBy(func(order *models.Order) bool {
			return order.PaymentIntentID == "pi_chunk" && len(order.Items) == 20
		})).Return(nil).Once()
		f.carts.On("ClearItems", ctx, cart.ID).Return(nil).Once()
		f.email.On("SendOrderConfirmation", ctx, "guest@example.com", "", mock.AnythingOfType("string"), mock.Anything).
			Return(nil).Once()

		require.NoError(t, f.service.ProcessWebhook(ctx, payload, signature))
		f.orders.AssertExpectations(t)
	})
}

func succeededEvent(cartID uuid.UUID, metadata map[string]any) stripeclient.Event {
	object := map[string]any{
		"id": "pi_123",
		"metadata": map[string]any{
			"cart_id":  cartID.String(),
			"user_id":  "guest",
			"email":    "guest@example.com",
			"subtotal": "39.80",
			"discount": "0.00",
			"shipping": "4.90",
			"total":    "44.70",
			"items":    `[{"product_id":42,"quantity":2,"unit_price":"19.90"}]`,
		},
	}

	for key, value := range metadata {
		object["metadata"].(map[string]any)[key] = value
	}

	return stripeclient.Event{
		ID:   "evt_1",
		Type: "payment_intent.succeeded",
		Data: &stripe.EventData{Object: object},
	}
}

func TestProcessWebhook(t *testing.T) {
	ctx := context.Background()
	payload := []byte(`{}`)
	signature := "t=1,v1=sig"

	t.Run("Failure - Invalid Signature", func(t *testing.T) {
		f := newCheckoutFixture()

		f.stripe.On("VerifyWebhookSignature", payload, signature).
			Return(stripeclient.Event{}, errors.New("signature mismatch")).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeSignatureFailed, appErr.Code)
		f.orders.AssertNotCalled(t, "Create")
	})

	t.Run("Success - Settles Exactly One Order And Clears The Cart", func(t *testing.T) {
		f := newCheckoutFixture()
		cartID := uuid.New()

		f.stripe.On("VerifyWebhookSignature", payload, signature).
			Return(succeededEvent(cartID, nil), nil).Once()
		f.orders.On("Create", ctx, mock.MatchedBy(func(order *models.Order) bool {
			return order.PaymentIntentID == "pi_123" &&
				order.Status == models.OrderStatusConfirmed &&
				len(order.Items) == 1 &&
				order.Items[0].ProductID == 42 &&
				order.Total.Equal(decimal.NewFromFloat(44.70))
		})).Return(nil).Once()
		f.carts.On("ClearItems", ctx, cartID).Return(nil).Once()
		f.email.On("SendOrderConfirmation", ctx, "guest@example.com", "", mock.AnythingOfType("string"), mock.Anything).
			Return(nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		require.NoError(t, err)
		f.orders.AssertExpectations(t)
		f.carts.AssertExpectations(t)
	})

	t.Run("Replay - Duplicate Intent Keeps One Order", func(t *testing.T) {
		f := newCheckoutFixture()
		cartID := uuid.New()

		f.stripe.On("VerifyWebhookSignature", payload, signature).
			Return(succeededEvent(cartID, nil), nil).Once()
		f.orders.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateOrder).Once()
		f.carts.On("GetByID", ctx, cartID).Return(&models.Cart{ID: cartID}, nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDuplicateSettlement, appErr.Code)
		f.carts.AssertNotCalled(t, "ClearItems")
		f.email.AssertNotCalled(t, "SendOrderConfirmation")
	})

	t.Run("Replay - Cleared Cart Is Also A Clean Duplicate", func(t *testing.T) {
		f := newCheckoutFixture()
		cartID := uuid.New()

		f.stripe.On("VerifyWebhookSignature", payload, signature).
			Return(succeededEvent(cartID, nil), nil).Once()
		f.orders.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateOrder).Once()
		f.carts.On("GetByID", ctx, cartID).Return(nil, repository.ErrCartNotFound).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDuplicateSettlement, appErr.Code)
		f.carts.AssertNotCalled(t, "ClearItems")
	})

	t.Run("Replay - Resumes An Interrupted Settlement", func(t *testing.T) {
		f := newCheckoutFixture()
		cartID := uuid.New()
		event := succeededEvent(cartID, map[string]any{"promo_code": "SAVE10"})

		// First delivery: the order lands but the cart clear dies, so the
		// provider is asked to retry.
		f.stripe.On("VerifyWebhookSignature", payload, signature).Return(event, nil).Twice()
		f.orders.On("Create", ctx, mock.Anything).Return(nil).Once()
		f.carts.On("ClearItems", ctx, cartID).Return(errors.New("connection reset")).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		appErr, ok := appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDatabaseError, appErr.Code)
		f.email.AssertNotCalled(t, "SendOrderConfirmation")
		f.promos.AssertNotCalled(t, "IncrementUsage")

		// Retry: the duplicate guard fires, the cart still holds items, and
		// the remaining steps run before the replay is acknowledged.
		f.orders.On("Create", ctx, mock.Anything).Return(repository.ErrDuplicateOrder).Once()
		f.carts.On("GetByID", ctx, cartID).Return(checkoutCartWithID(cartID), nil).Once()
		f.orders.On("GetByPaymentIntentID", ctx, "pi_123").
			Return(&models.Order{ID: uuid.New(), OrderNumber: "PH-20250615-1A2B3C4D", Email: "guest@example.com",
				Total: decimal.NewFromFloat(44.70), PaymentIntentID: "pi_123"}, nil).Once()
		f.carts.On("ClearItems", ctx, cartID).Return(nil).Once()
		f.promos.On("IncrementUsage", ctx, "SAVE10").Return(nil).Once()
		f.email.On("SendOrderConfirmation", ctx, "guest@example.com", "", "PH-20250615-1A2B3C4D", mock.Anything).
			Return(nil).Once()

		err = f.service.ProcessWebhook(ctx, payload, signature)

		appErr, ok = appErrors.IsAppError(err)
		require.True(t, ok)
		assert.Equal(t, appErrors.ErrCodeDuplicateSettlement, appErr.Code, "the provider still gets a 200 once the tail is done")
		f.carts.AssertExpectations(t)
		f.promos.AssertExpectations(t)
		f.email.AssertExpectations(t)
	})

	t.Run("Settlement Consumes Promo Code Usage", func(t *testing.T) {
		f := newCheckoutFixture()
		cartID := uuid.New()

		f.stripe.On("VerifyWebhookSignature", payload, signature).
			Return(succeededEvent(cartID, map[string]any{"promo_code": "SAVE10", "discount": "3.98", "total": "40.72"}), nil).Once()
		f.orders.On("Create", ctx, mock.Anything).Return(nil).Once()
		f.carts.On("ClearItems", ctx, cartID).Return(nil).Once()
		f.promos.On("IncrementUsage", ctx, "SAVE10").Return(nil).Once()
		f.email.On("SendOrderConfirmation", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		require.NoError(t, err)
		f.promos.AssertExpectations(t)
	})

	t.Run("Exhausted Promo Code At Settlement Is Swallowed", func(t *testing.T) {
		f := newCheckoutFixture()
		cartID := uuid.New()

		f.stripe.On("VerifyWebhookSignature", payload, signature).
			Return(succeededEvent(cartID, map[string]any{"promo_code": "SAVE10"}), nil).Once()
		f.orders.On("Create", ctx, mock.Anything).Return(nil).Once()
		f.carts.On("ClearItems", ctx, cartID).Return(nil).Once()
		f.promos.On("IncrementUsage", ctx, "SAVE10").Return(repository.ErrUsageExhausted).Once()
		f.email.On("SendOrderConfirmation", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		assert.NoError(t, err, "payment already taken; exhausted code must not bounce the webhook")
	})

	t.Run("Email Failure Never Fails The Settlement", func(t *testing.T) {
		f := newCheckoutFixture()
		cartID := uuid.New()

		f.stripe.On("VerifyWebhookSignature", payload, signature).
			Return(succeededEvent(cartID, nil), nil).Once()
		f.orders.On("Create", ctx, mock.Anything).Return(nil).Once()
		f.carts.On("ClearItems", ctx, cartID).Return(nil).Once()
		f.email.On("SendOrderConfirmation", ctx, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("sendgrid unavailable")).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		assert.NoError(t, err)
	})

	t.Run("Terminal - Unusable Metadata Is Acknowledged", func(t *testing.T) {
		f := newCheckoutFixture()

		event := stripeclient.Event{
			ID:   "evt_2",
			Type: "payment_intent.succeeded",
			Data: &stripe.EventData{Object: map[string]any{"id": "pi_999"}},
		}

		f.stripe.On("VerifyWebhookSignature", payload, signature).Return(event, nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		assert.NoError(t, err, "retrying malformed metadata can never succeed")
		f.orders.AssertNotCalled(t, "Create")
	})

	t.Run("Unknown Event Types Are Ignored", func(t *testing.T) {
		f := newCheckoutFixture()

		event := stripeclient.Event{ID: "evt_3", Type: "customer.created", Data: &stripe.EventData{Object: map[string]any{}}}

		f.stripe.On("VerifyWebhookSignature", payload, signature).Return(event, nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		assert.NoError(t, err)
	})

	t.Run("Refund - Settled Order Transitions To Refunded", func(t *testing.T) {
		f := newCheckoutFixture()
		orderID := uuid.New()

		event := stripeclient.Event{
			ID:   "evt_4",
			Type: "charge.refunded",
			Data: &stripe.EventData{Object: map[string]any{"payment_intent": "pi_123"}},
		}

		f.stripe.On("VerifyWebhookSignature", payload, signature).Return(event, nil).Once()
		f.orders.On("GetByPaymentIntentID", ctx, "pi_123").
			Return(&models.Order{ID: orderID, OrderNumber: "PH-20250615-1A2B3C4D", Status: models.OrderStatusConfirmed}, nil).Once()
		f.orders.On("UpdateStatus", ctx, orderID, models.OrderStatusRefunded).Return(nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		require.NoError(t, err)
		f.orders.AssertExpectations(t)
	})

	t.Run("Refund Replay - Already Refunded Order Is A No-Op", func(t *testing.T) {
		f := newCheckoutFixture()

		event := stripeclient.Event{
			ID:   "evt_5",
			Type: "charge.refunded",
			Data: &stripe.EventData{Object: map[string]any{"payment_intent": "pi_123"}},
		}

		f.stripe.On("VerifyWebhookSignature", payload, signature).Return(event, nil).Once()
		f.orders.On("GetByPaymentIntentID", ctx, "pi_123").
			Return(&models.Order{ID: uuid.New(), Status: models.OrderStatusRefunded}, nil).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		require.NoError(t, err)
		f.orders.AssertNotCalled(t, "UpdateStatus")
	})

	t.Run("Refund - Intent That Never Succeeded Is Rejected", func(t *testing.T) {
		f := newCheckoutFixture()

		event := stripeclient.Event{
			ID:   "evt_6",
			Type: "charge.refunded",
			Data: &stripe.EventData{Object: map[string]any{"payment_intent": "pi_unknown"}},
		}

		f.stripe.On("VerifyWebhookSignature", payload, signature).Return(event, nil).Once()
		f.orders.On("GetByPaymentIntentID", ctx, "pi_unknown").
			Return(nil, repository.ErrOrderNotFound).Once()

		err := f.service.ProcessWebhook(ctx, payload, signature)

		require.NoError(t, err)
		f.orders.AssertNotCalled(t, "UpdateStatus")
	})
}
