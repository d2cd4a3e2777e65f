package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/api/handlers"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/api/middleware"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories/mocks"
	service "github.com/pharmaplace/pharmacy-commerce-platform/internal/services"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/testutils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type cartFixture struct {
	carts    *mocks.CartRepository
	shipping *mocks.ShippingRepository
	promos   *mocks.PromoCodeRepository
	handler  *handlers.CartHandler
}

func newCartFixture() *cartFixture {
	f := &cartFixture{
		carts:    new(mocks.CartRepository),
		shipping: new(mocks.ShippingRepository),
		promos:   new(mocks.PromoCodeRepository),
	}

	cartService := service.NewCartService(f.carts, f.shipping)
	promoService := service.NewPromoCodeService(f.promos, f.carts)
	checkoutService := service.NewCheckoutService(
		f.carts, new(mocks.OrderRepository), f.promos, f.shipping,
		new(mocks.UserRepository), promoService, new(mocks.StripeClient), new(mocks.EmailService), "eur")
	session := middleware.NewSessionMiddleware([]byte("test-key"), "cart_session", 720*time.Hour, false)
	f.handler = handlers.NewCartHandler(cartService, promoService, checkoutService, session)

	return f
}

func pricedCart(identity models.CartIdentity) *models.Cart {
	weight := 0.25

	return &models.Cart{
		ID:           uuid.New(),
		SessionToken: &identity.SessionToken,
		Items: []models.CartItem{
			{ID: uuid.New(), ProductID: 42, Quantity: 2,
				Product: &models.Product{ID: 42, Name: "Paracetamol 500mg", PriceTTC: decimal.NewFromFloat(19.90), WeightKg: &weight}},
		},
	}
}

func TestGetCartHandler(t *testing.T) {
	t.Run("Returns The Priced Cart", func(t *testing.T) {
		f := newCartFixture()
		identity := models.CartIdentity{SessionToken: "sess"}
		cart := pricedCart(identity)

		f.carts.On("GetByIdentity", mock.Anything, identity).Return(cart, nil).Once()
		f.carts.On("CleanExpiredPromotions", mock.Anything, cart.ID).Return(nil).Once()
		f.carts.On("GetByID", mock.Anything, cart.ID).Return(cart, nil).Once()

		req := testutils.CreateTestRequestWithIdentity(http.MethodGet, "/api/v1/cart", nil, identity, nil)
		rec := httptest.NewRecorder()
		f.handler.GetCart().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		resp := decodeResponse(t, rec)
		require.True(t, resp.Success)

		data, ok := resp.Data.(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "39.8", data["subtotal"])
		assert.Equal(t, "39.8", data["total"])
	})

	t.Run("No Cart Yet Returns 404", func(t *testing.T) {
		f := newCartFixture()

		f.carts.On("GetByIdentity", mock.Anything, models.CartIdentity{}).
			Return(nil, repository.ErrCartNotFound).Once()

		req := testutils.CreateTestRequestWithoutContext(http.MethodGet, "/api/v1/cart", nil, nil)
		rec := httptest.NewRecorder()
		f.handler.GetCart().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAddItemHandler(t *testing.T) {
	t.Run("Mints A Guest Session And Adds The Item", func(t *testing.T) {
		f := newCartFixture()

		var captured models.CartIdentity

		f.carts.On("AddItem", mock.Anything, mock.AnythingOfType("models.CartIdentity"), int64(42), 2, mock.AnythingOfType("repository.SnapshotFunc")).
			Run(func(args mock.Arguments) {
				captured, _ = args.Get(1).(models.CartIdentity)
			}).
			Return(pricedCart(models.CartIdentity{SessionToken: "minted"}), nil).Once()

		body, _ := json.Marshal(models.AddItemRequest{ProductID: 42, Quantity: 2})
		req := testutils.CreateTestRequestWithoutContext(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), nil)
		rec := httptest.NewRecorder()
		f.handler.AddItem().ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.NotEmpty(t, captured.SessionToken, "a guest session must be minted on the first mutation")

		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, "cart_session", cookies[0].Name)
	})

	t.Run("Validation Failure Returns 400", func(t *testing.T) {
		f := newCartFixture()

		body, _ := json.Marshal(map[string]any{"product_id": 42, "quantity": 0})
		req := testutils.CreateTestRequestWithoutContext(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), nil)
		rec := httptest.NewRecorder()
		f.handler.AddItem().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.carts.AssertNotCalled(t, "AddItem")
	})

	t.Run("Out Of Stock Returns 409", func(t *testing.T) {
		f := newCartFixture()
		identity := models.CartIdentity{SessionToken: "sess"}

		f.carts.On("AddItem", mock.Anything, identity, int64(42), 5, mock.AnythingOfType("repository.SnapshotFunc")).
			Return(nil, repository.ErrInsufficientStock).Once()

		body, _ := json.Marshal(models.AddItemRequest{ProductID: 42, Quantity: 5})
		req := testutils.CreateTestRequestWithIdentity(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(body), identity, nil)
		rec := httptest.NewRecorder()
		f.handler.AddItem().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRemoveItemHandler(t *testing.T) {
	t.Run("Invalid Item ID Returns 400", func(t *testing.T) {
		f := newCartFixture()
		identity := models.CartIdentity{SessionToken: "sess"}

		req := testutils.CreateTestRequestWithIdentity(http.MethodDelete, "/api/v1/cart/items/not-a-uuid", nil, identity,
			map[string]string{"id": "not-a-uuid"})
		rec := httptest.NewRecorder()
		f.handler.RemoveItem().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.carts.AssertNotCalled(t, "RemoveItem")
	})

	t.Run("Unknown Item Returns 404", func(t *testing.T) {
		f := newCartFixture()
		identity := models.CartIdentity{SessionToken: "sess"}
		itemID := uuid.New()
		cart := pricedCart(identity)

		f.carts.On("GetByIdentity", mock.Anything, identity).Return(cart, nil).Once()
		f.carts.On("RemoveItem", mock.Anything, cart.ID, itemID).Return(repository.ErrItemNotFound).Once()

		req := testutils.CreateTestRequestWithIdentity(http.MethodDelete, "/api/v1/cart/items/"+itemID.String(), nil, identity,
			map[string]string{"id": itemID.String()})
		rec := httptest.NewRecorder()
		f.handler.RemoveItem().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestApplyPromoCodeHandler(t *testing.T) {
	t.Run("Rejected Code Returns 400", func(t *testing.T) {
		f := newCartFixture()
		identity := models.CartIdentity{SessionToken: "sess"}
		cart := pricedCart(identity)

		f.carts.On("GetByIdentity", mock.Anything, identity).Return(cart, nil).Once()
		f.promos.On("GetByCode", mock.Anything, "NOPE").Return(nil, repository.ErrPromoCodeNotFound).Once()

		body, _ := json.Marshal(models.ApplyPromoCodeRequest{Code: "NOPE"})
		req := testutils.CreateTestRequestWithIdentity(http.MethodPost, "/api/v1/cart/promo-code", bytes.NewReader(body), identity, nil)
		rec := httptest.NewRecorder()
		f.handler.ApplyPromoCode().ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		f.carts.AssertNotCalled(t, "SetPromoCode")
	})
}
