package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/api/middleware"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	service "github.com/pharmaplace/pharmacy-commerce-platform/internal/services"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils/response"
)

type CartHandler struct {
	cartService     *service.CartService
	promoService    *service.PromoCodeService
	checkoutService *service.CheckoutService
	session         *middleware.SessionMiddleware
	validator       *validator.Validate
}

func NewCartHandler(cartService *service.CartService, promoService *service.PromoCodeService, checkoutService *service.CheckoutService, session *middleware.SessionMiddleware) *CartHandler {
	return &CartHandler{
		cartService:     cartService,
		promoService:    promoService,
		checkoutService: checkoutService,
		session:         session,
		validator:       validator.New(),
	}
}

// view prices the cart for the storefront response.
func (h *CartHandler) view(w http.ResponseWriter, r *http.Request, cart *models.Cart) {
	quote, err := h.checkoutService.Quote(r.Context(), cart)
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error("Failed to price cart",
			slog.String("cartId", cart.ID.String()),
			slog.String("error", err.Error()))
		response.Error(w, err)

		return
	}

	response.Success(w, http.StatusOK, models.CartView{
		Cart:     cart,
		Subtotal: quote.Subtotal,
		Discount: quote.Discount,
		Shipping: quote.Shipping,
		Total:    quote.Total,
	})
}

func (h *CartHandler) GetCart() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())

		cart, err := h.cartService.GetCart(r.Context(), identity)
		if err != nil {
			response.Error(w, err)

			return
		}

		h.view(w, r, cart)
	}
}

func (h *CartHandler) AddItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		var req models.AddItemRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		// First mutation mints the guest session when none exists yet.
		identity := h.session.EnsureIdentity(w, r)

		cart, err := h.cartService.AddItem(r.Context(), identity, &req)
		if err != nil {
			logger.Warn("Failed to add cart item",
				slog.Int64("productId", req.ProductID),
				slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		h.view(w, r, cart)
	}
}

func (h *CartHandler) UpdateItemQuantity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			response.Error(w, errors.BadRequestError("Invalid cart item id"))

			return
		}

		var req models.UpdateQuantityRequest
		if err := utils.DecodeJSONBody(r, &req); err != nil {
			response.Error(w, errors.BadRequestError(err.Error()))

			return
		}

		identity := middleware.IdentityFromContext(r.Context())

		cart, err := h.cartService.UpdateItemQuantity(r.Context(), identity, itemID, req.Quantity)
		if err != nil {
			response.Error(w, err)

			return
		}

		h.view(w, r, cart)
	}
}

func (h *CartHandler) RemoveItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		itemID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			response.Error(w, errors.BadRequestError("Invalid cart item id"))

			return
		}

		identity := middleware.IdentityFromContext(r.Context())

		cart, err := h.cartService.RemoveItem(r.Context(), identity, itemID)
		if err != nil {
			response.Error(w, err)

			return
		}

		h.view(w, r, cart)
	}
}

func (h *CartHandler) SetShippingMethod() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SetShippingMethodRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		identity := middleware.IdentityFromContext(r.Context())

		cart, err := h.cartService.SetShippingMethod(r.Context(), identity, req.ShippingMethodID)
		if err != nil {
			response.Error(w, err)

			return
		}

		h.view(w, r, cart)
	}
}

func (h *CartHandler) ApplyPromoCode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		var req models.ApplyPromoCodeRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		identity := middleware.IdentityFromContext(r.Context())

		cart, err := h.promoService.Apply(r.Context(), identity, req.Code)
		if err != nil {
			logger.Info("Promo code rejected",
				slog.String("code", models.NormalizePromoCode(req.Code)),
				slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		h.view(w, r, cart)
	}
}

func (h *CartHandler) RemovePromoCode() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := middleware.IdentityFromContext(r.Context())

		cart, err := h.promoService.Remove(r.Context(), identity)
		if err != nil {
			response.Error(w, err)

			return
		}

		h.view(w, r, cart)
	}
}
