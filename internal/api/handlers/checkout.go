package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/api/middleware"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	service "github.com/pharmaplace/pharmacy-commerce-platform/internal/services"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils/response"
)

// maxWebhookBody caps payment provider payloads; their events are small.
const maxWebhookBody = 65536

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
	validator       *validator.Validate
}

func NewCheckoutHandler(checkoutService *service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		validator:       validator.New(),
	}
}

func (h *CheckoutHandler) CreatePaymentIntent() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		var req models.CreatePaymentIntentRequest
		if !utils.ParseAndValidate(r, w, &req, h.validator) {
			return
		}

		identity := middleware.IdentityFromContext(r.Context())
		if identity.IsZero() {
			response.Error(w, errors.NotFoundError("Cart not found"))

			return
		}

		resp, err := h.checkoutService.CreatePaymentIntent(r.Context(), identity, &req)
		if err != nil {
			logger.Warn("Payment intent creation rejected", slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		logger.Info("Payment intent created",
			slog.String("paymentIntentId", resp.PaymentIntentID),
			slog.String("total", resp.Total.StringFixed(2)))

		response.Success(w, http.StatusCreated, resp)
	}
}

// HandleWebhook acknowledges provider events. Status codes drive the
// provider's retry behavior: 200 acknowledges (including replays already
// settled), 400 rejects a bad signature for good, and 5xx asks for a
// retry.
func (h *CheckoutHandler) HandleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			response.Error(w, errors.BadRequestError("Failed to read webhook payload"))

			return
		}

		err = h.checkoutService.ProcessWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
		if err != nil {
			if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeDuplicateSettlement {
				// The order already exists; acknowledge so the provider
				// stops replaying the event.
				logger.Info("Acknowledged replayed settlement event")
				response.Success(w, http.StatusOK, map[string]string{"status": "already_processed"})

				return
			}

			logger.Error("Webhook processing failed", slog.String("error", err.Error()))
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, map[string]string{"status": "received"})
	}
}
