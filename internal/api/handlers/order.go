package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/api/middleware"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	service "github.com/pharmaplace/pharmacy-commerce-platform/internal/services"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils/response"
)

type OrderHandler struct {
	orderService *service.OrderService
}

func NewOrderHandler(orderService *service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) GetOrder() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			response.Error(w, errors.BadRequestError("Invalid order id"))

			return
		}

		identity := middleware.IdentityFromContext(r.Context())

		order, err := h.orderService.GetOrder(r.Context(), *identity.UserID, orderID)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, order)
	}
}

func (h *OrderHandler) ListOrders() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		size, _ := strconv.Atoi(r.URL.Query().Get("size"))

		identity := middleware.IdentityFromContext(r.Context())

		history, err := h.orderService.ListOrders(r.Context(), *identity.UserID, page, size)
		if err != nil {
			response.Error(w, err)

			return
		}

		response.Success(w, http.StatusOK, history)
	}
}
