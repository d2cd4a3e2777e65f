package service

import (
	"context"
	stdErrors "errors"

	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
)

// OrderService is the read surface over settled orders. Creation happens
// only inside the settlement pipeline; back-office status mutations live
// elsewhere.
type OrderService struct {
	orders repository.OrderRepository
}

func NewOrderService(orders repository.OrderRepository) *OrderService {
	return &OrderService{orders: orders}
}

func (s *OrderService) GetOrder(ctx context.Context, userID uuid.UUID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if stdErrors.Is(err, repository.ErrOrderNotFound) {
			return nil, errors.NotFoundError("Order not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve order").WithError(err)
	}

	if order.UserID == nil || *order.UserID != userID {
		return nil, errors.ForbiddenError("You can only view your own orders")
	}

	return order, nil
}

func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, page, size int) (*models.OrderHistoryResponse, error) {
	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 20
	}

	orders, total, err := s.orders.ListByUser(ctx, userID, page, size)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list orders").WithError(err)
	}

	history := &models.OrderHistoryResponse{
		Orders: make([]models.Order, 0, len(orders)),
		Total:  total,
		Page:   page,
		Size:   size,
	}

	for _, order := range orders {
		history.Orders = append(history.Orders, *order)
	}

	return history, nil
}
