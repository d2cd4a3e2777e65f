package service

import (
	"context"
	stdErrors "errors"
	"math"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/errors"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	repository "github.com/pharmaplace/pharmacy-commerce-platform/internal/repositories"
)

type CatalogService struct {
	products repository.ProductRepository
	shipping repository.ShippingRepository
}

func NewCatalogService(products repository.ProductRepository, shipping repository.ShippingRepository) *CatalogService {
	return &CatalogService{products: products, shipping: shipping}
}

func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		if stdErrors.Is(err, repository.ErrProductNotFound) {
			return nil, errors.NotFoundError("Product not found").WithError(err)
		}

		return nil, errors.DatabaseError("Failed to retrieve product").WithError(err)
	}

	return product, nil
}

func (s *CatalogService) ListProducts(ctx context.Context, page, size int) (*models.ProductListResponse, error) {
	if page < 1 {
		page = 1
	}

	if size < 1 || size > 100 {
		size = 20
	}

	products, total, err := s.products.List(ctx, page, size)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list products").WithError(err)
	}

	return &models.ProductListResponse{
		Products:   products,
		Total:      total,
		Page:       page,
		Size:       size,
		TotalPages: int(math.Ceil(float64(total) / float64(size))),
	}, nil
}

func (s *CatalogService) ListShippingMethods(ctx context.Context) ([]*models.ShippingMethod, error) {
	methods, err := s.shipping.ListMethods(ctx)
	if err != nil {
		return nil, errors.DatabaseError("Failed to list shipping methods").WithError(err)
	}

	return methods, nil
}
