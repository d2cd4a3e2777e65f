package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils"
)

type ShippingRepository interface {
	GetMethodByID(ctx context.Context, id int64) (*models.ShippingMethod, error)
	ListMethods(ctx context.Context) ([]*models.ShippingMethod, error)
}

type shippingRepository struct {
	DB *sql.DB
}

func NewShippingRepo(db *sql.DB) ShippingRepository {
	return &shippingRepository{DB: db}
}

func (r *shippingRepository) GetMethodByID(ctx context.Context, id int64) (*models.ShippingMethod, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, type, free_shipping_threshold, created_at, updated_at
		FROM shipping_methods
		WHERE id = $1
	`

	method := &models.ShippingMethod{}

	err := r.DB.QueryRowContext(dbCtx, query, id).Scan(
		&method.ID, &method.Name, &method.Type,
		&method.FreeShippingThreshold, &method.CreatedAt, &method.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}

		return nil, fmt.Errorf("failed to get shipping method: %w", err)
	}

	rates, err := r.loadRates(dbCtx, id)
	if err != nil {
		return nil, err
	}

	method.Rates = rates

	return method, nil
}

// Rate bands ordered by min weight; the resolver takes the first match.
func (r *shippingRepository) loadRates(ctx context.Context, methodID int64) ([]models.ShippingRate, error) {
	query := `
		SELECT id, shipping_method_id, min_weight_kg, max_weight_kg, price
		FROM shipping_rates
		WHERE shipping_method_id = $1
		ORDER BY min_weight_kg, id
	`

	rows, err := r.DB.QueryContext(ctx, query, methodID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping rates: %w", err)
	}

	defer rows.Close()

	var rates []models.ShippingRate

	for rows.Next() {
		var rate models.ShippingRate

		err := rows.Scan(&rate.ID, &rate.ShippingMethodID,
			&rate.MinWeightKg, &rate.MaxWeightKg, &rate.Price)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipping rate: %w", err)
		}

		rates = append(rates, rate)
	}

	return rates, rows.Err()
}

func (r *shippingRepository) ListMethods(ctx context.Context) ([]*models.ShippingMethod, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, type, free_shipping_threshold, created_at, updated_at
		FROM shipping_methods
		ORDER BY id
	`

	rows, err := r.DB.QueryContext(dbCtx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list shipping methods: %w", err)
	}

	defer rows.Close()

	var methods []*models.ShippingMethod

	for rows.Next() {
		method := &models.ShippingMethod{}

		err := rows.Scan(&method.ID, &method.Name, &method.Type,
			&method.FreeShippingThreshold, &method.CreatedAt, &method.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan shipping method: %w", err)
		}

		methods = append(methods, method)
	}

	return methods, rows.Err()
}
