package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils"
)

type PromoCodeRepository interface {
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	// IncrementUsage atomically consumes one redemption, failing when the
	// usage limit is already reached. Called at settlement only.
	IncrementUsage(ctx context.Context, code string) error
}

type promoCodeRepository struct {
	DB *sql.DB
}

func NewPromoCodeRepo(db *sql.DB) PromoCodeRepository {
	return &promoCodeRepository{DB: db}
}

func (r *promoCodeRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, code, discount_type, discount_amount, is_active,
		       start_date, end_date, usage_limit, usage_count,
		       min_cart_amount, free_shipping, free_shipping_method_id,
		       created_at, updated_at
		FROM promo_codes
		WHERE code = $1
	`

	promo := &models.PromoCode{}

	err := r.DB.QueryRowContext(dbCtx, query, models.NormalizePromoCode(code)).Scan(
		&promo.ID, &promo.Code, &promo.DiscountType, &promo.DiscountAmount,
		&promo.IsActive, &promo.StartDate, &promo.EndDate,
		&promo.UsageLimit, &promo.UsageCount, &promo.MinCartAmount,
		&promo.FreeShipping, &promo.FreeShippingMethodID,
		&promo.CreatedAt, &promo.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPromoCodeNotFound
		}

		return nil, fmt.Errorf("failed to get promo code: %w", err)
	}

	return promo, nil
}

func (r *promoCodeRepository) IncrementUsage(ctx context.Context, code string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	// Conditional increment; concurrent redemptions near the limit race on
	// this row, so the check and the write are one statement.
	query := `
		UPDATE promo_codes
		SET usage_count = usage_count + 1, updated_at = NOW()
		WHERE code = $1
		  AND (usage_limit IS NULL OR usage_count < usage_limit)
	`

	result, err := r.DB.ExecContext(dbCtx, query, models.NormalizePromoCode(code))
	if err != nil {
		return fmt.Errorf("failed to increment promo code usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrUsageExhausted
	}

	return nil
}
