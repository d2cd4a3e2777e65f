package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils"
	"github.com/shopspring/decimal"
)

// SnapshotFunc computes the promotion snapshot for a product at write time.
// Injected by the service so pricing stays out of the persistence layer.
type SnapshotFunc func(product *models.Product) *models.PromotionSnapshot

type CartRepository interface {
	GetByIdentity(ctx context.Context, identity models.CartIdentity) (*models.Cart, error)
	GetByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	// AddItem runs the stock and max-order-quantity checks and the line
	// upsert in one transaction with the product row locked, so two
	// concurrent adds cannot both pass a stale stock check.
	AddItem(ctx context.Context, identity models.CartIdentity, productID int64, quantity int, snapshotFor SnapshotFunc) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int, snapshotFor SnapshotFunc) error
	RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error
	// CleanExpiredPromotions clears snapshots whose promotion has lapsed,
	// been deactivated or deleted. Invoked before any total that feeds
	// checkout is computed.
	CleanExpiredPromotions(ctx context.Context, cartID uuid.UUID) error
	SetShippingMethod(ctx context.Context, cartID uuid.UUID, shippingMethodID int64) error
	SetPromoCode(ctx context.Context, cartID uuid.UUID, code *string) error
	ClearItems(ctx context.Context, cartID uuid.UUID) error
}

type cartRepository struct {
	DB *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{DB: db}
}

func (r *cartRepository) GetByIdentity(ctx context.Context, identity models.CartIdentity) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	cart, err := r.findCart(dbCtx, r.DB, identity, false)
	if err != nil {
		return nil, err
	}

	items, err := r.loadItems(dbCtx, cart.ID)
	if err != nil {
		return nil, err
	}

	cart.Items = items

	return cart, nil
}

func (r *cartRepository) GetByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, user_id, session_token, shipping_method_id,
		       applied_promo_code, created_at, updated_at
		FROM carts
		WHERE id = $1
	`

	cart := &models.Cart{}

	err := r.DB.QueryRowContext(dbCtx, query, cartID).Scan(
		&cart.ID, &cart.UserID, &cart.SessionToken, &cart.ShippingMethodID,
		&cart.AppliedPromoCode, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}

		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	items, err := r.loadItems(dbCtx, cart.ID)
	if err != nil {
		return nil, err
	}

	cart.Items = items

	return cart, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// findCart resolves the cart by user id first, session token second.
func (r *cartRepository) findCart(ctx context.Context, q querier, identity models.CartIdentity, forUpdate bool) (*models.Cart, error) {
	var (
		where string
		arg   any
	)

	switch {
	case identity.UserID != nil:
		where = "user_id = $1"
		arg = *identity.UserID
	case identity.SessionToken != "":
		where = "session_token = $1"
		arg = identity.SessionToken
	default:
		return nil, ErrCartNotFound
	}

	query := `
		SELECT id, user_id, session_token, shipping_method_id,
		       applied_promo_code, created_at, updated_at
		FROM carts
		WHERE ` + where

	if forUpdate {
		query += " FOR UPDATE"
	}

	cart := &models.Cart{}

	err := q.QueryRowContext(ctx, query, arg).Scan(
		&cart.ID, &cart.UserID, &cart.SessionToken, &cart.ShippingMethodID,
		&cart.AppliedPromoCode, &cart.CreatedAt, &cart.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartNotFound
		}

		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) loadItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	query := `
		SELECT ci.id, ci.cart_id, ci.product_id, ci.quantity,
		       ci.applied_promotion_id, ci.applied_promotion_price,
		       ci.promotion_applied_at, ci.created_at, ci.updated_at,
		       p.id, p.category_id, p.brand_id, p.name, p.description,
		       p.price_ttc, p.stock, p.max_order_quantity, p.weight_kg,
		       p.requires_medical_info, p.status, p.created_at, p.updated_at
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.cart_id = $1
		ORDER BY ci.created_at
	`

	rows, err := r.DB.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}

	defer rows.Close()

	var items []models.CartItem

	for rows.Next() {
		var (
			item        models.CartItem
			product     models.Product
			promotionID sql.NullInt64
			promoPrice  decimal.NullDecimal
			appliedAt   sql.NullTime
		)

		err := rows.Scan(
			&item.ID, &item.CartID, &item.ProductID, &item.Quantity,
			&promotionID, &promoPrice, &appliedAt,
			&item.CreatedAt, &item.UpdatedAt,
			&product.ID, &product.CategoryID, &product.BrandID, &product.Name,
			&product.Description, &product.PriceTTC, &product.Stock,
			&product.MaxOrderQuantity, &product.WeightKg,
			&product.RequiresMedicalInfo, &product.Status,
			&product.CreatedAt, &product.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}

		if promotionID.Valid && promoPrice.Valid {
			item.Promotion = &models.PromotionSnapshot{
				PromotionID: promotionID.Int64,
				Price:       promoPrice.Decimal,
				ComputedAt:  appliedAt.Time,
			}
		}

		item.Product = &product
		items = append(items, item)
	}

	return items, rows.Err()
}

func (r *cartRepository) AddItem(ctx context.Context, identity models.CartIdentity, productID int64, quantity int, snapshotFor SnapshotFunc) (*models.Cart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	cart, err := r.findCart(dbCtx, tx, identity, true)
	if errors.Is(err, ErrCartNotFound) {
		cart, err = r.createCart(dbCtx, tx, identity)
	}

	if err != nil {
		return nil, err
	}

	product, err := r.lockProduct(dbCtx, tx, productID)
	if err != nil {
		return nil, err
	}

	var (
		itemID   uuid.UUID
		existing int
	)

	err = tx.QueryRowContext(dbCtx, `
		SELECT id, quantity FROM cart_items
		WHERE cart_id = $1 AND product_id = $2
		FOR UPDATE
	`, cart.ID, productID).Scan(&itemID, &existing)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to lock cart item: %w", err)
	}

	requested := existing + quantity

	if product.Stock < requested {
		return nil, ErrInsufficientStock
	}

	if product.MaxOrderQuantity != nil && requested > *product.MaxOrderQuantity {
		return nil, ErrQuantityExceeded
	}

	snapshot := snapshotFor(product)

	if existing > 0 {
		err = r.writeItem(dbCtx, tx, `
			UPDATE cart_items
			SET quantity = $1, applied_promotion_id = $2,
			    applied_promotion_price = $3, promotion_applied_at = $4,
			    updated_at = NOW()
			WHERE id = $5
		`, requested, snapshot, itemID)
	} else {
		err = r.writeItem(dbCtx, tx, `
			INSERT INTO cart_items (quantity, applied_promotion_id,
				applied_promotion_price, promotion_applied_at, id, cart_id,
				product_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		`, requested, snapshot, uuid.New(), cart.ID, productID)
	}

	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(dbCtx, `UPDATE carts SET updated_at = NOW() WHERE id = $1`, cart.ID); err != nil {
		return nil, fmt.Errorf("failed to touch cart: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit add item: %w", err)
	}

	return r.GetByID(ctx, cart.ID)
}

func (r *cartRepository) createCart(ctx context.Context, tx *sql.Tx, identity models.CartIdentity) (*models.Cart, error) {
	cart := &models.Cart{ID: uuid.New(), UserID: identity.UserID}

	if identity.SessionToken != "" {
		token := identity.SessionToken
		cart.SessionToken = &token
	}

	query := `
		INSERT INTO carts (id, user_id, session_token, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := tx.QueryRowContext(ctx, query, cart.ID, cart.UserID, cart.SessionToken).
		Scan(&cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	return cart, nil
}

func (r *cartRepository) lockProduct(ctx context.Context, tx *sql.Tx, productID int64) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.id = $1
		FOR UPDATE
	`

	product, err := scanProduct(tx.QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	promotions, err := loadPromotions(ctx, tx, productID)
	if err != nil {
		return nil, err
	}

	product.Promotions = promotions

	return product, nil
}

// writeItem flattens the optional snapshot into its three columns. The
// leading placeholders are shared between the INSERT and UPDATE forms.
func (r *cartRepository) writeItem(ctx context.Context, tx *sql.Tx, query string, quantity int, snapshot *models.PromotionSnapshot, rest ...any) error {
	var (
		promotionID *int64
		price       *decimal.Decimal
		computedAt  *time.Time
	)

	if snapshot != nil {
		promotionID = &snapshot.PromotionID
		price = &snapshot.Price
		computedAt = &snapshot.ComputedAt
	}

	args := append([]any{quantity, promotionID, price, computedAt}, rest...)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to write cart item: %w", err)
	}

	return nil
}

func (r *cartRepository) UpdateItemQuantity(ctx context.Context, cartID, itemID uuid.UUID, quantity int, snapshotFor SnapshotFunc) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	tx, err := r.DB.BeginTx(dbCtx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer tx.Rollback()

	var productID int64

	err = tx.QueryRowContext(dbCtx, `
		SELECT product_id FROM cart_items
		WHERE id = $1 AND cart_id = $2
		FOR UPDATE
	`, itemID, cartID).Scan(&productID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrItemNotFound
		}

		return fmt.Errorf("failed to lock cart item: %w", err)
	}

	product, err := r.lockProduct(dbCtx, tx, productID)
	if err != nil {
		return err
	}

	// Absolute quantity, not a delta.
	if product.Stock < quantity {
		return ErrInsufficientStock
	}

	if product.MaxOrderQuantity != nil && quantity > *product.MaxOrderQuantity {
		return ErrQuantityExceeded
	}

	err = r.writeItem(dbCtx, tx, `
		UPDATE cart_items
		SET quantity = $1, applied_promotion_id = $2,
		    applied_promotion_price = $3, promotion_applied_at = $4,
		    updated_at = NOW()
		WHERE id = $5
	`, quantity, snapshotFor(product), itemID)
	if err != nil {
		return err
	}

	return tx.Commit()
}

func (r *cartRepository) RemoveItem(ctx context.Context, cartID, itemID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	result, err := r.DB.ExecContext(dbCtx,
		`DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`, itemID, cartID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrItemNotFound
	}

	return nil
}

func (r *cartRepository) CleanExpiredPromotions(ctx context.Context, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	// One statement so the id and price are cleared together. Dangling
	// snapshots (promotion deleted) fall out through the NOT EXISTS arm.
	query := `
		UPDATE cart_items ci
		SET applied_promotion_id = NULL, applied_promotion_price = NULL,
		    promotion_applied_at = NULL, updated_at = NOW()
		WHERE ci.cart_id = $1
		  AND ci.applied_promotion_id IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM promotions pr
			WHERE pr.id = ci.applied_promotion_id
			  AND pr.is_active
			  AND (pr.start_date IS NULL OR pr.start_date <= NOW())
			  AND (pr.end_date IS NULL OR pr.end_date >= NOW())
		  )
	`

	if _, err := r.DB.ExecContext(dbCtx, query, cartID); err != nil {
		return fmt.Errorf("failed to clean expired promotions: %w", err)
	}

	return nil
}

func (r *cartRepository) SetShippingMethod(ctx context.Context, cartID uuid.UUID, shippingMethodID int64) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `UPDATE carts SET shipping_method_id = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.DB.ExecContext(dbCtx, query, shippingMethodID, cartID)
	if err != nil {
		return fmt.Errorf("failed to set shipping method: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrCartNotFound
	}

	return nil
}

func (r *cartRepository) SetPromoCode(ctx context.Context, cartID uuid.UUID, code *string) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `UPDATE carts SET applied_promo_code = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.DB.ExecContext(dbCtx, query, code, cartID)
	if err != nil {
		return fmt.Errorf("failed to set promo code: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if affected == 0 {
		return ErrCartNotFound
	}

	return nil
}

// ClearItems empties the cart after settlement; the cart record survives.
func (r *cartRepository) ClearItems(ctx context.Context, cartID uuid.UUID) error {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	if _, err := r.DB.ExecContext(dbCtx, `DELETE FROM cart_items WHERE cart_id = $1`, cartID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	query := `
		UPDATE carts
		SET applied_promo_code = NULL, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.DB.ExecContext(dbCtx, query, cartID); err != nil {
		return fmt.Errorf("failed to reset cart: %w", err)
	}

	return nil
}
