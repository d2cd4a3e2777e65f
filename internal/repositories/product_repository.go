package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pharmaplace/pharmacy-commerce-platform/internal/models"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/utils"
)

// ProductRepository is a read-only collaborator: the pricing/checkout core
// never mutates product records.
type ProductRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Product, error)
	List(ctx context.Context, page, size int) ([]*models.Product, int, error)
}

type productRepository struct {
	DB *sql.DB
}

func NewProductRepo(db *sql.DB) ProductRepository {
	return &productRepository{DB: db}
}

const productColumns = `
	p.id, p.category_id, p.brand_id, p.name, p.description, p.price_ttc,
	p.stock, p.max_order_quantity, p.weight_kg, p.requires_medical_info,
	p.status, p.created_at, p.updated_at
`

func scanProduct(row interface{ Scan(dest ...any) error }) (*models.Product, error) {
	product := &models.Product{}

	err := row.Scan(
		&product.ID, &product.CategoryID, &product.BrandID, &product.Name,
		&product.Description, &product.PriceTTC, &product.Stock,
		&product.MaxOrderQuantity, &product.WeightKg,
		&product.RequiresMedicalInfo, &product.Status,
		&product.CreatedAt, &product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return product, nil
}

func (r *productRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.id = $1
	`

	product, err := scanProduct(r.DB.QueryRowContext(dbCtx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}

		return nil, fmt.Errorf("failed to get product: %w", err)
	}

	promotions, err := loadPromotions(dbCtx, r.DB, id)
	if err != nil {
		return nil, err
	}

	product.Promotions = promotions

	return product, nil
}

// loadPromotions fetches the active-flagged promotions attached to a
// product. Window filtering happens at evaluation time in pricing.
func loadPromotions(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}, productID int64) ([]models.Promotion, error) {
	query := `
		SELECT pr.id, pr.name, pr.type, pr.amount, pr.start_date, pr.end_date,
		       pr.is_active, pr.created_at, pr.updated_at
		FROM promotions pr
		JOIN product_promotions pp ON pp.promotion_id = pr.id
		WHERE pp.product_id = $1 AND pr.is_active
		ORDER BY pr.id
	`

	rows, err := q.QueryContext(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load promotions: %w", err)
	}

	defer rows.Close()

	var promotions []models.Promotion

	for rows.Next() {
		var p models.Promotion

		err := rows.Scan(&p.ID, &p.Name, &p.Type, &p.Amount, &p.StartDate,
			&p.EndDate, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}

		promotions = append(promotions, p)
	}

	return promotions, rows.Err()
}

func (r *productRepository) List(ctx context.Context, page, size int) ([]*models.Product, int, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var total int

	countQuery := `SELECT COUNT(*) FROM products WHERE status = 'active'`
	if err := r.DB.QueryRowContext(dbCtx, countQuery).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	offset := (page - 1) * size

	query := `
		SELECT ` + productColumns + `
		FROM products p
		WHERE p.status = 'active'
		ORDER BY p.id
		LIMIT $1 OFFSET $2
	`

	rows, err := r.DB.QueryContext(dbCtx, query, size, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}

	defer rows.Close()

	var products []*models.Product

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan product: %w", err)
		}

		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return products, total, nil
}
