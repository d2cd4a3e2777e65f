package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pharmaplace/pharmacy-commerce-platform/internal/config"
)

// Sentinel errors surfaced by repositories; services map them onto the
// client-facing error taxonomy.
var (
	ErrProductNotFound   = errors.New("product not found")
	ErrCartNotFound      = errors.New("cart not found")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrPromoCodeNotFound = errors.New("promo code not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrQuantityExceeded  = errors.New("max order quantity exceeded")
	ErrUsageExhausted    = errors.New("promo code usage limit reached")
	ErrDuplicateOrder    = errors.New("order already settled for payment intent")
)

const pqUniqueViolation = "23505"

// isUniqueViolation detects the settlement idempotency guard tripping on the
// orders.payment_intent_id unique constraint.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error

	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

type Repositories struct {
	DB        *sql.DB
	Cart      CartRepository
	Product   ProductRepository
	PromoCode PromoCodeRepository
	Shipping  ShippingRepository
	Order     OrderRepository
	User      UserRepository
}

func New(cfg *config.Config) (*Repositories, error) {
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.Database.ConnMaxIdleTime)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Repositories{
		DB:        db,
		Cart:      NewCartRepo(db),
		Product:   NewProductRepo(db),
		PromoCode: NewPromoCodeRepo(db),
		Shipping:  NewShippingRepo(db),
		Order:     NewOrderRepo(db),
		User:      NewUserRepo(db),
	}, nil
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
