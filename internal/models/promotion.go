package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type PromotionType string

const (
	PromotionTypePercentage PromotionType = "percentage"
	PromotionTypeAbsolute   PromotionType = "absolute"
)

// Promotion is a product-level, code-less discount attached to one or more
// products through a join relation.
type Promotion struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	Type      PromotionType   `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate *time.Time      `json:"start_date,omitempty"`
	EndDate   *time.Time      `json:"end_date,omitempty"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ActiveAt reports whether the promotion window contains the given instant.
// A nil boundary means unbounded on that side.
func (p *Promotion) ActiveAt(now time.Time) bool {
	if !p.IsActive {
		return false
	}

	if p.StartDate != nil && p.StartDate.After(now) {
		return false
	}

	if p.EndDate != nil && p.EndDate.Before(now) {
		return false
	}

	return true
}

// PromotionSnapshot is the denormalized price recorded on a cart line at
// add/update time. It is deliberately stale-tolerant: the snapshot keeps
// its price until CleanExpiredPromotions observes the window has lapsed.
type PromotionSnapshot struct {
	PromotionID int64           `json:"promotion_id"`
	Price       decimal.Decimal `json:"price"`
	ComputedAt  time.Time       `json:"computed_at"`
}
