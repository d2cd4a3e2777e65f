package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ShippingMethodType string

const (
	ShippingPharmacyPickup ShippingMethodType = "pharmacy-pickup"
	ShippingHomeDelivery   ShippingMethodType = "home-delivery"
	ShippingRelayPoint     ShippingMethodType = "relay-point"
)

type ShippingMethod struct {
	ID                    int64              `json:"id"`
	Name                  string             `json:"name"`
	Type                  ShippingMethodType `json:"type"`
	FreeShippingThreshold *decimal.Decimal   `json:"free_shipping_threshold,omitempty"`
	Rates                 []ShippingRate     `json:"rates,omitempty"`
	CreatedAt             time.Time          `json:"created_at"`
	UpdatedAt             time.Time          `json:"updated_at"`
}

// ShippingRate is a weight band on a shipping method. Bands are expected not
// to gap or overlap but that is not enforced; the first matching band wins.
type ShippingRate struct {
	ID               int64           `json:"id"`
	ShippingMethodID int64           `json:"shipping_method_id"`
	MinWeightKg      float64         `json:"min_weight_kg"`
	MaxWeightKg      float64         `json:"max_weight_kg"`
	Price            decimal.Decimal `json:"price"`
}

// Matches reports whether the band contains the given total weight,
// boundaries inclusive.
func (r *ShippingRate) Matches(totalWeightKg float64) bool {
	return totalWeightKg >= r.MinWeightKg && totalWeightKg <= r.MaxWeightKg
}
