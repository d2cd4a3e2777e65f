package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// IntentState is the payment intent lifecycle as observed through provider
// webhooks. Kept as an explicit tagged state rather than a switch over raw
// event-type strings so invalid moves are rejected in one place.
type IntentState string

const (
	IntentCreated   IntentState = "created"
	IntentSucceeded IntentState = "succeeded"
	IntentFailed    IntentState = "failed"
	IntentRefunded  IntentState = "refunded"
)

var intentTransitions = map[IntentState][]IntentState{
	IntentCreated:   {IntentSucceeded, IntentFailed},
	IntentSucceeded: {IntentRefunded},
}

// Transition validates and performs a lifecycle step. Refunding an intent
// that never succeeded, or re-settling a terminal intent, is an error.
func (s IntentState) Transition(next IntentState) (IntentState, error) {
	for _, allowed := range intentTransitions[s] {
		if allowed == next {
			return next, nil
		}
	}

	return s, fmt.Errorf("invalid payment intent transition %q -> %q", s, next)
}

// MedicalInfo is required at checkout when the cart contains a medicated
// product.
type MedicalInfo struct {
	HeightCm  int  `json:"height_cm" validate:"required,gt=0"`
	WeightKg  int  `json:"weight_kg" validate:"required,gt=0"`
	Agreement bool `json:"agreement"`
}

func (m *MedicalInfo) Complete() bool {
	return m != nil && m.HeightCm > 0 && m.WeightKg > 0 && m.Agreement
}

type CreatePaymentIntentRequest struct {
	// Email is required for guest checkout; authenticated carts use the
	// account email instead.
	Email       string       `json:"email" validate:"omitempty,email"`
	MedicalInfo *MedicalInfo `json:"medical_info,omitempty"`
}

type CreatePaymentIntentResponse struct {
	ClientSecret    string          `json:"client_secret"`
	PaymentIntentID string          `json:"payment_intent_id"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Discount        decimal.Decimal `json:"discount"`
	Shipping        decimal.Decimal `json:"shipping"`
	Total           decimal.Decimal `json:"total"`
}

// Quote is the settlement amount breakdown computed at intent creation and
// carried through provider metadata so reconciliation never re-reads the
// live cart.
type Quote struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Shipping decimal.Decimal
	Total    decimal.Decimal
	Promo    *PromoCode
}

// MinorUnits converts a euro amount to cents by rounding, not truncation.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
