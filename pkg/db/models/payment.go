package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment records one successfully paid provider invoice. The unique
// constraint on StripeInvoiceID is what keeps repeated reconciliation runs
// from duplicating rows.
type Payment struct {
	ID              uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	SubscriptionID  uuid.UUID `gorm:"column:subscription_id;type:uuid;not null;index"`
	StripeInvoiceID string    `gorm:"column:stripe_invoice_id;not null;unique"`
	AmountCents     int64     `gorm:"column:amount_cents;not null"`
	Currency        string    `gorm:"column:currency;not null;default:'usd'"`
	PaidAt          time.Time `gorm:"column:paid_at;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
