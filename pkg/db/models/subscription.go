package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/pkg/enums"
)

// Subscription mirrors the billing provider's subscription for a local user.
// Rows are created and updated only by the reconciliation engine.
type Subscription struct {
	ID                   uuid.UUID                `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID               uuid.UUID                `gorm:"column:user_id;type:uuid;not null;index"`
	StripeSubscriptionID string                   `gorm:"column:stripe_subscription_id;not null;unique"`
	Status               enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	PlanType             enums.PlanType           `gorm:"column:plan_type;type:plan_type;not null;default:'subscription'"`
	BillingCycle         enums.BillingCycle       `gorm:"column:billing_cycle;type:billing_cycle;not null;default:'monthly'"`
	CurrentPeriodStart   *time.Time               `gorm:"column:current_period_start"`
	CurrentPeriodEnd     *time.Time               `gorm:"column:current_period_end"`
	CancelAtPeriodEnd    bool                     `gorm:"column:cancel_at_period_end;not null;default:false"`
	CreatedAt            time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
