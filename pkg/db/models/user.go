package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/pkg/enums"
)

// User is the local account a license or subscription belongs to. Identity
// management lives elsewhere; this service only reads users and persists the
// billing-customer mapping once resolved.
type User struct {
	ID               uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"column:email;not null;unique"`
	Name             string     `gorm:"column:name"`
	Role             enums.Role `gorm:"column:role;type:user_role;not null;default:'user'"`
	StripeCustomerID *string    `gorm:"column:stripe_customer_id;unique"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
