package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/vantage-app/licensing-backend/pkg/enums"
)

// License entitles activation of the desktop product on one device at a time.
//
// Ownership is mutually exclusive: at most one of SubscriptionID/ContractID is
// set; both nil means unsold standalone inventory. The binding invariant is
// IsUsed == (DeviceID != nil), enforced by a table CHECK and by the
// conditional update in the licenses repository.
type License struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Code           string         `gorm:"column:code;not null;unique"`
	Client         *string        `gorm:"column:client"`
	PlanType       enums.PlanType `gorm:"column:plan_type;type:plan_type;not null;default:'subscription'"`
	IsUsed         bool           `gorm:"column:is_used;not null;default:false"`
	DeviceID       *string        `gorm:"column:device_id"`
	DeviceType     *string        `gorm:"column:device_type"`
	ActivatedAt    *time.Time     `gorm:"column:activated_at"`
	ExpireDate     *time.Time     `gorm:"column:expire_date"`
	Sold           bool           `gorm:"column:sold;not null;default:false"`
	IsStandalone   bool           `gorm:"column:is_standalone;not null;default:false"`
	SubscriptionID *uuid.UUID     `gorm:"column:subscription_id;type:uuid;index"`
	ContractID     *uuid.UUID     `gorm:"column:contract_id;type:uuid;index"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

// IsExpired reports whether the license has an expiry in the past.
func (l *License) IsExpired(now time.Time) bool {
	return l.ExpireDate != nil && l.ExpireDate.Before(now)
}
