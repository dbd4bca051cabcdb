package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Contract is a bulk commercial agreement provisioning a fixed batch of
// licenses. ContractNumber is sequential per creation order and guarded by a
// unique constraint; the license count is fixed at creation time.
type Contract struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ContractNumber     int64           `gorm:"column:contract_number;not null;unique"`
	CompanyName        string          `gorm:"column:company_name;not null"`
	RepresentativeName string          `gorm:"column:representative_name;not null"`
	Email              string          `gorm:"column:email;not null;index"`
	Phone              string          `gorm:"column:phone"`
	Value              decimal.Decimal `gorm:"column:value;type:numeric(12,2)"`
	QuoteID            *uuid.UUID      `gorm:"column:quote_id;type:uuid"`
	Licenses           []License       `gorm:"foreignKey:ContractID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
