package contracts

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/pkg/db/models"
)

// Repository exposes contract persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a contract repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new contract row. A duplicate contract_number surfaces as a
// unique violation for the caller's numbering retry loop.
func (r *Repository) Create(ctx context.Context, contract *models.Contract) (*models.Contract, error) {
	if err := r.db.WithContext(ctx).Create(contract).Error; err != nil {
		return nil, err
	}
	return contract, nil
}

// FindByID returns the contract row for the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var row models.Contract
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// List returns contracts newest first, optionally restricted to one owner email.
func (r *Repository) List(ctx context.Context, ownerEmail string) ([]models.Contract, error) {
	query := r.db.WithContext(ctx).Model(&models.Contract{})
	if ownerEmail != "" {
		query = query.Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(ownerEmail)))
	}

	var rows []models.Contract
	if err := query.Order("contract_number DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// HighestContractNumber returns the current maximum contract number, zero when
// no contracts exist yet.
func (r *Repository) HighestContractNumber(ctx context.Context) (int64, error) {
	var max *int64
	if err := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Select("MAX(contract_number)").
		Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// UpdateFields applies a partial column update to a contract row.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// Delete removes a contract row. License rows cascade at the store via the
// contract_id foreign key.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.Contract{}, "id = ?", id).Error
}
