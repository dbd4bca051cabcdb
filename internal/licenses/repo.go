package licenses

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/pkg/db/models"
)

// Repository exposes license persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a license repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new license row.
func (r *Repository) Create(ctx context.Context, license *models.License) (*models.License, error) {
	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		return nil, err
	}
	return license, nil
}

// CreateBatch inserts all rows in a single statement.
func (r *Repository) CreateBatch(ctx context.Context, rows []models.License) ([]models.License, error) {
	if len(rows) == 0 {
		return rows, nil
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByID returns the license row for the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var row models.License
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByCode returns the license row for the given code.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.License, error) {
	var row models.License
	if err := r.db.WithContext(ctx).First(&row, "code = ?", code).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// CodeExists reports whether any license row carries the given code.
func (r *Repository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("code = ?", code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// FindBySubscription returns the license linked to a subscription, or
// gorm.ErrRecordNotFound when none has been provisioned yet.
func (r *Repository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.License, error) {
	var row models.License
	if err := r.db.WithContext(ctx).First(&row, "subscription_id = ?", subscriptionID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListByContract returns all licenses belonging to a contract.
func (r *Repository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.License, error) {
	var rows []models.License
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// BindDevice marks a license bound to a device, guarded so only an unbound
// row is written. The advisory read in the service can pass for two
// concurrent binders; the WHERE clause here is what actually decides the
// winner. Returns false when the row was already bound (or absent).
func (r *Repository) BindDevice(ctx context.Context, id uuid.UUID, deviceID, deviceType string, activatedAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]interface{}{
			"is_used":      true,
			"device_id":    deviceID,
			"device_type":  deviceType,
			"activated_at": activatedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Unbind clears the device binding fields in one update.
func (r *Repository) Unbind(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_used":      false,
			"device_id":    nil,
			"device_type":  nil,
			"activated_at": nil,
		}).Error
}

// UpdateFields applies a partial column update to a license row.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("id = ?", id).
		Updates(fields).Error
}

// DeleteByContract removes every license belonging to a contract.
func (r *Repository) DeleteByContract(ctx context.Context, contractID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Delete(&models.License{}).Error
}
