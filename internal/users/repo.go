package users

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/pkg/db/models"
)

// Repository exposes user persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a user repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID returns the user row for the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var row models.User
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByEmail returns the user row for the given email, matched case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var row models.User
	normalized := strings.ToLower(strings.TrimSpace(email))
	if err := r.db.WithContext(ctx).First(&row, "LOWER(email) = ?", normalized).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByStripeCustomerID returns the user linked to the given Stripe customer.
func (r *Repository) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var row models.User
	if err := r.db.WithContext(ctx).First(&row, "stripe_customer_id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SetStripeCustomerID records the Stripe customer link on a user row.
func (r *Repository) SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("stripe_customer_id", customerID).Error
}
