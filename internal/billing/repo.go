package billing

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/pkg/db"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
)

// Repository exposes subscription and payment persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a billing repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindSubscriptionByStripeID returns the subscription row for the given Stripe
// subscription id.
func (r *Repository) FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error) {
	var row models.Subscription
	if err := r.db.WithContext(ctx).First(&row, "stripe_subscription_id = ?", stripeSubscriptionID).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertSubscription inserts the subscription keyed by its Stripe id, or
// refreshes the mutable fields when the row already exists. The returned row
// always carries the local id.
func (r *Repository) UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error) {
	existing, err := r.FindSubscriptionByStripeID(ctx, sub.StripeSubscriptionID)
	if err == nil {
		existing.Status = sub.Status
		existing.PlanType = sub.PlanType
		existing.BillingCycle = sub.BillingCycle
		existing.CurrentPeriodStart = sub.CurrentPeriodStart
		existing.CurrentPeriodEnd = sub.CurrentPeriodEnd
		existing.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
			return nil, err
		}
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	if err := r.db.WithContext(ctx).Create(sub).Error; err != nil {
		// A concurrent replay may have inserted the same Stripe id between the
		// lookup and the create. Re-read and treat it as the upsert target.
		if db.IsUniqueViolation(err, "subscriptions_stripe_subscription_id_key") {
			return r.FindSubscriptionByStripeID(ctx, sub.StripeSubscriptionID)
		}
		return nil, err
	}
	return sub, nil
}

// FindSubscriptionByID returns the subscription row for the given local id.
func (r *Repository) FindSubscriptionByID(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var row models.Subscription
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListSubscriptionsByUser returns all subscription rows for a user.
func (r *Repository) ListSubscriptionsByUser(ctx context.Context, userID uuid.UUID) ([]models.Subscription, error) {
	var rows []models.Subscription
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// RecordPayment inserts a payment row keyed by its Stripe invoice id. Replays
// of an already recorded invoice are absorbed and reported via the inserted
// flag so callers can count them separately.
func (r *Repository) RecordPayment(ctx context.Context, payment *models.Payment) (inserted bool, err error) {
	if err := r.db.WithContext(ctx).Create(payment).Error; err != nil {
		if db.IsUniqueViolation(err, "payments_stripe_invoice_id_key") {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ListPaymentsBySubscription returns payment rows for a subscription, newest first.
func (r *Repository) ListPaymentsBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]models.Payment, error) {
	var rows []models.Payment
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("paid_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
