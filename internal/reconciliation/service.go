package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/vantage-app/licensing-backend/internal/access"
	"github.com/vantage-app/licensing-backend/pkg/db"
	"github.com/vantage-app/licensing-backend/pkg/db/models"
	"github.com/vantage-app/licensing-backend/pkg/enums"
	pkgerrors "github.com/vantage-app/licensing-backend/pkg/errors"
	"github.com/vantage-app/licensing-backend/pkg/logger"
)

const (
	metadataUserIDKey   = "user_id"
	metadataPlanTypeKey = "plan_type"
)

type usersRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, userID uuid.UUID, customerID string) error
}

type billingRepository interface {
	FindSubscriptionByStripeID(ctx context.Context, stripeSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, sub *models.Subscription) (*models.Subscription, error)
	RecordPayment(ctx context.Context, payment *models.Payment) (bool, error)
}

type licensesRepository interface {
	FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) (*models.License, error)
	Create(ctx context.Context, license *models.License) (*models.License, error)
}

type codeIssuer interface {
	IssueCode(ctx context.Context) (string, error)
}

// Service replays the billing provider's authoritative state into local
// Subscription, Payment, and License rows.
type Service interface {
	Reconcile(ctx context.Context, caller access.Caller) (*Result, error)
}

type service struct {
	users           usersRepository
	billing         billingRepository
	licenses        licensesRepository
	issuer          codeIssuer
	provider        BillingProviderClient
	invoicePageSize int
	log             *logger.Logger
}

// NewService builds the reconciliation engine.
func NewService(users usersRepository, billing billingRepository, licenses licensesRepository, issuer codeIssuer, provider BillingProviderClient, invoicePageSize int, log *logger.Logger) (Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user repository required")
	}
	if billing == nil {
		return nil, fmt.Errorf("billing repository required")
	}
	if licenses == nil {
		return nil, fmt.Errorf("license repository required")
	}
	if issuer == nil {
		return nil, fmt.Errorf("code issuer required")
	}
	if provider == nil {
		return nil, fmt.Errorf("billing provider client required")
	}
	if invoicePageSize <= 0 {
		return nil, fmt.Errorf("invoice page size must be positive")
	}
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		users:           users,
		billing:         billing,
		licenses:        licenses,
		issuer:          issuer,
		provider:        provider,
		invoicePageSize: invoicePageSize,
		log:             log,
	}, nil
}

// Reconcile is idempotent under retries and partial prior runs: every
// create-if-missing step keys on a uniquely constrained external id, so a
// rerun resumes where the last run stopped and never double-creates. Row-level
// failures are collected and reported after the pass instead of aborting it;
// rows committed before a failure stay committed.
func (s *service) Reconcile(ctx context.Context, caller access.Caller) (*Result, error) {
	if err := access.Require(access.ActionReconcileBilling, caller, ""); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup user")
	}

	result := &Result{}

	customerID, err := s.resolveCustomerID(ctx, user)
	if err != nil {
		return nil, err
	}
	if customerID == "" {
		// No billing history at the provider is a valid zero-result outcome.
		return result, nil
	}

	providerSubs, err := s.provider.ListSubscriptions(ctx, customerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list provider subscriptions")
	}

	var rowErrs error
	for _, providerSub := range providerSubs {
		if err := s.syncSubscription(ctx, user, providerSub, result); err != nil {
			rowErrs = multierr.Append(rowErrs, fmt.Errorf("subscription %s: %w", providerSub.ID, err))
		}
	}

	invoices, err := s.provider.ListPaidInvoices(ctx, customerID, s.invoicePageSize)
	if err != nil {
		rowErrs = multierr.Append(rowErrs, fmt.Errorf("list paid invoices: %w", err))
	}
	for _, inv := range invoices {
		if err := s.syncPayment(ctx, inv, result); err != nil {
			rowErrs = multierr.Append(rowErrs, fmt.Errorf("invoice %s: %w", inv.ID, err))
		}
	}

	if rowErrs != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, rowErrs, "reconciliation completed partially").
			WithDetails(map[string]interface{}{
				"subscriptions": result.SubscriptionsSynced,
				"payments":      result.PaymentsSynced,
				"licenses":      result.LicensesCreated,
			})
	}
	return result, nil
}

// resolveCustomerID uses the stored provider mapping when present, otherwise
// looks the customer up by email and persists the mapping once found. An
// absent customer yields an empty id, not an error.
func (s *service) resolveCustomerID(ctx context.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != nil && *user.StripeCustomerID != "" {
		return *user.StripeCustomerID, nil
	}

	found, err := s.provider.FindCustomerByEmail(ctx, user.Email)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup provider customer")
	}
	if found == nil {
		return "", nil
	}
	if err := s.users.SetStripeCustomerID(ctx, user.ID, found.ID); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist customer mapping")
	}
	return found.ID, nil
}

func (s *service) syncSubscription(ctx context.Context, user *models.User, providerSub SubscriptionRecord, result *Result) error {
	mapped := mapProviderStatus(providerSub.Status)

	local, err := s.billing.FindSubscriptionByStripeID(ctx, providerSub.ID)
	switch {
	case err == nil:
		if local.Status != mapped {
			local.Status = mapped
			local.CurrentPeriodStart = timePtr(providerSub.CurrentPeriodStart)
			local.CurrentPeriodEnd = timePtr(providerSub.CurrentPeriodEnd)
			local.CancelAtPeriodEnd = providerSub.CancelAtPeriodEnd
			if local, err = s.billing.UpsertSubscription(ctx, local); err != nil {
				return err
			}
			result.SubscriptionsSynced++
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if mapped != enums.SubscriptionStatusActive {
			// Only active subscriptions without local history get provisioned.
			return nil
		}
		if !metadataMatchesUser(providerSub.Metadata, user.ID) {
			s.log.Debug(s.log.WithField(ctx, "stripe_subscription_id", providerSub.ID), "skipping subscription without recognized metadata")
			return nil
		}
		local = &models.Subscription{
			UserID:               user.ID,
			StripeSubscriptionID: providerSub.ID,
			Status:               mapped,
			PlanType:             planTypeFromMetadata(providerSub.Metadata),
			BillingCycle:         mapBillingCycle(providerSub.Interval),
			CurrentPeriodStart:   timePtr(providerSub.CurrentPeriodStart),
			CurrentPeriodEnd:     timePtr(providerSub.CurrentPeriodEnd),
			CancelAtPeriodEnd:    providerSub.CancelAtPeriodEnd,
		}
		if local, err = s.billing.UpsertSubscription(ctx, local); err != nil {
			return err
		}
		result.SubscriptionsSynced++
	default:
		return err
	}

	if mapped != enums.SubscriptionStatusActive {
		return nil
	}
	return s.ensureLicense(ctx, local, providerSub, result)
}

// ensureLicense auto-provisions exactly one license per active subscription.
func (s *service) ensureLicense(ctx context.Context, local *models.Subscription, providerSub SubscriptionRecord, result *Result) error {
	_, err := s.licenses.FindBySubscription(ctx, local.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	code, err := s.issuer.IssueCode(ctx)
	if err != nil {
		return err
	}
	license := &models.License{
		Code:           code,
		PlanType:       local.PlanType,
		ExpireDate:     timePtr(providerSub.CurrentPeriodEnd),
		Sold:           true,
		IsStandalone:   false,
		SubscriptionID: &local.ID,
	}
	if _, err := s.licenses.Create(ctx, license); err != nil {
		// A concurrent run provisioned the license first; that is the outcome
		// this pass wanted anyway.
		if db.IsUniqueViolation(err, "licenses_code_key") {
			return nil
		}
		return err
	}
	result.LicensesCreated++
	return nil
}

// syncPayment records one paid invoice, skipping invoices whose subscription
// has no local row.
func (s *service) syncPayment(ctx context.Context, inv InvoiceRecord, result *Result) error {
	if inv.SubscriptionID == "" {
		return nil
	}

	local, err := s.billing.FindSubscriptionByStripeID(ctx, inv.SubscriptionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Debug(s.log.WithField(ctx, "stripe_invoice_id", inv.ID), "skipping invoice without local subscription")
			return nil
		}
		return err
	}

	inserted, err := s.billing.RecordPayment(ctx, &models.Payment{
		SubscriptionID:  local.ID,
		StripeInvoiceID: inv.ID,
		AmountCents:     inv.AmountCents,
		Currency:        inv.Currency,
		PaidAt:          inv.PaidAt,
	})
	if err != nil {
		return err
	}
	if inserted {
		result.PaymentsSynced++
	}
	return nil
}

func metadataMatchesUser(metadata map[string]string, userID uuid.UUID) bool {
	raw, ok := metadata[metadataUserIDKey]
	if !ok {
		return false
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return false
	}
	return parsed == userID
}

func planTypeFromMetadata(metadata map[string]string) enums.PlanType {
	if raw, ok := metadata[metadataPlanTypeKey]; ok {
		if parsed, err := enums.ParsePlanType(raw); err == nil {
			return parsed
		}
	}
	return enums.PlanTypeSubscription
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
