package reconciliation

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/subscription"

	pkgstripe "github.com/vantage-app/licensing-backend/pkg/stripe"
)

// BillingProviderClient exposes the subset of provider reads the engine needs.
type BillingProviderClient interface {
	// FindCustomerByEmail returns nil without error when no customer exists.
	FindCustomerByEmail(ctx context.Context, email string) (*CustomerRecord, error)
	ListSubscriptions(ctx context.Context, customerID string) ([]SubscriptionRecord, error)
	ListPaidInvoices(ctx context.Context, customerID string, pageSize int) ([]InvoiceRecord, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the configured Stripe client so the engine can be tested
// against a stub provider.
func NewStripeClient(api *pkgstripe.Client) BillingProviderClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) FindCustomerByEmail(ctx context.Context, email string) (*CustomerRecord, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)

	iter := customer.List(params)
	for iter.Next() {
		c := iter.Customer()
		return &CustomerRecord{ID: c.ID, Email: c.Email}, nil
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return nil, nil
}

func (w *stripeClientWrapper) ListSubscriptions(ctx context.Context, customerID string) ([]SubscriptionRecord, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String("all"),
	}
	params.Context = ctx

	var records []SubscriptionRecord
	iter := subscription.List(params)
	for iter.Next() {
		records = append(records, toSubscriptionRecord(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (w *stripeClientWrapper) ListPaidInvoices(ctx context.Context, customerID string, pageSize int) ([]InvoiceRecord, error) {
	params := &stripe.InvoiceListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.InvoiceStatusPaid)),
	}
	params.Context = ctx
	if pageSize > 0 {
		params.Limit = stripe.Int64(int64(pageSize))
	}

	var records []InvoiceRecord
	iter := invoice.List(params)
	for iter.Next() {
		inv := iter.Invoice()
		record := InvoiceRecord{
			ID:          inv.ID,
			AmountCents: inv.AmountPaid,
			Currency:    string(inv.Currency),
		}
		if inv.StatusTransitions != nil && inv.StatusTransitions.PaidAt > 0 {
			record.PaidAt = time.Unix(inv.StatusTransitions.PaidAt, 0).UTC()
		}
		if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil && inv.Parent.SubscriptionDetails.Subscription != nil {
			record.SubscriptionID = inv.Parent.SubscriptionDetails.Subscription.ID
		}
		records = append(records, record)
		if pageSize > 0 && len(records) >= pageSize {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// toSubscriptionRecord flattens the SDK shape. Period bounds and the price
// interval live on the first subscription item.
func toSubscriptionRecord(sub *stripe.Subscription) SubscriptionRecord {
	record := SubscriptionRecord{
		ID:                sub.ID,
		Status:            string(sub.Status),
		Metadata:          sub.Metadata,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.CurrentPeriodStart > 0 {
			record.CurrentPeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		}
		if item.CurrentPeriodEnd > 0 {
			record.CurrentPeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
		}
		if item.Price != nil && item.Price.Recurring != nil {
			record.Interval = string(item.Price.Recurring.Interval)
		}
	}
	return record
}
