package reconciliation

import "time"

// Provider-owned records are converted into these local shapes at the client
// boundary so the engine never handles raw SDK types.

// CustomerRecord identifies a billing customer at the provider.
type CustomerRecord struct {
	ID    string
	Email string
}

// SubscriptionRecord is the provider's view of one subscription.
type SubscriptionRecord struct {
	ID                 string
	Status             string
	Metadata           map[string]string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	Interval           string
	CancelAtPeriodEnd  bool
}

// InvoiceRecord is one paid invoice at the provider.
type InvoiceRecord struct {
	ID             string
	SubscriptionID string
	AmountCents    int64
	Currency       string
	PaidAt         time.Time
}

// Result reports what one reconciliation pass changed locally.
type Result struct {
	SubscriptionsSynced int `json:"subscriptions"`
	PaymentsSynced      int `json:"payments"`
	LicensesCreated     int `json:"licenses"`
}
