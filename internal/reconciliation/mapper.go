package reconciliation

import "github.com/vantage-app/licensing-backend/pkg/enums"

// mapProviderStatus translates a provider subscription status into the local
// state. Anything unrecognized is treated as expired rather than invented.
func mapProviderStatus(providerStatus string) enums.SubscriptionStatus {
	switch providerStatus {
	case "active", "trialing":
		return enums.SubscriptionStatusActive
	case "canceled":
		return enums.SubscriptionStatusCanceled
	case "past_due", "unpaid":
		return enums.SubscriptionStatusPastDue
	case "incomplete":
		return enums.SubscriptionStatusPendingPayment
	default:
		return enums.SubscriptionStatusExpired
	}
}

// mapBillingCycle translates the provider price interval.
func mapBillingCycle(interval string) enums.BillingCycle {
	if interval == "year" {
		return enums.BillingCycleYearly
	}
	return enums.BillingCycleMonthly
}
