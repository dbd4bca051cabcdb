package enums

import "fmt"

// SubscriptionStatus is the local subscription state mirrored from the
// billing provider. Transitions always follow the provider, never local logic.
type SubscriptionStatus string

const (
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusCanceled       SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue        SubscriptionStatus = "past_due"
	SubscriptionStatusExpired        SubscriptionStatus = "expired"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
)

var validSubscriptionStatuses = []SubscriptionStatus{
	SubscriptionStatusActive,
	SubscriptionStatusCanceled,
	SubscriptionStatusPastDue,
	SubscriptionStatusExpired,
	SubscriptionStatusPendingPayment,
}

// String implements fmt.Stringer.
func (s SubscriptionStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is known.
func (s SubscriptionStatus) IsValid() bool {
	for _, candidate := range validSubscriptionStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSubscriptionStatus converts raw input into a SubscriptionStatus.
func ParseSubscriptionStatus(value string) (SubscriptionStatus, error) {
	for _, candidate := range validSubscriptionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid subscription status %q", value)
}
