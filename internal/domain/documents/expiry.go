package documents

import "time"

// ExpiryState is the renewal classification of a document's expiry date.
type ExpiryState string

const (
	ExpiryNotApplicable ExpiryState = "not_applicable"
	ExpiryValid         ExpiryState = "valid"
	ExpiryRenewalWindow ExpiryState = "renewal_window"
	ExpiryExpired       ExpiryState = "expired"
)

// RenewalWindow is how far ahead of expiry a document is flagged for renewal.
const RenewalWindow = 30 * 24 * time.Hour

// Classification is the result of classifying an expiry date. DaysRemaining
// is only meaningful in the renewal window.
type Classification struct {
	State         ExpiryState `json:"state"`
	DaysRemaining int         `json:"days_remaining,omitempty"`
}

// Classify places an expiry date relative to now. Documents without an
// expiry date are not applicable; the renewal window covers the closed
// interval from 30 days before expiry up to the expiry instant itself.
func Classify(expiresAt *time.Time, now time.Time) Classification {
	if expiresAt == nil {
		return Classification{State: ExpiryNotApplicable}
	}
	if now.After(*expiresAt) {
		return Classification{State: ExpiryExpired}
	}
	remaining := expiresAt.Sub(now)
	if remaining <= RenewalWindow {
		return Classification{
			State:         ExpiryRenewalWindow,
			DaysRemaining: int(remaining.Hours() / 24),
		}
	}
	return Classification{State: ExpiryValid}
}
