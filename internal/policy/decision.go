package policy

import "time"

// Reason explains a Decision. Deny reasons are part of the caller contract:
// opted_out is terminal and must never be retried, the time-bounded reasons
// carry a RetryAfter hint.
type Reason string

const (
	ReasonAllowed             Reason = "allowed"
	ReasonIdentityUnavailable Reason = "identity_unavailable"
	ReasonOptedOut            Reason = "opted_out"
	ReasonContactPaused       Reason = "contact_paused"
	ReasonCoolingOff          Reason = "cooling_off"
	ReasonRateLimited         Reason = "rate_limited"
)

// FlagPauseContact is the engagement-state flag that suspends outbound
// contact for a recipient without changing their permission state.
const FlagPauseContact = "pause_contact"

// Decision is the answer to "may identity X contact recipient Y now".
// It is a value, never an error: every deny has a reason.
type Decision struct {
	Allowed bool
	Reason  Reason

	// RetryAfter is set for time-bounded denials (cooling_off, rate_limited).
	RetryAfter time.Duration
}

func allow() Decision {
	return Decision{Allowed: true, Reason: ReasonAllowed}
}

func deny(reason Reason) Decision {
	return Decision{Reason: reason}
}

func denyFor(reason Reason, retryAfter time.Duration) Decision {
	return Decision{Reason: reason, RetryAfter: retryAfter}
}
