package domain

// CheckoutStatus is the state of a single checkout attempt.
type CheckoutStatus string

const (
	CheckoutStatusAuthorizing          CheckoutStatus = "AUTHORIZING"
	CheckoutStatusAwaitingConfirmation CheckoutStatus = "AWAITING_CONFIRMATION"
	CheckoutStatusSettling             CheckoutStatus = "SETTLING"
	CheckoutStatusCommitted            CheckoutStatus = "COMMITTED"
	CheckoutStatusRejected             CheckoutStatus = "REJECTED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusAuthorizing:          {CheckoutStatusAwaitingConfirmation, CheckoutStatusRejected},
	CheckoutStatusAwaitingConfirmation: {CheckoutStatusSettling},
	CheckoutStatusSettling:             {CheckoutStatusCommitted, CheckoutStatusRejected},
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCommitted || s == CheckoutStatusRejected
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}

// CanTransitionTo reports whether from -> to is a legal step.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
