package domain

// PaymentStatus is the canonical settlement state used everywhere inside the
// engine, independent of any backend's native vocabulary. MEMPOOL and
// CONFIRMED only occur for on-chain settlement; Lightning jumps straight from
// PENDING to a terminal state.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentMempool   PaymentStatus = "MEMPOOL"
	PaymentConfirmed PaymentStatus = "CONFIRMED"
	PaymentPaid      PaymentStatus = "PAID"
	PaymentExpired   PaymentStatus = "EXPIRED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Terminal reports whether no further settlement observation can change
// anything. Streams and subscriptions close themselves once they forward a
// terminal status.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentPaid, PaymentExpired, PaymentFailed:
		return true
	}
	return false
}
