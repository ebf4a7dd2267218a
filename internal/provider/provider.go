package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
)

// ErrConfiguration marks a missing credential/endpoint. Fails fast at the
// adapter boundary, never retried.
var ErrConfiguration = errors.New("provider configuration incomplete")

// ErrNotFound is returned by lookups for identifiers the backend has never
// seen. QueryStatus must NOT return it for "not paid yet".
var ErrNotFound = errors.New("identifier not known to provider")

// UpstreamError wraps a transport/HTTP failure talking to a backend. Error()
// carries full detail for logs; Public() is the only form shown to buyers.
type UpstreamError struct {
	Provider string
	Op       string
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Provider, e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Public() string {
	return "payment service temporarily unavailable, try again"
}

// Status is a single settlement observation as reported by a backend,
// already normalized to the canonical vocabulary. Raw preserves the
// backend-native status string for the order's mirror field.
type Status struct {
	Canonical domain.PaymentStatus
	Raw       string

	// On-chain strategies attach what they know; zero values elsewhere.
	Address            string
	AmountSats         uint64
	TimeoutBlockHeight int64
	Txid               string
}

// InvoiceResult is the artifact of a Lightning invoice creation.
type InvoiceResult struct {
	PaymentRequest string
	PaymentHash    string
	Satoshis       uint64
	CheckoutLink   string
}

// OnchainResult is the artifact of an on-chain payment creation. SwapID is
// set only by swap strategies and becomes the order's canonical external key.
type OnchainResult struct {
	SwapID             string
	Address            string
	AmountSats         uint64
	URI                string
	TimeoutBlockHeight int64
	ExpiresAt          time.Time
}

// Adapter is the capability every backend must provide. Extra capabilities
// (invoice creation, on-chain creation, global watcher) are separate
// interfaces discovered by type assertion at the call site.
type Adapter interface {
	Name() string

	// EnsureWallet resolves and validates the destination account. Returns
	// ErrConfiguration when credentials are absent or the account cannot be
	// found.
	EnsureWallet(ctx context.Context) (string, error)

	// QueryStatus performs a single status round trip. "Not settled yet" is
	// a PENDING result, not an error; only hard transport failures error.
	QueryStatus(ctx context.Context, identifier string) (Status, error)

	// SubscribeStatus delivers status observations for one identifier until
	// cancelled or until a terminal status is delivered. Push transports are
	// layered with an always-on poll fallback so a push failure never stalls
	// settlement detection. The returned cancel is idempotent.
	SubscribeStatus(ctx context.Context, identifier string, fn func(Status)) (func(), error)
}

// InvoiceIssuer creates Lightning invoices. Safe to call once per order;
// never reuses a stale payment request.
type InvoiceIssuer interface {
	CreateInvoice(ctx context.Context, amountSats uint64, memo string, expiry time.Duration) (*InvoiceResult, error)
}

// OnchainIssuer creates on-chain payment requests.
type OnchainIssuer interface {
	CreateOnchainPayment(ctx context.Context, orderID string, amountSats uint64, memo string) (*OnchainResult, error)
}

// OnchainWatcher is the capability of address-watching strategies: status is
// computed from the chain against an expected amount and deadline held by
// the order, so it survives process restarts.
type OnchainWatcher interface {
	OnchainStatus(ctx context.Context, address string, expectedSats uint64, expiresAt time.Time) (Status, error)
}

// Watcher is the optional global channel: one long-lived connection per
// process reporting every settlement across all orders. Implementations
// reconnect with exponential backoff and stop when ctx is done.
type Watcher interface {
	StartWatcher(ctx context.Context, onPaid func(identifier string, st Status))
}
