package provider

import (
	"context"
	"sync"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
)

// Checker picks the right query/subscribe path for an order's settlement
// strategy so the reconciliation channels stay strategy-agnostic.
type Checker struct {
	registry     *Registry
	pollInterval time.Duration
}

func NewChecker(registry *Registry, pollInterval time.Duration) *Checker {
	if pollInterval <= 0 {
		pollInterval = 4 * time.Second
	}
	return &Checker{registry: registry, pollInterval: pollInterval}
}

// addressWatched reports whether the order settles by address observation
// (no swap id, adapter computes status from the chain itself).
func (c *Checker) addressWatched(a Adapter, o *domain.Order) (OnchainWatcher, bool) {
	if o.PaymentMethod != domain.MethodOnchain || o.Onchain == nil || o.Onchain.SwapID != "" {
		return nil, false
	}
	w, ok := a.(OnchainWatcher)
	return w, ok
}

// Check performs one status round trip for the order.
func (c *Checker) Check(ctx context.Context, o *domain.Order) (Status, error) {
	a, err := c.registry.Get(o.Provider)
	if err != nil {
		return Status{}, err
	}
	if w, ok := c.addressWatched(a, o); ok {
		return w.OnchainStatus(ctx, o.Onchain.Address, o.Onchain.AmountSats, o.Onchain.ExpiresAt)
	}
	return a.QueryStatus(ctx, o.SettlementID())
}

// Subscribe attaches a live status feed for the order. Address-watched
// orders poll through the adapter's rate-limited path with the expectation
// taken from the order, so a process restart does not lose them.
func (c *Checker) Subscribe(ctx context.Context, o *domain.Order, fn func(Status)) (func(), error) {
	a, err := c.registry.Get(o.Provider)
	if err != nil {
		return nil, err
	}
	if w, ok := c.addressWatched(a, o); ok {
		subCtx, cancel := context.WithCancel(ctx)
		var once sync.Once
		// CONFIRMED is this strategy's settlement signal; stop polling there
		wrapped := func(st Status) {
			fn(st)
			if st.Canonical == domain.PaymentConfirmed {
				cancel()
			}
		}
		go pollStatus(subCtx, c.pollInterval, o.Onchain.Address, func(cc context.Context) (Status, error) {
			return w.OnchainStatus(cc, o.Onchain.Address, o.Onchain.AmountSats, o.Onchain.ExpiresAt)
		}, wrapped)
		return func() { once.Do(cancel) }, nil
	}
	return a.SubscribeStatus(ctx, o.SettlementID(), fn)
}

// SettlesOnConfirm reports whether CONFIRMED is the provider's settlement
// signal. True for address-watching strategies only.
func (c *Checker) SettlesOnConfirm(providerName string) bool {
	a, err := c.registry.Get(providerName)
	if err != nil {
		return false
	}
	_, ok := a.(OnchainWatcher)
	return ok
}
