package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
)

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newFakeOrderRepo(orders ...*domain.Order) *fakeOrderRepo {
	r := &fakeOrderRepo{orders: map[string]*domain.Order{}}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *fakeOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[o.ID]; ok {
		return ErrDuplicate
	}
	r.orders[o.ID] = o
	return nil
}

func (r *fakeOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *fakeOrderRepo) FindBySettlementID(_ context.Context, identifier string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.SettlementID() == identifier || o.ID == identifier {
			cp := *o
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *fakeOrderRepo) ListPending(_ context.Context) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Order
	for _, o := range r.orders {
		if o.Status == domain.StatusPending {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeOrderRepo) MarkPaid(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusPending {
		return false, nil
	}
	o.Status = domain.StatusPaid
	return true, nil
}

func (r *fakeOrderRepo) UpdateStatusIf(_ context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *fakeOrderRepo) RecordProviderStatus(_ context.Context, id, raw, txid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.ProviderStatus = raw
	if txid != "" && o.Onchain != nil {
		o.Onchain.Txid = txid
	}
	return nil
}

func (r *fakeOrderRepo) DeleteIfPending(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusPending {
		return false, nil
	}
	delete(r.orders, id)
	return true, nil
}

func (r *fakeOrderRepo) status(id string) (domain.OrderStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return "", false
	}
	return o.Status, true
}

type fakeProductRepo struct {
	mu       sync.Mutex
	stock    map[string]int
	decrOps  int
	products map[string]*domain.Product
}

func newFakeProductRepo(products ...*domain.Product) *fakeProductRepo {
	r := &fakeProductRepo{stock: map[string]int{}, products: map[string]*domain.Product{}}
	for _, p := range products {
		r.products[p.ID] = p
		r.stock[p.ID] = p.Stock
	}
	return r
}

func (r *fakeProductRepo) GetByID(_ context.Context, id string) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	cp.Stock = r.stock[id]
	return &cp, nil
}

func (r *fakeProductRepo) DecrementStock(_ context.Context, productID string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stock[productID] < qty {
		return ErrNoStock
	}
	r.stock[productID] -= qty
	r.decrOps++
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) OrderPaid(context.Context, *domain.Order) {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []OrderSettledEvent
}

func (p *capturingPublisher) PublishSettled(_ context.Context, ev OrderSettledEvent) error {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
	return nil
}

type mapStatusCache struct {
	mu sync.Mutex
	m  map[string]string
}

func (c *mapStatusCache) SetStatus(_ context.Context, orderID, status string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.m == nil {
		c.m = map[string]string{}
	}
	c.m[orderID] = status
	return nil
}

func lightningOrder(id string) *domain.Order {
	return &domain.Order{
		ID:       id,
		ClientID: "storefront",
		Items: []domain.LineItem{
			{ProductID: "canvas-1", Title: "Canvas print", Quantity: 2, PriceSats: 700},
		},
		SubtotalSats:  1400,
		ShippingSats:  100,
		TotalSats:     1500,
		PaymentMethod: domain.MethodLightning,
		Status:        domain.StatusPending,
		Provider:      "lnbits",
		Invoice: &domain.Invoice{
			PaymentRequest: "lnbc15u1...",
			PaymentHash:    "hash-" + id,
			Satoshis:       1500,
		},
	}
}

func TestReconcilePaidHappyPath(t *testing.T) {
	order := lightningOrder("ord-1")
	orders := newFakeOrderRepo(order)
	products := newFakeProductRepo(&domain.Product{ID: "canvas-1", Title: "Canvas print", PriceSats: 700, Stock: 10})
	notifier := &countingNotifier{}
	events := &capturingPublisher{}
	cache := &mapStatusCache{}

	r := NewResolver(orders, products, notifier, events, cache, nil)

	got, err := r.Reconcile(context.Background(), order.SettlementID(), Observation{
		Status: domain.PaymentPaid, Raw: "SETTLED",
	})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusPaid, got.Status)

	st, ok := orders.status("ord-1")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPaid, st)

	assert.Equal(t, 8, products.stock["canvas-1"])
	assert.Equal(t, 1, notifier.calls)
	require.Len(t, events.events, 1)
	assert.Equal(t, "ord-1", events.events[0].OrderID)
	assert.Equal(t, uint64(1500), events.events[0].TotalSats)
	assert.Equal(t, "PAID", cache.m["ord-1"])
}

func TestReconcilePaidConcurrentObserversSideEffectsOnce(t *testing.T) {
	order := lightningOrder("ord-2")
	orders := newFakeOrderRepo(order)
	products := newFakeProductRepo(&domain.Product{ID: "canvas-1", Stock: 10})
	notifier := &countingNotifier{}
	events := &capturingPublisher{}

	r := NewResolver(orders, products, notifier, events, &mapStatusCache{}, nil)

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := r.Reconcile(context.Background(), order.SettlementID(), Observation{
				Status: domain.PaymentPaid, Raw: "paid",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, notifier.calls, "notification must fire exactly once")
	assert.Len(t, events.events, 1, "audit event must publish exactly once")
	assert.Equal(t, 8, products.stock["canvas-1"], "stock decremented exactly once")
}

func TestReconcileExpiredAfterPaidIsNoOp(t *testing.T) {
	order := lightningOrder("ord-3")
	orders := newFakeOrderRepo(order)
	r := NewResolver(orders, newFakeProductRepo(), &countingNotifier{}, &capturingPublisher{}, nil, nil)

	_, err := r.Reconcile(context.Background(), order.SettlementID(), Observation{Status: domain.PaymentPaid, Raw: "paid"})
	require.NoError(t, err)

	got, err := r.Reconcile(context.Background(), order.SettlementID(), Observation{Status: domain.PaymentExpired, Raw: "expired"})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StatusPaid, got.Status, "settled orders never move backwards")

	st, ok := orders.status("ord-3")
	require.True(t, ok)
	assert.Equal(t, domain.StatusPaid, st)
}

// stalePendingReads serves snapshots that still say PENDING regardless of the
// stored status, modelling a settlement that lands between an observer's read
// and its write.
type stalePendingReads struct{ *fakeOrderRepo }

func (r stalePendingReads) FindBySettlementID(ctx context.Context, identifier string) (*domain.Order, error) {
	o, err := r.fakeOrderRepo.FindBySettlementID(ctx, identifier)
	if err != nil {
		return nil, err
	}
	o.Status = domain.StatusPending
	return o, nil
}

func TestReconcileExpiredRacingPaidKeepsOrder(t *testing.T) {
	order := lightningOrder("ord-race")
	orders := newFakeOrderRepo(order)

	won, err := orders.MarkPaid(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, won)

	r := NewResolver(stalePendingReads{orders}, newFakeProductRepo(), &countingNotifier{}, &capturingPublisher{}, nil, nil)

	_, err = r.Reconcile(context.Background(), order.SettlementID(), Observation{Status: domain.PaymentExpired, Raw: "invoice.expired"})
	require.NoError(t, err)

	st, ok := orders.status("ord-race")
	require.True(t, ok, "paid order must survive a racing expiry observation")
	assert.Equal(t, domain.StatusPaid, st)
}

func TestReconcileExpiredPendingRemovesOrder(t *testing.T) {
	order := lightningOrder("ord-4")
	orders := newFakeOrderRepo(order)
	r := NewResolver(orders, newFakeProductRepo(), &countingNotifier{}, &capturingPublisher{}, nil, nil)

	got, err := r.Reconcile(context.Background(), order.SettlementID(), Observation{Status: domain.PaymentExpired, Raw: "invoice.expired"})
	require.NoError(t, err)
	assert.Nil(t, got)

	_, ok := orders.status("ord-4")
	assert.False(t, ok, "expired pending order is removed")
}

func TestReconcileUnknownIdentifierIsNoOp(t *testing.T) {
	r := NewResolver(newFakeOrderRepo(), newFakeProductRepo(), &countingNotifier{}, &capturingPublisher{}, nil, nil)

	got, err := r.Reconcile(context.Background(), "never-issued", Observation{Status: domain.PaymentPaid, Raw: "paid"})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestReconcileConfirmedSettlesOnlyForAddressWatchers(t *testing.T) {
	watcherOrder := lightningOrder("ord-5")
	watcherOrder.Provider = "chainwatch"
	swapOrder := lightningOrder("ord-6")
	swapOrder.Provider = "boltz"

	orders := newFakeOrderRepo(watcherOrder, swapOrder)
	notifier := &countingNotifier{}
	r := NewResolver(orders, newFakeProductRepo(&domain.Product{ID: "canvas-1", Stock: 10}),
		notifier, &capturingPublisher{}, nil,
		func(name string) bool { return name == "chainwatch" })

	got, err := r.Reconcile(context.Background(), watcherOrder.SettlementID(), Observation{
		Status: domain.PaymentConfirmed, Raw: "confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, got.Status)

	got, err = r.Reconcile(context.Background(), swapOrder.SettlementID(), Observation{
		Status: domain.PaymentConfirmed, Raw: "transaction.confirmed",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status, "swap CONFIRMED is an intermediate state")
	assert.Equal(t, "transaction.confirmed", got.ProviderStatus)
}

func TestReconcileFailedGuardsNonPending(t *testing.T) {
	order := lightningOrder("ord-7")
	orders := newFakeOrderRepo(order)
	r := NewResolver(orders, newFakeProductRepo(), &countingNotifier{}, &capturingPublisher{}, nil, nil)

	_, err := r.Reconcile(context.Background(), order.SettlementID(), Observation{Status: domain.PaymentPaid, Raw: "paid"})
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background(), order.SettlementID(), Observation{Status: domain.PaymentFailed, Raw: "error"})
	require.NoError(t, err)

	st, _ := orders.status("ord-7")
	assert.Equal(t, domain.StatusPaid, st)
}
