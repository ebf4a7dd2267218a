package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
}

func newStubOrderRepo(orders ...*domain.Order) *stubOrderRepo {
	r := &stubOrderRepo{orders: map[string]*domain.Order{}}
	for _, o := range orders {
		r.orders[o.ID] = o
	}
	return r
}

func (r *stubOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[o.ID] = o
	return nil
}

func (r *stubOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, usecase.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *stubOrderRepo) FindBySettlementID(_ context.Context, identifier string) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.SettlementID() == identifier {
			cp := *o
			return &cp, nil
		}
	}
	return nil, usecase.ErrNotFound
}

func (r *stubOrderRepo) ListPending(_ context.Context) ([]*domain.Order, error) { return nil, nil }

func (r *stubOrderRepo) MarkPaid(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusPending {
		return false, nil
	}
	o.Status = domain.StatusPaid
	return true, nil
}

func (r *stubOrderRepo) UpdateStatusIf(_ context.Context, id string, from, to domain.OrderStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (r *stubOrderRepo) RecordProviderStatus(_ context.Context, id, raw, _ string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		o.ProviderStatus = raw
	}
	return nil
}

func (r *stubOrderRepo) DeleteIfPending(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != domain.StatusPending {
		return false, nil
	}
	delete(r.orders, id)
	return true, nil
}

func (r *stubOrderRepo) status(id string) domain.OrderStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return o.Status
	}
	return ""
}

type stubProducts struct{}

func (stubProducts) GetByID(context.Context, string) (*domain.Product, error) {
	return nil, usecase.ErrNotFound
}
func (stubProducts) DecrementStock(context.Context, string, int) error { return nil }

func paidLightningOrder(id string, status domain.OrderStatus) *domain.Order {
	return &domain.Order{
		ID:            id,
		ClientID:      "storefront",
		Items:         []domain.LineItem{{ProductID: "p1", Quantity: 1, PriceSats: 1500}},
		SubtotalSats:  1500,
		TotalSats:     1500,
		PaymentMethod: domain.MethodLightning,
		Status:        status,
		Provider:      "lnbits",
		Invoice:       &domain.Invoice{PaymentRequest: "lnbc...", PaymentHash: "hash-" + id, Satoshis: 1500},
	}
}

func doJSONRequest(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAdminTransitions(t *testing.T) {
	orders := newStubOrderRepo(paidLightningOrder("ord-1", domain.StatusPaid))
	h := NewAdminHandler(orders)

	r := gin.New()
	r.POST("/v1/admin/orders/:id/preparation", h.Preparation)
	r.POST("/v1/admin/orders/:id/ship", h.Ship)

	// shipping before preparation is rejected
	w := doJSONRequest(t, r, http.MethodPost, "/v1/admin/orders/ord-1/ship", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSONRequest(t, r, http.MethodPost, "/v1/admin/orders/ord-1/preparation", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusPreparation, orders.status("ord-1"))

	w = doJSONRequest(t, r, http.MethodPost, "/v1/admin/orders/ord-1/ship", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.StatusShipped, orders.status("ord-1"))

	// replay of a completed transition conflicts
	w = doJSONRequest(t, r, http.MethodPost, "/v1/admin/orders/ord-1/ship", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSONRequest(t, r, http.MethodPost, "/v1/admin/orders/nope/ship", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminPreparationRequiresPaid(t *testing.T) {
	orders := newStubOrderRepo(paidLightningOrder("ord-2", domain.StatusPending))
	h := NewAdminHandler(orders)

	r := gin.New()
	r.POST("/v1/admin/orders/:id/preparation", h.Preparation)

	w := doJSONRequest(t, r, http.MethodPost, "/v1/admin/orders/ord-2/preparation", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, domain.StatusPending, orders.status("ord-2"))
}
