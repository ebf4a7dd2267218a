package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/cache"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

type recordingSink struct {
	name string
	sent []usecase.OrderPaidMsg
	fail error
}

func (s *recordingSink) Name() string                            { return s.name }
func (s *recordingSink) Recipient(m usecase.OrderPaidMsg) string { return m.ClientID }

func (s *recordingSink) Send(_ context.Context, msg usecase.OrderPaidMsg) error {
	if s.fail != nil {
		return s.fail
	}
	s.sent = append(s.sent, msg)
	return nil
}

type failingLedger struct{}

func (failingLedger) FirstSeen(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func paidMsg(orderID string) usecase.OrderPaidMsg {
	return usecase.OrderPaidMsg{
		OrderID:   orderID,
		ClientID:  "storefront",
		Status:    "PAID",
		TotalSats: 1500,
		Method:    "lightning",
		Provider:  "lnbits",
	}
}

func TestDispatcherDeliversOncePerWindow(t *testing.T) {
	ledger := cache.NewMemoryDedupLedger(time.Minute)
	email := &recordingSink{name: "email"}
	message := &recordingSink{name: "message"}
	d := NewDispatcher(ledger, email, message)

	require.NoError(t, d.Handle(context.Background(), paidMsg("ord-1")))
	require.NoError(t, d.Handle(context.Background(), paidMsg("ord-1")))

	assert.Len(t, email.sent, 1, "replayed event is deduplicated")
	assert.Len(t, message.sent, 1)
}

func TestDispatcherDistinctOrdersBothDeliver(t *testing.T) {
	ledger := cache.NewMemoryDedupLedger(time.Minute)
	email := &recordingSink{name: "email"}
	d := NewDispatcher(ledger, email)

	require.NoError(t, d.Handle(context.Background(), paidMsg("ord-1")))
	require.NoError(t, d.Handle(context.Background(), paidMsg("ord-2")))

	assert.Len(t, email.sent, 2)
}

func TestDispatcherSinkFailureDoesNotBlockOthers(t *testing.T) {
	ledger := cache.NewMemoryDedupLedger(time.Minute)
	broken := &recordingSink{name: "email", fail: errors.New("smtp relay down")}
	healthy := &recordingSink{name: "message"}
	d := NewDispatcher(ledger, broken, healthy)

	require.NoError(t, d.Handle(context.Background(), paidMsg("ord-1")), "handler never propagates sink errors")
	assert.Len(t, healthy.sent, 1)
}

func TestDispatcherLedgerOutageStillDelivers(t *testing.T) {
	email := &recordingSink{name: "email"}
	d := NewDispatcher(failingLedger{}, email)

	require.NoError(t, d.Handle(context.Background(), paidMsg("ord-1")))
	assert.Len(t, email.sent, 1, "a duplicate beats silence when the ledger is down")
}

func TestDispatcherSharedRecipientDeliversPerChannel(t *testing.T) {
	ledger := cache.NewMemoryDedupLedger(time.Minute)
	// both sinks resolve the same recipient string (the buyer's client id)
	email := &recordingSink{name: "email"}
	message := &recordingSink{name: "message"}
	d := NewDispatcher(ledger, email, message)

	require.NoError(t, d.Handle(context.Background(), paidMsg("ord-1")))

	assert.Len(t, email.sent, 1)
	assert.Len(t, message.sent, 1, "channels never dedupe against each other")
}

func TestDedupKeyShape(t *testing.T) {
	sink := &recordingSink{name: "email"}

	withID := dedupKey(sink, paidMsg("ord-1"))
	assert.Equal(t, "email:storefront:ord-1:PAID", withID)

	anon := paidMsg("")
	k1 := dedupKey(sink, anon)
	k2 := dedupKey(sink, anon)
	assert.Equal(t, k1, k2, "content hash fallback is stable")
	assert.NotEqual(t, withID, k1)

	other := dedupKey(&recordingSink{name: "message"}, paidMsg("ord-1"))
	assert.NotEqual(t, withID, other, "same recipient, different channel, different key")
}
