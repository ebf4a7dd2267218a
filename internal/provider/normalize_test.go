package provider

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
)

func TestNormalizeBoltz(t *testing.T) {
	cases := map[string]domain.PaymentStatus{
		"swap.created":             domain.PaymentPending,
		"invoice.set":              domain.PaymentPending,
		"transaction.mempool":      domain.PaymentMempool,
		"transaction.confirmed":    domain.PaymentConfirmed,
		"invoice.paid":             domain.PaymentPaid,
		"transaction.claimed":      domain.PaymentPaid,
		"swap.expired":             domain.PaymentExpired,
		"invoice.expired":          domain.PaymentExpired,
		"invoice.failedtopay":      domain.PaymentFailed,
		"transaction.lockupfailed": domain.PaymentFailed,
		"TRANSACTION.MEMPOOL":      domain.PaymentMempool,
		"some.future.state":        domain.PaymentPending,
		"":                         domain.PaymentPending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeBoltz(raw), "raw=%q", raw)
	}
}

func TestNormalizeBoltzConfirmedIsNotTerminal(t *testing.T) {
	// the resolver decides whether CONFIRMED settles; the swap state machine
	// still has invoice.paid ahead of it
	st := NormalizeBoltz("transaction.confirmed")
	assert.Equal(t, domain.PaymentConfirmed, st)
	assert.False(t, st.Terminal())
}

func TestNormalizeOpenNode(t *testing.T) {
	cases := map[string]domain.PaymentStatus{
		"unpaid":     domain.PaymentPending,
		"processing": domain.PaymentMempool,
		"paid":       domain.PaymentPaid,
		"settled":    domain.PaymentPaid,
		"expired":    domain.PaymentExpired,
		"refunded":   domain.PaymentFailed,
		"underpaid":  domain.PaymentFailed,
		"error":      domain.PaymentFailed,
		"PAID":       domain.PaymentPaid,
		"whatever":   domain.PaymentPending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeOpenNode(raw), "raw=%q", raw)
	}
}

func TestNormalizeLND(t *testing.T) {
	cases := map[string]domain.PaymentStatus{
		"OPEN":     domain.PaymentPending,
		"ACCEPTED": domain.PaymentPending,
		"SETTLED":  domain.PaymentPaid,
		"CANCELED": domain.PaymentExpired,
		"settled":  domain.PaymentPaid,
		"garbage":  domain.PaymentPending,
	}
	for raw, want := range cases {
		assert.Equal(t, want, normalizeLND(raw), "raw=%q", raw)
	}
}

func TestNormalizeLNbits(t *testing.T) {
	assert.Equal(t, domain.PaymentPaid, normalizeLNbits("pending", true), "paid flag wins over raw state")
	assert.Equal(t, domain.PaymentPaid, normalizeLNbits("success", false))
	assert.Equal(t, domain.PaymentExpired, normalizeLNbits("expired", false))
	assert.Equal(t, domain.PaymentFailed, normalizeLNbits("failed", false))
	assert.Equal(t, domain.PaymentPending, normalizeLNbits("", false))
	assert.Equal(t, domain.PaymentPending, normalizeLNbits("created", false))
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, domain.PaymentPaid.Terminal())
	assert.True(t, domain.PaymentExpired.Terminal())
	assert.True(t, domain.PaymentFailed.Terminal())
	assert.False(t, domain.PaymentPending.Terminal())
	assert.False(t, domain.PaymentMempool.Terminal())
	assert.False(t, domain.PaymentConfirmed.Terminal())
}

// Normalizers are total: any raw backend string maps to a canonical status,
// never a panic or an out-of-enum value.
func TestNormalizersTotalOnArbitraryInput(t *testing.T) {
	canonical := map[domain.PaymentStatus]bool{
		domain.PaymentPending:   true,
		domain.PaymentMempool:   true,
		domain.PaymentConfirmed: true,
		domain.PaymentPaid:      true,
		domain.PaymentExpired:   true,
		domain.PaymentFailed:    true,
	}

	inputs := []string{
		"", " ", "\x00\x01\xff", "null", "{}", "<xml/>",
		"invoice.paid\n", "PAID ", "päid", "статус", "💸",
		strings.Repeat("transaction.", 1024),
	}
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 512; i++ {
		b := make([]byte, rng.Intn(33))
		rng.Read(b)
		inputs = append(inputs, string(b))
	}

	for _, in := range inputs {
		assert.True(t, canonical[NormalizeBoltz(in)], "boltz raw=%q", in)
		assert.True(t, canonical[NormalizeOpenNode(in)], "opennode raw=%q", in)
		assert.True(t, canonical[normalizeLND(in)], "lnd raw=%q", in)
		assert.True(t, canonical[normalizeLNbits(in, false)], "lnbits raw=%q", in)
		assert.True(t, canonical[normalizeLNbits(in, true)], "lnbits paid raw=%q", in)
	}
}
