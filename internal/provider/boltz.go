package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
)

const boltzPollInterval = 5 * time.Second

// Boltz settles on-chain payments through submarine swaps: the buyer pays a
// lockup address on-chain, the shop receives the wrapped Lightning invoice.
// The swap id, not the payment hash, is the order's canonical key once set.
type Boltz struct {
	endpoint      string
	invoiceExpiry time.Duration
	lightning     InvoiceIssuer
	refunds       *security.RefundKeyDeriver
	cli           *http.Client
	log           *slog.Logger
}

type BoltzOpts struct {
	Endpoint      string
	InvoiceExpiry time.Duration
	TLSSkipVerify bool
}

func NewBoltz(o BoltzOpts, lightning InvoiceIssuer, refunds *security.RefundKeyDeriver) *Boltz {
	return &Boltz{
		endpoint:      strings.TrimRight(o.Endpoint, "/"),
		invoiceExpiry: o.InvoiceExpiry,
		lightning:     lightning,
		refunds:       refunds,
		cli:           newHTTPClient(o.TLSSkipVerify),
		log:           logging.New("boltz"),
	}
}

func (p *Boltz) Name() string { return "boltz" }

func (p *Boltz) EnsureWallet(ctx context.Context) (string, error) {
	if p.endpoint == "" {
		return "", fmt.Errorf("boltz endpoint: %w", ErrConfiguration)
	}
	if p.lightning == nil {
		return "", fmt.Errorf("boltz needs a lightning invoice issuer: %w", ErrConfiguration)
	}
	var version struct {
		Version string `json:"version"`
	}
	if _, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/version", nil, nil, &version); err != nil {
		return "", &UpstreamError{Provider: p.Name(), Op: "ensure service", Err: err}
	}
	return version.Version, nil
}

// CreateOnchainPayment wraps a fresh Lightning invoice in a submarine swap.
// The refund key is derived per swap and only its public half leaves this
// function; with a seed configured the operator can re-derive the private
// key from the logged index.
func (p *Boltz) CreateOnchainPayment(ctx context.Context, orderID string, amountSats uint64, memo string) (*OnchainResult, error) {
	inv, err := p.lightning.CreateInvoice(ctx, amountSats, memo, p.invoiceExpiry)
	if err != nil {
		return nil, err
	}

	key, err := p.refunds.Next()
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "derive refund key", Err: err}
	}

	req := map[string]any{
		"from":            "BTC",
		"to":              "BTC",
		"invoice":         inv.PaymentRequest,
		"refundPublicKey": key.PublicKeyHex(),
	}
	var resp struct {
		ID                 string `json:"id"`
		Address            string `json:"address"`
		ExpectedAmount     uint64 `json:"expectedAmount"`
		TimeoutBlockHeight int64  `json:"timeoutBlockHeight"`
		BIP21              string `json:"bip21"`
	}
	if _, err := doJSON(ctx, p.cli, http.MethodPost, p.endpoint+"/swap/submarine", nil, req, &resp); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "create swap", Err: err}
	}

	if key.Index > 0 {
		p.log.Info("swap refund key derived", "order_id", orderID, "swap_id", resp.ID, "key_index", key.Index)
	} else {
		// no seed: the key exists only in this log line
		p.log.Warn("swap refund key is ephemeral", "order_id", orderID, "swap_id", resp.ID)
	}

	uri := resp.BIP21
	if uri == "" {
		uri = fmt.Sprintf("bitcoin:%s?amount=%.8f", resp.Address, float64(resp.ExpectedAmount)/1e8)
	}
	return &OnchainResult{
		SwapID:             resp.ID,
		Address:            resp.Address,
		AmountSats:         resp.ExpectedAmount,
		URI:                uri,
		TimeoutBlockHeight: resp.TimeoutBlockHeight,
		ExpiresAt:          time.Now().Add(p.invoiceExpiry),
	}, nil
}

func (p *Boltz) QueryStatus(ctx context.Context, swapID string) (Status, error) {
	var resp struct {
		Status             string `json:"status"`
		ZeroConfRejected   bool   `json:"zeroConfRejected"`
		TransactionID      string `json:"transactionId"`
		TimeoutBlockHeight int64  `json:"timeoutBlockHeight"`
	}
	code, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/swap/"+url.PathEscape(swapID), nil, nil, &resp)
	if err != nil {
		if code == http.StatusNotFound {
			return Status{Canonical: domain.PaymentPending, Raw: "swap.created"}, nil
		}
		return Status{}, &UpstreamError{Provider: p.Name(), Op: "query swap", Err: err}
	}
	return Status{
		Canonical:          NormalizeBoltz(resp.Status),
		Raw:                resp.Status,
		Txid:               resp.TransactionID,
		TimeoutBlockHeight: resp.TimeoutBlockHeight,
	}, nil
}

// NormalizeBoltz maps swap states to the canonical vocabulary. Happy path:
// invoice.pending → transaction.mempool → transaction.confirmed →
// invoice.paid. swap.expired and the failure states are absorbing.
func NormalizeBoltz(status string) domain.PaymentStatus {
	switch strings.ToLower(status) {
	case "invoice.paid", "transaction.claimed", "invoice.settled":
		return domain.PaymentPaid
	case "transaction.mempool", "transaction.zeroconf.rejected":
		return domain.PaymentMempool
	case "transaction.confirmed":
		return domain.PaymentConfirmed
	case "swap.expired", "invoice.expired":
		return domain.PaymentExpired
	case "invoice.failedtopay", "transaction.failed", "transaction.lockupfailed":
		return domain.PaymentFailed
	default: // swap.created, invoice.pending, invoice.set, unknown
		return domain.PaymentPending
	}
}

// SubscribeStatus is poll-only; Boltz push events arrive through the webhook
// receiver instead.
func (p *Boltz) SubscribeStatus(ctx context.Context, swapID string, fn func(Status)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	go pollStatus(subCtx, boltzPollInterval, swapID, func(c context.Context) (Status, error) {
		return p.QueryStatus(c, swapID)
	}, fn)
	return func() { once.Do(cancel) }, nil
}

var (
	_ Adapter       = (*Boltz)(nil)
	_ OnchainIssuer = (*Boltz)(nil)
)
