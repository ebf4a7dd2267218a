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
)

const opennodePollInterval = 6 * time.Second

// OpenNode natively supports Lightning and on-chain in one charge, so the
// same adapter serves both rails. Push channel: signed webhooks handled by
// the HTTP layer; SubscribeStatus is the poll fallback only.
type OpenNode struct {
	endpoint string
	apiKey   string
	expiry   time.Duration
	cli      *http.Client
	log      *slog.Logger
}

type OpenNodeOpts struct {
	Endpoint      string
	APIKey        string
	InvoiceExpiry time.Duration
	TLSSkipVerify bool
}

func NewOpenNode(o OpenNodeOpts) *OpenNode {
	return &OpenNode{
		endpoint: strings.TrimRight(o.Endpoint, "/"),
		apiKey:   o.APIKey,
		expiry:   o.InvoiceExpiry,
		cli:      newHTTPClient(o.TLSSkipVerify),
		log:      logging.New("opennode"),
	}
}

func (p *OpenNode) Name() string { return "opennode" }

func (p *OpenNode) headers() map[string]string {
	return map[string]string{"Authorization": p.apiKey}
}

func (p *OpenNode) EnsureWallet(ctx context.Context) (string, error) {
	if p.endpoint == "" || p.apiKey == "" {
		return "", fmt.Errorf("opennode endpoint/api_key: %w", ErrConfiguration)
	}
	var resp struct {
		Data []struct {
			Currency string `json:"currency"`
		} `json:"data"`
	}
	if _, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/v1/account/balance", p.headers(), nil, &resp); err != nil {
		return "", &UpstreamError{Provider: p.Name(), Op: "ensure account", Err: err}
	}
	return "opennode-account", nil
}

type opennodeCharge struct {
	Data struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		LightningInvoice struct {
			Payreq      string `json:"payreq"`
			PaymentHash string `json:"payment_hash"`
		} `json:"lightning_invoice"`
		ChainInvoice struct {
			Address string `json:"address"`
		} `json:"chain_invoice"`
		AmountSats        uint64 `json:"amount"`
		HostedCheckoutURL string `json:"hosted_checkout_url"`
		URI               string `json:"uri"`
		TransactionID     string `json:"transactions_id"`
	} `json:"data"`
}

// createCharge is shared by both rails. OpenNode takes the charge TTL in
// MINUTES, not seconds; the conversion is explicit to avoid a silent 60x.
func (p *OpenNode) createCharge(ctx context.Context, orderRef string, amountSats uint64, memo string, expiry time.Duration) (*opennodeCharge, error) {
	if expiry <= 0 {
		expiry = p.expiry
	}
	req := map[string]any{
		"amount":      amountSats,
		"currency":    "BTC",
		"description": memo,
		"order_id":    orderRef,
		"ttl":         int(expiry.Minutes()),
	}
	var resp opennodeCharge
	if _, err := doJSON(ctx, p.cli, http.MethodPost, p.endpoint+"/v1/charges", p.headers(), req, &resp); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "create charge", Err: err}
	}
	return &resp, nil
}

func (p *OpenNode) CreateInvoice(ctx context.Context, amountSats uint64, memo string, expiry time.Duration) (*InvoiceResult, error) {
	charge, err := p.createCharge(ctx, "", amountSats, memo, expiry)
	if err != nil {
		return nil, err
	}
	return &InvoiceResult{
		PaymentRequest: charge.Data.LightningInvoice.Payreq,
		PaymentHash:    charge.Data.LightningInvoice.PaymentHash,
		Satoshis:       amountSats,
		CheckoutLink:   charge.Data.HostedCheckoutURL,
	}, nil
}

func (p *OpenNode) CreateOnchainPayment(ctx context.Context, orderID string, amountSats uint64, memo string) (*OnchainResult, error) {
	charge, err := p.createCharge(ctx, orderID, amountSats, memo, 0)
	if err != nil {
		return nil, err
	}
	uri := charge.Data.URI
	if uri == "" {
		uri = fmt.Sprintf("bitcoin:%s?amount=%.8f", charge.Data.ChainInvoice.Address, float64(amountSats)/1e8)
	}
	return &OnchainResult{
		SwapID:     charge.Data.ID, // charge id doubles as the external key
		Address:    charge.Data.ChainInvoice.Address,
		AmountSats: amountSats,
		URI:        uri,
		ExpiresAt:  time.Now().Add(p.expiry),
	}, nil
}

func (p *OpenNode) QueryStatus(ctx context.Context, chargeID string) (Status, error) {
	var resp opennodeCharge
	code, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/v2/charge/"+url.PathEscape(chargeID), p.headers(), nil, &resp)
	if err != nil {
		if code == http.StatusNotFound {
			return Status{Canonical: domain.PaymentPending, Raw: "not_found"}, nil
		}
		return Status{}, &UpstreamError{Provider: p.Name(), Op: "query charge", Err: err}
	}
	return Status{
		Canonical: NormalizeOpenNode(resp.Data.Status),
		Raw:       resp.Data.Status,
		Address:   resp.Data.ChainInvoice.Address,
		Txid:      resp.Data.TransactionID,
	}, nil
}

// NormalizeOpenNode maps charge states to the canonical vocabulary.
// "processing" means an on-chain payment seen but unconfirmed.
func NormalizeOpenNode(status string) domain.PaymentStatus {
	switch strings.ToLower(status) {
	case "paid", "settled":
		return domain.PaymentPaid
	case "processing":
		return domain.PaymentMempool
	case "expired":
		return domain.PaymentExpired
	case "refunded", "underpaid", "error":
		return domain.PaymentFailed
	default: // unpaid, unknown
		return domain.PaymentPending
	}
}

func (p *OpenNode) SubscribeStatus(ctx context.Context, chargeID string, fn func(Status)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	go pollStatus(subCtx, opennodePollInterval, chargeID, func(c context.Context) (Status, error) {
		return p.QueryStatus(c, chargeID)
	}, fn)
	return func() { once.Do(cancel) }, nil
}

var (
	_ Adapter       = (*OpenNode)(nil)
	_ InvoiceIssuer = (*OpenNode)(nil)
	_ OnchainIssuer = (*OpenNode)(nil)
)
