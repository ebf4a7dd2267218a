package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
)

// lnbitsPollInterval is the always-on fallback cadence layered under the
// websocket feed.
const lnbitsPollInterval = 3 * time.Second

// LNbits is a Lightning invoice provider speaking the LNbits wallet API.
// Push channel: the per-wallet websocket payment feed.
type LNbits struct {
	endpoint string
	apiKey   string
	walletID string
	cli      *http.Client
	log      *slog.Logger
}

type LNbitsOpts struct {
	Endpoint      string
	APIKey        string
	WalletID      string
	TLSSkipVerify bool
}

func NewLNbits(o LNbitsOpts) *LNbits {
	return &LNbits{
		endpoint: strings.TrimRight(o.Endpoint, "/"),
		apiKey:   o.APIKey,
		walletID: o.WalletID,
		cli:      newHTTPClient(o.TLSSkipVerify),
		log:      logging.New("lnbits"),
	}
}

func (p *LNbits) Name() string { return "lnbits" }

func (p *LNbits) headers() map[string]string {
	return map[string]string{"X-Api-Key": p.apiKey}
}

func (p *LNbits) EnsureWallet(ctx context.Context) (string, error) {
	if p.endpoint == "" || p.apiKey == "" {
		return "", fmt.Errorf("lnbits endpoint/api_key: %w", ErrConfiguration)
	}
	var wallet struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if _, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/api/v1/wallet", p.headers(), nil, &wallet); err != nil {
		return "", &UpstreamError{Provider: p.Name(), Op: "ensure wallet", Err: err}
	}
	if wallet.ID == "" {
		return "", fmt.Errorf("lnbits wallet not found for key: %w", ErrConfiguration)
	}
	if p.walletID == "" {
		p.walletID = wallet.ID
	}
	return wallet.ID, nil
}

// CreateInvoice issues a fresh invoice. LNbits takes the expiry in seconds;
// the conversion from time.Duration is explicit to keep the unit visible.
func (p *LNbits) CreateInvoice(ctx context.Context, amountSats uint64, memo string, expiry time.Duration) (*InvoiceResult, error) {
	req := map[string]any{
		"out":    false,
		"amount": amountSats,
		"memo":   memo,
		"expiry": int(expiry.Seconds()),
	}
	var resp struct {
		PaymentRequest string `json:"payment_request"`
		PaymentHash    string `json:"payment_hash"`
	}
	if _, err := doJSON(ctx, p.cli, http.MethodPost, p.endpoint+"/api/v1/payments", p.headers(), req, &resp); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "create invoice", Err: err}
	}
	return &InvoiceResult{
		PaymentRequest: resp.PaymentRequest,
		PaymentHash:    resp.PaymentHash,
		Satoshis:       amountSats,
	}, nil
}

type lnbitsPayment struct {
	Paid    bool `json:"paid"`
	Details struct {
		Status  string `json:"status"`
		Expiry  int64  `json:"expiry"`
		Pending bool   `json:"pending"`
	} `json:"details"`
}

func (p *LNbits) QueryStatus(ctx context.Context, paymentHash string) (Status, error) {
	var resp lnbitsPayment
	code, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/api/v1/payments/"+url.PathEscape(paymentHash), p.headers(), nil, &resp)
	if err != nil {
		if code == http.StatusNotFound {
			// invoice not known (yet): report pending, not an error
			return Status{Canonical: domain.PaymentPending, Raw: "not_found"}, nil
		}
		return Status{}, &UpstreamError{Provider: p.Name(), Op: "query status", Err: err}
	}
	raw := resp.Details.Status
	if raw == "" {
		if resp.Paid {
			raw = "success"
		} else {
			raw = "pending"
		}
	}
	return Status{Canonical: normalizeLNbits(raw, resp.Paid), Raw: raw}, nil
}

// normalizeLNbits maps LNbits payment states into the canonical vocabulary.
// Lightning knows no mempool/confirmation phase; everything non-terminal is
// PENDING.
func normalizeLNbits(raw string, paid bool) domain.PaymentStatus {
	if paid {
		return domain.PaymentPaid
	}
	switch strings.ToLower(raw) {
	case "success", "settled", "paid", "complete":
		return domain.PaymentPaid
	case "expired", "timeout":
		return domain.PaymentExpired
	case "failed":
		return domain.PaymentFailed
	default:
		return domain.PaymentPending
	}
}

// SubscribeStatus opens the wallet websocket feed and filters for the given
// payment hash. A fixed-interval poll runs regardless, so a dropped or
// silent websocket never stalls settlement detection.
func (p *LNbits) SubscribeStatus(ctx context.Context, paymentHash string, fn func(Status)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	var once sync.Once
	var deliverMu sync.Mutex
	done := false
	deliver := func(st Status) {
		deliverMu.Lock()
		defer deliverMu.Unlock()
		if done {
			return
		}
		fn(st)
		if st.Canonical.Terminal() {
			done = true
			cancel()
		}
	}

	go p.watchSocket(subCtx, paymentHash, deliver)
	go pollStatus(subCtx, lnbitsPollInterval, paymentHash, func(c context.Context) (Status, error) {
		return p.QueryStatus(c, paymentHash)
	}, deliver)

	return func() { once.Do(cancel) }, nil
}

func (p *LNbits) watchSocket(ctx context.Context, paymentHash string, deliver func(Status)) {
	u, err := wsURL(p.endpoint, "/api/v1/ws/"+url.PathEscape(p.walletID))
	if err != nil {
		p.log.Warn("websocket url invalid, poll fallback only", "err", err)
		return
	}

	bo := newBackoff(time.Second, 15*time.Second)
	for ctx.Err() == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, http.Header{"X-Api-Key": []string{p.apiKey}})
		if err != nil {
			p.log.Warn("websocket dial failed", "err", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(bo.Next()):
			}
			continue
		}
		bo.Reset()

		go func() {
			<-ctx.Done()
			_ = conn.Close()
		}()

		for {
			var ev struct {
				Payment struct {
					PaymentHash string `json:"payment_hash"`
					Status      string `json:"status"`
					Pending     bool   `json:"pending"`
				} `json:"payment"`
			}
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break // redial
			}
			if json.Unmarshal(msg, &ev) != nil || ev.Payment.PaymentHash != paymentHash {
				continue
			}
			paid := !ev.Payment.Pending
			deliver(Status{Canonical: normalizeLNbits(ev.Payment.Status, paid), Raw: ev.Payment.Status})
		}
		_ = conn.Close()
	}
}

func wsURL(endpoint, path string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

var (
	_ Adapter       = (*LNbits)(nil)
	_ InvoiceIssuer = (*LNbits)(nil)
)
