package provider

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
)

const lndPollInterval = 5 * time.Second

// LND is a Lightning invoice provider speaking the LND REST API. Its primary
// settlement channel is the global invoice subscription stream; per-invoice
// subscriptions and on-demand queries are fallbacks that reach the same
// conclusion independently.
type LND struct {
	endpoint string
	macaroon string // hex-encoded
	cli      *http.Client
	// streamCli has no timeout: the subscribe stream stays open for the
	// process lifetime.
	streamCli *http.Client
	log       *slog.Logger
}

type LNDOpts struct {
	Endpoint      string
	MacaroonHex   string
	TLSSkipVerify bool
}

func NewLND(o LNDOpts) *LND {
	stream := newHTTPClient(o.TLSSkipVerify)
	stream.Timeout = 0
	return &LND{
		endpoint:  strings.TrimRight(o.Endpoint, "/"),
		macaroon:  o.MacaroonHex,
		cli:       newHTTPClient(o.TLSSkipVerify),
		streamCli: stream,
		log:       logging.New("lnd"),
	}
}

func (p *LND) Name() string { return "lnd" }

func (p *LND) headers() map[string]string {
	return map[string]string{"Grpc-Metadata-macaroon": p.macaroon}
}

func (p *LND) EnsureWallet(ctx context.Context) (string, error) {
	if p.endpoint == "" || p.macaroon == "" {
		return "", fmt.Errorf("lnd endpoint/macaroon: %w", ErrConfiguration)
	}
	var info struct {
		IdentityPubkey string `json:"identity_pubkey"`
	}
	if _, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/v1/getinfo", p.headers(), nil, &info); err != nil {
		return "", &UpstreamError{Provider: p.Name(), Op: "ensure wallet", Err: err}
	}
	if info.IdentityPubkey == "" {
		return "", fmt.Errorf("lnd node identity missing: %w", ErrConfiguration)
	}
	return info.IdentityPubkey, nil
}

// CreateInvoice issues a fresh invoice. LND takes the expiry in seconds as a
// string field; the Duration conversion is explicit.
func (p *LND) CreateInvoice(ctx context.Context, amountSats uint64, memo string, expiry time.Duration) (*InvoiceResult, error) {
	req := map[string]any{
		"value":  strconv.FormatUint(amountSats, 10),
		"memo":   memo,
		"expiry": strconv.Itoa(int(expiry.Seconds())),
	}
	var resp struct {
		PaymentRequest string `json:"payment_request"`
		RHash          string `json:"r_hash"` // base64
	}
	if _, err := doJSON(ctx, p.cli, http.MethodPost, p.endpoint+"/v1/invoices", p.headers(), req, &resp); err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "create invoice", Err: err}
	}
	hash, err := base64.StdEncoding.DecodeString(resp.RHash)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "decode payment hash", Err: err}
	}
	return &InvoiceResult{
		PaymentRequest: resp.PaymentRequest,
		PaymentHash:    hex.EncodeToString(hash),
		Satoshis:       amountSats,
	}, nil
}

func (p *LND) QueryStatus(ctx context.Context, paymentHash string) (Status, error) {
	var resp struct {
		State string `json:"state"`
	}
	code, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/v1/invoice/"+paymentHash, p.headers(), nil, &resp)
	if err != nil {
		if code == http.StatusNotFound {
			return Status{Canonical: domain.PaymentPending, Raw: "not_found"}, nil
		}
		return Status{}, &UpstreamError{Provider: p.Name(), Op: "query status", Err: err}
	}
	return Status{Canonical: normalizeLND(resp.State), Raw: resp.State}, nil
}

// normalizeLND maps LND invoice states into the canonical vocabulary.
// ACCEPTED (HTLC held, not settled) is still PENDING; CANCELED covers both
// manual cancellation and expiry.
func normalizeLND(state string) domain.PaymentStatus {
	switch strings.ToUpper(state) {
	case "SETTLED":
		return domain.PaymentPaid
	case "CANCELED":
		return domain.PaymentExpired
	default: // OPEN, ACCEPTED, unknown
		return domain.PaymentPending
	}
}

func (p *LND) SubscribeStatus(ctx context.Context, paymentHash string, fn func(Status)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	go pollStatus(subCtx, lndPollInterval, paymentHash, func(c context.Context) (Status, error) {
		return p.QueryStatus(c, paymentHash)
	}, fn)
	return func() { once.Do(cancel) }, nil
}

// StartWatcher holds one invoice subscription stream open for the whole
// process and reports every settlement, reconnecting with exponential
// backoff (1s initial, 15s cap) on transport loss. Returns when ctx is done.
func (p *LND) StartWatcher(ctx context.Context, onPaid func(identifier string, st Status)) {
	bo := newBackoff(time.Second, 15*time.Second)
	for ctx.Err() == nil {
		if err := p.streamInvoices(ctx, onPaid); err != nil && ctx.Err() == nil {
			p.log.Warn("invoice stream lost, reconnecting", "err", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(bo.Next()):
		}
	}
}

func (p *LND) streamInvoices(ctx context.Context, onPaid func(string, Status)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/v1/invoices/subscribe", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Grpc-Metadata-macaroon", p.macaroon)

	resp, err := p.streamCli.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("subscribe: http %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var ev struct {
			Result struct {
				RHash string `json:"r_hash"`
				State string `json:"state"`
			} `json:"result"`
		}
		if json.Unmarshal(sc.Bytes(), &ev) != nil {
			continue
		}
		st := normalizeLND(ev.Result.State)
		if st != domain.PaymentPaid {
			continue
		}
		hash, err := base64.StdEncoding.DecodeString(ev.Result.RHash)
		if err != nil {
			continue
		}
		onPaid(hex.EncodeToString(hash), Status{Canonical: st, Raw: ev.Result.State})
	}
	return sc.Err()
}

var (
	_ Adapter       = (*LND)(nil)
	_ InvoiceIssuer = (*LND)(nil)
	_ Watcher       = (*LND)(nil)
)
