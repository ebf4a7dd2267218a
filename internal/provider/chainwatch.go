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

	"github.com/shopspring/decimal"

	domain "github.com/MaviLabArt/BoltCanvas-sub001/internal/entity"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
)

// ChainWatch is the watch-only on-chain strategy: it derives a fresh receive
// address per order from the refund/receive seed and reconciles incoming
// outputs against the expected amount through an esplora-style read API. It
// holds no private keys at settlement time and never broadcasts anything.
//
// The read API is rate limited, so all polling is serialized through one
// shared queue; there is never one timer per watched address.
type ChainWatch struct {
	endpoint     string
	tolerancePct decimal.Decimal
	expiry       time.Duration
	keys         *security.RefundKeyDeriver
	cli          *http.Client
	queue        *pollQueue
	log          *slog.Logger

	mu    sync.Mutex
	watch map[string]chainExpectation // address -> live expectation
}

type chainExpectation struct {
	expectedSats uint64
	expiresAt    time.Time
}

type ChainWatchOpts struct {
	Endpoint      string
	TolerancePct  float64
	InvoiceExpiry time.Duration
	PollInterval  time.Duration
	TLSSkipVerify bool
}

func NewChainWatch(o ChainWatchOpts, keys *security.RefundKeyDeriver) *ChainWatch {
	interval := o.PollInterval
	if interval <= 0 {
		interval = 6 * time.Second
	}
	return &ChainWatch{
		endpoint:     strings.TrimRight(o.Endpoint, "/"),
		tolerancePct: decimal.NewFromFloat(o.TolerancePct),
		expiry:       o.InvoiceExpiry,
		keys:         keys,
		cli:          newHTTPClient(o.TLSSkipVerify),
		queue:        newPollQueue(interval),
		log:          logging.New("chainwatch"),
		watch:        make(map[string]chainExpectation),
	}
}

func (p *ChainWatch) Name() string { return "chainwatch" }

func (p *ChainWatch) Close() { p.queue.Close() }

func (p *ChainWatch) EnsureWallet(ctx context.Context) (string, error) {
	if p.endpoint == "" {
		return "", fmt.Errorf("chainwatch endpoint: %w", ErrConfiguration)
	}
	if !p.keys.Deterministic() {
		return "", fmt.Errorf("chainwatch requires a receive seed: %w", ErrConfiguration)
	}
	// one cheap call to prove the read API answers
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"/blocks/tip/height", nil)
	if err != nil {
		return "", err
	}
	resp, err := p.cli.Do(req)
	if err != nil {
		return "", &UpstreamError{Provider: p.Name(), Op: "ensure read api", Err: err}
	}
	resp.Body.Close()
	return p.endpoint, nil
}

// CreateOnchainPayment derives the next receive address and registers the
// expected amount and deadline for the live poll queue.
func (p *ChainWatch) CreateOnchainPayment(ctx context.Context, orderID string, amountSats uint64, memo string) (*OnchainResult, error) {
	key, err := p.keys.Next()
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "derive receive key", Err: err}
	}
	addr, err := p2wpkhAddress(key.PublicKey)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Op: "derive address", Err: err}
	}

	expiresAt := time.Now().Add(p.expiry)
	p.mu.Lock()
	p.watch[addr] = chainExpectation{expectedSats: amountSats, expiresAt: expiresAt}
	p.mu.Unlock()

	p.log.Info("watching address", "order_id", orderID, "address", addr, "key_index", key.Index)

	btc := decimal.NewFromUint64(amountSats).Div(decimal.NewFromInt(1e8))
	return &OnchainResult{
		Address:    addr,
		AmountSats: amountSats,
		URI:        fmt.Sprintf("bitcoin:%s?amount=%s&label=%s", addr, btc.StringFixed(8), url.QueryEscape(memo)),
		ExpiresAt:  expiresAt,
	}, nil
}

// QueryStatus serves the identifier-only contract using the in-process
// expectation table. The sweeper uses OnchainStatus instead, passing the
// amount and deadline stored on the order, so it survives restarts.
func (p *ChainWatch) QueryStatus(ctx context.Context, address string) (Status, error) {
	p.mu.Lock()
	exp, ok := p.watch[address]
	p.mu.Unlock()
	if !ok {
		return Status{Canonical: domain.PaymentPending, Raw: "unwatched"}, nil
	}
	return p.OnchainStatus(ctx, address, exp.expectedSats, exp.expiresAt)
}

type esploraTx struct {
	Txid   string `json:"txid"`
	Status struct {
		Confirmed bool `json:"confirmed"`
	} `json:"status"`
	Vout []struct {
		ScriptpubkeyAddress string `json:"scriptpubkey_address"`
		Value               uint64 `json:"value"`
	} `json:"vout"`
}

// OnchainStatus computes UNPAID → MEMPOOL → CONFIRMED from the read API. A
// payment qualifies when the incoming amount meets expected*(1-tolerance/100),
// which absorbs fee-inclusive or slightly-off payments. EXPIRED once the
// deadline passes with no qualifying output.
func (p *ChainWatch) OnchainStatus(ctx context.Context, address string, expectedSats uint64, expiresAt time.Time) (Status, error) {
	var txs []esploraTx
	if _, err := doJSON(ctx, p.cli, http.MethodGet, p.endpoint+"/address/"+url.PathEscape(address)+"/txs", nil, nil, &txs); err != nil {
		return Status{}, &UpstreamError{Provider: p.Name(), Op: "list address txs", Err: err}
	}

	floor := decimal.NewFromUint64(expectedSats).
		Mul(decimal.NewFromInt(100).Sub(p.tolerancePct)).
		Div(decimal.NewFromInt(100))

	var confirmedSats, mempoolSats uint64
	var txid string
	for _, tx := range txs {
		for _, out := range tx.Vout {
			if out.ScriptpubkeyAddress != address {
				continue
			}
			if tx.Status.Confirmed {
				confirmedSats += out.Value
			} else {
				mempoolSats += out.Value
			}
			txid = tx.Txid
		}
	}

	switch {
	case decimal.NewFromUint64(confirmedSats).GreaterThanOrEqual(floor):
		return Status{Canonical: domain.PaymentConfirmed, Raw: "confirmed", Address: address, AmountSats: confirmedSats, Txid: txid}, nil
	case decimal.NewFromUint64(confirmedSats + mempoolSats).GreaterThanOrEqual(floor):
		return Status{Canonical: domain.PaymentMempool, Raw: "mempool", Address: address, AmountSats: confirmedSats + mempoolSats, Txid: txid}, nil
	case time.Now().After(expiresAt):
		return Status{Canonical: domain.PaymentExpired, Raw: "expired", Address: address}, nil
	default:
		return Status{Canonical: domain.PaymentPending, Raw: "unpaid", Address: address}, nil
	}
}

// SubscribeStatus registers the address on the shared rate-limited queue.
func (p *ChainWatch) SubscribeStatus(ctx context.Context, address string, fn func(Status)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)

	remove := p.queue.Add(subCtx, func(c context.Context) {
		st, err := p.QueryStatus(c, address)
		if err != nil {
			p.log.Warn("address poll failed", "address", address, "err", err)
			return
		}
		fn(st)
		if st.Canonical.Terminal() || st.Canonical == domain.PaymentConfirmed {
			cancel()
		}
	})

	var once sync.Once
	return func() {
		once.Do(func() {
			remove()
			cancel()
			p.mu.Lock()
			delete(p.watch, address)
			p.mu.Unlock()
		})
	}, nil
}

var (
	_ Adapter        = (*ChainWatch)(nil)
	_ OnchainIssuer  = (*ChainWatch)(nil)
	_ OnchainWatcher = (*ChainWatch)(nil)
)
