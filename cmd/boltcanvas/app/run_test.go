package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/MaviLabArt/BoltCanvas-sub001/configs"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/provider"
)

type walletFake struct {
	name    string
	err     error
	checked bool
}

func (f *walletFake) Name() string { return f.name }

func (f *walletFake) EnsureWallet(context.Context) (string, error) {
	f.checked = true
	return "wallet-" + f.name, f.err
}

func (f *walletFake) QueryStatus(context.Context, string) (provider.Status, error) {
	return provider.Status{}, errors.New("not implemented")
}

func (f *walletFake) SubscribeStatus(context.Context, string, func(provider.Status)) (func(), error) {
	return nil, errors.New("not implemented")
}

func TestEnsureWalletsChecksBothRailsAndToleratesFailures(t *testing.T) {
	lightning := &walletFake{name: "lnbits"}
	onchain := &walletFake{name: "chainwatch", err: errors.New("bad credentials")}

	registry := provider.NewRegistry()
	registry.Register(lightning)
	registry.Register(onchain)

	var cfg configs.Config
	cfg.Payments.Lightning = "lnbits"
	cfg.Payments.Onchain = "chainwatch"

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ensureWallets(context.Background(), registry, cfg, log)

	assert.True(t, lightning.checked)
	assert.True(t, onchain.checked, "a failing wallet check must not abort the other rail")
}

func TestRailExpiryFallsBackToDefault(t *testing.T) {
	var cfg configs.Config
	cfg.Payments.LNbits.InvoiceExpiry = 10 * time.Minute

	assert.Equal(t, 10*time.Minute, railExpiry(cfg, "lnbits"))
	assert.Equal(t, 15*time.Minute, railExpiry(cfg, "unknown-backend"))
}
