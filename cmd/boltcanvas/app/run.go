package app

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/MaviLabArt/BoltCanvas-sub001/configs"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/cache"
	apihttp "github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/http"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/http/middleware"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/kafka"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/queue"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/adapter/repo"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/logging"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/notify"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/provider"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/security"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/sweep"
	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

type App struct {
	Router *gin.Engine
}

func InitWithConfig(cfg configs.Config) (*App, func(), error) {
	logging.Init(cfg.App.Name, cfg.App.LogFile, cfg.App.LogLevel)
	log := logging.New("app")

	// background loops (sweeper, watcher, consumers) hang off this context
	appCtx, stop := context.WithCancel(context.Background())

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		stop()
		return nil, nil, err
	}
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	ctx, cancel := context.WithTimeout(appCtx, 60*time.Second)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		stop()
		return nil, nil, err
	}
	cancel()

	log.Info("starting up", "env_addr", cfg.App.HTTPAddr)

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(appCtx).Err(); err != nil {
		stop()
		return nil, nil, err
	}

	// init rabbitmq
	conn, err := amqp.Dial(cfg.Rabbit.URL)
	if err != nil {
		stop()
		return nil, nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		stop()
		return nil, nil, err
	}
	producer, err := queue.NewRabbitProducer(ch)
	if err != nil {
		stop()
		return nil, nil, err
	}

	// init kafka audit publisher
	syncProducer, err := kafka.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		stop()
		return nil, nil, err
	}
	events := kafka.NewSettledPublisher(syncProducer, cfg.Kafka.TopicEvents)

	// payment backends
	refunds, err := security.NewRefundKeyDeriver(cfg.Payments.RefundSeed)
	if err != nil {
		stop()
		return nil, nil, err
	}
	registry := buildRegistry(cfg, refunds)

	checker := provider.NewChecker(registry, cfg.Stream.PollInterval)
	gateway := provider.NewGateway(registry, cfg.Payments.Lightning, cfg.Payments.Onchain,
		railExpiry(cfg, cfg.Payments.Lightning))

	ensureWallets(appCtx, registry, cfg, log)

	// infra
	orderRepo := repo.NewMySQLOrderRepo(db)
	productRepo := repo.NewMySQLProductRepo(db)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)
	dedup := cache.NewRedisDedupLedger(rdb, cfg.Dedup.TTL)
	statusCache := cache.NewRedisStatusCache(rdb, 24*time.Hour)

	// use cases
	notifier := notify.NewQueueNotifier(producer)
	resolver := usecase.NewResolver(orderRepo, productRepo, notifier, events,
		statusCache, checker.SettlesOnConfirm)
	checkout := usecase.NewCheckout(orderRepo, productRepo, idem, gateway, cfg.Payments.ShippingSats)

	// paid-order fan-out consumer
	setupQueue(ch, dedup, cfg)

	// lightning settlement push stream
	startWatchers(appCtx, registry, resolver, log)

	// pending-order reconciliation loop
	sweeper := sweep.New(orderRepo, resolver, checker, cfg.Sweep.Interval, cfg.Sweep.MaxPendingAge)
	go sweeper.Run(appCtx)

	// init handlers + routers + middleware
	handlers := apihttp.Handlers{
		Payment: apihttp.NewPaymentHandler(checkout, resolver, orderRepo, checker),
		Stream:  apihttp.NewStreamHandler(resolver, orderRepo, checker, cfg.Stream.Heartbeat),
		Webhook: apihttp.NewWebhookHandler(resolver),
		Admin:   apihttp.NewAdminHandler(orderRepo),
		Token:   apihttp.NewTokenHandler(cfg, security.DefaultClients()),
	}
	authz := middleware.NewAuthz(cfg)
	verifiers := apihttp.WebhookVerifiers{
		OpenNode: security.NewWebhookVerifier(cfg.Payments.OpenNode.WebhookSecret),
		Boltz:    security.NewWebhookVerifier(cfg.Payments.Boltz.WebhookSecret),
	}
	router := apihttp.NewRouter(handlers, authz, verifiers)

	cleanup := func() {
		stop()
		_ = ch.Close()
		_ = conn.Close()
		_ = syncProducer.Close()
		_ = rdb.Close()
		_ = db.Close()
	}

	return &App{Router: router}, cleanup, nil
}

// buildRegistry wires every configured backend. The Boltz swap adapter issues
// its lockup invoice on the configured lightning rail.
func buildRegistry(cfg configs.Config, refunds *security.RefundKeyDeriver) *provider.Registry {
	registry := provider.NewRegistry()

	lnbits := provider.NewLNbits(provider.LNbitsOpts{
		Endpoint:      cfg.Payments.LNbits.Endpoint,
		APIKey:        cfg.Payments.LNbits.APIKey,
		WalletID:      cfg.Payments.LNbits.WalletID,
		TLSSkipVerify: cfg.Payments.LNbits.TLSSkipVerify,
	})
	registry.Register(lnbits)

	lnd := provider.NewLND(provider.LNDOpts{
		Endpoint:      cfg.Payments.LND.Endpoint,
		MacaroonHex:   cfg.Payments.LND.APIKey,
		TLSSkipVerify: cfg.Payments.LND.TLSSkipVerify,
	})
	registry.Register(lnd)

	var lightning provider.InvoiceIssuer = lnbits
	if cfg.Payments.Lightning == lnd.Name() {
		lightning = lnd
	}

	registry.Register(provider.NewBoltz(provider.BoltzOpts{
		Endpoint:      cfg.Payments.Boltz.Endpoint,
		InvoiceExpiry: cfg.Payments.Boltz.InvoiceExpiry,
		TLSSkipVerify: cfg.Payments.Boltz.TLSSkipVerify,
	}, lightning, refunds))

	registry.Register(provider.NewChainWatch(provider.ChainWatchOpts{
		Endpoint:      cfg.Payments.ChainWatch.Endpoint,
		TolerancePct:  cfg.Payments.ChainWatch.TolerancePct,
		InvoiceExpiry: cfg.Payments.ChainWatch.InvoiceExpiry,
		PollInterval:  cfg.Payments.ChainWatch.PollInterval,
		TLSSkipVerify: cfg.Payments.ChainWatch.TLSSkipVerify,
	}, refunds))

	registry.Register(provider.NewOpenNode(provider.OpenNodeOpts{
		Endpoint:      cfg.Payments.OpenNode.Endpoint,
		APIKey:        cfg.Payments.OpenNode.APIKey,
		InvoiceExpiry: cfg.Payments.OpenNode.InvoiceExpiry,
		TLSSkipVerify: cfg.Payments.OpenNode.TLSSkipVerify,
	}))

	return registry
}

// ensureWallets verifies credentials for the two active rails at boot.
// Failures are logged, not fatal: the shop can still serve the other rail.
func ensureWallets(ctx context.Context, registry *provider.Registry, cfg configs.Config, log *slog.Logger) {
	for _, name := range []string{cfg.Payments.Lightning, cfg.Payments.Onchain} {
		a, err := registry.Get(name)
		if err != nil {
			log.Warn("rail not registered", "provider", name, "err", err)
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if _, err := a.EnsureWallet(checkCtx); err != nil {
			log.Warn("wallet check failed", "provider", name, "err", err)
		}
		cancel()
	}
}

// startWatchers launches the push subscription of every adapter that holds a
// global settlement stream (LND invoice subscription today).
func startWatchers(ctx context.Context, registry *provider.Registry, resolver *usecase.Resolver, log *slog.Logger) {
	for _, name := range registry.Names() {
		a, err := registry.Get(name)
		if err != nil {
			continue
		}
		w, ok := a.(provider.Watcher)
		if !ok {
			continue
		}
		go w.StartWatcher(ctx, func(identifier string, st provider.Status) {
			if _, err := resolver.Reconcile(ctx, identifier, usecase.Observation{
				Status: st.Canonical, Raw: st.Raw, Txid: st.Txid,
			}); err != nil {
				log.Error("watcher reconcile failed", "identifier", identifier, "err", err)
			}
		})
	}
}

func setupQueue(ch *amqp.Channel, ledger usecase.DedupLedger, cfg configs.Config) {
	dispatcher := notify.NewDispatcher(ledger,
		notify.NewOperatorAlertSink(cfg.Notify.OperatorURL),
		notify.NewBuyerEmailSink(cfg.Notify.MailerURL),
		notify.NewBuyerMessageSink(cfg.Notify.MessengerURL),
	)

	router := queue.NewRouter(ch, queue.WithPrefetch(50))
	router.Register(queue.OrderPaidQueue(), queue.JSONHandler[usecase.OrderPaidMsg]{HandleFunc: dispatcher.Handle})

	if err := router.Start(); err != nil {
		panic(err)
	}
}

// railExpiry picks the invoice expiry configured for the named backend.
func railExpiry(cfg configs.Config, name string) time.Duration {
	switch name {
	case "lnbits":
		return cfg.Payments.LNbits.InvoiceExpiry
	case "lnd":
		return cfg.Payments.LND.InvoiceExpiry
	case "boltz":
		return cfg.Payments.Boltz.InvoiceExpiry
	case "opennode":
		return cfg.Payments.OpenNode.InvoiceExpiry
	case "chainwatch":
		return cfg.Payments.ChainWatch.InvoiceExpiry
	default:
		return 15 * time.Minute
	}
}
