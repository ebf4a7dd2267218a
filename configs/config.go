package configs

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ProviderConfig is the recognized option set shared by every payment
// backend. Not every adapter uses every field.
type ProviderConfig struct {
	Endpoint      string        `koanf:"endpoint"`
	APIKey        string        `koanf:"api_key"`
	WalletID      string        `koanf:"wallet_id"` // account/store id; auto-discovered when empty
	InvoiceExpiry time.Duration `koanf:"invoice_expiry"`
	TLSSkipVerify bool          `koanf:"tls_skip_verify"`
	WebhookSecret string        `koanf:"webhook_secret"`
}

type Config struct {
	App struct {
		Name     string `koanf:"name"`
		HTTPAddr string `koanf:"http_addr"`
		LogLevel string `koanf:"log_level"`
		LogFile  string `koanf:"log_file"`
	} `koanf:"app"`

	HTTP struct {
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
		IdleTimeout  time.Duration `koanf:"idle_timeout"`
	} `koanf:"http"`

	MySQL struct {
		DSN             string        `koanf:"dsn"`
		MaxOpenConns    int           `koanf:"max_open_conns"`
		MaxIdleConns    int           `koanf:"max_idle_conns"`
		ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	} `koanf:"mysql"`

	Redis struct {
		Addr     string `koanf:"addr"`
		Password string `koanf:"password"`
	} `koanf:"redis"`

	Dedup struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"dedup"`

	Idempotency struct {
		TTL time.Duration `koanf:"ttl"`
	} `koanf:"idempotency"`

	Rabbit struct {
		URL      string `koanf:"url"`
		Exchange string `koanf:"exchange"`
	} `koanf:"rabbitmq"`

	Kafka struct {
		Brokers     []string `koanf:"brokers"`
		TopicEvents string   `koanf:"topic_events"`
	} `koanf:"kafka"`

	Security struct {
		JWTSecret string        `koanf:"jwt_secret"`
		Issuer    string        `koanf:"issuer"`
		Audience  string        `koanf:"audience"`
		TTL       time.Duration `koanf:"ttl"`
	} `koanf:"security"`

	Payments struct {
		// Lightning / Onchain name the registry key used for each rail.
		Lightning string `koanf:"lightning"`
		Onchain   string `koanf:"onchain"`

		LNbits     ProviderConfig `koanf:"lnbits"`
		LND        ProviderConfig `koanf:"lnd"`
		Boltz      ProviderConfig `koanf:"boltz"`
		OpenNode   ProviderConfig `koanf:"opennode"`
		ChainWatch struct {
			ProviderConfig `koanf:",squash"`
			TolerancePct   float64       `koanf:"tolerance_pct"`
			PollInterval   time.Duration `koanf:"poll_interval"`
		} `koanf:"chainwatch"`

		RefundSeed string `koanf:"refund_seed"`

		ShippingSats uint64 `koanf:"shipping_sats"`
	} `koanf:"payments"`

	Sweep struct {
		Interval      time.Duration `koanf:"interval"`
		MaxPendingAge time.Duration `koanf:"max_pending_age"`
	} `koanf:"sweep"`

	Stream struct {
		Heartbeat    time.Duration `koanf:"heartbeat"`
		PollInterval time.Duration `koanf:"poll_interval"`
	} `koanf:"stream"`

	// Notify holds the delivery endpoints for paid-order fan-out. An empty
	// URL downgrades that sink to log-only.
	Notify struct {
		OperatorURL  string `koanf:"operator_url"`
		MailerURL    string `koanf:"mailer_url"`
		MessengerURL string `koanf:"messenger_url"`
	} `koanf:"notify"`
}

func Load(pathDir, envName string) (Config, error) {
	k := koanf.New(".")
	// 1) base
	if err := k.Load(file.Provider(fmt.Sprintf("%s/base.yaml", pathDir)), yaml.Parser()); err != nil {
		return Config{}, fmt.Errorf("load base: %w", err)
	}

	// 2) env override (dev/staging/prod). Optional: allow missing for local runs.
	_ = k.Load(file.Provider(fmt.Sprintf("%s/%s.yaml", pathDir, envName)), yaml.Parser())

	// 3) environment variables override (prefix BOLTCANVAS_, nested with __)
	// e.g. BOLTCANVAS_MYSQL__DSN, BOLTCANVAS_PAYMENTS__LNBITS__API_KEY
	if err := k.Load(env.Provider("BOLTCANVAS_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "BOLTCANVAS_")
		s = strings.ReplaceAll(s, "__", ".")
		return strings.ToLower(s)
	}), nil); err != nil {
		return Config{}, fmt.Errorf("env overlay: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.App.HTTPAddr == "" {
		return fmt.Errorf("app.http_addr required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn required")
	}
	if c.Payments.Lightning == "" {
		return fmt.Errorf("payments.lightning required")
	}
	if c.Payments.Onchain == "" {
		return fmt.Errorf("payments.onchain required")
	}
	if c.Sweep.Interval <= 0 {
		return fmt.Errorf("sweep.interval must be positive")
	}
	return nil
}
