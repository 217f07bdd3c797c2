// Package config loads the tracker configuration from .env, YAML and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"filippo.io/edwards25519"
	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"curator-signal-lab/internal/logger"
)

// Config is the complete service configuration.
type Config struct {
	Curators  CuratorsConfig  `yaml:"curators"`
	Signals   SignalsConfig   `yaml:"signals"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Solana    SolanaConfig    `yaml:"solana"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Market    MarketConfig    `yaml:"market"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	API       APIConfig       `yaml:"api"`
	Log       logger.Config   `yaml:"log"`
}

// CuratorsConfig lists the watched wallets.
type CuratorsConfig struct {
	Wallets    []string `yaml:"wallets"`
	MintSuffix string   `yaml:"mint_suffix"` // optional, e.g. BAGS
}

// SignalsConfig controls debouncing.
type SignalsConfig struct {
	ConfirmationDelay time.Duration `yaml:"confirmation_delay"`
	Cooldown          time.Duration `yaml:"cooldown"`
}

// TrackerConfig controls sweeps and entry probing.
type TrackerConfig struct {
	SweepInterval time.Duration  `yaml:"sweep_interval"`
	ProbeSizeUSD  float64        `yaml:"probe_size_usd"`
	CallTimeout   time.Duration  `yaml:"call_timeout"`
	Workers       int            `yaml:"workers"`
	StallTimeout  *time.Duration `yaml:"stall_timeout"` // 0 disables abandonment; unset means 48h
}

// AnalyticsConfig holds return analytics thresholds.
type AnalyticsConfig struct {
	RoundTripFeePct           float64 `yaml:"round_trip_fee_pct"`
	ProbationThresholdPct     float64 `yaml:"probation_threshold_pct"`
	PrincipalBackThresholdPct float64 `yaml:"principal_back_threshold_pct"`
	LockFraction              float64 `yaml:"lock_fraction"`
	DegradedThresholdBps      float64 `yaml:"degraded_threshold_bps"`
}

// SolanaConfig holds node endpoints.
type SolanaConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
	WSEndpoint  string `yaml:"ws_endpoint"`
	Commitment  string `yaml:"commitment"`
}

// IngestionConfig selects the event source and transaction parser.
type IngestionConfig struct {
	Source       string `yaml:"source"` // ws | kafka
	Parser       string `yaml:"parser"` // rpc | helius
	HeliusURL    string `yaml:"helius_url"`
	HeliusAPIKey string `yaml:"helius_api_key"`
}

// KafkaConfig holds broker settings. PublishTopic, when set, receives a copy
// of every event from the wallet source.
type KafkaConfig struct {
	Brokers      []string `yaml:"brokers"`
	Topic        string   `yaml:"topic"`
	GroupID      string   `yaml:"group_id"`
	PublishTopic string   `yaml:"publish_topic"`
}

// MarketConfig holds market data endpoints.
type MarketConfig struct {
	BirdeyeURL    string        `yaml:"birdeye_url"`
	BirdeyeAPIKey string        `yaml:"birdeye_api_key"`
	JupiterURL    string        `yaml:"jupiter_url"`
	PriceCacheTTL time.Duration `yaml:"price_cache_ttl"`
	AgeMaxPages   int           `yaml:"age_max_pages"`
}

// RedisConfig enables the price cache when Addr is set.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorageConfig selects the trade store and optional sinks.
type StorageConfig struct {
	Backend       string `yaml:"backend"` // memory | sqlite | postgres
	SQLitePath    string `yaml:"sqlite_path"`
	PostgresDSN   string `yaml:"postgres_dsn"`
	ClickHouseDSN string `yaml:"clickhouse_dsn"` // optional observation log
	SnapshotPath  string `yaml:"snapshot_path"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads .env if present, then the YAML file at path (skipped when path
// is empty), applies environment overrides and defaults, and validates.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&cfg.Solana.RPCEndpoint, "SOLANA_RPC_ENDPOINT")
	set(&cfg.Solana.WSEndpoint, "SOLANA_WS_ENDPOINT")
	set(&cfg.Ingestion.HeliusAPIKey, "HELIUS_API_KEY")
	set(&cfg.Market.BirdeyeAPIKey, "BIRDEYE_API_KEY")
	set(&cfg.Storage.PostgresDSN, "POSTGRES_DSN")
	set(&cfg.Storage.ClickHouseDSN, "CLICKHOUSE_DSN")
	set(&cfg.Redis.Addr, "REDIS_ADDR")
	set(&cfg.Log.Level, "LOG_LEVEL")
	set(&cfg.Log.Format, "LOG_FORMAT")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("CURATOR_WALLETS"); v != "" {
		cfg.Curators.Wallets = splitList(v)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func setDefaults(cfg *Config) {
	if cfg.Signals.ConfirmationDelay <= 0 {
		cfg.Signals.ConfirmationDelay = 120 * time.Second
	}
	if cfg.Signals.Cooldown <= 0 {
		cfg.Signals.Cooldown = time.Hour
	}

	if cfg.Tracker.SweepInterval <= 0 {
		cfg.Tracker.SweepInterval = 2 * time.Minute
	}
	if cfg.Tracker.ProbeSizeUSD <= 0 {
		cfg.Tracker.ProbeSizeUSD = 100
	}
	if cfg.Tracker.CallTimeout <= 0 {
		cfg.Tracker.CallTimeout = 10 * time.Second
	}
	if cfg.Tracker.Workers <= 0 {
		cfg.Tracker.Workers = 8
	}
	if cfg.Tracker.StallTimeout == nil {
		stall := 48 * time.Hour
		cfg.Tracker.StallTimeout = &stall
	}

	a := &cfg.Analytics
	if a.RoundTripFeePct == 0 {
		a.RoundTripFeePct = 2.14
	}
	if a.ProbationThresholdPct == 0 {
		a.ProbationThresholdPct = 5
	}
	if a.PrincipalBackThresholdPct == 0 {
		a.PrincipalBackThresholdPct = 50
	}
	if a.LockFraction == 0 {
		a.LockFraction = 0.65
	}
	if a.DegradedThresholdBps == 0 {
		a.DegradedThresholdBps = 1000
	}

	if cfg.Solana.RPCEndpoint == "" {
		cfg.Solana.RPCEndpoint = "https://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.WSEndpoint == "" {
		cfg.Solana.WSEndpoint = "wss://api.mainnet-beta.solana.com"
	}
	if cfg.Solana.Commitment == "" {
		cfg.Solana.Commitment = "confirmed"
	}

	if cfg.Ingestion.Source == "" {
		cfg.Ingestion.Source = "ws"
	}
	if cfg.Ingestion.Parser == "" {
		cfg.Ingestion.Parser = "rpc"
	}
	if cfg.Ingestion.HeliusURL == "" {
		cfg.Ingestion.HeliusURL = "https://api.helius.xyz"
	}

	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = "curator-signal-lab"
	}

	if cfg.Market.BirdeyeURL == "" {
		cfg.Market.BirdeyeURL = "https://public-api.birdeye.so"
	}
	if cfg.Market.JupiterURL == "" {
		cfg.Market.JupiterURL = "https://quote-api.jup.ag/v6"
	}
	if cfg.Market.PriceCacheTTL <= 0 {
		cfg.Market.PriceCacheTTL = 15 * time.Second
	}
	if cfg.Market.AgeMaxPages <= 0 {
		cfg.Market.AgeMaxPages = 20
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "memory"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/paper_trades.db"
	}
	if cfg.Storage.SnapshotPath == "" {
		cfg.Storage.SnapshotPath = "reports/paper_trades_curator.json"
	}

	if cfg.API.Addr == "" {
		cfg.API.Addr = ":8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	var errs *multierror.Error

	if len(c.Curators.Wallets) == 0 {
		errs = multierror.Append(errs, errors.New("curators.wallets: at least one wallet is required"))
	}
	seen := make(map[string]bool, len(c.Curators.Wallets))
	for _, w := range c.Curators.Wallets {
		if seen[w] {
			errs = multierror.Append(errs, fmt.Errorf("curators.wallets: duplicate %s", w))
			continue
		}
		seen[w] = true
		if err := ValidateWallet(w); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("curators.wallets: %w", err))
		}
	}

	if c.Tracker.StallTimeout != nil && *c.Tracker.StallTimeout < 0 {
		errs = multierror.Append(errs, errors.New("tracker.stall_timeout must not be negative"))
	}
	if c.Tracker.Workers < 1 {
		errs = multierror.Append(errs, errors.New("tracker.workers must be positive"))
	}
	if c.Analytics.LockFraction <= 0 || c.Analytics.LockFraction > 1 {
		errs = multierror.Append(errs, fmt.Errorf("analytics.lock_fraction must be in (0, 1], got %v", c.Analytics.LockFraction))
	}
	if c.Analytics.RoundTripFeePct < 0 {
		errs = multierror.Append(errs, errors.New("analytics.round_trip_fee_pct must not be negative"))
	}

	switch c.Ingestion.Source {
	case "ws":
		if c.Solana.WSEndpoint == "" {
			errs = multierror.Append(errs, errors.New("solana.ws_endpoint is required for the ws source"))
		}
	case "kafka":
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			errs = multierror.Append(errs, errors.New("kafka.brokers and kafka.topic are required for the kafka source"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("ingestion.source: unknown %q", c.Ingestion.Source))
	}

	switch c.Ingestion.Parser {
	case "rpc":
	case "helius":
		if c.Ingestion.HeliusAPIKey == "" {
			errs = multierror.Append(errs, errors.New("ingestion.helius_api_key is required for the helius parser"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("ingestion.parser: unknown %q", c.Ingestion.Parser))
	}

	if c.Kafka.PublishTopic != "" && len(c.Kafka.Brokers) == 0 {
		errs = multierror.Append(errs, errors.New("kafka.brokers is required for kafka.publish_topic"))
	}

	switch c.Storage.Backend {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			errs = multierror.Append(errs, errors.New("storage.postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = multierror.Append(errs, fmt.Errorf("storage.backend: unknown %q", c.Storage.Backend))
	}

	return errs.ErrorOrNil()
}

// ValidateWallet checks that addr is a 32-byte base58 key on the ed25519
// curve, i.e. a user wallet rather than a program-derived address.
func ValidateWallet(addr string) error {
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%s: invalid base58: %w", addr, err)
	}
	if len(raw) != 32 {
		return fmt.Errorf("%s: expected 32 bytes, got %d", addr, len(raw))
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return fmt.Errorf("%s: not on the ed25519 curve", addr)
	}
	return nil
}
