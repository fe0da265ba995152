// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by POLYARB_* environment
// variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Kalshi     KalshiConfig     `toml:"kalshi"`
	Classifier ClassifierConfig `toml:"classifier"`
	Supabase   SupabaseConfig   `toml:"supabase"`
	Redis      RedisConfig      `toml:"redis"`
	S3         S3Config         `toml:"s3"`
	Server     ServerConfig     `toml:"server"`
	LogLevel   string           `toml:"log_level"`
}

// EngineConfig holds the single Configuration struct spec.md section 6
// names: the parameters the cycle orchestrator, Frank-Wolfe optimizer, and
// execution engine consume at startup.
type EngineConfig struct {
	LiveMode         bool     `toml:"live_mode"`
	MaxTradeUSD      float64  `toml:"max_trade_usd"`
	MaxExposureUSD   float64  `toml:"max_exposure_usd"`
	MaxMarkets       int      `toml:"max_markets"`
	FeeRate          float64  `toml:"fee_rate"`
	ScanIntervalS    duration `toml:"scan_interval_s"`
	FWMaxIters       int      `toml:"fw_max_iters"`
	FWTolerance      float64  `toml:"fw_tolerance"`
	MinProfitUSD     float64  `toml:"min_profit_usd"`
	LatencyBudgetMs  int64    `toml:"latency_budget_ms"`
	CrossVenue       bool     `toml:"cross_venue"`
	CrossVenueSize   float64  `toml:"cross_venue_trade_size_usd"`
	CrossVenueMinSim float64  `toml:"cross_venue_min_similarity"`

	// LegPolicy governs multi-leg submission: "best_effort" (default),
	// "all_or_none", or "sequential". See domain.LegPolicy.
	LegPolicy string `toml:"leg_policy"`
}

// PolymarketConfig holds Polymarket API endpoints and venue credentials.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
	PrivateKey    string `toml:"private_key"`
	SignatureType int    `toml:"signature_type"`

	// EncryptedKeyPath, when set, overrides ApiSecret: the secret is read
	// from this crypto.EncryptKey-produced JSON file and decrypted with
	// KeyPassword instead of being kept in cleartext in the config file.
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// KalshiConfig holds Kalshi exchange API credentials, used to sign every
// REST request with RSA-PSS-SHA256 per spec.md section 6.
type KalshiConfig struct {
	ApiKeyID          string `toml:"api_key_id"`
	RsaPrivateKeyPath string `toml:"rsa_private_key_path"`
	BaseURL           string `toml:"base_url"`
	WsHost            string `toml:"ws_host"`

	// EncryptedKeyPath, when set, overrides RsaPrivateKeyPath: the PEM
	// block is read from this crypto.EncryptKey-produced JSON file and
	// decrypted with KeyPassword instead of living on disk in cleartext.
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// ClassifierConfig holds the LLM dependency-classifier endpoint used by the
// background dependency-discovery task.
type ClassifierConfig struct {
	URL   string `toml:"url"`
	Model string `toml:"model"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters for the
// supplemental opportunity/trade-result archive.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters, backing the dependency-graph
// TTL cache, the discovery lock, the classifier-call rate limiter, and the
// opportunity/trade signal bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for cold-storage
// archival of rotated trades.csv / opportunities.csv files.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	ArchiveCron    string `toml:"archive_cron"`
}

// ServerConfig holds the read-only status/metrics/health HTTP surface.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s", "100ms").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "100ms" or "60s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the documented defaults from
// spec.md section 6.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			LiveMode:         false,
			MaxTradeUSD:      25.0,
			MaxExposureUSD:   500.0,
			MaxMarkets:       200,
			FeeRate:          0.02,
			ScanIntervalS:    duration{100 * time.Millisecond},
			FWMaxIters:       200,
			FWTolerance:      1e-4,
			MinProfitUSD:     1.0,
			LatencyBudgetMs:  2040,
			CrossVenue:       true,
			CrossVenueSize:   10.0,
			CrossVenueMinSim: 0.4,
			LegPolicy:        "best_effort",
		},
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com",
			SignatureType: 2,
		},
		Kalshi: KalshiConfig{
			BaseURL: "https://api.elections.kalshi.com/trade-api/v2",
			WsHost:  "wss://api.elections.kalshi.com/trade-api/ws/v2",
		},
		Classifier: ClassifierConfig{
			Model: "gpt-4o-mini",
		},
		Supabase: SupabaseConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arbengine-logs",
			Prefix:         "archive/logs",
			UseSSL:         false,
			ForcePathStyle: true,
			ArchiveCron:    "0 3 * * *",
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found. In live mode,
// every venue credential is required per spec.md section 6.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Engine.MaxTradeUSD <= 0 {
		errs = append(errs, "engine: max_trade_usd must be > 0")
	}
	if c.Engine.MaxExposureUSD <= 0 {
		errs = append(errs, "engine: max_exposure_usd must be > 0")
	}
	if c.Engine.MaxMarkets <= 0 {
		errs = append(errs, "engine: max_markets must be > 0")
	}
	if c.Engine.ScanIntervalS.Duration <= 0 {
		errs = append(errs, "engine: scan_interval_s must be > 0")
	}
	if c.Engine.FWMaxIters <= 0 {
		errs = append(errs, "engine: fw_max_iters must be > 0")
	}
	if c.Engine.FWTolerance <= 0 {
		errs = append(errs, "engine: fw_tolerance must be > 0")
	}
	if c.Engine.LatencyBudgetMs <= 0 {
		errs = append(errs, "engine: latency_budget_ms must be > 0")
	}
	switch domain.LegPolicy(c.Engine.LegPolicy) {
	case domain.LegPolicyBestEffort, domain.LegPolicyAllOrNone, domain.LegPolicySequential:
	default:
		errs = append(errs, fmt.Sprintf("engine: leg_policy must be one of best_effort, all_or_none, sequential, got %q", c.Engine.LegPolicy))
	}

	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.SignatureType != 1 && c.Polymarket.SignatureType != 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 1 (EOA) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}
	if c.Kalshi.BaseURL == "" {
		errs = append(errs, "kalshi: base_url must not be empty")
	}

	if c.Engine.LiveMode {
		if c.Polymarket.ApiKey == "" || (c.Polymarket.ApiSecret == "" && c.Polymarket.EncryptedKeyPath == "") || c.Polymarket.ApiPassphrase == "" {
			errs = append(errs, "polymarket: api_key, api_passphrase, and (api_secret or encrypted_key_path) are required in live mode")
		}
		if c.Polymarket.PrivateKey == "" {
			errs = append(errs, "polymarket: private_key is required in live mode")
		}
		if c.Kalshi.ApiKeyID == "" || (c.Kalshi.RsaPrivateKeyPath == "" && c.Kalshi.EncryptedKeyPath == "") {
			errs = append(errs, "kalshi: api_key_id and (rsa_private_key_path or encrypted_key_path) are required in live mode")
		}
	}

	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
