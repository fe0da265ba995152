package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// parseDurationOrSeconds parses "100ms"/"5s" style strings, falling back to
// treating a bare integer as a count of seconds.
func parseDurationOrSeconds(v string) (time.Duration, error) {
	if d, err := time.ParseDuration(v); err == nil {
		return d, nil
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	return time.Duration(secs) * time.Second, nil
}

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies POLYARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setBool(&cfg.Engine.LiveMode, "POLYARB_LIVE_MODE")
	setFloat64(&cfg.Engine.MaxTradeUSD, "POLYARB_MAX_TRADE_USD")
	setFloat64(&cfg.Engine.MaxExposureUSD, "POLYARB_MAX_EXPOSURE_USD")
	setInt(&cfg.Engine.MaxMarkets, "POLYARB_MAX_MARKETS")
	setFloat64(&cfg.Engine.FeeRate, "POLYARB_FEE_RATE")
	setDuration(&cfg.Engine.ScanIntervalS, "POLYARB_SCAN_INTERVAL")
	setInt(&cfg.Engine.FWMaxIters, "POLYARB_FW_MAX_ITERS")
	setFloat64(&cfg.Engine.FWTolerance, "POLYARB_FW_TOLERANCE")
	setFloat64(&cfg.Engine.MinProfitUSD, "POLYARB_MIN_PROFIT_USD")
	setInt64(&cfg.Engine.LatencyBudgetMs, "POLYARB_LATENCY_BUDGET_MS")
	setBool(&cfg.Engine.CrossVenue, "POLYARB_CROSS_VENUE")
	setFloat64(&cfg.Engine.CrossVenueSize, "POLYARB_CROSS_VENUE_TRADE_SIZE_USD")
	setFloat64(&cfg.Engine.CrossVenueMinSim, "POLYARB_CROSS_VENUE_MIN_SIMILARITY")
	setStr(&cfg.Engine.LegPolicy, "POLYARB_LEG_POLICY")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYARB_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYARB_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "POLYARB_POLYMARKET_WS_HOST")
	setStr(&cfg.Polymarket.ApiKey, "POLYARB_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "POLYARB_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "POLYARB_POLYMARKET_API_PASSPHRASE")
	setStr(&cfg.Polymarket.PrivateKey, "POLYARB_POLYMARKET_PRIVATE_KEY")
	setInt(&cfg.Polymarket.SignatureType, "POLYARB_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.EncryptedKeyPath, "POLYARB_POLYMARKET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Polymarket.KeyPassword, "POLYARB_POLYMARKET_KEY_PASSWORD")

	// ── Kalshi ──
	setStr(&cfg.Kalshi.ApiKeyID, "POLYARB_KALSHI_API_KEY_ID")
	setStr(&cfg.Kalshi.RsaPrivateKeyPath, "POLYARB_KALSHI_RSA_PRIVATE_KEY_PATH")
	setStr(&cfg.Kalshi.BaseURL, "POLYARB_KALSHI_BASE_URL")
	setStr(&cfg.Kalshi.WsHost, "POLYARB_KALSHI_WS_HOST")
	setStr(&cfg.Kalshi.EncryptedKeyPath, "POLYARB_KALSHI_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Kalshi.KeyPassword, "POLYARB_KALSHI_KEY_PASSWORD")

	// ── Classifier ──
	setStr(&cfg.Classifier.URL, "POLYARB_CLASSIFIER_URL")
	setStr(&cfg.Classifier.Model, "POLYARB_CLASSIFIER_MODEL")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "POLYARB_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "POLYARB_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "POLYARB_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYARB_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYARB_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYARB_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYARB_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYARB_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "POLYARB_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYARB_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "POLYARB_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYARB_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "POLYARB_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "POLYARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYARB_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.ArchiveCron, "POLYARB_S3_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYARB_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "POLYARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := parseDurationOrSeconds(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
