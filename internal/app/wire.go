package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/polyarb/arbengine/internal/archive"
	s3blob "github.com/polyarb/arbengine/internal/blob/s3"
	"github.com/polyarb/arbengine/internal/bookcache"
	"github.com/polyarb/arbengine/internal/cache/redis"
	"github.com/polyarb/arbengine/internal/config"
	"github.com/polyarb/arbengine/internal/crypto"
	"github.com/polyarb/arbengine/internal/depgraph"
	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/executor"
	"github.com/polyarb/arbengine/internal/feed"
	"github.com/polyarb/arbengine/internal/orchestrator"
	"github.com/polyarb/arbengine/internal/platform/kalshi"
	"github.com/polyarb/arbengine/internal/platform/polymarket"
	"github.com/polyarb/arbengine/internal/server"
	"github.com/polyarb/arbengine/internal/store/postgres"
	"github.com/polyarb/arbengine/internal/tradelog"
	"github.com/polyarb/arbengine/internal/venue"
)

// tradeLogDir is where the append-only trades.csv / opportunities.csv live.
const tradeLogDir = "data/tradelog"

// Dependencies bundles every long-running component the application fans
// out over, plus the pieces app.Close needs to tear down cleanly.
type Dependencies struct {
	Orchestrator   *orchestrator.Orchestrator
	PolymarketFeed *feed.PolymarketFeed
	KalshiFeed     *feed.KalshiFeed
	Server         *server.Server    // nil unless cfg.Server.Enabled
	Archiver       *archive.Archiver // nil unless cfg.S3.Enabled
	ArchiveCron    string
}

// venueMap implements executor.VenueRegistry directly over a map, so the
// Executor can resolve adapters without depending on the Orchestrator.
type venueMap map[domain.Venue]venue.Adapter

func (m venueMap) Adapter(v domain.Venue) (venue.Adapter, bool) {
	a, ok := m[v]
	return a, ok
}

// Wire constructs every dependency described by cfg and returns a cleanup
// function that releases them in reverse order. On error, cleanup still
// releases whatever was already opened.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	// --- Venue adapters -----------------------------------------------

	var polymarketSecret string
	if cfg.Polymarket.ApiSecret != "" || cfg.Polymarket.EncryptedKeyPath != "" {
		keyCfg := crypto.KeyConfig{RawSecret: cfg.Polymarket.ApiSecret}
		if cfg.Polymarket.EncryptedKeyPath != "" {
			keyCfg = crypto.KeyConfig{
				EncryptedKeyPath: cfg.Polymarket.EncryptedKeyPath,
				KeyPassword:      cfg.Polymarket.KeyPassword,
			}
		}
		secret, err := crypto.LoadKey(keyCfg)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: load polymarket api secret: %w", err)
		}
		polymarketSecret = secret
	}

	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	hmacAuth := &crypto.HMACAuth{
		Key:        cfg.Polymarket.ApiKey,
		Secret:     polymarketSecret,
		Passphrase: cfg.Polymarket.ApiPassphrase,
	}
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, hmacAuth)
	polyAdapter := polymarket.NewAdapter(gamma, clob)

	kalshiClient := kalshi.NewClient(cfg.Kalshi.BaseURL, cfg.Kalshi.ApiKeyID)
	switch {
	case cfg.Kalshi.EncryptedKeyPath != "":
		pem, err := crypto.LoadKey(crypto.KeyConfig{
			EncryptedKeyPath: cfg.Kalshi.EncryptedKeyPath,
			KeyPassword:      cfg.Kalshi.KeyPassword,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: load kalshi private key: %w", err)
		}
		if err := kalshiClient.SetRSAPrivateKey([]byte(pem)); err != nil {
			return nil, cleanup, fmt.Errorf("app: load kalshi private key: %w", err)
		}
	case cfg.Kalshi.RsaPrivateKeyPath != "":
		pemBytes, err := os.ReadFile(cfg.Kalshi.RsaPrivateKeyPath)
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: read kalshi private key: %w", err)
		}
		if err := kalshiClient.SetRSAPrivateKey(pemBytes); err != nil {
			return nil, cleanup, fmt.Errorf("app: load kalshi private key: %w", err)
		}
	}
	kalshiAdapter := kalshi.NewAdapter(kalshiClient)

	venues := venueMap{
		domain.VenuePolymarket: polyAdapter,
		domain.VenueKalshi:     kalshiAdapter,
	}

	// --- In-process order book cache and WS feeds ----------------------

	books := bookcache.New(5 * time.Second)
	polyFeed := feed.NewPolymarketFeed(cfg.Polymarket.WsHost, books, logger)
	kalshiFeed := feed.NewKalshiFeed(cfg.Kalshi.WsHost, books, logger)

	feeds := map[domain.Venue]orchestrator.FeedSubscriber{
		domain.VenuePolymarket: polyFeed,
		domain.VenueKalshi:     kalshiFeed,
	}

	// --- Dependency graph: Redis TTL cache in front of the classifier ---

	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: connect redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	depCache := redis.NewDependencyCache(redisClient)
	classifier := depgraph.NewHTTPClassifier(cfg.Classifier.URL, cfg.Classifier.Model)
	graph := depgraph.New(depCache, classifier, logger)
	graph.SetCoordination(redis.NewLockManager(redisClient), redis.NewRateLimiter(redisClient))

	// --- Execution engine ------------------------------------------------

	exec := executor.New(venues, books, executor.Config{
		FeeRate:        cfg.Engine.FeeRate,
		MinProfitUSD:   cfg.Engine.MinProfitUSD,
		LatencyBudget:  time.Duration(cfg.Engine.LatencyBudgetMs) * time.Millisecond,
		MaxExposureUSD: cfg.Engine.MaxExposureUSD,
		LegPolicy:      domain.LegPolicy(cfg.Engine.LegPolicy),
	}, logger)

	// --- Append-only local trade/opportunity log -------------------------

	if err := os.MkdirAll(tradeLogDir, 0755); err != nil {
		return nil, cleanup, fmt.Errorf("app: create trade log dir: %w", err)
	}
	log, err := tradelog.Open(tradeLogDir)
	if err != nil {
		return nil, cleanup, fmt.Errorf("app: open trade log: %w", err)
	}
	closers = append(closers, func() { _ = log.Close() })

	orch := orchestrator.New(venues, feeds, books, graph, exec, log, orchestrator.Config{
		ScanInterval:        cfg.Engine.ScanIntervalS.Duration,
		MaxMarkets:          cfg.Engine.MaxMarkets,
		FWMaxIters:          cfg.Engine.FWMaxIters,
		FWTolerance:         cfg.Engine.FWTolerance,
		MinProfitUSD:        cfg.Engine.MinProfitUSD,
		MaxTradeUSD:         cfg.Engine.MaxTradeUSD,
		CrossVenueEnabled:   cfg.Engine.CrossVenue,
		CrossVenueTradeSize: cfg.Engine.CrossVenueSize,
		CrossVenueMinSim:    cfg.Engine.CrossVenueMinSim,
	}, logger)

	orch.SetSignalBus(redis.NewSignalBus(redisClient))

	deps := &Dependencies{
		Orchestrator:   orch,
		PolymarketFeed: polyFeed,
		KalshiFeed:     kalshiFeed,
	}

	// --- Optional Postgres mirror of opportunities/trades ----------------

	var oppStore *postgres.OpportunityStore
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: connect supabase: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return nil, cleanup, fmt.Errorf("app: run supabase migrations: %w", err)
			}
		}

		oppStore = postgres.NewOpportunityStore(pgClient.Pool())
		tradeStore := postgres.NewTradeResultStore(pgClient.Pool())
		orch.SetMirrorStores(oppStore, tradeStore)
	}

	// --- Optional S3 cold-storage archiver -------------------------------

	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, cleanup, fmt.Errorf("app: connect s3: %w", err)
		}
		writer := s3blob.NewWriter(s3Client)
		blobArchiver := s3blob.NewArchiver(writer, cfg.S3.Prefix)
		deps.Archiver = archive.New(log, blobArchiver, logger)
		deps.ArchiveCron = cfg.S3.ArchiveCron
	}

	// --- Optional read-only HTTP surface ---------------------------------

	if cfg.Server.Enabled {
		var opps server.OpportunityProvider
		if oppStore != nil {
			opps = oppStore
		}
		deps.Server = server.NewServer(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
		}, exec, opps, time.Now(), logger)
	}

	return deps, cleanup, nil
}
