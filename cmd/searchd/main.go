package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"safekids-search/internal/cache"
	"safekids-search/internal/config"
	"safekids-search/internal/handlers"
	"safekids-search/internal/httpserver"
	"safekids-search/internal/llm"
	"safekids-search/internal/metrics"
	"safekids-search/internal/ratelimit"
	"safekids-search/internal/search"
	"safekids-search/internal/store"
	"safekids-search/internal/store/elastic"
	"safekids-search/internal/store/mongo"
	"safekids-search/internal/store/postgres"
	"safekids-search/internal/store/sqlite"
	"safekids-search/pkg/logging/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("searchd exited with error: %v", err)
	}
}

func run() error {
	// ----- Config -----
	cfg, err := config.Load(config.GetEnv())
	if err != nil {
		return err
	}

	// ----- Logger -----
	logger, err := logging.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logging.SetDefault(logger)
	defer func() { _ = logger.Sync() }()

	// ----- Metrics -----
	metrics.Register()

	logger.Info("loaded config",
		zap.Int("port", cfg.HTTP.Port),
		zap.String("model_provider", cfg.Model.Provider),
		zap.String("model_base_url", cfg.Model.BaseURL),
		zap.String("model", cfg.Model.Model),
		zap.String("store_driver", cfg.Store.Driver),
		zap.String("cache_backend", cfg.Cache.Backend),
		zap.String("cache_version", cfg.Cache.Version),
	)

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	// ----- Redis client (only if needed) -----
	var redisClient redis.UniversalClient
	if cfg.NeedsRedis() {
		redisClient = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    cfg.Redis.Addrs,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()

		// Fail fast if Redis is misconfigured
		if err := redisClient.Ping(startupCtx).Err(); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return err
		}
		logger.Info("redis connection established", zap.Strings("addrs", cfg.Redis.Addrs))
	}

	// ----- Document store -----
	st, err := openStore(startupCtx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	// ----- Result cache -----
	resultCache := cache.New(cache.Config{
		Backend: cfg.Cache.Backend,
		Size:    cfg.Cache.Size,
		TTL:     cfg.Search.CacheTTL(),
		Prefix:  cfg.Cache.Prefix,
	}, redisClient)

	// ----- Model client -----
	modelClient, err := llm.NewClient(llm.Config{
		Provider:        cfg.Model.Provider,
		BaseURL:         cfg.Model.BaseURL,
		Model:           cfg.Model.Model,
		Username:        cfg.Model.Username,
		Password:        cfg.Model.Password,
		APIKey:          cfg.Model.APIKey,
		UpstreamTimeout: cfg.Model.Timeout(),
		FormatJSON:      cfg.Model.FormatJSON,
	}, logger)
	if err != nil {
		return err
	}
	defer modelClient.Close()

	// ----- Search core -----
	svc := search.NewService(search.NewModelParser(modelClient), st, resultCache, search.Config{
		CacheTTL:      cfg.Search.CacheTTL(),
		MaxResults:    cfg.Search.MaxResults,
		VersionID:     cfg.Cache.Version,
		RetryBackoff:  cfg.Search.RetryBackoff(),
		MaxRetryAfter: cfg.Search.MaxRetryAfter(),
	})

	var limiter ratelimit.Limiter
	if !cfg.RateLimit.Disabled {
		limiter = ratelimit.New(cfg.RateLimit.Backend, ratelimit.Config{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window(),
			Prefix: cfg.Cache.Prefix + ":ratelimit",
		}, redisClient)
	}

	ready := map[string]handlers.Pinger{"store": st}
	if redisClient != nil {
		ready["redis"] = redisPinger{redisClient}
	}

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, httpserver.Deps{
		Search:         handlers.NewSearchHandler(svc),
		Limiter:        limiter,
		Ready:          ready,
		RequestTimeout: time.Duration(cfg.HTTP.RequestTimeoutSec) * time.Second,
	})

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.HTTP.Port),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting searchd", zap.String("addr", srv.Addr))

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("server error", zap.Error(err))
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// openStore connects the configured document store, prepares its schema
// and optionally loads the development posts.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (store.Searcher, error) {
	var (
		st  store.Searcher
		err error
	)

	switch cfg.Driver {
	case config.DriverPostgres:
		if err = postgres.RunMigrations(cfg.DSN); err != nil {
			return nil, err
		}
		st, err = postgres.New(ctx, cfg.DSN)
	case config.DriverElasticsearch:
		var es *elastic.Store
		es, err = elastic.New(elastic.Config{
			Addresses: cfg.Addresses,
			Index:     cfg.Index,
			Username:  cfg.Username,
			Password:  cfg.Password,
		})
		if err == nil {
			err = es.EnsureIndex(ctx)
		}
		st = es
	case config.DriverMongo:
		var m *mongo.Store
		m, err = mongo.Connect(ctx, cfg.DSN, cfg.Database)
		if err == nil {
			if err = m.EnsureIndexes(ctx); err != nil {
				_ = m.Close()
			}
		}
		st = m
	default:
		st, err = sqlite.Open(ctx, cfg.DSN)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Driver, err)
	}
	logger.Info("store ready", zap.String("driver", cfg.Driver))

	if cfg.Seed {
		seeder, ok := st.(store.Seeder)
		if !ok {
			_ = st.Close()
			return nil, fmt.Errorf("store driver %q cannot be seeded", cfg.Driver)
		}
		posts := store.DevPosts(time.Now())
		if err := seeder.Seed(ctx, posts); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed store: %w", err)
		}
		logger.Info("store seeded", zap.Int("posts", len(posts)))
	}

	return st, nil
}

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
