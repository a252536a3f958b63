package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"pricecompare/browser"
	"pricecompare/cache"
	"pricecompare/config"
	"pricecompare/database"
	"pricecompare/handlers"
	"pricecompare/logger"
	"pricecompare/middleware"
	"pricecompare/repository"
	"pricecompare/scheduler"
	"pricecompare/scraper"
	"pricecompare/services"
)

// provider is a page document provider that owns resources
type provider interface {
	scraper.SessionFactory
	Close() error
}

func main() {
	if err := godotenv.Load(); err != nil {
		logger.Log.Debug().Msg("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger.Init(logger.IsDev(cfg.Env), cfg.LogLevel)

	if err := run(cfg); err != nil {
		logger.Log.Fatal().Err(err).Msg("Server stopped with error")
	}
	logger.Log.Info().Msg("Server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sources, err := scraper.LoadSources(cfg.SourcesFile)
	if err != nil {
		return err
	}

	pages, err := newProvider(cfg.Browser)
	if err != nil {
		return err
	}
	defer func() {
		if err := pages.Close(); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to close page provider")
		}
	}()

	extractors, err := scraper.NewExtractors(sources, scraper.NewBotDetector())
	if err != nil {
		return err
	}
	breakers := scraper.NewBreakers(scraper.BreakerConfig{
		Failures: cfg.Search.BreakerFailures,
		Cooldown: cfg.Search.BreakerCooldown,
	})
	aggregator := scraper.NewAggregator(pages, extractors, breakers, cfg.Search.TeardownTimeout)

	resultCache, err := newCache(cfg.Cache)
	if err != nil {
		return err
	}
	if resultCache != nil {
		defer resultCache.Close()
	}

	var (
		history *repository.SearchRepository
		db      *sql.DB
	)
	if cfg.HistoryEnabled() {
		db, err = database.Open(ctx, cfg.Database.URL, database.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		if err := database.CreateTables(ctx, db); err != nil {
			return err
		}
		history = repository.NewSearchRepository(db)
	}

	var service *services.SearchService
	if history != nil {
		service = services.NewSearchService(aggregator, resultCache, history, cfg.Search.Timeout)
	} else {
		service = services.NewSearchService(aggregator, resultCache, nil, cfg.Search.Timeout)
	}

	taskManager := scheduler.NewTaskManager(service.Search, cfg.Search.Workers, 100, cfg.Search.TaskRetention, cfg.Search.CleanupInterval)
	taskManager.Start(ctx)
	defer taskManager.Stop()

	var purger scheduler.HistoryPurger
	if history != nil {
		purger = history
	}
	watchlist, err := newWatchlist(cfg, service.Search, purger)
	if err != nil {
		return err
	}
	if watchlist != nil {
		if err := watchlist.Start(ctx); err != nil {
			return err
		}
		defer watchlist.Stop()
	}

	r := mux.NewRouter()
	r.Use(middleware.LoggingMiddleware)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.NewRoute().Subrouter()
	api.Use(middleware.RateLimitMiddleware(cfg.Server.RateLimit,
		"/api/health", "/api/tasks/{taskId}", "/api/tasks/stats"))
	handlers.NewHandlers(service, taskManager, aggregator).RegisterRoutes(api)

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      c.Handler(r),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Log.Info().
			Str("addr", server.Addr).
			Str("provider", cfg.Browser.Provider).
			Int("sources", len(extractors)).
			Bool("history", history != nil).
			Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if mem, ok := resultCache.(*cache.MemoryCache); ok {
		g.Go(func() error {
			sweepCache(gctx, mem, cfg.Cache.TTL)
			return nil
		})
	}

	return g.Wait()
}

// newWatchlist returns nil when there is nothing to schedule: no watch
// queries and no history to purge
func newWatchlist(cfg *config.Config, search scheduler.SearchFunc, purger scheduler.HistoryPurger) (*scheduler.Watchlist, error) {
	purge := purger != nil && cfg.Database.RetentionDays > 0
	if cfg.Watch.Schedule == "" && !purge {
		return nil, nil
	}

	watchlist, err := scheduler.NewWatchlist(cfg.Watch.Schedule, cfg.Watch.Queries, search)
	if err != nil {
		return nil, err
	}
	if purge {
		watchlist.WithHistoryPurge(purger, cfg.Database.RetentionDays)
	}
	return watchlist, nil
}

func newProvider(cfg config.BrowserConfig) (provider, error) {
	if cfg.Provider == "static" {
		return browser.NewStaticProvider(browser.StaticConfig{
			UserAgent:         cfg.UserAgent,
			Timeout:           cfg.NavigationTimeout,
			RequestsPerSecond: cfg.StaticRate,
			Burst:             1,
		}), nil
	}
	rod, err := browser.LaunchRod(browser.RodConfig{
		Bin:               cfg.Bin,
		Headless:          cfg.Headless,
		UserAgent:         cfg.UserAgent,
		NavigationTimeout: cfg.NavigationTimeout,
		SettleMin:         cfg.SettleMin,
		SettleMax:         cfg.SettleMax,
		ViewportWidth:     cfg.ViewportWidth,
		ViewportHeight:    cfg.ViewportHeight,
	})
	if err != nil {
		return nil, err
	}
	return rod, nil
}

func newCache(cfg config.CacheConfig) (cache.Cache, error) {
	switch cfg.Type {
	case "redis":
		redisCache, err := cache.NewRedisCache(cfg.RedisURL, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	case "memory":
		return cache.NewMemoryCache(cfg.TTL, cfg.MaxEntries), nil
	default:
		return nil, nil
	}
}

func sweepCache(ctx context.Context, mem *cache.MemoryCache, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := mem.Sweep(); removed > 0 {
				logger.Log.Debug().Int("removed", removed).Msg("Expired cache entries swept")
			}
		}
	}
}
