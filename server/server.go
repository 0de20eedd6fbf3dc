package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pitaradio/cache"
	"pitaradio/config"
	"pitaradio/core/catalog"
	"pitaradio/core/charts"
	"pitaradio/core/engagement"
	"pitaradio/core/ingest"
	"pitaradio/core/selection"
	"pitaradio/db"
	"pitaradio/logger"
	"pitaradio/repository"
	"pitaradio/storage"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// App holds the wired dependencies of a running server.
type App struct {
	DB     *gorm.DB
	Redis  *redis.Client // nil unless REDIS_ENABLED
	Blobs  storage.BlobStore
	Router *mux.Router
}

// NewApp opens the store, migrates it, connects the optional cache and blob store, and
// builds the router.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	gdb, err := db.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(gdb); err != nil {
		db.Close(gdb)
		return nil, err
	}

	app := &App{DB: gdb}

	var chartsCache *cache.ChartsCache
	if cfg.RedisEnabled {
		client, err := cache.ConnectRedis(ctx, cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.Redis = client
		chartsCache = cache.NewChartsCache(client, cfg.ChartsCacheTTL)
		logger.Info("Charts cache enabled", logger.Duration("ttl", cfg.ChartsCacheTTL))
	}

	blobs, err := storage.New(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Blobs = blobs

	app.Router = newRouter(cfg, gdb, blobs, chartsCache)
	return app, nil
}

func newRouter(cfg *config.Config, gdb *gorm.DB, blobs storage.BlobStore, chartsCache *cache.ChartsCache) *mux.Router {
	tracks := repository.NewTrackRepository(gdb)
	stats := repository.NewStatRepository(gdb)

	// typed nils must not leak into the interfaces
	var chartsCacheIface charts.Cache
	var invalidator engagement.Invalidator
	if chartsCache != nil {
		chartsCacheIface = chartsCache
		invalidator = chartsCache
	}

	api := NewAPIHandler(
		catalog.NewService(tracks, stats, selection.NewPicker(nil)),
		charts.NewEngine(tracks, stats, chartsCacheIface),
		engagement.NewAggregator(stats, tracks, invalidator),
		ingest.NewService(blobs, tracks),
		tracks,
		invalidator,
		func(ctx context.Context) error { return db.Ping(ctx, gdb) },
		cfg.MaxUploadBytes(),
	)

	router := mux.NewRouter()
	router.Use(corsMiddleware, metricsMiddleware)
	api.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if local, ok := blobs.(*storage.LocalStore); ok {
		router.PathPrefix("/uploads/").Handler(uploadsHandler(local.Dir()))
	}
	router.PathPrefix("/").Handler(NewStaticHandler(cfg.WebAppDir))
	return router
}

// Close releases the store and cache connections.
func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			logger.Warn("Failed to close Redis", logger.ErrorField(err))
		}
	}
	if a.DB != nil {
		if err := db.Close(a.DB); err != nil {
			logger.Warn("Failed to close database", logger.ErrorField(err))
		}
	}
}

// Start runs the HTTP server until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	app, err := NewApp(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     app.Router,
		ReadTimeout: 5 * time.Minute, // uploads up to MAX_UPLOAD_MB
		IdleTimeout: 120 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.Addr()),
			logger.String("db", cfg.DBDriver),
			logger.String("storage", cfg.StorageBackend))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-stop:
	}
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}
	logger.Info("Server stopped")
	return nil
}
