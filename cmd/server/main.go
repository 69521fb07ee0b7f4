package main

import (
	"context"
	"log"
	"net/http"

	"github.com/streamvault/backend/internal/api"
	"github.com/streamvault/backend/internal/cache"
	"github.com/streamvault/backend/internal/catalog"
	"github.com/streamvault/backend/internal/config"
	"github.com/streamvault/backend/internal/db"
	"github.com/streamvault/backend/internal/download"
	"github.com/streamvault/backend/internal/events"
	"github.com/streamvault/backend/internal/health"
	"github.com/streamvault/backend/internal/metadata"
	"github.com/streamvault/backend/internal/metrics"
	"github.com/streamvault/backend/internal/notify"
	"github.com/streamvault/backend/internal/wishlist"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	jobRepo := db.NewJobRepository(database)
	catalogRepo := db.NewCatalogRepository(database)
	wishlistRepo := db.NewWishlistRepository(database)
	settingsRepo := db.NewSettingsRepository(database)

	// A previous instance that died mid-transfer leaves rows stuck in
	// downloading; requeue them before the worker starts.
	if n, err := jobRepo.ReconcileInterrupted(ctx); err != nil {
		log.Fatalf("Failed to reconcile interrupted jobs: %v", err)
	} else if n > 0 {
		log.Printf("Requeued %d interrupted download(s)", n)
	}

	redisCache, err := cache.New(cfg.RedisAddr)
	if err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redisCache.Close()

	metaClient := metadata.NewClient(
		metadata.NewProviderClient(),
		metadata.NewTMDBClient(),
		settingsRepo,
		redisCache,
	)

	hub := events.NewHub()
	go hub.Run()
	go events.Relay(ctx, redisCache.Client(), hub)
	publisher := events.NewPublisher(redisCache.Client())

	executor := download.NewExecutor(jobRepo, metaClient, publisher, cfg.DownloadRoot, cfg.TransferCommand)
	queue := download.NewQueue(jobRepo, executor, publisher)
	if err := queue.Start(ctx); err != nil {
		log.Fatalf("Failed to start download queue: %v", err)
	}
	defer queue.Stop()

	metrics.RegisterGauge("download_queue_pending", func() float64 {
		return float64(queue.Pending())
	})

	downloadService := download.NewService(jobRepo, queue, metaClient)
	wishlistService := wishlist.NewService(wishlistRepo, metaClient)

	notifier := notify.New(cfg.NotifyWebhookURL)
	engine := wishlist.NewEngine(wishlistRepo, catalogRepo, metaClient, downloadService, notifierOrNil(notifier), cfg.SweepItemDelay)
	go engine.RunScheduled(ctx, cfg.SweepInterval)

	syncer := catalog.NewSyncer(catalogRepo, metaClient)
	go syncer.RunScheduled(ctx, cfg.CatalogSyncInterval)

	metrics.RegisterGauge("websocket_clients", func() float64 {
		return float64(hub.ClientCount())
	})

	checker := health.NewChecker(database.DB, redisCache.Client(), cfg.DownloadRoot)

	router := api.NewRouter(
		api.NewDownloadHandlers(downloadService),
		api.NewWishlistHandlers(wishlistService, engine),
		api.NewCatalogHandlers(syncer),
		hub,
		checker.Handler(),
		metrics.Default().Handler(),
	)

	log.Printf("Starting server on %s", cfg.ServerAddr)
	if err := http.ListenAndServe(cfg.ServerAddr, router); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// notifierOrNil avoids storing a typed nil in the engine's interface field
func notifierOrNil(n *notify.WebhookNotifier) wishlist.Notifier {
	if n == nil {
		return nil
	}
	return n
}
