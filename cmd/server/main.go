package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/eagleeye/backend/internal/api"
	"github.com/eagleeye/backend/internal/auth"
	"github.com/eagleeye/backend/internal/cache"
	"github.com/eagleeye/backend/internal/config"
	"github.com/eagleeye/backend/internal/db"
	"github.com/eagleeye/backend/internal/download"
	apperrors "github.com/eagleeye/backend/internal/errors"
	"github.com/eagleeye/backend/internal/health"
	"github.com/eagleeye/backend/internal/logger"
	"github.com/eagleeye/backend/internal/metrics"
	"github.com/eagleeye/backend/internal/middleware"
	"github.com/eagleeye/backend/internal/notify"
	"github.com/eagleeye/backend/internal/resolver"
	"github.com/eagleeye/backend/internal/storage"
	"github.com/eagleeye/backend/internal/stream"
	"github.com/eagleeye/backend/internal/token"
	"github.com/eagleeye/backend/internal/validators"
)

const version = "1.0.0"

func main() {
	cfg := config.Load()

	log := logger.New(&logger.Config{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})
	logger.SetDefault(log)
	ctx := context.Background()

	database, err := db.New(cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName)
	if err != nil {
		log.Error(ctx, "failed to connect to database", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Error(ctx, "failed to run migrations", err)
		os.Exit(1)
	}

	userRepo := db.NewUserRepository(database)
	tokenRepo := db.NewTokenRepository(database)
	authService := auth.NewService(userRepo, tokenRepo, cfg.JWTSecret)
	authHandlers := auth.NewHandlers(authService)

	var redisCache *cache.Cache
	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisCache, err = cache.New(cfg.RedisAddr)
		if err != nil {
			log.Error(ctx, "failed to connect to redis", err)
			os.Exit(1)
		}
		defer redisCache.Close()
		redisClient = redisCache.Client()
	}

	var tokens token.Cache
	if cfg.TokenRedisStore && redisClient != nil {
		tokens = token.NewRedisCache(&token.RedisCacheConfig{
			Client:    redisClient,
			TTL:       cfg.TokenTTL,
			SingleUse: cfg.TokenSingleUse,
		})
	} else {
		tokens = token.NewMemoryCache(&token.MemoryCacheConfig{
			TTL:       cfg.TokenTTL,
			SingleUse: cfg.TokenSingleUse,
		})
	}

	mediaResolver, err := resolver.NewYTDLP(&resolver.YTDLPConfig{Path: cfg.YtdlpPath})
	if err != nil {
		log.Error(ctx, "failed to initialize media resolver", err, map[string]interface{}{
			"path": cfg.YtdlpPath,
		})
		os.Exit(1)
	}

	hub := notify.NewHub()
	go hub.Run()
	defer hub.Stop()

	var notifier notify.Notifier = hub
	if redisClient != nil {
		redisNotifier := notify.NewRedisNotifier(redisClient, hub)
		go func() {
			if err := redisNotifier.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error(ctx, "redis event subscriber stopped", err)
			}
		}()
		notifier = redisNotifier
	}

	var archiveStream *storage.Client
	var archive *storage.Archive
	var archiver download.Archiver
	if cfg.ArchiveEnabled {
		archiveStream, err = storage.New(&storage.Config{
			Endpoint:  cfg.ArchiveEndpoint,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
			UseSSL:    cfg.ArchiveUseSSL,
		})
		if err != nil {
			log.Error(ctx, "failed to initialize archive storage", err)
			os.Exit(1)
		}
		if err := archiveStream.EnsureBucket(ctx); err != nil {
			log.Error(ctx, "failed to ensure archive bucket", err)
			os.Exit(1)
		}

		archive, err = storage.NewArchive(&storage.ArchiveConfig{
			Endpoint:  cfg.ArchiveEndpoint,
			Region:    cfg.ArchiveRegion,
			AccessKey: cfg.ArchiveAccessKey,
			SecretKey: cfg.ArchiveSecretKey,
			Bucket:    cfg.ArchiveBucket,
		})
		if err != nil {
			log.Error(ctx, "failed to initialize archive uploader", err)
			os.Exit(1)
		}
		archiver = archive
	}

	store := db.NewDownloadRepository(database)
	orchestrator := download.NewOrchestrator(&download.Config{
		Store:       store,
		Resolver:    mediaResolver,
		Notifier:    notifier,
		Archiver:    archiver,
		DownloadDir: cfg.DownloadDir,
		Logger:      log.WithComponent("download"),
	})
	orchestrator.Start()

	checkerCfg := &health.CheckerConfig{
		DB:      database.DB,
		Redis:   redisClient,
		Version: version,
		ResolverCheck: func(ctx context.Context) error {
			return mediaResolver.Check(ctx)
		},
	}
	if archiveStream != nil {
		checkerCfg.StorageCheck = archiveStream.Ping
	}
	healthHandler := health.NewHandler(health.NewChecker(checkerCfg))

	var formatsCache *cache.Cache
	if redisCache != nil {
		formatsCache = redisCache
	}

	registry := validators.DefaultRegistry()
	mediaHandlers := api.NewMediaHandlers(&api.MediaConfig{
		Orchestrator: orchestrator,
		Store:        store,
		Resolver:     mediaResolver,
		Tokens:       tokens,
		Sources:      registry,
		Formats:      formatsCache,
		Archive:      archiveAdapter(archive),
		TokenTTL:     cfg.TokenTTL,
		Logger:       log.WithComponent("api"),
	})

	router := api.NewRouter(&api.RouterConfig{
		AuthService:   authService,
		AuthHandlers:  authHandlers,
		Media:         mediaHandlers,
		StreamProxy:   stream.NewProxy(tokens, mediaResolver, log.WithComponent("stream")),
		FileHandler:   stream.NewFileHandler(store, archiveStream, log.WithComponent("stream")),
		Validators:    validators.NewHandlers(registry),
		Notify:        notify.NewHandler(hub, authService),
		HealthHandler: healthHandler,
		Metrics:       metrics.Default(),
	})

	handler := middleware.Chain(router,
		apperrors.RequestIDMiddleware,
		middleware.Logging(log),
		middleware.Recoverer(log),
		middleware.CORS(cfg.CORSOrigins),
		metrics.MetricsMiddleware(metrics.Default()),
		middleware.Gzip,
		middleware.ETag,
		middleware.Timing,
	)

	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: handler,
	}

	go func() {
		log.Info(ctx, "server listening", map[string]interface{}{
			"addr": cfg.ServerAddr,
		})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info(ctx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", err)
	}
	if err := orchestrator.Stop(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "orchestrator shutdown failed", err)
	}
	log.Info(ctx, "shutdown complete")
}

// archiveAdapter keeps the api package's deleter interface satisfied by a
// possibly-nil archive without passing a typed nil through.
func archiveAdapter(a *storage.Archive) api.ArchiveDeleter {
	if a == nil {
		return nil
	}
	return a
}
