package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"schoolhub/internal/cache"
	"schoolhub/internal/config"
	"schoolhub/internal/db"
	internalhttp "schoolhub/internal/http"
	"schoolhub/internal/jobs"
	"schoolhub/internal/logger"
	"schoolhub/internal/mailer"
	"schoolhub/internal/metrics"
	"schoolhub/internal/operations"
	"schoolhub/internal/ratelimit"
	"schoolhub/internal/storage"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	log := logger.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("db connection failed")
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, log.WithField("component", "migrate")); err != nil {
			log.WithError(err).Fatal("migrations failed")
		}
	}
	store := db.NewStore(pool)

	created, err := operations.EnsureSuperAdmin(ctx, store.Queries, cfg.SuperAdminEmail, cfg.SuperAdminPassword, time.Now().UTC())
	if err != nil {
		log.WithError(err).Fatal("super admin bootstrap failed")
	}
	if created {
		log.WithField("email", cfg.SuperAdminEmail).Info("super admin created")
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.WithError(err).Fatal("redis ping failed")
		}
		cancel()
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.WithError(err).Warn("redis close error")
			}
		}()
	}

	uploads, err := storage.NewS3(ctx, storage.Configuration{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.S3AccessKeyID,
		SecretAccessKey: cfg.S3SecretAccessKey,
		KeyPrefix:       cfg.S3KeyPrefix,
		URLTTL:          cfg.UploadURLTTL,
	})
	if err != nil {
		log.WithError(err).Fatal("storage init failed")
	}

	deps := internalhttp.Dependencies{
		Cache:   cache.New(redisClient),
		Limiter: ratelimit.New(redisClient, cfg.RateLimitWindow),
		Metrics: metrics.New(),
		Mailer:  mailer.LogMailer{},
	}
	if uploads != nil {
		deps.Storage = uploads
	}
	server := internalhttp.NewServer(cfg, store, deps)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	jobs.StartCleanupJob(ctx, cfg, store.Queries)

	go func() {
		log.Infof("schoolhub listening on %s", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
}
