// Command server is the SignalStudio API server: it wires the identity
// store, file store, lazy recording sessions, task pipeline, sandbox, and
// metrics collector behind the HTTP surface and runs until interrupted.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fieldtrace/signalstudio/internal/artifacts"
	"github.com/fieldtrace/signalstudio/internal/auth"
	"github.com/fieldtrace/signalstudio/internal/cache"
	"github.com/fieldtrace/signalstudio/internal/config"
	"github.com/fieldtrace/signalstudio/internal/dbx"
	"github.com/fieldtrace/signalstudio/internal/decoder"
	"github.com/fieldtrace/signalstudio/internal/httpapi"
	"github.com/fieldtrace/signalstudio/internal/logger"
	"github.com/fieldtrace/signalstudio/internal/metrics"
	"github.com/fieldtrace/signalstudio/internal/middleware"
	"github.com/fieldtrace/signalstudio/internal/ratelimit"
	"github.com/fieldtrace/signalstudio/internal/recording"
	"github.com/fieldtrace/signalstudio/internal/sandbox"
	"github.com/fieldtrace/signalstudio/internal/storage"
	"github.com/fieldtrace/signalstudio/internal/tasks"
	"github.com/fieldtrace/signalstudio/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Initialize("info", false)
		logger.GetLogger().Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Initialize(cfg.LogLevel, cfg.LogPretty)
	log := logger.GetLogger()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o750); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}

	dbx.SetDefaultQuotaBytes(cfg.DefaultQuotaBytes)
	database, err := dbx.NewDatabase(dbx.Config{Path: cfg.DBPath})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}
	defer database.Close()
	if err := database.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	userDB := dbx.NewUserDB(database.DB())
	sessionDB := dbx.NewSessionDB(database.DB())
	fileDB := dbx.NewFileDB(database.DB())
	auditDB := dbx.NewAuditDB(database.DB())

	authMgr := auth.NewManager(userDB, sessionDB,
		time.Duration(cfg.AuthTokenExpiryHrs)*time.Hour, 0, cfg.AuthMaxSessions)

	limiter := ratelimit.New(cfg.RateLimitWindow, cfg.RateLimitMax, cfg.RateLimitLockout)

	store := storage.New(fileDB, storage.Config{
		Root:                cfg.StorageRoot,
		DefaultQuotaBytes:   cfg.DefaultQuotaBytes,
		MaxFilesPerUser:     cfg.MaxFilesPerUser,
		MaxFilesPerCategory: cfg.MaxFilesPerCat,
	})
	if n, err := store.RegisterDefaults(context.Background()); err != nil {
		log.Warn().Err(err).Msg("default asset registration failed")
	} else if n > 0 {
		log.Info().Int("registered", n).Msg("default assets registered")
	}
	if n, err := store.ReconcileAll(context.Background()); err != nil {
		log.Warn().Err(err).Msg("startup orphan reconcile failed")
	} else if n > 0 {
		log.Info().Int("removed", n).Msg("orphaned file rows removed")
	}

	opener := decoder.Default()
	concat := decoder.DefaultConcatenator()
	if opener == nil {
		log.Warn().Msg("no recording decoder registered; using in-memory fake (development only)")
		fake := decoder.NewFakeOpener()
		opener = fake
		if concat == nil {
			concat = &decoder.FakeConcatenator{Opener: fake}
		}
	}
	if concat == nil {
		log.Fatal().Msg("decoder binding registered no concatenator")
	}

	sessions := recording.NewManager(opener, cfg.SessionIdleTimeout, cfg.SessionMaxCount, cfg.SignalDenyPatterns)
	viewEngine := view.New(sessions)

	workDir := filepath.Join(cfg.StorageRoot, "work")
	if err := os.MkdirAll(workDir, 0o750); err != nil {
		log.Fatal().Err(err).Msg("failed to create work directory")
	}

	pipeline := tasks.New(opener, concat, tasks.Config{
		WorkerCap:      cfg.TaskWorkerCap,
		WorkDir:        workDir,
		CleanupConvert: cfg.TaskCleanupConvert,
		CleanupConcat:  cfg.TaskCleanupConcat,
	})
	if err := pipeline.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start task pipeline")
	}
	defer pipeline.Stop()

	collector, err := metrics.New(metrics.Config{
		Salt:               cfg.MetricsIPSalt,
		StoragePath:        filepath.Join(filepath.Dir(cfg.DBPath), "daily_stats.json"),
		RetentionDays:      cfg.MetricsRetentionDays,
		SessionIdleTimeout: 30 * time.Minute,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize metrics collector")
	}
	if err := collector.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start metrics collector")
	}
	defer collector.Stop()

	redisCache, err := cache.NewCache(cache.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Enabled:  cfg.RedisEnabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("redis cache unavailable, continuing without caching")
		redisCache, _ = cache.NewCache(cache.Config{Enabled: false})
	}
	defer redisCache.Close()

	// Idle recording sessions are closed on a fixed cadence; the manager
	// itself only evicts when a session is created.
	evictCtx, cancelEvict := context.WithCancel(context.Background())
	defer cancelEvict()
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-evictCtx.Done():
				return
			case <-ticker.C:
				sessions.Evict()
			}
		}
	}()

	deps := &httpapi.Deps{
		Auth:      authMgr,
		Limiter:   limiter,
		Store:     store,
		Sessions:  sessions,
		View:      viewEngine,
		Pipeline:  pipeline,
		Artifacts: artifacts.New(store),
		Metrics:   collector,
		Cache:     redisCache,
		Audit:     auditDB,
		IPLimiter: middleware.NewRateLimiter(20, 40),
		Sandbox: sandbox.Limits{
			Timeout:  cfg.SandboxTimeout,
			MaxRSSMB: cfg.SandboxMemoryMiB,
		},
		CORSOrigins:          cfg.CORSOrigins,
		ViewCacheTTL:         cfg.ViewCacheTTL,
		MetricsRetentionDays: cfg.MetricsRetentionDays,
		Production:           cfg.Production,
		WorkDir:              workDir,
	}

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(deps),

		ReadTimeout:       10 * time.Minute, // multi-GiB recording uploads
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Bool("production", cfg.Production).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
	}
}
