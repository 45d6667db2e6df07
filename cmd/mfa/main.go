package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-mfa/internal/app"
	"github.com/odyssey-erp/odyssey-mfa/internal/audit"
	audithttp "github.com/odyssey-erp/odyssey-mfa/internal/audit/http"
	"github.com/odyssey-erp/odyssey-mfa/internal/auth"
	"github.com/odyssey-erp/odyssey-mfa/internal/biometric/azure"
	"github.com/odyssey-erp/odyssey-mfa/internal/credentials"
	"github.com/odyssey-erp/odyssey-mfa/internal/enrollment"
	"github.com/odyssey-erp/odyssey-mfa/internal/observability"
	"github.com/odyssey-erp/odyssey-mfa/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-mfa/internal/platform/db"
	"github.com/odyssey-erp/odyssey-mfa/internal/session"
	"github.com/odyssey-erp/odyssey-mfa/internal/shared"
	"github.com/odyssey-erp/odyssey-mfa/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	if err := run(ctx, stop, cfg, logger); err != nil {
		logger.Error("mfa server", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	var pool *pgxpool.Pool
	if cfg.NeedsPostgres() {
		var err error
		pool, err = db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.PGMigrate {
			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
		}
	}

	var redisClient *redis.Client
	if cfg.NeedsRedis() {
		var err error
		redisClient, err = cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()

	var repo credentials.Repository
	switch cfg.StoreBackend {
	case app.BackendPostgres:
		repo = credentials.NewPGRepository(pool)
	case app.BackendRedis:
		repo = credentials.NewRedisRepository(redisClient)
	default:
		repo = credentials.NewMemoryRepository()
	}

	var locker shared.Locker = shared.NewKeyedMutex()
	if cfg.LockBackend == app.LockRedis {
		locker = shared.NewRedisLocker(redisClient, cfg.LockTTL)
	}

	store := credentials.NewStore(repo, locker, credentials.NewBcryptHasher(cfg.BcryptCost))

	issuer, err := session.NewIssuer(session.Config{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.JWTIssuer,
		TTL:    cfg.SessionTTL,
	})
	if err != nil {
		return err
	}

	face := azure.NewFaceClient(azure.FaceConfig{
		Endpoint:      cfg.AzureFaceEndpoint,
		Key:           cfg.AzureFaceKey,
		PersonGroupID: cfg.PersonGroupID,
		Timeout:       cfg.ProviderTimeout,
		PollInterval:  cfg.TrainPollInterval,
		Observer:      metrics,
	})
	voice := azure.NewSpeakerClient(azure.SpeakerConfig{
		Endpoint: cfg.AzureSpeechEndpoint,
		Region:   cfg.AzureSpeechRegion,
		Key:      cfg.AzureSpeechKey,
		Locale:   cfg.SpeakerLocale,
		Timeout:  cfg.ProviderTimeout,
		Observer: metrics,
	})
	if cfg.AzureFaceKey == "" || cfg.AzureFaceEndpoint == "" {
		logger.Warn("face provider not configured; face enrollment will fail and face login signals are zero")
	}
	if cfg.AzureSpeechKey == "" || (cfg.AzureSpeechEndpoint == "" && cfg.AzureSpeechRegion == "") {
		logger.Warn("speaker provider not configured; voice enrollment will fail and voice login signals are false")
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	if redisClient != nil {
		opts := redisClient.Options()
		redisOpts = asynq.RedisClientOpt{Addr: opts.Addr, Username: opts.Username, Password: opts.Password, DB: opts.DB}
	}

	var recorder audit.Recorder
	switch cfg.AuditSink {
	case app.AuditPostgres:
		recorder = audit.NewPGStore(pool)
	case app.AuditQueue:
		client, err := jobs.NewClient(redisOpts)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", slog.Any("error", err))
			}
		}()
		recorder = client
	default:
		recorder = audit.NewLogRecorder(logger)
	}

	engine := auth.NewEngine(auth.EngineParams{
		Credentials: store,
		Face:        face,
		Voice:       voice,
		Issuer:      issuer,
		Policy:      auth.Policy{FaceThreshold: cfg.FaceThreshold},
		Logger:      logger,
		Observer:    metrics,
		Audit:       recorder,
	})
	coordinator := enrollment.NewCoordinator(enrollment.Params{
		Users:    store,
		Face:     face,
		Voice:    voice,
		Logger:   logger,
		Observer: metrics,
		Audit:    recorder,
	})

	params := app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthHandler:       auth.NewHandler(logger, store, engine, recorder, cfg.MaxUploadBytes),
		EnrollmentHandler: enrollment.NewHandler(logger, coordinator, cfg.MaxUploadBytes),
		Metrics:           metrics,
	}
	if pool != nil {
		params.AuditHandler = audithttp.NewHandler(logger, audit.NewService(audit.NewPGStore(pool)), issuer)
	}
	if cfg.AuditSink == app.AuditQueue {
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		params.JobHandler = jobs.NewHandler(inspector, logger)
	}

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           app.NewRouter(params),
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server",
			slog.String("addr", cfg.AppAddr),
			slog.String("store", cfg.StoreBackend),
			slog.String("lock", cfg.LockBackend),
			slog.String("audit", cfg.AuditSink),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
