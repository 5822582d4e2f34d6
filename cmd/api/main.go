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

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bryanwahyu/transcript-auditor/internal/application"
	apptypes "github.com/bryanwahyu/transcript-auditor/internal/application/analysistypes"
	appaudits "github.com/bryanwahyu/transcript-auditor/internal/application/audits"
	appreports "github.com/bryanwahyu/transcript-auditor/internal/application/reports"
	appusers "github.com/bryanwahyu/transcript-auditor/internal/application/users"
	"github.com/bryanwahyu/transcript-auditor/internal/config"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/ai"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/audits"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/questions"
	"github.com/bryanwahyu/transcript-auditor/internal/domain/users"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/ai/gemini"
	openaiclient "github.com/bryanwahyu/transcript-auditor/internal/infra/ai/openai"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/ai/relay"
	mysqlp "github.com/bryanwahyu/transcript-auditor/internal/infra/db/mysql"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/db/postgres"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/db/sqlite"
	"github.com/bryanwahyu/transcript-auditor/internal/infra/httpserver"
	minioStore "github.com/bryanwahyu/transcript-auditor/internal/infra/storage"
	"github.com/bryanwahyu/transcript-auditor/internal/middleware"
)

// stores groups the repositories of one database backend
type stores struct {
	db     *sql.DB
	types  questions.Repository
	audits audits.Repository
	users  users.Repository
}

func main() {
	// path config.yaml
	path := config.DefaultPath
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.EncoderConfig.TimeKey = "time"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.db.Close()
	logger.Info("database connected", zap.String("driver", cfg.Database.Driver))

	model, closeModel, err := newModel(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeModel()
	logger.Info("model provider ready", zap.String("provider", cfg.AI.Provider), zap.String("model", cfg.AI.Model))

	checks := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: st.db},
	}

	clock := application.SystemClock{}
	reportsSvc := &appreports.Service{Audits: st.audits, Clock: clock, LinkExpiry: cfg.Minio.LinkExpiry}

	// init minio, optional: without it only direct CSV downloads work
	if cfg.Minio.Endpoint != "" {
		store, err := minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			return fmt.Errorf("minio init: %w", err)
		}
		reportsSvc.Exports = store
		checks["storage"] = middleware.CheckFunc(store.Ping)
		logger.Info("export storage ready", zap.String("bucket", cfg.Minio.BucketName))
	} else {
		logger.Warn("minio endpoint not set, export publishing disabled")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
	defer limiter.Stop()

	for owner := range cfg.Auth.APIKeys {
		if err := middleware.ValidateOwnerID(owner); err != nil {
			return fmt.Errorf("auth.apiKeys[%q]: %w", owner, err)
		}
	}

	handler := httpserver.NewRouter(httpserver.Deps{
		Audits:      &appaudits.Service{Types: st.types, Repo: st.audits, Model: model, Clock: clock},
		Types:       &apptypes.Service{Repo: st.types, Clock: clock},
		Reports:     reportsSvc,
		Users:       &appusers.Service{Repo: st.users, Clock: clock},
		Logger:      logger,
		APIKeys:     cfg.Auth.APIKeys,
		Admins:      cfg.Auth.Admins,
		CORSOrigins: cfg.Server.CORSOrigins,
		Limiter:     limiter,
		Health:      checks,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.AI.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// run server
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down server", zap.String("signal", sig.String()))
	}

	ctx2, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		return &stores{
			db:     db,
			types:  mysqlp.NewAnalysisTypeRepository(db),
			audits: mysqlp.NewAuditRepository(db),
			users:  mysqlp.NewUserRepository(db),
		}, nil
	case "postgres":
		db, err := postgres.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		return &stores{
			db:     db,
			types:  postgres.NewAnalysisTypeRepository(db),
			audits: postgres.NewAuditRepository(db),
			users:  postgres.NewUserRepository(db),
		}, nil
	default:
		// sqlite speaks the same SQL as the mysql repositories
		db, err := sqlite.Open(ctx, cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("sqlite open: %w", err)
		}
		return &stores{
			db:     db,
			types:  mysqlp.NewAnalysisTypeRepository(db),
			audits: mysqlp.NewAuditRepository(db),
			users:  mysqlp.NewUserRepository(db),
		}, nil
	}
}

func newModel(ctx context.Context, cfg *config.Config) (ai.Client, func(), error) {
	noop := func() {}
	switch cfg.AI.Provider {
	case "gemini":
		c, err := gemini.NewClient(ctx, cfg.AI.APIKey, cfg.AI.Model)
		if err != nil {
			return nil, noop, err
		}
		return ai.WithTimeout(c, cfg.AI.Timeout), func() { _ = c.Close() }, nil
	case "relay":
		return relay.NewClient(cfg.AI.RelayURL, cfg.AI.Timeout), noop, nil
	default:
		c := openaiclient.NewClient(cfg.AI.APIKey, cfg.AI.BaseURL, cfg.AI.Model)
		c.JSONMode = cfg.AI.JSONMode
		return ai.WithTimeout(c, cfg.AI.Timeout), noop, nil
	}
}
