package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/automaton-audit/internal/application"
	appaudits "github.com/bryanwahyu/automaton-audit/internal/application/audits"
	appinsights "github.com/bryanwahyu/automaton-audit/internal/application/insights"
	apprules "github.com/bryanwahyu/automaton-audit/internal/application/rules"
	"github.com/bryanwahyu/automaton-audit/internal/config"
	"github.com/bryanwahyu/automaton-audit/internal/domain/ai"
	"github.com/bryanwahyu/automaton-audit/internal/domain/audits"
	"github.com/bryanwahyu/automaton-audit/internal/domain/evaluation"
	"github.com/bryanwahyu/automaton-audit/internal/domain/findings"
	"github.com/bryanwahyu/automaton-audit/internal/domain/insights"
	"github.com/bryanwahyu/automaton-audit/internal/domain/rules"
	mysqlp "github.com/bryanwahyu/automaton-audit/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/automaton-audit/internal/infra/db/postgres"
	openaic "github.com/bryanwahyu/automaton-audit/internal/infra/ai/openai"
	"github.com/bryanwahyu/automaton-audit/internal/infra/ai/prompt"
	"github.com/bryanwahyu/automaton-audit/internal/infra/httpserver"
	"github.com/bryanwahyu/automaton-audit/internal/infra/queue"
	"github.com/bryanwahyu/automaton-audit/internal/infra/storage"
	"github.com/bryanwahyu/automaton-audit/internal/infra/tabular"
	"github.com/bryanwahyu/automaton-audit/internal/middleware"
)

type repositories struct {
	audits   audits.Repository
	rules    rules.Repository
	findings findings.Repository
	insights insights.Repository
}

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := config.InitLogger(cfg.Log.Format, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// connect database
	db, repos, err := openDatabase(ctx, cfg)
	if err != nil {
		fatal(logger, "database init error", err)
	}
	defer db.Close()

	// init upload store
	uploads, err := openUploads(ctx, cfg)
	if err != nil {
		fatal(logger, "storage init error", err)
	}

	clock := application.SystemClock{}
	auditSvc := &appaudits.Service{
		Audits:   repos.audits,
		Rules:    repos.rules,
		Findings: repos.findings,
		Uploads:  uploads,
		Parser:   tabular.Parser{MaxRows: 100_000},
		Engine:   &evaluation.Engine{CostField: cfg.Processing.CostField, Now: clock.Now},
		Clock:    clock,
		Log:      logger,
		Recorder: middleware.AuditRecorder{},
		Limits: appaudits.UploadLimits{
			MaxBytes:          cfg.Upload.MaxBytes,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
		},
		StaleAfter: cfg.Processing.StaleAfter,
	}

	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
	}
	gauges := map[string]middleware.Gauge{}

	// queue (optional)
	if cfg.Redis.URL != "" {
		q, err := queue.NewRedis(ctx, queue.Options{URL: cfg.Redis.URL, Queue: cfg.Redis.Queue})
		if err != nil {
			fatal(logger, "redis init error", err)
		}
		defer q.Close()

		auditSvc.Queue = q
		health["redis"] = middleware.Optional(middleware.CheckFunc(q.Ping))
		gauges["queue_depth"] = q.Len

		worker := &appaudits.Worker{Service: auditSvc, Queue: q, Log: logger}
		go func() {
			if err := worker.Run(ctx); err != nil {
				logger.Error("worker stopped", "error", err)
			}
		}()
	} else {
		logger.Warn("redis.url not set, audits are processed in-process")
	}

	go appaudits.RunReaper(ctx, auditSvc, time.Minute)

	// insights
	var client ai.Client = prompt.Offline{}
	if cfg.OpenAI.APIKey != "" {
		client = openaic.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)
	}
	insightSvc := appinsights.NewService(client, repos.audits, repos.findings, repos.insights, clock)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.RefillPerSecond)
	go sweepLimiter(ctx, limiter)

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(httpserver.Deps{
		Audits:         auditSvc,
		Rules:          &apprules.Service{Repo: repos.rules, Clock: clock},
		Insights:       insightSvc,
		APIKeys:        cfg.Auth.APIKeys,
		Limiter:        limiter,
		Health:         health,
		Gauges:         gauges,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		Logger:         logger,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// run server
	go func() {
		logger.Info("server listening", "addr", addr, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(logger, "server error", err)
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, repositories, error) {
	switch cfg.Database.Driver {
	case "postgres":
		db, err := pgp.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, repositories{}, err
		}
		if err := pgp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			audits:   pgp.NewAuditRepository(db),
			rules:    pgp.NewRuleRepository(db),
			findings: pgp.NewFindingRepository(db),
			insights: pgp.NewInsightRepository(db),
		}, nil
	default:
		db, err := mysqlp.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, repositories{}, err
		}
		if err := mysqlp.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, repositories{}, err
		}
		return db, repositories{
			audits:   mysqlp.NewAuditRepository(db),
			rules:    mysqlp.NewRuleRepository(db),
			findings: mysqlp.NewFindingRepository(db),
			insights: mysqlp.NewInsightRepository(db),
		}, nil
	}
}

func openUploads(ctx context.Context, cfg *config.Config) (audits.UploadStore, error) {
	if cfg.Minio.Endpoint == "" {
		return storage.NewLocal(cfg.Upload.Dir)
	}
	return storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
}

func sweepLimiter(ctx context.Context, l *middleware.RateLimiter) {
	t := time.NewTicker(5 * time.Minute)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			l.Sweep(10 * time.Minute)
		}
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
