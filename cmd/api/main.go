package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"outreach-platform/internal/audit"
	"outreach-platform/internal/auth"
	"outreach-platform/internal/circuit"
	"outreach-platform/internal/config"
	"outreach-platform/internal/engagement"
	"outreach-platform/internal/httpapi"
	"outreach-platform/internal/maintenance"
	"outreach-platform/internal/policy"
	"outreach-platform/internal/reporting"
	"outreach-platform/pkg/logger"
	"outreach-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Engagement state: Postgres behind a best-effort Redis cache.
	stateRepo := engagement.NewPostgresRepository(db)
	stateCache := engagement.NewRedisCache(rdb, cfg.Policy.CacheTTL, log)
	states := engagement.NewStore(stateRepo, stateCache, log)

	// Sending-identity circuits. Process-local: a restart closes every
	// circuit, and each instance tracks its own.
	circuits := circuit.NewRegistry(circuit.Options{
		FailureThreshold: cfg.Policy.FailureThreshold,
		ResetTimeout:     cfg.Policy.ResetTimeout,
	})

	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	jobLock := utils.NewRedisJobLock(rdb, uuid.NewString())
	runner := maintenance.NewRunner(states, jobLock, auditSvc, log, maintenance.Config{
		BatchSize:        cfg.Policy.MaintenanceBatchSize,
		DecayHalfLife:    cfg.Policy.DecayHalfLife,
		DecayPeriod:      cfg.Policy.DecayPeriod,
		InactivityWindow: cfg.Policy.InactivityWindow,
	})

	facade := policy.NewFacade(circuits, states, policy.Gaps{
		Hot:  cfg.Policy.ContactGapHot,
		Warm: cfg.Policy.ContactGapWarm,
		Cold: cfg.Policy.ContactGapCold,
	}, log)

	reports := reporting.NewService(reporting.NewPostgresRepo(db), circuits)

	h := httpapi.Handlers{
		Auth:        authManager,
		Policy:      facade,
		Circuits:    circuits,
		Engagement:  states,
		Maintenance: runner,
		Reports:     reports,
		Audit:       auditSvc,
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, h, auth.RequireAccessToken(authManager), db)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
