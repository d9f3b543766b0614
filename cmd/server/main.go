package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"custodian/internal/artifacts"
	"custodian/internal/audit"
	audithandler "custodian/internal/audit/handler"
	"custodian/internal/category/registry"
	consenthandler "custodian/internal/consent/handler"
	consentmetrics "custodian/internal/consent/metrics"
	consentservice "custodian/internal/consent/service"
	consentstore "custodian/internal/consent/store"
	deletionhandler "custodian/internal/deletion/handler"
	deletionmetrics "custodian/internal/deletion/metrics"
	deletionservice "custodian/internal/deletion/service"
	deletionstore "custodian/internal/deletion/store"
	exporthandler "custodian/internal/export/handler"
	exportmetrics "custodian/internal/export/metrics"
	exportservice "custodian/internal/export/service"
	exportstore "custodian/internal/export/store"
	"custodian/internal/platform/config"
	"custodian/internal/platform/health"
	"custodian/internal/platform/httpserver"
	"custodian/internal/platform/logger"
	"custodian/internal/records"
	recordshandler "custodian/internal/records/handler"
	retentionhandler "custodian/internal/retention/handler"
	retentionmetrics "custodian/internal/retention/metrics"
	retentionservice "custodian/internal/retention/service"
	retentionstore "custodian/internal/retention/store"
	"custodian/internal/scheduler"
	httptransport "custodian/internal/transport/http"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing custodian",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthHandler := health.New(cfg.Environment)

	// Record store: durable SQLite when a path is configured, in-memory otherwise.
	var recordStore records.Store
	if cfg.SQLitePath != "" {
		sqliteStore, err := records.NewSQLite(cfg.SQLitePath)
		if err != nil {
			log.Error("failed to open record store", "error", err, "path", cfg.SQLitePath)
			os.Exit(1)
		}
		defer sqliteStore.Close()
		healthHandler.RegisterCheck("record_store", sqliteStore.Ping)
		recordStore = sqliteStore
	} else {
		recordStore = records.NewInMemory()
	}

	var artifactStore artifacts.Store
	if cfg.ArtifactDir != "" {
		fsStore, err := artifacts.NewFilesystem(cfg.ArtifactDir)
		if err != nil {
			log.Error("failed to open artifact store", "error", err, "dir", cfg.ArtifactDir)
			os.Exit(1)
		}
		artifactStore = fsStore
	} else {
		artifactStore = artifacts.NewInMemory()
	}

	auditor := audit.NewPublisher(audit.NewInMemoryStore(),
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
	)

	reg := registry.NewDefault(recordStore, cfg.AnonymizeFields)

	retentionSvc := retentionservice.NewService(retentionstore.New(), reg, log,
		retentionservice.WithMetrics(retentionmetrics.New()),
		retentionservice.WithAuditor(auditor),
	)
	exportSvc := exportservice.NewService(exportstore.New(), artifactStore, reg, log,
		exportservice.WithMetrics(exportmetrics.New()),
		exportservice.WithAuditor(auditor),
		exportservice.WithExportTTL(cfg.ExportTTL),
		exportservice.WithStaleness(cfg.ExportStaleness),
	)
	deletionSvc := deletionservice.NewService(deletionstore.New(), reg, log,
		deletionservice.WithMetrics(deletionmetrics.New()),
		deletionservice.WithAuditor(auditor),
	)
	consentSvc := consentservice.New(consentstore.New(), log,
		consentservice.WithMetrics(consentmetrics.New()),
		consentservice.WithAuditor(auditor),
	)

	// Workers block until ctx is cancelled; they only ever return ctx.Err().
	// The WaitGroup lets shutdown join them before the auditor closes, so an
	// in-flight execution never emits into a closed publisher.
	var workers sync.WaitGroup
	workers.Add(2)
	go func() {
		defer workers.Done()
		if err := exportSvc.StartWorker(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("export worker stopped", "error", err)
		}
	}()
	go func() {
		defer workers.Done()
		if err := deletionSvc.StartWorker(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("deletion worker stopped", "error", err)
		}
	}()

	sched := scheduler.New(log)
	jobs := []scheduler.Job{
		{Name: "retention-execution", Schedule: cfg.RetentionSchedule, Run: func(ctx context.Context) error {
			_, err := retentionSvc.ExecuteDuePolicies(ctx, time.Now().UTC())
			return err
		}},
		{Name: "export-cleanup", Schedule: cfg.ExportCleanupSchedule, Run: func(ctx context.Context) error {
			_, err := exportSvc.CleanupExpired(ctx, time.Now().UTC())
			return err
		}},
		{Name: "export-requeue", Schedule: cfg.ExportRequeueSchedule, Run: func(ctx context.Context) error {
			_, err := exportSvc.RequeueStalePending(ctx, time.Now().UTC())
			return err
		}},
		{Name: "deletion-dispatch", Schedule: cfg.DeletionSweepSchedule, Run: func(ctx context.Context) error {
			_, err := deletionSvc.ProcessDue(ctx, time.Now().UTC())
			return err
		}},
		{Name: "consent-expiry", Schedule: cfg.ConsentExpirySchedule, Run: func(ctx context.Context) error {
			_, err := consentSvc.CleanupExpired(ctx, time.Now().UTC())
			return err
		}},
	}
	for _, job := range jobs {
		if err := sched.Register(ctx, job); err != nil {
			log.Error("failed to register job", "job", job.Name, "error", err)
			os.Exit(1)
		}
	}
	sched.Start(ctx)

	router := httptransport.NewRouter(log,
		healthHandler,
		retentionhandler.New(retentionSvc, log),
		exporthandler.New(exportSvc, log),
		deletionhandler.New(deletionSvc, log),
		consenthandler.New(consentSvc, log),
		audithandler.New(auditor, log),
		recordshandler.New(recordStore, log),
	)

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting http server", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	log.Info("shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	sched.Stop()

	// In-flight executions finish before the audit stream closes.
	stop()
	workers.Wait()
	auditor.Close()

	log.Info("server stopped")
}
