package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jainayushgit/store-provisioner/cluster"
	"github.com/Jainayushgit/store-provisioner/config"
	"github.com/Jainayushgit/store-provisioner/db"
	"github.com/Jainayushgit/store-provisioner/errors"
	"github.com/Jainayushgit/store-provisioner/logger"
	"github.com/Jainayushgit/store-provisioner/provisioning"
	"github.com/Jainayushgit/store-provisioner/server"
)

// ServeCmd starts the admission API and the job engine in one process.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the admission API and job engine",
	Long:  `Load configuration, open the Postgres pool, run migrations, and start both the HTTP admission API and the async job engine until interrupted.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.OpenWithMigrations(ctx, cfg.Database.URL, logger.Logger)
	if err != nil {
		return errors.Wrap(err, "open database")
	}
	defer pool.Close()

	repo := provisioning.NewRepo(pool)
	limiter := provisioning.NewRateLimiter(pool,
		time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		cfg.RateLimit.CreateDeletePerWindow,
	)
	admission := provisioning.NewAdmission(repo, limiter, provisioning.AdmissionConfig{
		MaxActiveStores: cfg.Worker.MaxActiveStores,
		MaxAttempts:     cfg.Worker.MaxAttempts,
	})

	handlers := provisioning.NewHandlers(
		repo,
		cluster.NewHelm(cfg.Helm.Binary),
		cluster.NewKubectl(cfg.Kubectl.Binary),
		cluster.NewHTTPReadiness(),
		provisioning.HandlerConfig{
			ChartPath:                   cfg.Helm.ChartPath,
			HelmTimeoutSeconds:          cfg.Helm.TimeoutSeconds,
			KubectlDeleteTimeoutSeconds: cfg.Kubectl.DeleteTimeoutSeconds,
			ReadinessTimeoutSeconds:     cfg.Readiness.TimeoutSeconds,
			ReadinessPollSeconds:        cfg.Readiness.PollSeconds,
			LocalDomain:                 cfg.App.LocalDomain,
		},
	)

	engine := provisioning.NewEngine(repo, handlers, provisioning.EngineConfig{
		WorkerID:       cfg.Worker.ID,
		PollInterval:   time.Duration(cfg.Worker.PollSeconds) * time.Second,
		LeaseDuration:  time.Duration(cfg.Worker.LeaseSeconds) * time.Second,
		MaxConcurrency: cfg.Worker.MaxConcurrency,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := server.New(addr, admission, repo)

	errCh := make(chan error, 2)
	go func() {
		errCh <- engine.Run(ctx)
	}()
	go func() {
		errCh <- httpSrv.Start(ctx)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	pending := 2
	select {
	case sig := <-sigCh:
		logger.EngineCloseInfow("received shutdown signal", "signal", sig.String())
		cancel()
	case err := <-errCh:
		pending--
		cancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return errors.Wrap(err, "component failed")
		}
	}

	// Drain the remaining components.
	for ; pending > 0; pending-- {
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logger.EngineErrorw("component shutdown error", logger.FieldError, err)
		}
	}

	return nil
}
