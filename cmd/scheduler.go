package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flowcore/taskrunner/internal/breaker"
	"github.com/flowcore/taskrunner/internal/config"
	"github.com/flowcore/taskrunner/internal/httppipeline"
	"github.com/flowcore/taskrunner/internal/logger"
	"github.com/flowcore/taskrunner/internal/runtime"
	"github.com/flowcore/taskrunner/internal/scheduler"
	"github.com/flowcore/taskrunner/internal/scheduler/store"
)

func schedulerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Start the persistent scheduler",
		Long:  "taskrunner scheduler [--dsn=<store DSN>]",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScheduler(cmd.Context())
		},
	}

	cmd.Flags().String("dsn", "", "scheduler store DSN (default is config's schedulerDsn)")
	_ = viper.BindPFlag("schedulerDsn", cmd.Flags().Lookup("dsn"))

	return cmd
}

func runScheduler(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	// --dsn is bound on the global viper, which config.Load does not read.
	if dsn := viper.GetString("schedulerDsn"); dsn != "" {
		cfg.SchedulerDSN = dsn
	}
	log, err := logger.NewLogger(logger.NewArgs{Debug: cfg.Debug, Format: logger.Format(cfg.LogFormat), FilePath: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	st, err := store.Open(sqliteDSN(cfg.SchedulerDSN))
	if err != nil {
		return fmt.Errorf("opening scheduler store: %w", err)
	}

	oauthMgr, err := newOAuthManager(cfg, log)
	if err != nil {
		log.Warnf("scheduler: oauth manager unavailable, OAuth-backed http actions will error: %v", err)
	}
	httpClient := httppipeline.New(newRateLimitRegistry(cfg), breaker.NewRegistry(), oauthMgr, log)

	minioClient, err := newMinioClient(cfg)
	if err != nil {
		log.Warnf("scheduler: object store unavailable, \"file\" action will error: %v", err)
	}

	exec := scheduler.NewExecutor(st, httpClient, minioClient, log)
	sched := scheduler.New(st, exec, log)

	hooks := &runtime.Hooks{}
	hooks.Register(func() { sched.Stop() })
	hooks.Register(func() { _ = st.Close() })

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- sched.Start(runCtx) }()

	log.Info("scheduler started", "dsn", cfg.SchedulerDSN)
	runtime.WaitForSignal(runCtx, hooks, log)
	cancel()

	return <-errCh
}

// sqliteDSN strips an optional "sqlite://" scheme prefix, since the config
// surface accepts "sqlite://path/to/file.db" but modernc.org/sqlite's
// database/sql driver wants a bare path (or ":memory:").
func sqliteDSN(dsn string) string {
	return strings.TrimPrefix(dsn, "sqlite://")
}

func newMinioClient(cfg *config.Config) (*minio.Client, error) {
	if cfg.MinioEndpoint == "" {
		return nil, fmt.Errorf("minioEndpoint not configured")
	}
	return minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
}
