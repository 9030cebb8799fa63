package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowcore/taskrunner/internal/breaker"
	"github.com/flowcore/taskrunner/internal/config"
	"github.com/flowcore/taskrunner/internal/dag"
	"github.com/flowcore/taskrunner/internal/dag/executor"
	"github.com/flowcore/taskrunner/internal/httppipeline"
	"github.com/flowcore/taskrunner/internal/logger"
)

func runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <dag file>",
		Short: "Run a DAG definition once and print its result",
		Long:  "taskrunner run <dag file>",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDAGFile(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runDAGFile(ctx context.Context, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	log, err := logger.NewLogger(logger.NewArgs{Debug: cfg.Debug, Format: logger.Format(cfg.LogFormat), FilePath: cfg.LogFile})
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}

	def, err := dag.LoadFile(resolveDAGPath(cfg, path))
	if err != nil {
		return err
	}

	graph, err := dag.Build(def.Tasks)
	if err != nil {
		return fmt.Errorf("building dag %q: %w", def.Name, err)
	}

	registry := defaultToolRegistry(cfg, log)

	execCfg := executor.DefaultConfig()
	if cfg.MaxConcurrent > 0 {
		execCfg.MaxConcurrent = cfg.MaxConcurrent
	}
	if cfg.DefaultTimeoutMS > 0 {
		execCfg.DefaultTimeout = time.Duration(cfg.DefaultTimeoutMS) * time.Millisecond
	}
	if def.Config != nil {
		if def.Config.MaxConcurrent > 0 {
			execCfg.MaxConcurrent = def.Config.MaxConcurrent
		}
		if def.Config.TimeoutMS > 0 {
			execCfg.DefaultTimeout = time.Duration(def.Config.TimeoutMS) * time.Millisecond
		}
		if def.Config.FailureMode != "" {
			execCfg.FailureMode = executor.FailureMode(def.Config.FailureMode)
		}
	}

	log.Info("dag starting", "name", def.Name, "tasks", len(def.Tasks))
	result := executor.Execute(ctx, graph, registry, execCfg, log)

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(out))
	return nil
}

// defaultToolRegistry seeds a Registry with the "http" tool backed by the
// HTTP pipeline client, per spec.md §2's "the DAG engine's tool registry may
// contain HTTP pipeline operations".
func defaultToolRegistry(cfg *config.Config, log logger.Logger) *executor.Registry {
	registry := executor.NewRegistry()

	oauthMgr, err := newOAuthManager(cfg, log)
	if err != nil {
		log.Warnf("run: oauth manager unavailable, OAuth-backed http tasks will error: %v", err)
	}

	client := httppipeline.New(newRateLimitRegistry(cfg), breaker.NewRegistry(), oauthMgr, log)
	registry.Register("http", client.AsTool)

	return registry
}

// resolveDAGPath returns path as-is if it exists; otherwise it tries path
// relative to cfg.DAGsDir, the configured directory for DAG definitions.
func resolveDAGPath(cfg *config.Config, path string) string {
	if _, err := os.Stat(path); err == nil {
		return path
	}
	if cfg.DAGsDir == "" {
		return path
	}
	candidate := filepath.Join(cfg.DAGsDir, path)
	if _, err := os.Stat(candidate); err == nil {
		return candidate
	}
	return path
}
