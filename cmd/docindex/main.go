package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/docindex/internal/config"
	"github.com/xxxsen/docindex/internal/db"
	"github.com/xxxsen/docindex/internal/model"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "docindex",
		Short: "documentation ingestion and retrieval engine",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server, sync workers and scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if err := db.ApplyMigrations(conn, cfg.Embedding.Dimensions); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	var target model.SourceDescriptor
	var versionID string
	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "sync one documentation tree and wait for the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, cfg, versionID, target)
		},
	}
	syncCmd.Flags().StringVar(&versionID, "version-id", "", "version to index into")
	syncCmd.Flags().StringVar(&target.Owner, "owner", "", "repository owner")
	syncCmd.Flags().StringVar(&target.Repo, "repo", "", "repository name")
	syncCmd.Flags().StringVar(&target.DocsPath, "path", "docs", "documentation directory inside the repository")
	syncCmd.Flags().StringVar(&target.Ref, "ref", "", "branch or tag")

	rootCmd.AddCommand(runCmd, migrateCmd, syncCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Init(
		cfg.LogConfig.File,
		cfg.LogConfig.Level,
		int(cfg.LogConfig.FileCount),
		int(cfg.LogConfig.FileSize),
		int(cfg.LogConfig.KeepDays),
		cfg.LogConfig.Console,
	)
	logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", path))
	return cfg, nil
}
