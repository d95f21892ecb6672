package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sftsync/internal/storage/postgres"
)

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.PGDSN == "" {
		return fmt.Errorf("pg dsn is required")
	}

	direction := postgres.MigrateUp
	if len(args) == 1 {
		direction = postgres.MigrateDirection(args[0])
	}

	logger.Info("migrate start", zap.String("direction", string(direction)))
	if err := postgres.Migrate(cfg.PGDSN, direction); err != nil {
		return err
	}
	logger.Info("migrate done", zap.String("direction", string(direction)))
	return nil
}
