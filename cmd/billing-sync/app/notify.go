package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stacklok/billing-sync-server/internal/app/storage"
	"github.com/stacklok/billing-sync-server/internal/sync"
)

func newNotifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify ENTITY_ID...",
		Short: "Record change notifications for one or more entities",
		Long: `Record a change notification for each entity directly in the configured
storage backend. A running server picks the work up at its next wake.

Examples:
  # Queue a resync of two tenants
  billing-sync notify --config config.yaml cus_123 cus_456`,
		Args: cobra.MinimumNArgs(1),
		RunE: runNotify,
	}

	cmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")
	if err := cmd.MarkFlagRequired("config"); err != nil {
		panic(err)
	}

	return cmd
}

func runNotify(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	factory, err := storage.NewStorageFactory(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage factory: %w", err)
	}
	defer factory.Cleanup()

	store, err := factory.CreateStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to create state store: %w", err)
	}

	ingestor := sync.NewIngestor(store, store, cfg.GetSyncInterval(),
		sync.WithIngestShardKey(cfg.GetShardKey()))

	var errs []error
	for _, entityID := range args {
		if err := ingestor.Notify(ctx, entityID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entityID, err))
			continue
		}
		slog.Info("Recorded notification", "entity_id", entityID, "shard_key", cfg.GetShardKey())
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), entityID)
	}

	return errors.Join(errs...)
}
