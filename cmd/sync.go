package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/northbuild/north-be/database"
	"github.com/northbuild/north-be/repository"
	"github.com/northbuild/north-be/service"
	"github.com/northbuild/north-be/types"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental sync pass",
	Long: `Pulls changes from the configured sources into the index and
advances the cursors. Safe to run repeatedly; unchanged items are
skipped by fingerprint.`,
	Run: func(cmd *cobra.Command, args []string) {
		sourceName, _ := cmd.Flags().GetString("source")

		syncService, err := buildSyncFromConfig()
		if err != nil {
			log.Fatalf("Failed to initialize sync: %v", err)
		}

		ctx := context.Background()
		var results []*types.SyncResult
		if sourceName == "" {
			results, err = syncService.SyncAll(ctx)
		} else {
			var result *types.SyncResult
			result, err = syncService.Sync(ctx, sourceName)
			if result != nil {
				results = append(results, result)
			}
		}
		for _, result := range results {
			fmt.Printf("%s: %d upserted, %d skipped, %d deleted (%dms)\n",
				result.Source, result.Upserted, result.Skipped, result.Deleted, result.DurationMs)
		}
		if err != nil {
			log.Fatalf("Sync failed: %v", err)
		}
	},
}

func buildSyncFromConfig() (*service.SyncService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	weaviateDb, err := database.NewWeaviateStore(cfg.WeaviateStoreConfig)
	if err != nil {
		return nil, err
	}
	aiService, err := newAIService(cfg)
	if err != nil {
		return nil, err
	}
	mongoClient := database.DefaultMongoClient
	if err := mongoClient.Ping(context.Background(), nil); err != nil {
		return nil, err
	}
	cursorRepo := repository.NewCursorRepo(mongoClient.Database("north").Collection("cursors"))
	return newSyncService(cfg, weaviateDb, aiService, cursorRepo)
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringP("source", "s", "", "Sync only this source (notes or dropbox)")
}
