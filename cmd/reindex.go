package cmd

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// reindexCmd represents the reindex command
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild a source's index from scratch",
	Long: `Drops everything indexed for a source along with its sync cursor
and resynchronizes from the beginning. Use this after a cursor reset or
suspected index corruption.`,
	Run: func(cmd *cobra.Command, args []string) {
		sourceName, _ := cmd.Flags().GetString("source")
		if sourceName == "" {
			log.Fatal("a source is required: --source notes|dropbox")
		}

		syncService, err := buildSyncFromConfig()
		if err != nil {
			log.Fatalf("Failed to initialize sync: %v", err)
		}

		result, err := syncService.Rebuild(context.Background(), sourceName)
		if err != nil {
			log.Fatalf("Reindex failed: %v", err)
		}
		fmt.Printf("%s: %d upserted, %d skipped, %d deleted (%dms)\n",
			result.Source, result.Upserted, result.Skipped, result.Deleted, result.DurationMs)
	},
}

func init() {
	rootCmd.AddCommand(reindexCmd)
	reindexCmd.Flags().StringP("source", "s", "", "Source to rebuild (notes or dropbox)")
}
