package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/moryhq/mory/internal/config"
	"github.com/moryhq/mory/internal/engine"
	"github.com/moryhq/mory/internal/store"
)

var (
	consolidateUser    string
	consolidateSupport int
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Compress corroborated episodic memories into semantic rules",
	RunE:  runConsolidate,
}

func init() {
	consolidateCmd.Flags().StringVar(&consolidateUser, "user", "", "user id to consolidate (required)")
	consolidateCmd.Flags().IntVar(&consolidateSupport, "min-support", 0, "minimum corroborating episodes per rule (default 2)")
	consolidateCmd.MarkFlagRequired("user")
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	cfg := config.FromEnv()

	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	eng := engine.New(engine.Options{Storage: db})
	results, err := eng.Consolidate(ctx, consolidateUser, engine.ConsolidateOptions{
		MinSupport: consolidateSupport,
	})
	if err != nil {
		return fmt.Errorf("consolidate: %w", err)
	}

	fmt.Printf("consolidated %d rules\n", len(results))
	for _, item := range results {
		fmt.Printf("  %s %s: %s\n", item.Action, item.Path, item.Reason)
	}
	return nil
}
