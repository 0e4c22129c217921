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
	forgetUser     string
	forgetCapacity int
	forgetDryRun   bool
)

var forgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Apply the retention policy and archive low-value memories",
	RunE:  runForget,
}

func init() {
	forgetCmd.Flags().StringVar(&forgetUser, "user", "", "user id to apply the policy to (required)")
	forgetCmd.Flags().IntVar(&forgetCapacity, "capacity", 0, "retained-record capacity (default from config)")
	forgetCmd.Flags().BoolVar(&forgetDryRun, "dry-run", false, "compute the plan without archiving")
	forgetCmd.MarkFlagRequired("user")
}

func runForget(cmd *cobra.Command, args []string) error {
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

	capacity := forgetCapacity
	if capacity <= 0 {
		capacity = cfg.Memory.Capacity
	}
	policy := engine.ForgettingPolicy{
		Capacity:          capacity,
		MinRetentionScore: cfg.Memory.MinRetentionScore,
		HalfLifeDays:      cfg.Memory.HalfLifeDays,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if forgetDryRun {
		limit := capacity * 5
		if limit < 200 {
			limit = 200
		}
		rows, err := db.List(ctx, forgetUser, engine.ListOptions{Limit: limit})
		if err != nil {
			return fmt.Errorf("list nodes: %w", err)
		}
		plan := engine.PlanForgetting(rows, policy)
		fmt.Printf("dry run: %d active, would keep %d, would archive %d\n",
			len(rows), len(plan.Keep), len(plan.Archive))
		for _, node := range plan.Archive {
			fmt.Printf("  archive %s (%s)\n", node.Path, node.ID)
		}
		return nil
	}

	eng := engine.New(engine.Options{Storage: db})
	plan, err := eng.Forget(ctx, forgetUser, policy)
	if err != nil {
		return fmt.Errorf("apply forgetting policy: %w", err)
	}
	fmt.Printf("kept %d, archived %d\n", len(plan.Keep), len(plan.ArchivedIDs))
	return nil
}
