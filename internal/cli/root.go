package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mory",
	Short: "Long-term memory engine for conversational agents",
	Long:  "Mory manages durable agent memory: canonical mory:// addressing, write admission, conflict resolution, consolidation, and decay-based forgetting. Single Go binary.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(consolidateCmd)
}
