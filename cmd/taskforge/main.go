// Command taskforge is the single binary for the platform: serve runs the
// HTTP API (SSE + ACP), worker runs the broker-consuming Runner pool, and
// migrate manages the Postgres schema. Replaces the teacher's cmd/tarsy.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taskforge/platform/pkg/version"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "taskforge",
	Short: "Multi-tenant agent orchestration platform",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", envOr("TASKFORGE_ENV_FILE", ".env"), "path to .env file (missing file is not an error)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(workerCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.Full())
		},
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
