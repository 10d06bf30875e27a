// Command kbase runs the hybrid-retrieval knowledge base HTTP server.
//
// Configuration is loaded from a YAML file (the --config path, or
// ~/.config/kbase/config.yaml when present) layered with KB_-prefixed
// environment variables. See internal/config for the
// recognized options.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kbase",
	Short:   "Multi-project hybrid retrieval knowledge base",
	Version: version,
}

var configPath string

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
}
