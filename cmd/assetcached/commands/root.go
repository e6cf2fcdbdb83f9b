// Package commands implements the assetcached CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// cfgFile is the global --config flag.
	cfgFile string
)

var rootCmd = &cobra.Command{
	Use:   "assetcached",
	Short: "assetcached - content-addressed binary asset cache",
	Long: `assetcached serves a content-addressed cache for versioned binary
assets, identified by a (GUID, HASH) pair and composed of up to three file
kinds (info, asset, resource). It supports a paged in-memory backend and a
filesystem-backed backend, with an optional high-reliability admission
filter that defers a version's visibility until repeated uploads confirm it.

Use "assetcached [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/assetcache/config.yaml)")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
}

// GetConfigFile returns the config file path from the global flag.
func GetConfigFile() string {
	return cfgFile
}
