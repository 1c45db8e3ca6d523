// Command pooch-dropbox builds pooch registry files from cloud-storage
// folders and computes provider-compatible content hashes.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
	Level(zerolog.InfoLevel).
	With().Timestamp().Logger()

var verbose bool

var rootCmd = &cobra.Command{
	Use:           "pooch-dropbox",
	Short:         "Create pooch registries from cloud-storage folders",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			logger = logger.Level(zerolog.DebugLevel)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(registryCmd, linksCmd, hashCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logger.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
