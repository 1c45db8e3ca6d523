package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tlambert03/pooch-dropbox/pkg/contenthash"
)

var hashCmd = &cobra.Command{
	Use:   "hash FILE...",
	Short: "Print the block-wise content hash of local files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			sum, err := contenthash.SumFile(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", sum, path)
		}
		return nil
	},
}
