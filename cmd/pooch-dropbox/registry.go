package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"

	"github.com/tlambert03/pooch-dropbox/pkg/dropbox"
	"github.com/tlambert03/pooch-dropbox/pkg/registry"
	"github.com/tlambert03/pooch-dropbox/pkg/s3store"
)

var (
	flagFolder    string
	flagOutput    string
	flagExt       string
	flagRecursive bool
	flagForceHash string
	flagToken     string
	flagLocalDir  string
	flagBackend   string
	flagBucket    string
	flagExpiry    time.Duration
)

var registryCmd = &cobra.Command{
	Use:   "registry",
	Short: "Build a registry file from a cloud-storage folder",
	Long: `Build a pooch registry file (one "name hash url" line per file) from a
Dropbox folder or an S3 bucket prefix. Each file is downloaded once to
verify the provider's content hash before its SHA-256 artifact hash is
recorded; with --local-dir local copies are hashed instead of downloading.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		lister, err := newLister(ctx)
		if err != nil {
			return err
		}

		builder := registry.NewBuilder(lister, flagFolder,
			registry.WithExtension(flagExt),
			registry.WithRecursive(flagRecursive),
			registry.WithForceHash(flagForceHash),
			registry.WithLogger(logger),
		)

		out, err := os.Create(flagOutput)
		if err != nil {
			return err
		}

		if flagLocalDir != "" {
			err = builder.BuildFromLocal(ctx, out, flagLocalDir)
		} else {
			err = builder.Build(ctx, out)
		}
		if err != nil {
			out.Close()
			return err
		}

		if err := out.Close(); err != nil {
			return err
		}
		logger.Info().Str("path", flagOutput).Msg("registry written")
		return nil
	},
}

func init() {
	f := registryCmd.Flags()
	f.StringVar(&flagFolder, "folder", "", "remote folder path (Dropbox path or S3 key prefix)")
	f.StringVarP(&flagOutput, "output", "o", "registry.txt", "output registry file")
	f.StringVar(&flagExt, "ext", "", "only include files with this suffix")
	f.BoolVar(&flagRecursive, "recursive", true, "recurse into subfolders")
	f.StringVar(&flagForceHash, "force-hash", "", "write this hash for every entry instead of downloading")
	f.StringVar(&flagToken, "token", "", "Dropbox API token (defaults to $"+dropbox.EnvAPIToken+")")
	f.StringVar(&flagLocalDir, "local-dir", "", "hash local copies under this directory instead of downloading")
	f.StringVar(&flagBackend, "backend", "dropbox", "storage backend: dropbox or s3")
	f.StringVar(&flagBucket, "bucket", "", "S3 bucket name (s3 backend)")
	f.DurationVar(&flagExpiry, "expiry", s3store.DefaultExpiry, "presigned URL lifetime (s3 backend)")
}

// newLister builds the configured storage backend.
func newLister(ctx context.Context) (registry.Lister, error) {
	switch flagBackend {
	case "dropbox":
		return dropbox.NewClient(flagToken, dropbox.WithLogger(logger))
	case "s3":
		if flagBucket == "" {
			return nil, errors.New("--bucket is required with --backend s3")
		}
		cfg, err := config.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading AWS configuration: %w", err)
		}
		return s3store.New(cfg, flagBucket, flagExpiry), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (expected dropbox or s3)", flagBackend)
	}
}
