package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var linksCmd = &cobra.Command{
	Use:   "links",
	Short: "List remote files with their shared links and content hashes",
	RunE: func(cmd *cobra.Command, args []string) error {
		lister, err := newLister(cmd.Context())
		if err != nil {
			return err
		}

		entries, err := lister.ListFolder(cmd.Context(), flagFolder, flagRecursive, flagExt)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tSIZE\tPUBLIC\tCONTENT HASH\tURL")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%d\t%t\t%s\t%s\n", e.Name, e.Size, e.Public, e.ContentHash, e.URL)
		}
		return w.Flush()
	},
}

func init() {
	f := linksCmd.Flags()
	f.StringVar(&flagFolder, "folder", "", "remote folder path (Dropbox path or S3 key prefix)")
	f.StringVar(&flagExt, "ext", "", "only include files with this suffix")
	f.BoolVar(&flagRecursive, "recursive", true, "recurse into subfolders")
	f.StringVar(&flagToken, "token", "", "Dropbox API token (defaults to $DROPBOX_API_TOKEN)")
	f.StringVar(&flagBackend, "backend", "dropbox", "storage backend: dropbox or s3")
	f.StringVar(&flagBucket, "bucket", "", "S3 bucket name (s3 backend)")
}
