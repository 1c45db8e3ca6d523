package registry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tlambert03/pooch-dropbox/pkg/contenthash"
)

// BuildFromLocal builds a registry like Build, but hashes local copies of
// the files under dir instead of downloading them. The remote listing is
// still consulted for public URLs and provider hashes; entries with no
// matching local file, or whose local content hash disagrees with the
// provider's, are skipped with a warning.
func (b *Builder) BuildFromLocal(ctx context.Context, w io.Writer, dir string) error {
	entries, err := b.lister.ListFolder(ctx, b.folder, b.recursive, b.extension)
	if err != nil {
		return fmt.Errorf("listing %s: %w", b.folder, err)
	}

	index, err := indexLocalFiles(dir)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", dir, err)
	}

	bw := bufio.NewWriter(w)
	for _, e := range entries {
		if b.forceHash != "" {
			rec := Record{Name: e.Name, Hash: b.forceHash, URL: e.URL}
			if _, err := fmt.Fprintln(bw, rec); err != nil {
				return err
			}
			continue
		}

		path, ok := index[e.Name]
		if !ok {
			b.logger.Warn().Str("name", e.Name).Msg("no local copy found, skipping")
			continue
		}

		if e.ContentHash != "" {
			sum, err := contenthash.SumFile(path)
			if err != nil {
				return fmt.Errorf("hashing %s: %w", path, err)
			}
			if sum != e.ContentHash {
				b.logger.Warn().
					Str("name", e.Name).
					Str("expected", e.ContentHash).
					Str("computed", sum).
					Msg("content hash does not match, skipping")
				continue
			}
		}

		artifactHash, err := sha256File(path)
		if err != nil {
			return fmt.Errorf("hashing %s: %w", path, err)
		}

		rec := Record{Name: e.Name, Hash: artifactHash, URL: e.URL}
		b.logger.Info().Str("name", rec.Name).Msg(rec.String())
		if _, err := fmt.Fprintln(bw, rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// indexLocalFiles maps base filenames under dir to their paths. Hidden
// files and symlinks are ignored; on duplicate basenames the first file
// found wins.
func indexLocalFiles(dir string) (map[string]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("path is not a directory: %s", dir)
	}

	index := make(map[string]string)
	err = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return nil
		}
		if _, ok := index[info.Name()]; !ok {
			index[info.Name()] = path
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return index, nil
}
