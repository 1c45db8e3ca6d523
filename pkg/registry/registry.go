// Package registry builds and parses pooch registry files: plain-text
// manifests with one `name hash url` line per remote file, consumed by the
// pooch data-retrieval library to locate and verify downloads.
package registry

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// Placeholder is the canonical hash written for entries whose hash is
// intentionally omitted. Consumers treat it as "no known hash".
const Placeholder = "_"

// sentinelHashes are the legacy spellings consumers map to a null hash.
var sentinelHashes = map[string]struct{}{
	"None":      {},
	"none":      {},
	Placeholder: {},
}

// Entry describes a single file in a remote storage folder, as produced by
// a Lister. ContentHash is the provider's block-wise content hash (empty
// when the provider reported none); URL is a public download link.
type Entry struct {
	Name         string
	Path         string
	LastModified time.Time
	ContentHash  string
	URL          string
	Size         int64
	Public       bool
}

// Lister enumerates the files of a remote folder, optionally recursing
// into subfolders and filtering by filename suffix. Entries are returned
// in listing order and processed sequentially.
type Lister interface {
	ListFolder(ctx context.Context, folder string, recursive bool, extension string) ([]Entry, error)
}

// Record is one line of a registry file.
type Record struct {
	Name string
	Hash string // empty means no known hash
	URL  string
}

// HasHash reports whether the record carries a real artifact hash rather
// than a placeholder.
func (r Record) HasHash() bool {
	return r.Hash != ""
}

// String renders the record in registry line format. Records without a
// hash are written with the Placeholder sentinel.
func (r Record) String() string {
	h := r.Hash
	if h == "" {
		h = Placeholder
	}
	return fmt.Sprintf("%s %s %s", r.Name, h, r.URL)
}

// Parse reads a registry from r. Blank lines and #-comments are skipped;
// the legacy sentinel hashes (None, none, _) parse to an empty Hash.
func Parse(r io.Reader) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(r)
	for lineno := 1; scanner.Scan(); lineno++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("registry: line %d: expected `name hash url`, got %d fields", lineno, len(fields))
		}

		rec := Record{Name: fields[0], Hash: fields[1], URL: fields[2]}
		if _, ok := sentinelHashes[rec.Hash]; ok {
			rec.Hash = ""
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// Load reads a registry file from disk.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Parse(f)
}
