package registry

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/tlambert03/pooch-dropbox/pkg/contenthash"
)

// Builder produces a registry file from a remote folder listing. For each
// listed file it obtains a public URL, verifies the provider's content
// hash against a locally computed one, and records the artifact's SHA-256.
//
// Files whose computed content hash does not match the provider's are
// skipped with a warning; the build continues with the remaining entries.
type Builder struct {
	lister     Lister
	httpClient *retryablehttp.Client
	logger     zerolog.Logger

	folder    string
	recursive bool
	extension string
	forceHash string
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithExtension restricts the listing to files with the given suffix.
func WithExtension(ext string) BuilderOption {
	return func(b *Builder) { b.extension = ext }
}

// WithRecursive controls whether subfolders are traversed. Default true.
func WithRecursive(recursive bool) BuilderOption {
	return func(b *Builder) { b.recursive = recursive }
}

// WithForceHash writes the given hash for every entry instead of
// downloading and hashing. Useful when the registry consumer clears the
// forced value to "no known hash" on load.
func WithForceHash(hash string) BuilderOption {
	return func(b *Builder) { b.forceHash = hash }
}

// WithLogger sets the logger used for progress and skip warnings.
func WithLogger(logger zerolog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = logger }
}

// WithHTTPClient replaces the download client.
func WithHTTPClient(c *retryablehttp.Client) BuilderOption {
	return func(b *Builder) { b.httpClient = c }
}

// NewBuilder creates a Builder over the given lister and remote folder.
func NewBuilder(lister Lister, folder string, opts ...BuilderOption) *Builder {
	httpClient := retryablehttp.NewClient()
	httpClient.RetryWaitMin = 1 * time.Second
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.RetryMax = 4
	httpClient.Logger = nil

	b := &Builder{
		lister:     lister,
		httpClient: httpClient,
		logger:     zerolog.Nop(),
		folder:     folder,
		recursive:  true,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build lists the remote folder and writes one registry line per accepted
// entry to w, in listing order. Each file is downloaded once; both hashes
// are computed while the response body streams through, so nothing is
// written to disk. Listing and download errors abort the build; hash
// mismatches only skip the offending entry.
func (b *Builder) Build(ctx context.Context, w io.Writer) error {
	entries, err := b.lister.ListFolder(ctx, b.folder, b.recursive, b.extension)
	if err != nil {
		return fmt.Errorf("listing %s: %w", b.folder, err)
	}

	bw := bufio.NewWriter(w)
	for _, e := range entries {
		rec, ok, err := b.record(ctx, e)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		b.logger.Info().Str("name", rec.Name).Msg(rec.String())
		if _, err := fmt.Fprintln(bw, rec); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// record resolves the registry line for one entry. The boolean is false
// when the entry is skipped.
func (b *Builder) record(ctx context.Context, e Entry) (Record, bool, error) {
	if b.forceHash != "" {
		return Record{Name: e.Name, Hash: b.forceHash, URL: e.URL}, true, nil
	}
	if e.ContentHash == "" {
		// Provider reported no content hash; record the entry with the
		// placeholder so consumers treat it as unverifiable.
		return Record{Name: e.Name, URL: e.URL}, true, nil
	}

	contentHash, artifactHash, err := b.fetchHashes(ctx, e.URL)
	if err != nil {
		return Record{}, false, fmt.Errorf("downloading %s: %w", e.Name, err)
	}

	if contentHash != e.ContentHash {
		b.logger.Warn().
			Str("name", e.Name).
			Str("expected", e.ContentHash).
			Str("computed", contentHash).
			Msg("content hash does not match, skipping")
		return Record{}, false, nil
	}

	return Record{Name: e.Name, Hash: artifactHash, URL: e.URL}, true, nil
}

// fetchHashes downloads url and computes the block-wise content hash and
// the plain SHA-256 artifact hash in a single pass over the response body.
func (b *Builder) fetchHashes(ctx context.Context, url string) (contentHash, artifactHash string, err error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	hasher := contenthash.New()
	artifact := sha256.New()
	body := contenthash.NewHashingReader(resp.Body, hasher)
	if _, err := io.Copy(artifact, body); err != nil {
		return "", "", err
	}

	contentHash, err = hasher.HexDigest()
	if err != nil {
		return "", "", err
	}
	return contentHash, hex.EncodeToString(artifact.Sum(nil)), nil
}
