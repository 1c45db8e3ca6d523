// Package dropbox provides a minimal client for the parts of the Dropbox
// HTTP API this tool needs: folder listing and shared-link creation.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/tlambert03/pooch-dropbox/pkg/registry"
)

// EnvAPIToken is the environment variable consulted for the access token
// when none is passed explicitly.
const EnvAPIToken = "DROPBOX_API_TOKEN"

const defaultBaseURL = "https://api.dropboxapi.com/2"

// ErrMissingToken is returned when neither an explicit token nor the
// DROPBOX_API_TOKEN environment variable is set.
var ErrMissingToken = errors.New("dropbox: provide an API token or set the DROPBOX_API_TOKEN environment variable")

// Client talks to the Dropbox API. It implements registry.Lister.
type Client struct {
	httpClient *retryablehttp.Client
	logger     zerolog.Logger
	token      string
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, mainly for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *retryablehttp.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient authenticates a Client with the given token, falling back to
// the DROPBOX_API_TOKEN environment variable. The credential check happens
// here, before any network work.
func NewClient(token string, opts ...Option) (*Client, error) {
	if token == "" {
		token = os.Getenv(EnvAPIToken)
	}
	if token == "" {
		return nil, ErrMissingToken
	}

	httpClient := retryablehttp.NewClient()
	httpClient.RetryWaitMin = 1 * time.Second
	httpClient.RetryWaitMax = 30 * time.Second
	httpClient.RetryMax = 4
	httpClient.Logger = nil

	c := &Client{
		httpClient: httpClient,
		logger:     zerolog.Nop(),
		token:      token,
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// wire types for the endpoints we call

type fileMetadata struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	PathLower      string    `json:"path_lower"`
	ClientModified time.Time `json:"client_modified"`
	Size           int64     `json:"size"`
	ContentHash    string    `json:"content_hash"`
}

type listFolderResult struct {
	Entries []fileMetadata `json:"entries"`
	Cursor  string         `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

type sharedLink struct {
	URL             string `json:"url"`
	LinkPermissions struct {
		ResolvedVisibility struct {
			Tag string `json:".tag"`
		} `json:"resolved_visibility"`
	} `json:"link_permissions"`
}

type listSharedLinksResult struct {
	Links []sharedLink `json:"links"`
}

// APIError is a non-2xx response from the Dropbox API.
type APIError struct {
	StatusCode int
	Summary    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dropbox: %s (status %d)", e.Summary, e.StatusCode)
}

// ListFolder enumerates the files of a Dropbox folder, following listing
// pagination, and creates a shared link for each file. The folder path
// must start with a forward slash (the empty string means the root of the
// token's scope). When extension is non-empty only files with that suffix
// are returned. Download-style links are produced by rewriting the dl=0
// query of the shared link to dl=1.
func (c *Client) ListFolder(ctx context.Context, folder string, recursive bool, extension string) ([]registry.Entry, error) {
	var entries []registry.Entry

	res, err := c.listFolder(ctx, folder, recursive)
	if err != nil {
		return nil, err
	}
	for {
		for _, md := range res.Entries {
			if md.Tag != "file" {
				continue
			}
			if extension != "" && !strings.HasSuffix(md.Name, extension) {
				continue
			}

			link, err := c.createSharedLink(ctx, md.PathLower)
			if err != nil {
				return nil, fmt.Errorf("creating shared link for %s: %w", md.PathLower, err)
			}

			entries = append(entries, registry.Entry{
				Name:         md.Name,
				Path:         md.PathLower,
				LastModified: md.ClientModified,
				ContentHash:  md.ContentHash,
				URL:          strings.Replace(link.URL, "dl=0", "dl=1", 1),
				Size:         md.Size,
				Public:       link.LinkPermissions.ResolvedVisibility.Tag == "public",
			})
		}

		if !res.HasMore {
			break
		}
		res, err = c.listFolderContinue(ctx, res.Cursor)
		if err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (c *Client) listFolder(ctx context.Context, folder string, recursive bool) (*listFolderResult, error) {
	args := struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
	}{Path: folder, Recursive: recursive}

	var res listFolderResult
	if err := c.post(ctx, "/files/list_folder", args, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) listFolderContinue(ctx context.Context, cursor string) (*listFolderResult, error) {
	args := struct {
		Cursor string `json:"cursor"`
	}{Cursor: cursor}

	var res listFolderResult
	if err := c.post(ctx, "/files/list_folder/continue", args, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// createSharedLink creates a shared link for path, falling back to looking
// up the existing link when the API reports one already exists.
func (c *Client) createSharedLink(ctx context.Context, path string) (*sharedLink, error) {
	args := struct {
		Path string `json:"path"`
	}{Path: path}

	var link sharedLink
	err := c.post(ctx, "/sharing/create_shared_link_with_settings", args, &link)
	if err == nil {
		return &link, nil
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Summary, "shared_link_already_exists") {
		return nil, err
	}

	lookupArgs := struct {
		Path       string `json:"path"`
		DirectOnly bool   `json:"direct_only"`
	}{Path: path, DirectOnly: true}

	var res listSharedLinksResult
	if err := c.post(ctx, "/sharing/list_shared_links", lookupArgs, &res); err != nil {
		return nil, err
	}
	if len(res.Links) == 0 {
		return nil, fmt.Errorf("dropbox: no shared link found for %s", path)
	}
	return &res.Links[0], nil
}

// post sends a JSON RPC-style request and decodes the JSON response.
func (c *Client) post(ctx context.Context, endpoint string, args, out any) error {
	body, err := json.Marshal(args)
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("endpoint", endpoint).Msg("dropbox api call")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Summary: errorSummary(resp.Body)}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// errorSummary extracts error_summary from an error response body, falling
// back to the raw body text.
func errorSummary(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "unreadable error response"
	}

	var payload struct {
		Summary string `json:"error_summary"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Summary != "" {
		return payload.Summary
	}
	return strings.TrimSpace(string(raw))
}
