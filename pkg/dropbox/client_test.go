package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_MissingToken(t *testing.T) {
	t.Setenv(EnvAPIToken, "")

	_, err := NewClient("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestNewClient_TokenFromEnv(t *testing.T) {
	t.Setenv(EnvAPIToken, "env-token")

	c, err := NewClient("")
	require.NoError(t, err)
	assert.Equal(t, "env-token", c.token)
}

// newTestServer fakes the three API endpoints the client calls. The
// listing is paginated: the first page holds a folder and one file, the
// continuation holds two more files.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/2/files/list_folder", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var args struct {
			Path      string `json:"path"`
			Recursive bool   `json:"recursive"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "/data", args.Path)

		fmt.Fprint(w, `{
			"entries": [
				{".tag": "folder", "name": "sub", "path_lower": "/data/sub"},
				{".tag": "file", "name": "alpha.tif", "path_lower": "/data/alpha.tif",
				 "client_modified": "2023-01-02T03:04:05Z", "size": 123, "content_hash": "hash-alpha"}
			],
			"cursor": "cursor-1",
			"has_more": true
		}`)
	})

	mux.HandleFunc("/2/files/list_folder/continue", func(w http.ResponseWriter, r *http.Request) {
		var args struct {
			Cursor string `json:"cursor"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.Equal(t, "cursor-1", args.Cursor)

		fmt.Fprint(w, `{
			"entries": [
				{".tag": "file", "name": "beta.tif", "path_lower": "/data/beta.tif",
				 "client_modified": "2023-02-03T04:05:06Z", "size": 456, "content_hash": "hash-beta"},
				{".tag": "file", "name": "notes.txt", "path_lower": "/data/notes.txt",
				 "client_modified": "2023-02-03T04:05:06Z", "size": 7, "content_hash": "hash-notes"}
			],
			"cursor": "",
			"has_more": false
		}`)
	})

	mux.HandleFunc("/2/sharing/create_shared_link_with_settings", func(w http.ResponseWriter, r *http.Request) {
		var args struct {
			Path string `json:"path"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))

		if args.Path == "/data/beta.tif" {
			// Simulate an existing link.
			w.WriteHeader(http.StatusConflict)
			fmt.Fprint(w, `{"error_summary": "shared_link_already_exists/.."}`)
			return
		}
		fmt.Fprintf(w, `{
			"url": "https://www.dropbox.com/s/xyz%s?dl=0",
			"link_permissions": {"resolved_visibility": {".tag": "public"}}
		}`, args.Path)
	})

	mux.HandleFunc("/2/sharing/list_shared_links", func(w http.ResponseWriter, r *http.Request) {
		var args struct {
			Path       string `json:"path"`
			DirectOnly bool   `json:"direct_only"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&args))
		assert.True(t, args.DirectOnly)

		fmt.Fprintf(w, `{"links": [{
			"url": "https://www.dropbox.com/s/existing%s?dl=0",
			"link_permissions": {"resolved_visibility": {".tag": "team_only"}}
		}]}`, args.Path)
	})

	return httptest.NewServer(mux)
}

func TestListFolder(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c, err := NewClient("test-token", WithBaseURL(srv.URL+"/2"))
	require.NoError(t, err)

	entries, err := c.ListFolder(context.Background(), "/data", true, "")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	alpha := entries[0]
	assert.Equal(t, "alpha.tif", alpha.Name)
	assert.Equal(t, "/data/alpha.tif", alpha.Path)
	assert.Equal(t, "hash-alpha", alpha.ContentHash)
	assert.Equal(t, int64(123), alpha.Size)
	assert.True(t, alpha.Public)
	assert.Equal(t, "https://www.dropbox.com/s/xyz/data/alpha.tif?dl=1", alpha.URL,
		"dl=0 must be rewritten to dl=1")

	beta := entries[1]
	assert.Equal(t, "beta.tif", beta.Name)
	assert.Equal(t, "https://www.dropbox.com/s/existing/data/beta.tif?dl=1", beta.URL,
		"existing link must be looked up on conflict")
	assert.False(t, beta.Public)
}

func TestListFolder_ExtensionFilter(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	c, err := NewClient("test-token", WithBaseURL(srv.URL+"/2"))
	require.NoError(t, err)

	entries, err := c.ListFolder(context.Background(), "/data", true, ".tif")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alpha.tif", entries[0].Name)
	assert.Equal(t, "beta.tif", entries[1].Name)
}

func TestListFolder_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error_summary": "path/not_found/"}`)
	}))
	defer srv.Close()

	c, err := NewClient("test-token", WithBaseURL(srv.URL+"/2"))
	require.NoError(t, err)

	_, err = c.ListFolder(context.Background(), "/missing", true, "")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Contains(t, apiErr.Summary, "path/not_found")
}
