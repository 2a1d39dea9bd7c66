// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ontoguide/internal/httputil"
	"github.com/pdiddy/ontoguide/pkg/types"
)

func TestMain(m *testing.M) {
	httputil.RetryBaseDelay = time.Millisecond
	os.Exit(m.Run())
}

func TestNameFor(t *testing.T) {
	tests := []struct {
		url      string
		wantStem string
		wantExt  string
	}{
		{url: "https://courts.example/rulings/2024-117.pdf", wantStem: "2024-117", wantExt: ".pdf"},
		{url: "https://courts.example/rulings/report.TXT?v=2", wantStem: "report", wantExt: ".txt"},
		{url: "https://courts.example/rulings/2024-117", wantStem: "2024-117"},
		{url: "https://courts.example/", wantStem: hashSlug("https://courts.example/")},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			stem, ext := nameFor(tt.url)
			assert.Equal(t, tt.wantStem, stem)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestExtensionFor(t *testing.T) {
	assert.Equal(t, ".txt", extensionFor("text/plain; charset=utf-8"))
	assert.Equal(t, ".pdf", extensionFor("application/pdf"))
	assert.Equal(t, ".md", extensionFor("text/markdown"))
	assert.Equal(t, ".txt", extensionFor("application/octet-stream"))
	assert.Equal(t, ".txt", extensionFor(""))
}

func TestFetchAll(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "ontoguide-test", r.Header.Get("User-Agent"))
		switch r.URL.Path {
		case "/report.txt":
			w.Write([]byte("A bicycle was stolen."))
		case "/ruling":
			w.Header().Set("Content-Type", "application/pdf")
			w.Write([]byte("%PDF-1.7"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "documents")
	f := NewFetcher(types.HTTPConfig{Timeout: 5 * time.Second, UserAgent: "ontoguide-test", MaxRetries: 1}, dir, nil)

	args := []string{"local.txt", srv.URL + "/report.txt", srv.URL + "/ruling", srv.URL + "/missing.pdf"}
	var log bytes.Buffer
	got, summary, err := f.FetchAll(context.Background(), args, &log)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"local.txt",
		filepath.Join(dir, "report.txt"),
		filepath.Join(dir, "ruling.pdf"),
	}, got)
	assert.Equal(t, Summary{Downloaded: 2, Failed: 1}, summary)
	assert.Contains(t, log.String(), "HTTP 404")

	data, err := os.ReadFile(filepath.Join(dir, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "A bicycle was stolen.", string(data))

	// A URL with an extension is not downloaded twice.
	before := hits.Load()
	_, summary, err = f.FetchAll(context.Background(), args[1:2], &log)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, before, hits.Load())
}

func TestFetch_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("text"))
	}))
	defer srv.Close()

	f := NewFetcher(types.HTTPConfig{MaxRetries: 2}, t.TempDir(), nil)
	path, skipped, err := f.Fetch(context.Background(), srv.URL+"/doc.md")
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, "doc.md", filepath.Base(path))
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchAll_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := NewFetcher(types.HTTPConfig{}, t.TempDir(), nil)
	_, _, err := f.FetchAll(ctx, []string{"https://example.com/a.txt"}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
