// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads documents given as URLs so they can be
// analyzed like local files.
package acquire

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/ontoguide/internal/httputil"
	"github.com/pdiddy/ontoguide/pkg/types"
)

// Summary holds counts from a fetch run.
type Summary struct {
	Downloaded int
	Skipped    int
	Failed     int
}

// Total returns the number of URLs processed.
func (s Summary) Total() int {
	return s.Downloaded + s.Skipped + s.Failed
}

// HasFailures reports whether any URL failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Fetcher downloads documents into a directory.
type Fetcher struct {
	client *http.Client
	cfg    types.HTTPConfig
	dir    string
	log    *zap.SugaredLogger
}

// NewFetcher returns a Fetcher writing into dir. A nil logger disables
// logging.
func NewFetcher(cfg types.HTTPConfig, dir string, logger *zap.SugaredLogger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		dir:    dir,
		log:    logger,
	}
}

// IsURL reports whether arg names an http(s) document.
func IsURL(arg string) bool {
	return strings.HasPrefix(arg, "http://") || strings.HasPrefix(arg, "https://")
}

// FetchAll replaces every URL in args with the path of its downloaded
// copy. Local paths pass through. Failed URLs are reported to w and left
// out of the result.
func (f *Fetcher) FetchAll(ctx context.Context, args []string, w io.Writer) ([]string, Summary, error) {
	var (
		out     []string
		summary Summary
	)
	for _, arg := range args {
		if !IsURL(arg) {
			out = append(out, arg)
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, summary, err
		}
		path, skipped, err := f.Fetch(ctx, arg)
		switch {
		case err != nil:
			fmt.Fprintf(w, "failed  %s: %v\n", arg, err)
			summary.Failed++
			continue
		case skipped:
			fmt.Fprintf(w, "skipped %s (already downloaded)\n", filepath.Base(path))
			summary.Skipped++
		default:
			fmt.Fprintf(w, "downloaded %s\n", filepath.Base(path))
			summary.Downloaded++
		}
		out = append(out, path)
	}
	return out, summary, nil
}

// Fetch downloads rawURL unless a copy already exists and returns the
// local path. The file name comes from the URL path, or from a hash of
// the URL when the path has none.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (path string, skipped bool, err error) {
	stem, ext := nameFor(rawURL)
	if ext != "" {
		path = filepath.Join(f.dir, stem+ext)
		if _, err := os.Stat(path); err == nil {
			return path, true, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", false, errors.Wrap(err, "creating request")
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, f.client, req, f.cfg.MaxRetries, f.log)
	if err != nil {
		return "", false, errors.Wrap(err, "HTTP request")
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", false, errors.Newf("HTTP %d from %s", resp.StatusCode, rawURL)
	}

	if ext == "" {
		ext = extensionFor(resp.Header.Get("Content-Type"))
		path = filepath.Join(f.dir, stem+ext)
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", false, errors.Wrap(err, "creating download directory")
	}
	if err := writeAtomic(path, resp.Body); err != nil {
		return "", false, err
	}
	f.log.Debugw("document downloaded", "url", rawURL, "path", path)
	return path, false, nil
}

// writeAtomic copies r to a temporary file next to path and renames it
// into place.
func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".fetch-*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	tmpPath := tmp.Name()

	_, copyErr := io.Copy(tmp, r)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return errors.Wrap(copyErr, "writing download")
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return errors.Wrap(closeErr, "closing temp file")
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "renaming temp file")
	}
	return nil
}

func nameFor(rawURL string) (stem, ext string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return hashSlug(rawURL), ""
	}
	base := filepath.Base(u.Path)
	ext = strings.ToLower(filepath.Ext(base))
	stem = strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" || stem == "." || stem == "/" {
		return hashSlug(rawURL), ext
	}
	return stem, ext
}

func hashSlug(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("url-%x", h[:8])
}

// contentExt maps the media types documents arrive in to file extensions.
var contentExt = map[string]string{
	"text/plain":      ".txt",
	"text/markdown":   ".md",
	"text/html":       ".html",
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".txt"
	}
	if ext, ok := contentExt[mediaType]; ok {
		return ext
	}
	return ".txt"
}
