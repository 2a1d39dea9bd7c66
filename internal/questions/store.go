// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package questions

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/ontoguide/internal/httputil"
	"github.com/pdiddy/ontoguide/pkg/types"
)

const (
	defaultCacheSize = 32
	defaultTimeout   = 30 * time.Second
	maxDocumentBytes = 8 << 20
)

// document is one question file, keyed by category name.
type document map[string]*CategoryQuestions

// Store loads question documents from local files or HTTP(S) locations
// and keeps the most recently used ones in memory. It is safe for
// concurrent use.
type Store struct {
	cfg    types.QuestionsConfig
	client *http.Client
	cache  *lru.Cache[string, document]
	log    *zap.SugaredLogger
}

// NewStore returns a Store. A nil logger disables logging.
func NewStore(cfg types.QuestionsConfig, logger *zap.SugaredLogger) (*Store, error) {
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, document](size)
	if err != nil {
		return nil, errors.Wrap(err, "creating question cache")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		cache:  cache,
		log:    logger,
	}, nil
}

// Lookup returns the questions of category from the document ref points
// at. An empty ref yields a configuration with no questions, so any
// property of the category becomes a configuration error when asked.
func (s *Store) Lookup(ctx context.Context, category, ref string) (*CategoryQuestions, error) {
	if ref == "" {
		return &CategoryQuestions{Category: category}, nil
	}

	location, fragment := splitRef(ref)
	doc, err := s.load(ctx, location)
	if err != nil {
		return nil, &ConfigurationError{Category: category, Err: err}
	}

	cq, ok := doc[category]
	if !ok && fragment != "" {
		cq, ok = doc[fragment]
	}
	if !ok || cq == nil {
		return &CategoryQuestions{Category: category}, nil
	}
	out := *cq
	out.Category = category
	return &out, nil
}

// splitRef separates a reference such as file://q.json#Theft into the
// document location and the fragment.
func splitRef(ref string) (location, fragment string) {
	location = ref
	if i := strings.LastIndexByte(ref, '#'); i >= 0 {
		location, fragment = ref[:i], ref[i+1:]
	}
	return strings.TrimPrefix(location, "file://"), fragment
}

func (s *Store) load(ctx context.Context, location string) (document, error) {
	if doc, ok := s.cache.Get(location); ok {
		return doc, nil
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		data, err = s.fetch(ctx, location)
	} else {
		path := location
		if !filepath.IsAbs(path) && s.cfg.BaseDir != "" {
			path = filepath.Join(s.cfg.BaseDir, path)
		}
		data, err = os.ReadFile(path)
		err = errors.Wrapf(err, "reading %s", path)
	}
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", location)
	}
	s.cache.Add(location, doc)
	s.log.Debugw("loaded question document", "location", location, "categories", len(doc))
	return doc, nil
}

func (s *Store) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", url)
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", s.cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, s.client, req, s.cfg.MaxRetries, s.log)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("fetching %s: HTTP %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", url)
	}
	return data, nil
}
