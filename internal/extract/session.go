// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package extract walks parsed membership expressions against an oracle
// and assembles the entities and relations it finds into per-category and
// per-root-category analyses.
package extract

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pdiddy/ontoguide/pkg/types"
)

// Oracle answers one extraction question. oracle.Conversation implements it.
type Oracle interface {
	Ask(ctx context.Context, prompt, model string, schema json.RawMessage) (string, error)
}

// cacheKey identifies a question independent of the category asking it.
type cacheKey struct {
	domain   string
	element  string
	instance string
	rng      string
}

func newCacheKey(c types.OutcomeContent) cacheKey {
	return cacheKey{
		domain:   strings.Join(c.Domain, ","),
		element:  c.Element,
		instance: c.DomainInstance,
		rng:      strings.Join(c.Range, ","),
	}
}

// Session is the state of one document-processing request. Its answer
// cache is shared by every category and root category analyzed for the
// document and discarded with the session.
type Session struct {
	// ID identifies the batch produced by this session.
	ID string

	// Document names the document; it is also the subject individual.
	Document string

	// RootClass is the subject individual's category.
	RootClass string

	// Model is the oracle model used when a question names none.
	Model string

	Oracle Oracle

	mu     sync.Mutex
	cache  map[cacheKey]types.ContextRecord
	hits   int
	misses int
}

// NewSession returns a session with an empty cache.
func NewSession(document, rootClass, model string, o Oracle) *Session {
	return &Session{
		ID:        uuid.NewString(),
		Document:  document,
		RootClass: rootClass,
		Model:     model,
		Oracle:    o,
		cache:     make(map[cacheKey]types.ContextRecord),
	}
}

// Subject returns the document-level individual every analysis starts from.
func (s *Session) Subject() types.EntityRecord {
	return types.EntityRecord{Name: s.Document, Domain: []string{s.RootClass}}
}

func (s *Session) subjectOutcome() types.QueryOutcome {
	return types.QueryOutcome{
		Category: s.RootClass,
		Exists:   true,
		Content: types.OutcomeContent{
			Domain:   []string{s.RootClass},
			Range:    []string{s.RootClass},
			Response: []string{s.Document},
		},
	}
}

func (s *Session) lookup(key cacheKey) (types.ContextRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.cache[key]
	if ok {
		s.hits++
	} else {
		s.misses++
	}
	return rec, ok
}

func (s *Session) remember(key cacheKey, rec types.ContextRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[key] = rec
}

// CacheStats returns the number of cache hits and misses so far.
func (s *Session) CacheStats() (hits, misses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits, s.misses
}
