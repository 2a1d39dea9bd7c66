// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
)

// Polarity filters contexts by the oracle's answer.
type Polarity string

const (
	PolarityAny      Polarity = ""
	PolarityPositive Polarity = "positive"
	PolarityNegative Polarity = "negative"
)

// QueryOptions holds parameters for context searches.
type QueryOptions struct {
	// Query is the FTS5 full-text search string over prompts and answers.
	Query string

	// Document filters by document name.
	Document string

	// Category filters by the category that asked the question.
	Category string

	// Element filters by property.
	Element string

	Polarity Polarity

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// IsEmpty reports whether the query has no search terms or filters.
func (q QueryOptions) IsEmpty() bool {
	return q.Query == "" && q.Document == "" && q.Category == "" && q.Element == "" && q.Polarity == PolarityAny
}

// ContextHit is a stored question and answer with its batch.
type ContextHit struct {
	BatchID        string `json:"batch_id" yaml:"batch_id"`
	Document       string `json:"document" yaml:"document"`
	Root           string `json:"root" yaml:"root"`
	Category       string `json:"category" yaml:"category"`
	Element        string `json:"element" yaml:"element"`
	DomainInstance string `json:"domain_instance,omitempty" yaml:"domain_instance,omitempty"`
	Prompt         string `json:"prompt" yaml:"prompt"`
	Response       string `json:"response" yaml:"response"`
	Positive       bool   `json:"positive" yaml:"positive"`
}

// Search queries stored contexts with optional full-text search and
// structured filters. Full-text results are ranked by relevance; others
// are ordered by document and insertion.
func (s *Store) Search(ctx context.Context, opts QueryOptions) ([]ContextHit, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT c.batch_id, b.document, c.root, c.category, c.element,
				c.domain_instance, c.prompt, c.response, c.positive
			FROM contexts_fts
			JOIN contexts c ON c.rowid = contexts_fts.rowid
			JOIN batches b ON b.id = c.batch_id
			WHERE contexts_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT c.batch_id, b.document, c.root, c.category, c.element,
				c.domain_instance, c.prompt, c.response, c.positive
			FROM contexts c
			JOIN batches b ON b.id = c.batch_id
			WHERE 1=1`)
	}

	if opts.Document != "" {
		qb.WriteString(` AND b.document = ?`)
		args = append(args, opts.Document)
	}
	if opts.Category != "" {
		qb.WriteString(` AND c.category = ?`)
		args = append(args, opts.Category)
	}
	if opts.Element != "" {
		qb.WriteString(` AND c.element = ?`)
		args = append(args, opts.Element)
	}
	switch opts.Polarity {
	case PolarityPositive:
		qb.WriteString(` AND c.positive = 1`)
	case PolarityNegative:
		qb.WriteString(` AND c.positive = 0`)
	}

	if useFTS {
		qb.WriteString(` ORDER BY contexts_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY b.document, c.rowid`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying contexts")
	}
	defer rows.Close()

	var hits []ContextHit
	for rows.Next() {
		var h ContextHit
		if err := rows.Scan(&h.BatchID, &h.Document, &h.Root, &h.Category, &h.Element,
			&h.DomainInstance, &h.Prompt, &h.Response, &h.Positive); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// EntityHit is a stored entity with its batch.
type EntityHit struct {
	BatchID  string   `json:"batch_id" yaml:"batch_id"`
	Document string   `json:"document" yaml:"document"`
	Root     string   `json:"root" yaml:"root"`
	Name     string   `json:"name" yaml:"name"`
	Domain   []string `json:"domain" yaml:"domain"`
}

// Entities returns stored entities whose domain includes category. An
// empty category matches every entity.
func (s *Store) Entities(ctx context.Context, category string) ([]EntityHit, error) {
	q := `SELECT e.batch_id, b.document, e.root, e.name, e.domain
		FROM entities e JOIN batches b ON b.id = e.batch_id`
	var args []any
	if category != "" {
		q += ` WHERE EXISTS (SELECT 1 FROM json_each(e.domain) WHERE value = ?)`
		args = append(args, category)
	}
	q += ` ORDER BY b.document, e.name LIMIT ?`
	args = append(args, s.maxResults)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying entities")
	}
	defer rows.Close()

	var hits []EntityHit
	for rows.Next() {
		var (
			h      EntityHit
			domain string
		)
		if err := rows.Scan(&h.BatchID, &h.Document, &h.Root, &h.Name, &domain); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		h.Domain = decodeList(domain)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
