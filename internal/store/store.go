// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists analysis batches in SQLite and indexes the
// questions and answers behind them for full-text search.
//
// Layout under the results directory:
//
//	batches/<document>.yaml   one file per analyzed document
//	index/results.db          SQLite database
//	export/<batch>.{yaml,json}
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ontoguide/pkg/types"
)

const (
	BatchesDir = "batches"
	indexDir   = "index"
	exportDir  = "export"
	dbFile     = "results.db"

	defaultMaxResults = 20
)

// ErrNotFound is returned when a batch ID is not in the store.
var ErrNotFound = errors.New("batch not found")

// Store manages the results database.
type Store struct {
	db         *sql.DB
	resultsDir string
	maxResults int
}

// NewStore opens or creates the database at resultsDir/index/results.db
// and creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.ResultsDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "creating index directory")
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	s := &Store{db: db, resultsDir: cfg.ResultsDir, maxResults: maxResults}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating schema")
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS batches (
			id TEXT PRIMARY KEY,
			document TEXT NOT NULL,
			created_at TEXT NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS queries (
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			root TEXT NOT NULL,
			model TEXT,
			max_depth INTEGER,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS categories (
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			root TEXT NOT NULL,
			category TEXT NOT NULL,
			present INTEGER NOT NULL,
			excluded INTEGER NOT NULL,
			depth INTEGER,
			error TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			root TEXT NOT NULL,
			name TEXT NOT NULL,
			domain TEXT,
			negative_domain TEXT,
			properties TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS relations (
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			root TEXT NOT NULL,
			relation TEXT NOT NULL,
			domain_instance TEXT,
			range_instance TEXT,
			evidence TEXT,
			category TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS contexts (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			batch_id TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
			root TEXT NOT NULL,
			category TEXT NOT NULL,
			element TEXT NOT NULL,
			domain_instance TEXT,
			prompt TEXT,
			response TEXT,
			positive INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_categories_category ON categories(category)`,
		`CREATE INDEX IF NOT EXISTS idx_entities_name ON entities(name)`,
		`CREATE INDEX IF NOT EXISTS idx_contexts_batch ON contexts(batch_id)`,
		`CREATE TABLE IF NOT EXISTS indexing_status (
			document TEXT PRIMARY KEY,
			file_mod_time TEXT
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return errors.Wrap(err, "executing schema statement")
		}
	}

	// FTS5 virtual table kept in sync by triggers.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='contexts_fts'`,
	).Scan(&ftsExists); err != nil {
		return errors.Wrap(err, "checking FTS table")
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE contexts_fts USING fts5(prompt, response, content=contexts, content_rowid=rowid)`,
			`CREATE TRIGGER contexts_ai AFTER INSERT ON contexts BEGIN
				INSERT INTO contexts_fts(rowid, prompt, response) VALUES (new.rowid, new.prompt, new.response);
			END`,
			`CREATE TRIGGER contexts_ad AFTER DELETE ON contexts BEGIN
				INSERT INTO contexts_fts(contexts_fts, rowid, prompt, response) VALUES('delete', old.rowid, old.prompt, old.response);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return errors.Wrap(err, "creating FTS infrastructure")
			}
		}
	}
	return nil
}

// Save stores batch, replacing any batch with the same ID.
func (s *Store) Save(ctx context.Context, batch types.AnalysisBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "marshaling batch")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer tx.Rollback()

	// Children first so the FTS delete trigger sees every context row.
	for _, table := range []string{"contexts", "relations", "entities", "categories", "queries"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE batch_id = ?`, batch.ID); err != nil {
			return errors.Wrapf(err, "deleting previous %s", table)
		}
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, batch.ID); err != nil {
		return errors.Wrap(err, "deleting previous batch")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, document, created_at, payload) VALUES (?, ?, ?, ?)`,
		batch.ID, batch.Document, batch.CreatedAt.UTC().Format(time.RFC3339Nano), string(payload),
	); err != nil {
		return errors.Wrap(err, "inserting batch")
	}

	for _, q := range batch.Queries {
		if err := insertQuery(ctx, tx, batch.ID, q); err != nil {
			return errors.Wrapf(err, "storing root %s", q.Root)
		}
	}
	return tx.Commit()
}

func insertQuery(ctx context.Context, tx *sql.Tx, batchID string, q types.QueryAnalysis) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO queries (batch_id, root, model, max_depth, error) VALUES (?, ?, ?, ?, ?)`,
		batchID, q.Root, q.Model, q.MaxDepthReached, q.Error,
	); err != nil {
		return errors.Wrap(err, "inserting query")
	}

	for _, c := range q.Categories {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO categories (batch_id, root, category, present, excluded, depth, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batchID, q.Root, c.Category, c.Exists, c.Excluded, c.Depth, c.Error,
		); err != nil {
			return errors.Wrapf(err, "inserting category %s", c.Category)
		}
	}

	for _, e := range q.Entities {
		domain, _ := json.Marshal(e.Domain)
		negative, _ := json.Marshal(e.NegativeDomain)
		props, _ := json.Marshal(e.Properties)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (batch_id, root, name, domain, negative_domain, properties)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			batchID, q.Root, e.Name, string(domain), string(negative), string(props),
		); err != nil {
			return errors.Wrapf(err, "inserting entity %s", e.Name)
		}
	}

	for _, r := range q.Relations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO relations (batch_id, root, relation, domain_instance, range_instance, evidence, category)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			batchID, q.Root, r.Relation, r.DomainInstance, r.RangeInstance, r.Evidence, r.Category,
		); err != nil {
			return errors.Wrapf(err, "inserting relation %s", r.Relation)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO contexts (batch_id, root, category, element, domain_instance, prompt, response, positive)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "preparing context insert")
	}
	defer stmt.Close()

	contexts := append(append([]types.ContextRecord(nil), q.PositiveContexts...), q.NegativeContexts...)
	for _, c := range contexts {
		if _, err := stmt.ExecContext(ctx,
			batchID, q.Root, c.Category, c.Element, c.DomainInstance,
			c.Prompt, strings.Join(c.Response, "; "), c.Positive,
		); err != nil {
			return errors.Wrapf(err, "inserting context %s", c.Element)
		}
	}
	return nil
}

// Load returns the batch stored under id.
func (s *Store) Load(ctx context.Context, id string) (types.AnalysisBatch, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM batches WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return types.AnalysisBatch{}, errors.Wrapf(ErrNotFound, "batch %s", id)
	}
	if err != nil {
		return types.AnalysisBatch{}, errors.Wrap(err, "looking up batch")
	}

	var b types.AnalysisBatch
	if err := json.Unmarshal([]byte(payload), &b); err != nil {
		return types.AnalysisBatch{}, errors.Wrapf(err, "decoding batch %s", id)
	}
	return b, nil
}

// BatchInfo summarizes a stored batch.
type BatchInfo struct {
	ID        string    `json:"id" yaml:"id"`
	Document  string    `json:"document" yaml:"document"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Roots     int       `json:"roots" yaml:"roots"`
	Failed    int       `json:"failed" yaml:"failed"`
	Existing  int       `json:"existing" yaml:"existing"`
}

// List returns every stored batch, newest first.
func (s *Store) List(ctx context.Context) ([]BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT b.id, b.document, b.created_at,
			(SELECT count(*) FROM queries q WHERE q.batch_id = b.id),
			(SELECT count(*) FROM queries q WHERE q.batch_id = b.id AND q.error != ''),
			(SELECT count(*) FROM categories c WHERE c.batch_id = b.id AND c.present = 1 AND c.excluded = 0)
		FROM batches b
		ORDER BY b.created_at DESC, b.id`)
	if err != nil {
		return nil, errors.Wrap(err, "listing batches")
	}
	defer rows.Close()

	var out []BatchInfo
	for rows.Next() {
		var (
			info    BatchInfo
			created string
		)
		if err := rows.Scan(&info.ID, &info.Document, &created, &info.Roots, &info.Failed, &info.Existing); err != nil {
			return nil, errors.Wrap(err, "scanning batch row")
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, info)
	}
	return out, rows.Err()
}

// IngestSummary holds counts from an indexing run over batch files.
type IngestSummary struct {
	Indexed int
	Updated int
	Skipped int
	Failed  int
}

// Total returns the number of batch files processed.
func (s IngestSummary) Total() int {
	return s.Indexed + s.Updated + s.Skipped + s.Failed
}

// Ingest indexes the batch files under resultsDir/batches/, skipping files
// unchanged since they were last indexed.
func (s *Store) Ingest(ctx context.Context, w io.Writer) (IngestSummary, error) {
	dir := filepath.Join(s.resultsDir, BatchesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return IngestSummary{}, errors.Wrapf(err, "reading batch directory %s", dir)
	}

	var summary IngestSummary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := strings.TrimSuffix(entry.Name(), ".yaml")
		info, err := entry.Info()
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		modTime := info.ModTime().UTC().Format(time.RFC3339Nano)

		var stored string
		err = s.db.QueryRowContext(ctx,
			`SELECT file_mod_time FROM indexing_status WHERE document = ?`, name,
		).Scan(&stored)
		if err == nil && stored == modTime {
			fmt.Fprintf(w, "skipped %s\n", name)
			summary.Skipped++
			continue
		}
		isUpdate := err == nil

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		var batch types.AnalysisBatch
		if err := yaml.Unmarshal(data, &batch); err != nil {
			fmt.Fprintf(w, "failed  %s: parse error: %v\n", name, err)
			summary.Failed++
			continue
		}
		if batch.ID == "" {
			fmt.Fprintf(w, "failed  %s: batch has no id\n", name)
			summary.Failed++
			continue
		}

		if err := s.Save(ctx, batch); err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO indexing_status (document, file_mod_time) VALUES (?, ?)
			 ON CONFLICT(document) DO UPDATE SET file_mod_time=excluded.file_mod_time`,
			name, modTime,
		); err != nil {
			fmt.Fprintf(w, "failed  %s: updating indexing status: %v\n", name, err)
			summary.Failed++
			continue
		}

		if isUpdate {
			fmt.Fprintf(w, "updated %s (%d roots)\n", name, len(batch.Queries))
			summary.Updated++
		} else {
			fmt.Fprintf(w, "indexing %s (%d roots)\n", name, len(batch.Queries))
			summary.Indexed++
		}
	}

	fmt.Fprintf(w, "\nindexed: %d, updated: %d, skipped: %d, failed: %d\n",
		summary.Indexed, summary.Updated, summary.Skipped, summary.Failed)
	return summary, nil
}
