// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ontoguide/pkg/types"
)

// OracleSource opens an oracle over one document.
type OracleSource func(doc Document) (Oracle, error)

// BatchOptions configures AnalyzeAll.
type BatchOptions struct {
	// OutDir receives one <document>.yaml per analyzed document.
	OutDir string

	// Model is the default oracle model.
	Model string

	// Force re-analyzes documents whose result is newer than the document.
	Force bool

	// Save, when set, is called with every completed batch (e.g. to index it).
	Save func(types.AnalysisBatch) error
}

// BatchSummary holds counts from a multi-document run.
type BatchSummary struct {
	Analyzed int
	Skipped  int
	Failed   int
	// Partial counts analyzed documents with at least one failed root category.
	Partial int
}

// Total returns the number of documents processed.
func (s BatchSummary) Total() int {
	return s.Analyzed + s.Skipped + s.Failed
}

// HasFailures reports whether any document failed entirely.
func (s BatchSummary) HasFailures() bool {
	return s.Failed > 0
}

// AnalyzeAll analyzes each document in paths and writes its batch to
// opts.OutDir. Documents older than their result are skipped unless
// opts.Force is set. Progress is written to w.
func AnalyzeAll(ctx context.Context, a *Analyzer, open OracleSource, paths []string, opts BatchOptions, w io.Writer) (BatchSummary, error) {
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return BatchSummary{}, errors.Wrap(err, "creating output directory")
	}

	var summary BatchSummary
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		name := documentName(path)
		outPath := filepath.Join(opts.OutDir, name+".yaml")

		if !opts.Force {
			changed, err := hasChanged(path, outPath)
			if err != nil {
				fmt.Fprintf(w, "failed  %s: %v\n", name, err)
				summary.Failed++
				continue
			}
			if !changed {
				fmt.Fprintf(w, "skipped %s\n", name)
				summary.Skipped++
				continue
			}
		}

		doc, err := LoadDocument(path)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}
		o, err := open(doc)
		if err != nil {
			fmt.Fprintf(w, "failed  %s: %v\n", name, err)
			summary.Failed++
			continue
		}

		fmt.Fprintf(w, "analyzing %s\n", name)
		batch := a.AnalyzeDocument(ctx, doc, o, opts.Model)

		if err := WriteBatch(outPath, batch); err != nil {
			fmt.Fprintf(w, "failed  %s: write error: %v\n", name, err)
			summary.Failed++
			continue
		}
		if opts.Save != nil {
			if err := opts.Save(batch); err != nil {
				fmt.Fprintf(w, "failed  %s: save error: %v\n", name, err)
				summary.Failed++
				continue
			}
		}

		if batch.HasFailures() {
			summary.Partial++
		}
		fmt.Fprintf(w, "analyzed %s (%s)\n", name, describe(batch))
		summary.Analyzed++
	}
	return summary, nil
}

func describe(b types.AnalysisBatch) string {
	var existing, entities, failed int
	for _, q := range b.Queries {
		if q.Failed() {
			failed++
			continue
		}
		existing += len(q.Existing())
		entities += len(q.Entities)
	}
	s := fmt.Sprintf("%d categories, %d entities", existing, entities)
	if failed > 0 {
		s += fmt.Sprintf(", %d failed roots", failed)
	}
	return s
}

func documentName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}

// hasChanged reports whether the document is newer than its result.
// It returns true if the result does not exist.
func hasChanged(docPath, outPath string) (bool, error) {
	docInfo, err := os.Stat(docPath)
	if err != nil {
		return false, errors.Wrapf(err, "stat document %s", docPath)
	}
	outInfo, err := os.Stat(outPath)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, errors.Wrapf(err, "stat result %s", outPath)
	}
	return docInfo.ModTime().After(outInfo.ModTime()), nil
}

// WriteBatch marshals a batch to a YAML file.
func WriteBatch(path string, batch types.AnalysisBatch) error {
	data, err := yaml.Marshal(batch)
	if err != nil {
		return errors.Wrap(err, "marshaling batch")
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadBatch loads a batch written by WriteBatch.
func ReadBatch(path string) (types.AnalysisBatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return types.AnalysisBatch{}, errors.Wrapf(err, "reading batch %s", path)
	}
	var b types.AnalysisBatch
	if err := yaml.Unmarshal(data, &b); err != nil {
		return types.AnalysisBatch{}, errors.Wrapf(err, "decoding batch %s", path)
	}
	return b, nil
}
