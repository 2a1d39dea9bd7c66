// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/ontoguide/pkg/types"
)

// Export is the graph view of one batch: every individual found under any
// root category, and every assertion between them.
type Export struct {
	ID          string             `json:"id" yaml:"id"`
	Document    string             `json:"document" yaml:"document"`
	CreatedAt   time.Time          `json:"created_at" yaml:"created_at"`
	Categories  []string           `json:"categories" yaml:"categories"`
	Individuals []ExportIndividual `json:"individuals" yaml:"individuals"`
	Assertions  []ExportAssertion  `json:"assertions" yaml:"assertions"`
	Failures    []string           `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// ExportIndividual is a typed node.
type ExportIndividual struct {
	Name       string                `json:"name" yaml:"name"`
	Types      []string              `json:"types" yaml:"types"`
	NotTypes   []string              `json:"not_types,omitempty" yaml:"not_types,omitempty"`
	Properties []types.PropertyValue `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// ExportAssertion is an edge between two individuals.
type ExportAssertion struct {
	Subject   string `json:"subject" yaml:"subject"`
	Predicate string `json:"predicate" yaml:"predicate"`
	Object    string `json:"object" yaml:"object"`
	Evidence  string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Category  string `json:"category" yaml:"category"`
}

// BuildExport flattens a batch. Individuals with the same name and types
// found under several roots appear once.
func BuildExport(b types.AnalysisBatch) Export {
	ex := Export{ID: b.ID, Document: b.Document, CreatedAt: b.CreatedAt}
	seenCat := map[string]bool{}
	seenInd := map[string]int{}
	seenAssert := map[ExportAssertion]bool{}

	for _, q := range b.Queries {
		if q.Failed() {
			ex.Failures = append(ex.Failures, q.Root+": "+q.Error)
			continue
		}
		for _, c := range q.Existing() {
			if !seenCat[c] {
				seenCat[c] = true
				ex.Categories = append(ex.Categories, c)
			}
		}
		for _, e := range q.Entities {
			key := e.Name + "\x00" + e.PrimaryDomain()
			if i, ok := seenInd[key]; ok {
				ind := &ex.Individuals[i]
				ind.NotTypes = appendMissing(ind.NotTypes, e.NegativeDomain...)
				for _, pv := range e.Properties {
					if !hasValue(ind.Properties, pv) {
						ind.Properties = append(ind.Properties, pv)
					}
				}
				continue
			}
			seenInd[key] = len(ex.Individuals)
			ex.Individuals = append(ex.Individuals, ExportIndividual{
				Name:       e.Name,
				Types:      e.Domain,
				NotTypes:   append([]string(nil), e.NegativeDomain...),
				Properties: append([]types.PropertyValue(nil), e.Properties...),
			})
		}
		for _, r := range q.Relations {
			a := ExportAssertion{
				Subject:   r.DomainInstance,
				Predicate: r.Relation,
				Object:    r.RangeInstance,
				Evidence:  r.Evidence,
				Category:  r.Category,
			}
			if !seenAssert[a] {
				seenAssert[a] = true
				ex.Assertions = append(ex.Assertions, a)
			}
		}
	}
	return ex
}

// ExportYAML writes the batch id to resultsDir/export/<id>.yaml and
// returns the path.
func (s *Store) ExportYAML(ctx context.Context, id string) (string, error) {
	return s.export(ctx, id, ".yaml", yaml.Marshal)
}

// ExportJSON writes the batch id to resultsDir/export/<id>.json and
// returns the path.
func (s *Store) ExportJSON(ctx context.Context, id string) (string, error) {
	return s.export(ctx, id, ".json", func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	})
}

func (s *Store) export(ctx context.Context, id, ext string, marshal func(any) ([]byte, error)) (string, error) {
	b, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}

	dir := filepath.Join(s.resultsDir, exportDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating export directory")
	}
	data, err := marshal(BuildExport(b))
	if err != nil {
		return "", errors.Wrapf(err, "marshaling %s", ext)
	}
	path := filepath.Join(dir, id+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "writing %s", path)
	}
	return path, nil
}

func appendMissing(list []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, v := range list {
			if v == it {
				found = true
				break
			}
		}
		if !found {
			list = append(list, it)
		}
	}
	return list
}

func hasValue(list []types.PropertyValue, pv types.PropertyValue) bool {
	for _, v := range list {
		if v.Name == pv.Name && v.Value == pv.Value {
			return true
		}
	}
	return false
}

func decodeList(s string) []string {
	var out []string
	if s == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(s), &out)
	return out
}
