// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/ontoguide/internal/expr"
	"github.com/pdiddy/ontoguide/internal/ontology"
	"github.com/pdiddy/ontoguide/internal/oracle"
	"github.com/pdiddy/ontoguide/internal/questions"
	"github.com/pdiddy/ontoguide/pkg/types"
)

// Document is a plain-text document to analyze.
type Document struct {
	// Name identifies the document and names its subject individual.
	Name string
	Path string
	Text string
}

// documentExts are the formats read directly. Other formats must be
// converted to text first.
var documentExts = map[string]bool{".txt": true, ".md": true}

// LoadDocument reads a .txt or .md file. The document name is the file
// name without extension.
func LoadDocument(path string) (Document, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !documentExts[ext] {
		return Document{}, errors.Newf("unsupported document format %q (convert to .txt or .md first)", ext)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, errors.Wrapf(err, "reading document %s", path)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return Document{}, errors.Newf("document %s is empty", path)
	}
	return Document{
		Name: strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path: path,
		Text: text,
	}, nil
}

// QuestionSource resolves a category's question configuration.
// questions.Store implements it.
type QuestionSource interface {
	Lookup(ctx context.Context, category, ref string) (*questions.CategoryQuestions, error)
}

// Analyzer runs the full pipeline for a document: traversal of every root
// category, expression parsing, evaluation with pruning, and accumulation.
type Analyzer struct {
	provider  ontology.Provider
	parser    *expr.Parser
	graph     *ontology.Graph
	engine    *Engine
	questions QuestionSource
	cfg       types.AnalysisConfig
	rootClass string
	log       *zap.SugaredLogger
}

// NewAnalyzer returns an analyzer over onto. Root categories default to
// the ontology's root class. A nil logger disables logging.
func NewAnalyzer(onto *ontology.Ontology, qs QuestionSource, cfg types.AnalysisConfig, logger *zap.SugaredLogger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Mode == "" {
		cfg.Mode = types.TraversalCombined
	}
	if len(cfg.RootCategories) == 0 {
		cfg.RootCategories = []string{onto.Root}
	}
	parser := expr.New(onto, onto.Prefixes...)
	return &Analyzer{
		provider:  onto,
		parser:    parser,
		graph:     ontology.NewGraph(onto, parser),
		engine:    NewEngine(onto, logger),
		questions: qs,
		cfg:       cfg,
		rootClass: onto.Root,
		log:       logger,
	}
}

// AnalyzeDocument analyzes doc with o, which must already hold the
// document text. Each root category yields either a populated
// QueryAnalysis or one carrying only an error marker.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, doc Document, o Oracle, model string) types.AnalysisBatch {
	start := time.Now()
	s := NewSession(doc.Name, a.rootClass, model, o)
	batch := types.AnalysisBatch{
		ID:        s.ID,
		Document:  doc.Name,
		CreatedAt: start.UTC(),
	}

	for _, root := range a.cfg.RootCategories {
		batch.Queries = append(batch.Queries, a.analyzeRoot(ctx, s, root))
	}

	hits, misses := s.CacheStats()
	a.log.Infow("document analyzed",
		"document", doc.Name,
		"batch", s.ID,
		"roots", len(batch.Queries),
		"cache_hits", hits,
		"cache_misses", misses,
		"elapsed", time.Since(start))
	return batch
}

func (a *Analyzer) analyzeRoot(ctx context.Context, s *Session, root string) types.QueryAnalysis {
	failed := func(err error) types.QueryAnalysis {
		a.log.Errorw("root category failed", "root", root, "document", s.Document, "error", err)
		return types.QueryAnalysis{Root: root, Model: s.Model, Error: err.Error()}
	}

	res, err := a.graph.Traverse(root, a.cfg.Mode, a.cfg.MaxDepth)
	if err != nil {
		return failed(errors.Wrapf(err, "traversing %s", root))
	}

	qa := types.QueryAnalysis{
		Root:            root,
		Model:           s.Model,
		Entities:        []types.EntityRecord{s.Subject()},
		MaxDepthReached: res.MaxDepthReached,
	}

	excludedDepth := -1
	for _, rec := range res.Records {
		if excludedDepth >= 0 && rec.Depth > excludedDepth {
			qa.Categories = append(qa.Categories, types.CategoryAnalysis{
				Category: rec.Category,
				Excluded: true,
				Depth:    rec.Depth,
				Order:    rec.Order,
				Parent:   rec.Parent,
				Relation: rec.Relation,
			})
			continue
		}

		ca, err := a.evaluate(ctx, s, &qa, rec)
		if err != nil {
			if errors.Is(err, oracle.ErrOracle) {
				return failed(err)
			}
			a.log.Warnw("category aborted", "category", rec.Category, "error", err)
			ca.Error = err.Error()
		}
		Merge(&qa, ca, a.graph)

		switch {
		case !ca.Exists && excludedDepth < 0:
			excludedDepth = rec.Depth
		case ca.Exists && excludedDepth >= 0 && rec.Depth <= excludedDepth:
			excludedDepth = -1
		}
	}
	return qa
}

func (a *Analyzer) evaluate(ctx context.Context, s *Session, qa *types.QueryAnalysis, rec types.TraversalRecord) (types.CategoryAnalysis, error) {
	nodes, err := a.Nodes(rec.Category)
	if err != nil {
		return abortedCategory(rec), err
	}

	var qs *questions.CategoryQuestions
	if asksQuestions(nodes) {
		ref, err := a.provider.QuestionConfigRef(rec.Category)
		if err != nil {
			return abortedCategory(rec), err
		}
		if qs, err = a.questions.Lookup(ctx, rec.Category, ref); err != nil {
			return abortedCategory(rec), err
		}
	}
	return a.engine.Evaluate(ctx, s, qa, rec, nodes, qs)
}

// Nodes parses every membership expression of category into one node
// list; separate expressions are joined as a conjunction.
func (a *Analyzer) Nodes(category string) ([]expr.Node, error) {
	exprs, err := a.provider.MembershipExpressions(category)
	if err != nil {
		return nil, err
	}
	var nodes []expr.Node
	for i, x := range exprs {
		parsed, err := a.parser.Parse(x, 0)
		if err != nil {
			return nil, err
		}
		if i > 0 && len(nodes) > 0 {
			nodes = append(nodes, expr.Node{Level: 0, Kind: expr.KindOperator, Element: expr.OpAnd})
		}
		nodes = append(nodes, parsed...)
	}
	return nodes, nil
}

func asksQuestions(nodes []expr.Node) bool {
	for _, n := range nodes {
		if n.IsProperty() {
			return true
		}
	}
	return false
}

func abortedCategory(rec types.TraversalRecord) types.CategoryAnalysis {
	return types.CategoryAnalysis{
		Category: rec.Category,
		Depth:    rec.Depth,
		Order:    rec.Order,
		Parent:   rec.Parent,
		Relation: rec.Relation,
	}
}
