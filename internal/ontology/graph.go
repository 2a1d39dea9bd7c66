// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ontology

import (
	"sync"

	"github.com/pdiddy/ontoguide/internal/expr"
	"github.com/pdiddy/ontoguide/pkg/types"
)

// NoDepthLimit disables the traversal depth cutoff.
const NoDepthLimit = -1

// Result is the ordered output of a traversal.
type Result struct {
	Records         []types.TraversalRecord
	ByName          map[string]types.TraversalRecord
	MaxDepthReached int
}

// Contains reports whether category was visited.
func (r Result) Contains(category string) bool {
	_, ok := r.ByName[category]
	return ok
}

// Graph walks a Provider's categories.
type Graph struct {
	provider Provider
	parser   *expr.Parser

	inverseOnce sync.Once
	inverse     map[string][]string

	mu        sync.Mutex
	snapshots map[string]Result
}

// NewGraph returns a graph over provider. The parser classifies membership
// expressions for inverse edges.
func NewGraph(provider Provider, parser *expr.Parser) *Graph {
	return &Graph{
		provider:  provider,
		parser:    parser,
		snapshots: make(map[string]Result),
	}
}

type frame struct {
	category string
	parent   string
	depth    int
	relation types.DiscoveryRelation
}

// Traverse runs a depth-first search from root. Categories deeper than
// maxDepth are skipped entirely; pass NoDepthLimit for an unbounded walk.
// In combined mode a category is also reached from every category whose
// membership expression references it by name.
func (g *Graph) Traverse(root string, mode types.TraversalMode, maxDepth int) (Result, error) {
	if _, err := g.provider.Subclasses(root); err != nil {
		return Result{}, err
	}

	res := Result{ByName: make(map[string]types.TraversalRecord)}
	visited := make(map[string]bool)
	stack := []frame{{category: root, relation: types.RelationRoot}}

	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[f.category] {
			continue
		}
		if maxDepth >= 0 && f.depth > maxDepth {
			continue
		}
		visited[f.category] = true

		rec := types.TraversalRecord{
			Category: f.category,
			Depth:    f.depth,
			Parent:   f.parent,
			Relation: f.relation,
			Order:    len(res.Records),
		}
		res.Records = append(res.Records, rec)
		res.ByName[f.category] = rec
		if f.depth > res.MaxDepthReached {
			res.MaxDepthReached = f.depth
		}

		subs, err := g.provider.Subclasses(f.category)
		if err != nil {
			return Result{}, err
		}
		var children []frame
		for _, s := range subs {
			children = append(children, frame{s, f.category, f.depth + 1, types.RelationSubclass})
		}
		if mode == types.TraversalCombined {
			for _, s := range g.inverseRefs(f.category) {
				children = append(children, frame{s, f.category, f.depth + 1, types.RelationEquivalentToInverse})
			}
		}
		// Push in reverse so the first declared child is visited first.
		for i := len(children) - 1; i >= 0; i-- {
			if !visited[children[i].category] {
				stack = append(stack, children[i])
			}
		}
	}
	return res, nil
}

func (g *Graph) inverseRefs(category string) []string {
	g.inverseOnce.Do(g.buildInverse)
	return g.inverse[category]
}

// buildInverse indexes, for every category X, the categories whose
// membership expressions reference X at the top level.
func (g *Graph) buildInverse() {
	g.inverse = make(map[string][]string)
	names := g.provider.Categories()
	for _, c := range names {
		exprs, err := g.provider.MembershipExpressions(c)
		if err != nil {
			continue
		}
		for _, e := range exprs {
			shape, err := g.parser.Classify(e)
			if err != nil {
				// Reported when the category itself is evaluated.
				continue
			}
			for _, target := range referenced(shape) {
				if target == c || contains(g.inverse[target], c) {
					continue
				}
				g.inverse[target] = append(g.inverse[target], c)
			}
		}
	}
}

func referenced(s expr.Shape) []string {
	switch s.Kind {
	case expr.ShapeNamed:
		return []string{s.Name}
	case expr.ShapeIntersection, expr.ShapeUnion:
		var names []string
		for _, op := range s.Operands {
			if op.Kind == expr.ShapeNamed {
				names = append(names, op.Name)
			}
		}
		return names
	}
	return nil
}

// Narrower returns the more specific of two categories when one is a
// (non-strict) sub-category of the other.
func (g *Graph) Narrower(a, b string) (string, bool) {
	if a == b {
		return a, true
	}
	return Narrower(a, b, g.snapshot(a), g.snapshot(b))
}

// snapshot returns the memoized subclass-only traversal below category.
func (g *Graph) snapshot(category string) Result {
	g.mu.Lock()
	defer g.mu.Unlock()
	if r, ok := g.snapshots[category]; ok {
		return r
	}
	r, err := g.Traverse(category, types.TraversalSubclassOnly, NoDepthLimit)
	if err != nil {
		r = Result{ByName: map[string]types.TraversalRecord{}}
	}
	g.snapshots[category] = r
	return r
}

// Narrower resolves two categories against their subclass-only traversal
// snapshots: underA is the traversal rooted at a, underB the one rooted at b.
func Narrower(a, b string, underA, underB Result) (string, bool) {
	switch {
	case a == b:
		return a, true
	case underB.Contains(a):
		return a, true
	case underA.Contains(b):
		return b, true
	}
	return "", false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
