// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/pdiddy/ontoguide/internal/expr"
	"github.com/pdiddy/ontoguide/internal/ontology"
	"github.com/pdiddy/ontoguide/internal/oracle"
	"github.com/pdiddy/ontoguide/internal/questions"
	"github.com/pdiddy/ontoguide/pkg/types"
)

// Engine evaluates the node list of one category against a session's oracle.
type Engine struct {
	provider ontology.Provider
	log      *zap.SugaredLogger
}

// NewEngine returns an engine that validates properties against provider.
// A nil logger disables logging.
func NewEngine(provider ontology.Provider, logger *zap.SugaredLogger) *Engine {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Engine{provider: provider, log: logger}
}

// scope is the active subject type and the outcomes that resolved it at
// one nesting level. Scopes are indexed by node level.
type scope struct {
	domain   []string
	outcomes []types.QueryOutcome
}

// walker holds the mutable state of one category evaluation.
type walker struct {
	*Engine
	session   *Session
	query     *types.QueryAnalysis
	questions *questions.CategoryQuestions
	result    types.CategoryAnalysis

	scopes []scope
	// notLevel is the level of the pending NOT operator, or -1.
	notLevel int
}

// Evaluate walks nodes in order and returns the category's analysis. The
// category exists unless a property step finds nothing; the walk stops at
// the first such step. query supplies individuals found by earlier
// categories and is not modified.
//
// Parse, configuration and ontology lookup failures are returned along with
// a non-existent analysis. Oracle failures are returned as *oracle.Error.
func (e *Engine) Evaluate(ctx context.Context, s *Session, query *types.QueryAnalysis, rec types.TraversalRecord, nodes []expr.Node, qs *questions.CategoryQuestions) (types.CategoryAnalysis, error) {
	if qs == nil {
		qs = &questions.CategoryQuestions{Category: rec.Category}
	}
	w := &walker{
		Engine:    e,
		session:   s,
		query:     query,
		questions: qs,
		result: types.CategoryAnalysis{
			Category: rec.Category,
			Exists:   true,
			Depth:    rec.Depth,
			Order:    rec.Order,
			Parent:   rec.Parent,
			Relation: rec.Relation,
		},
		notLevel: -1,
	}

	for _, n := range nodes {
		ok, err := w.step(ctx, n)
		if err != nil {
			w.result.Exists = false
			return w.result, err
		}
		if !ok {
			w.result.Exists = false
			e.log.Debugw("category does not hold", "category", rec.Category, "element", n.Element)
			break
		}
	}
	return w.result, nil
}

// step processes one node and reports whether evaluation continues.
func (w *walker) step(ctx context.Context, n expr.Node) (bool, error) {
	if len(w.scopes) == 0 {
		w.scopes = []scope{{
			domain:   []string{w.session.RootClass},
			outcomes: []types.QueryOutcome{w.session.subjectOutcome()},
		}}
		if n.Kind == expr.KindEntity {
			// The leading entity names the category's subject.
			w.restore(n.Level)
			return true, nil
		}
	}
	w.restore(n.Level)
	if w.notLevel >= 0 && n.Level <= w.notLevel {
		w.notLevel = -1
	}

	switch n.Kind {
	case expr.KindEntity:
		w.scopes[n.Level].domain = []string{n.Element}
		return true, nil
	case expr.KindOperator:
		if n.Element == expr.OpNot {
			w.notLevel = n.Level
		}
		return true, nil
	case expr.KindDataProperty, expr.KindObjectProperty:
		return w.property(ctx, n)
	default:
		return true, nil
	}
}

// restore makes scope level the innermost one, dropping deeper scopes or
// extending the innermost scope down to level.
func (w *walker) restore(level int) {
	if len(w.scopes) > level+1 {
		w.scopes = w.scopes[:level+1]
		return
	}
	for len(w.scopes) < level+1 {
		w.scopes = append(w.scopes, w.scopes[len(w.scopes)-1])
	}
}

func (w *walker) open(level int, sc scope) {
	w.restore(level - 1)
	w.scopes = append(w.scopes, sc)
}

func (w *walker) property(ctx context.Context, n expr.Node) (bool, error) {
	current := w.scopes[n.Level]
	negated := w.notLevel >= 0 && w.notLevel < n.Level

	domain := current.domain
	instances := instancesOf(current.outcomes)
	if n.Subject != "" {
		domain = []string{n.Subject}
		instances = w.known(n.Subject)
	}
	if len(instances) == 0 {
		instances = []string{""}
	}

	rng, err := w.rangeOf(n)
	if err != nil {
		return false, err
	}

	q, err := w.questions.Question(n.Element)
	if errors.Is(err, questions.ErrNotRequired) {
		w.log.Debugw("no question required", "category", w.result.Category, "element", n.Element)
		w.open(n.Level+1, scope{domain: rng, outcomes: current.outcomes})
		return true, nil
	}
	if err != nil {
		return false, err
	}

	outcomes := make([]types.QueryOutcome, 0, len(instances))
	exists := false
	for _, inst := range instances {
		out, err := w.ask(ctx, q, n, domain, inst, rng)
		if err != nil {
			return false, err
		}
		if negated {
			out = w.negate(out, n)
		} else if out.Exists {
			w.assert(n, out)
		}
		outcomes = append(outcomes, out)
		exists = exists || out.Exists
	}
	if negated {
		w.notLevel = -1
	}

	w.open(n.Level+1, scope{domain: rng, outcomes: outcomes})
	return exists, nil
}

// rangeOf checks that the property exists and returns the node's range,
// falling back to the declared range.
func (w *walker) rangeOf(n expr.Node) ([]string, error) {
	if _, err := w.provider.PropertyDomain(n.Element); err != nil {
		return nil, err
	}
	if len(n.Range) > 0 {
		return n.Range, nil
	}
	if n.Kind == expr.KindDataProperty {
		return w.provider.LiteralRange(n.Element)
	}
	return w.provider.PropertyRange(n.Element)
}

// ask answers one question, replaying the session cache when the same
// question was asked before.
func (w *walker) ask(ctx context.Context, q questions.Question, n expr.Node, domain []string, instance string, rng []string) (types.QueryOutcome, error) {
	content := types.OutcomeContent{
		Element:        n.Element,
		Domain:         domain,
		DomainInstance: instance,
		Range:          rng,
	}
	key := newCacheKey(content)

	if rec, ok := w.session.lookup(key); ok {
		rec.Category = w.result.Category
		w.result.Contexts = append(w.result.Contexts, rec)
		return types.QueryOutcome{
			Category:     w.result.Category,
			Exists:       rec.Positive,
			Content:      rec.OutcomeContent,
			Inconclusive: rec.Inconclusive,
			Cached:       true,
		}, nil
	}

	model := q.Model(w.session.Model)
	content.Prompt = q.Render(model, instance)
	raw, err := w.session.Oracle.Ask(ctx, content.Prompt, model, q.Schema())
	if err != nil {
		return types.QueryOutcome{}, asOracleError(err, model)
	}

	ans := oracle.ParseAnswer(raw)
	if ans.Malformed {
		w.log.Warnw("undecodable oracle answer", "category", w.result.Category, "element", n.Element, "answer", raw)
	}
	content.Response = answerValues(n, ans)
	content.Evidence = answerEvidence(ans, len(content.Response))

	rec := types.ContextRecord{
		OutcomeContent: content,
		Category:       w.result.Category,
		Positive:       len(content.Response) > 0,
		Inconclusive:   ans.Malformed,
	}
	w.session.remember(key, rec)
	w.result.Contexts = append(w.result.Contexts, rec)

	return types.QueryOutcome{
		Category:     w.result.Category,
		Exists:       rec.Positive,
		Content:      content,
		Inconclusive: ans.Malformed,
	}, nil
}

// negate flips a negated outcome. A missing filler makes the negation hold
// and is recorded on the instance as a negative constraint.
func (w *walker) negate(out types.QueryOutcome, n expr.Node) types.QueryOutcome {
	if out.Exists {
		out.Exists = false
		return out
	}
	out.Exists = true
	if inst := out.Content.DomainInstance; inst != "" {
		e := w.entity(inst, out.Content.Domain)
		e.NegativeDomain = appendUnique(e.NegativeDomain, negativeConstraint(n.Element, out.Content.Range))
	}
	return out
}

func negativeConstraint(property string, rng []string) string {
	target := "Thing"
	if len(rng) > 0 {
		target = strings.Join(rng, " or ")
	}
	return fmt.Sprintf("not (%s some %s)", property, target)
}

// assert records the individuals and assertions of a positive outcome.
func (w *walker) assert(n expr.Node, out types.QueryOutcome) {
	c := out.Content
	if n.Kind == expr.KindDataProperty {
		if c.DomainInstance == "" {
			w.log.Debugw("data property without subject individual", "category", w.result.Category, "element", n.Element)
			return
		}
		e := w.entity(c.DomainInstance, c.Domain)
		for _, v := range c.Response {
			e.Properties = append(e.Properties, types.PropertyValue{Name: n.Element, Value: v, Range: c.Range})
		}
		return
	}

	for i, v := range c.Response {
		w.entity(v, c.Range)
		rel := types.RelationRecord{
			Relation:       n.Element,
			Domain:         c.Domain,
			DomainInstance: c.DomainInstance,
			Range:          c.Range,
			RangeInstance:  v,
			Category:       w.result.Category,
		}
		if i < len(c.Evidence) {
			rel.Evidence = c.Evidence[i]
		}
		w.result.Relations = append(w.result.Relations, rel)
	}
}

// entity returns the category-local record for name, creating it with
// domain when absent.
func (w *walker) entity(name string, domain []string) *types.EntityRecord {
	for i := range w.result.Entities {
		if w.result.Entities[i].Name == name {
			return &w.result.Entities[i]
		}
	}
	w.result.Entities = append(w.result.Entities, types.EntityRecord{
		Name:   name,
		Domain: append([]string(nil), domain...),
	})
	return &w.result.Entities[len(w.result.Entities)-1]
}

// known returns the individuals of category found so far, local ones first.
func (w *walker) known(category string) []string {
	var names []string
	collect := func(entities []types.EntityRecord) {
		for _, e := range entities {
			if contains(e.Domain, category) {
				names = appendUnique(names, e.Name)
			}
		}
	}
	collect(w.result.Entities)
	if w.query != nil {
		collect(w.query.Entities)
	}
	return names
}

func instancesOf(outcomes []types.QueryOutcome) []string {
	var out []string
	for _, o := range outcomes {
		for _, v := range o.Instances() {
			out = appendUnique(out, v)
		}
	}
	return out
}

// answerValues prefers the field named after a data property when the
// oracle answered with an object.
func answerValues(n expr.Node, ans oracle.Answer) []string {
	if n.Kind == expr.KindDataProperty {
		if v, ok := ans.Fields[n.Element]; ok {
			return []string{v}
		}
	}
	return ans.Values
}

func answerEvidence(ans oracle.Answer, n int) []string {
	var ev []string
	found := false
	for i := 0; i < n; i++ {
		e := ans.Evidence(i)
		found = found || e != ""
		ev = append(ev, e)
	}
	if !found {
		return nil
	}
	return ev
}

func asOracleError(err error, model string) error {
	var oe *oracle.Error
	if errors.As(err, &oe) {
		return err
	}
	return &oracle.Error{Model: model, Attempts: 1, Err: err}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func appendUnique(list []string, s string) []string {
	if contains(list, s) {
		return list
	}
	return append(list, s)
}
