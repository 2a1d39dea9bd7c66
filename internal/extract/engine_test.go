// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ontoguide/internal/expr"
	"github.com/pdiddy/ontoguide/internal/ontology"
	"github.com/pdiddy/ontoguide/internal/oracle"
	"github.com/pdiddy/ontoguide/internal/questions"
	"github.com/pdiddy/ontoguide/pkg/types"
)

// --- test doubles ---

// scriptedOracle answers by exact prompt; unknown prompts get an empty answer.
type scriptedOracle struct {
	answers map[string]string
	fail    map[string]bool
	calls   map[string]int
	total   int
}

func newScriptedOracle(answers map[string]string) *scriptedOracle {
	return &scriptedOracle{answers: answers, fail: map[string]bool{}, calls: map[string]int{}}
}

func (o *scriptedOracle) Ask(_ context.Context, prompt, _ string, _ json.RawMessage) (string, error) {
	o.total++
	o.calls[prompt]++
	if o.fail[prompt] {
		return "", errors.New("connection reset")
	}
	if a, ok := o.answers[prompt]; ok {
		return a, nil
	}
	return `{"respuesta": []}`, nil
}

// memQuestions serves question configurations from memory.
type memQuestions map[string]*questions.CategoryQuestions

func (m memQuestions) Lookup(_ context.Context, category, _ string) (*questions.CategoryQuestions, error) {
	if cq, ok := m[category]; ok {
		out := *cq
		out.Category = category
		return &out, nil
	}
	return &questions.CategoryQuestions{Category: category}, nil
}

func question(element, prompt string) questions.Question {
	return questions.Question{Element: element, Prompt: questions.Fragments{"default": prompt}}
}

func asks(qs ...questions.Question) *questions.CategoryQuestions {
	return &questions.CategoryQuestions{Questions: qs}
}

const reportOntology = `
namespace: onto
root_class: Report
categories:
  - name: Report
    equivalent_to:
      - "hasVictim.some(Victim) & Victim.hasLoss.some(StolenGoods)"
  - name: Person
  - name: Victim
    subclass_of: [Person]
  - name: StolenGoods
  - name: Violence
object_properties:
  - name: hasVictim
    domain: [Report]
    range: [Victim]
  - name: hasLoss
    domain: [Victim]
    range: [StolenGoods]
  - name: usedViolence
    domain: [Report]
    range: [Violence]
data_properties:
  - name: hasAge
    domain: [Person]
    range: [integer]
`

func loadOntology(t *testing.T, src string) *ontology.Ontology {
	t.Helper()
	o, err := ontology.Parse([]byte(src))
	require.NoError(t, err)
	return o
}

func parse(t *testing.T, o *ontology.Ontology, expression string) []expr.Node {
	t.Helper()
	nodes, err := expr.New(o, o.Prefixes...).Parse(expression, 0)
	require.NoError(t, err)
	return nodes
}

func rootRecord(category string) types.TraversalRecord {
	return types.TraversalRecord{Category: category, Relation: types.RelationRoot}
}

func findEntity(entities []types.EntityRecord, name string) (types.EntityRecord, bool) {
	for _, e := range entities {
		if e.Name == name {
			return e, true
		}
	}
	return types.EntityRecord{}, false
}

// --- Evaluate ---

func TestEvaluate_VictimAndLoss(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{
		"Who is the victim of report-1?": `{"respuesta": ["V1"], "referencia": [["line 2"]]}`,
		"What did V1 lose?":              `{"respuesta": ["bicycle"]}`,
	})
	qs := asks(
		question("hasVictim", "Who is the victim of $_elemento?"),
		question("hasLoss", "What did $_elemento lose?"),
	)
	s := NewSession("report-1", "Report", "m", orc)
	nodes := parse(t, o, "hasVictim.some(Victim) & Victim.hasLoss.some(StolenGoods)")

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
	require.NoError(t, err)
	assert.True(t, ca.Exists)
	assert.Equal(t, 2, orc.total)

	v1, ok := findEntity(ca.Entities, "V1")
	require.True(t, ok)
	assert.Equal(t, []string{"Victim"}, v1.Domain)
	bike, ok := findEntity(ca.Entities, "bicycle")
	require.True(t, ok)
	assert.Equal(t, []string{"StolenGoods"}, bike.Domain)

	require.Len(t, ca.Relations, 2)
	assert.Equal(t, types.RelationRecord{
		Relation:       "hasVictim",
		Domain:         []string{"Report"},
		DomainInstance: "report-1",
		Range:          []string{"Victim"},
		RangeInstance:  "V1",
		Evidence:       "line 2",
		Category:       "Report",
	}, ca.Relations[0])
	assert.Equal(t, "hasLoss", ca.Relations[1].Relation)
	assert.Equal(t, "V1", ca.Relations[1].DomainInstance)
	assert.Equal(t, "bicycle", ca.Relations[1].RangeInstance)
	assert.Equal(t, []string{"Victim"}, ca.Relations[1].Domain)

	require.Len(t, ca.Contexts, 2)
	assert.True(t, ca.Contexts[0].Positive)
	assert.Equal(t, "Who is the victim of report-1?", ca.Contexts[0].Prompt)
}

func TestEvaluate_NestedFanOut(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{
		"Victims of report-1?": `{"respuesta": ["V1", "V2"]}`,
		"Loss of V1?":          `{"respuesta": ["bicycle"]}`,
	})
	qs := asks(question("hasVictim", "Victims of $_elemento?"), question("hasLoss", "Loss of $_elemento?"))
	s := NewSession("report-1", "Report", "m", orc)
	nodes := parse(t, o, "hasVictim.some(hasLoss.some(StolenGoods))")

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
	require.NoError(t, err)

	// One question per resolved victim; V2 lost nothing but V1 did.
	assert.Equal(t, 1, orc.calls["Loss of V1?"])
	assert.Equal(t, 1, orc.calls["Loss of V2?"])
	assert.True(t, ca.Exists)
	require.Len(t, ca.Relations, 3)
	assert.Equal(t, "V1", ca.Relations[2].DomainInstance)
}

func TestEvaluate_EmptyAnswerAbortsCategory(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(nil)
	qs := asks(question("hasVictim", "Victims?"), question("hasLoss", "Loss of $_elemento?"))
	s := NewSession("report-1", "Report", "m", orc)
	nodes := parse(t, o, "hasVictim.some(Victim) & Victim.hasLoss.some(StolenGoods)")

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
	require.NoError(t, err)
	assert.False(t, ca.Exists)
	assert.Equal(t, 1, orc.total, "evaluation stops at the first empty answer")
	require.Len(t, ca.Contexts, 1)
	assert.False(t, ca.Contexts[0].Positive)
	assert.Empty(t, ca.Entities)
}

func TestEvaluate_MalformedAnswerIsInconclusive(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{"Victims?": "I am not sure."})
	s := NewSession("report-1", "Report", "m", orc)

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"),
		parse(t, o, "hasVictim.some(Victim)"), asks(question("hasVictim", "Victims?")))
	require.NoError(t, err)
	assert.False(t, ca.Exists)
	require.Len(t, ca.Contexts, 1)
	assert.True(t, ca.Contexts[0].Inconclusive)
	assert.False(t, ca.Contexts[0].Positive)
}

func TestEvaluate_CacheIdempotence(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{"Victims?": `{"respuesta": ["V1"]}`})
	qs := asks(question("hasVictim", "Victims?"))
	s := NewSession("report-1", "Report", "m", orc)
	nodes := parse(t, o, "hasVictim.some(Victim)")
	e := NewEngine(o, nil)

	first, err := e.Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
	require.NoError(t, err)
	second, err := e.Evaluate(context.Background(), s, nil, rootRecord("Theft"), nodes, qs)
	require.NoError(t, err)

	assert.Equal(t, 1, orc.total)
	require.Len(t, first.Contexts, 1)
	require.Len(t, second.Contexts, 1)
	assert.Equal(t, first.Contexts[0].OutcomeContent, second.Contexts[0].OutcomeContent)
	assert.Equal(t, "Theft", second.Contexts[0].Category)
	assert.Equal(t, first.Relations[0].RangeInstance, second.Relations[0].RangeInstance)

	hits, misses := s.CacheStats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)
}

func TestEvaluate_CacheIsPerSession(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{"Victims?": `{"respuesta": ["V1"]}`})
	qs := asks(question("hasVictim", "Victims?"))
	nodes := parse(t, o, "hasVictim.some(Victim)")
	e := NewEngine(o, nil)

	for i := 0; i < 2; i++ {
		s := NewSession("report-1", "Report", "m", orc)
		_, err := e.Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, orc.total)
}

func TestEvaluate_NotPolarity(t *testing.T) {
	o := loadOntology(t, reportOntology)
	qs := asks(question("usedViolence", "Was violence used?"))
	nodes := parse(t, o, "Not(usedViolence.some(Violence))")

	tests := []struct {
		name       string
		answer     string
		wantExists bool
		wantNeg    []string
	}{
		{
			name:       "no answer makes the negation hold",
			answer:     `{"respuesta": []}`,
			wantExists: true,
			wantNeg:    []string{"not (usedViolence some Violence)"},
		},
		{
			name:       "an answer refutes the negation",
			answer:     `{"respuesta": ["punch"]}`,
			wantExists: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orc := newScriptedOracle(map[string]string{"Was violence used?": tt.answer})
			s := NewSession("report-1", "Report", "m", orc)

			ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
			require.NoError(t, err)
			assert.Equal(t, tt.wantExists, ca.Exists)
			assert.Empty(t, ca.Relations, "a negated relation asserts nothing")

			subject, ok := findEntity(ca.Entities, "report-1")
			if tt.wantNeg == nil {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantNeg, subject.NegativeDomain)
		})
	}
}

func TestEvaluate_NotAppliesToOnePropertyOnly(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{"Victims?": `{"respuesta": ["V1"]}`})
	qs := asks(question("usedViolence", "Was violence used?"), question("hasVictim", "Victims?"))
	s := NewSession("report-1", "Report", "m", orc)
	nodes := parse(t, o, "Not(usedViolence.some(Violence)) & hasVictim.some(Victim)")

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
	require.NoError(t, err)
	assert.True(t, ca.Exists)
	require.Len(t, ca.Relations, 1)
	assert.Equal(t, "V1", ca.Relations[0].RangeInstance)
}

func TestEvaluate_DataProperty(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{
		"Victims?":       `{"respuesta": ["V1"]}`,
		"How old is V1?": `{"respuesta": {"hasAge": 34}}`,
	})
	qs := asks(question("hasVictim", "Victims?"), question("hasAge", "How old is $_elemento?"))
	s := NewSession("report-1", "Report", "m", orc)
	nodes := parse(t, o, "hasVictim.some(Victim) & Victim.hasAge.some(integer)")
	require.Equal(t, expr.KindDataProperty, nodes[3].Kind)

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"), nodes, qs)
	require.NoError(t, err)
	assert.True(t, ca.Exists)

	v1, ok := findEntity(ca.Entities, "V1")
	require.True(t, ok)
	assert.Equal(t, []types.PropertyValue{{Name: "hasAge", Value: "34", Range: []string{"integer"}}}, v1.Properties)
	assert.Len(t, ca.Relations, 1, "data properties are not relations")
}

func TestEvaluate_SubjectFromEarlierCategory(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(map[string]string{"What did V7 lose?": `{"respuesta": ["wallet"]}`})
	qs := asks(question("hasLoss", "What did $_elemento lose?"))
	s := NewSession("report-1", "Report", "m", orc)
	query := &types.QueryAnalysis{Entities: []types.EntityRecord{{Name: "V7", Domain: []string{"Victim"}}}}

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, query, rootRecord("Theft"),
		parse(t, o, "Victim.hasLoss.some(StolenGoods)"), qs)
	require.NoError(t, err)
	assert.True(t, ca.Exists)
	require.Len(t, ca.Relations, 1)
	assert.Equal(t, "V7", ca.Relations[0].DomainInstance)
	assert.Empty(t, query.Relations, "the query is read only")
}

func TestEvaluate_NoQuestionsRequired(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(nil)
	s := NewSession("report-1", "Report", "m", orc)

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"),
		parse(t, o, "hasVictim.some(Victim)"), &questions.CategoryQuestions{NoQuestions: true})
	require.NoError(t, err)
	assert.True(t, ca.Exists)
	assert.Zero(t, orc.total)
}

func TestEvaluate_Errors(t *testing.T) {
	o := loadOntology(t, reportOntology)

	tests := []struct {
		name       string
		expression string
		questions  *questions.CategoryQuestions
		oracleFail bool
		target     error
	}{
		{
			name:       "missing question",
			expression: "hasVictim.some(Victim)",
			questions:  asks(),
			target:     questions.ErrMissingQuestion,
		},
		{
			name:       "unknown property",
			expression: "hasWeapon.some(Weapon)",
			questions:  asks(question("hasWeapon", "Weapon?")),
			target:     ontology.ErrUnknownProperty,
		},
		{
			name:       "oracle failure",
			expression: "hasVictim.some(Victim)",
			questions:  asks(question("hasVictim", "Victims?")),
			oracleFail: true,
			target:     oracle.ErrOracle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orc := newScriptedOracle(nil)
			orc.fail["Victims?"] = tt.oracleFail
			s := NewSession("report-1", "Report", "m", orc)

			ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Report"),
				parse(t, o, tt.expression), tt.questions)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.False(t, ca.Exists)
		})
	}
}

func TestEvaluate_NoPropertiesExists(t *testing.T) {
	o := loadOntology(t, reportOntology)
	orc := newScriptedOracle(nil)
	s := NewSession("report-1", "Report", "m", orc)

	ca, err := NewEngine(o, nil).Evaluate(context.Background(), s, nil, rootRecord("Victim"),
		parse(t, o, "Person"), nil)
	require.NoError(t, err)
	assert.True(t, ca.Exists)
	assert.Zero(t, orc.total)
}
