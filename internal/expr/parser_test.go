// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expr

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVocab struct {
	ranges map[string][]string
	data   map[string]bool
	cats   map[string]bool
}

func (v stubVocab) DeclaredRange(p string) []string { return v.ranges[p] }
func (v stubVocab) IsDataProperty(p string) bool    { return v.data[p] }
func (v stubVocab) IsCategory(n string) bool        { return v.cats[n] }

// brief renders nodes as "level:kind:element" for compact comparisons.
func brief(nodes []Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = fmt.Sprintf("%d:%s:%s", n.Level, n.Kind, n.Element)
	}
	return out
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []string
	}{
		{
			name: "bare leaf",
			expr: "Theft",
			want: []string{"0:entity_reference:Theft"},
		},
		{
			name: "intersection of leaf and restriction",
			expr: "Crime & hasVictim.some(Victim)",
			want: []string{
				"0:entity_reference:Crime",
				"0:operator:AND",
				"0:object_property:hasVictim",
				"1:entity_reference:Victim",
			},
		},
		{
			name: "negation recurses one level deeper",
			expr: "Not(usedViolence.some(Violence))",
			want: []string{
				"0:operator:NOT",
				"1:object_property:usedViolence",
				"2:entity_reference:Violence",
			},
		},
		{
			name: "lowercase negation",
			expr: "not(Robbery)",
			want: []string{
				"0:operator:NOT",
				"1:entity_reference:Robbery",
			},
		},
		{
			name: "union inside restriction target",
			expr: "hasObject.some(Vehicle | Jewel)",
			want: []string{
				"0:object_property:hasObject",
				"1:entity_reference:Vehicle",
				"1:operator:OR",
				"1:entity_reference:Jewel",
			},
		},
		{
			name: "chained restrictions descend iteratively",
			expr: "hasVictim.some(hasLoss.some(StolenGoods))",
			want: []string{
				"0:object_property:hasVictim",
				"1:object_property:hasLoss",
				"2:entity_reference:StolenGoods",
			},
		},
		{
			name: "value restriction yields literal",
			expr: "hasAge.value(30)",
			want: []string{
				"0:data_property:hasAge",
				"1:literal_value:30",
			},
		},
		{
			name: "xsd target is a data branch",
			expr: "hasDate.some(xsd:date)",
			want: []string{
				"0:data_property:hasDate",
				"1:literal_value:date",
			},
		},
		{
			name: "namespace prefixes are stripped",
			expr: "onto.hasVictim.some(onto.Victim)",
			want: []string{
				"0:object_property:hasVictim",
				"1:entity_reference:Victim",
			},
		},
		{
			name: "parenthesized conjuncts",
			expr: "((A) & (B & p.some(C)))",
			want: []string{
				"0:entity_reference:A",
				"0:operator:AND",
				"0:entity_reference:B",
				"0:operator:AND",
				"0:object_property:p",
				"1:entity_reference:C",
			},
		},
		{
			name: "separators inside quotes are ignored",
			expr: `hasName.value("Smith & Sons")`,
			want: []string{
				"0:data_property:hasName",
				"1:literal_value:Smith & Sons",
			},
		},
	}

	p := New(nil, "onto.")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes, err := p.Parse(tt.expr, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, brief(nodes))
		})
	}
}

func TestParse_StartsAtCallerLevel(t *testing.T) {
	nodes, err := New(nil).Parse("p.some(A)", 3)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, 3, nodes[0].Level)
	assert.Equal(t, 4, nodes[1].Level)
}

func TestParse_NestingLevels(t *testing.T) {
	for depth := 1; depth <= 6; depth++ {
		for negations := 0; negations <= depth; negations++ {
			t.Run(fmt.Sprintf("depth=%d/not=%d", depth, negations), func(t *testing.T) {
				// Build p0.some(Not(p1.some(... Leaf ...))) with the first
				// `negations` links wrapped in Not(...).
				var open, closing strings.Builder
				for i := 0; i < depth; i++ {
					if i < negations {
						open.WriteString("Not(")
						closing.WriteString(")")
					}
					fmt.Fprintf(&open, "p%d.some(", i)
					closing.WriteString(")")
				}
				expr := open.String() + "Leaf" + reverse(closing.String())

				nodes, err := New(nil).Parse(expr, 0)
				require.NoError(t, err)

				nots := 0
				props := 0
				for i, n := range nodes {
					if n.Kind == KindOperator && n.Element == OpNot {
						nots++
					}
					if n.IsProperty() {
						props++
					}
					if i > 0 {
						assert.Equal(t, nodes[i-1].Level+1, n.Level, "nesting step at node %d", i)
					}
				}
				assert.Equal(t, negations, nots)
				assert.Equal(t, depth, props)
				assert.Equal(t, depth+negations, nodes[len(nodes)-1].Level)
			})
		}
	}
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

func TestParse_LevelsReturnAfterClose(t *testing.T) {
	nodes, err := New(nil).Parse("a.some(b.some(X)) & c.some(Y)", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"0:object_property:a",
		"1:object_property:b",
		"2:entity_reference:X",
		"0:operator:AND",
		"0:object_property:c",
		"1:entity_reference:Y",
	}, brief(nodes))
}

func TestParse_Cardinality(t *testing.T) {
	p := New(nil)

	t.Run("with qualified target", func(t *testing.T) {
		nodes, err := p.Parse("hasAuthor.min(2, Person)", 0)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, QuantMin, nodes[0].Quantifier)
		assert.Equal(t, "2", nodes[0].Cardinality)
		assert.Equal(t, []string{"Person"}, nodes[0].Range)
		assert.Equal(t, KindEntity, nodes[1].Kind)
		assert.Equal(t, "Person", nodes[1].Element)
		assert.Equal(t, 1, nodes[1].Level)
	})

	t.Run("bare count", func(t *testing.T) {
		nodes, err := p.Parse("hasAuthor.min(2)", 0)
		require.NoError(t, err)
		require.Len(t, nodes, 1)
		assert.Equal(t, QuantMin, nodes[0].Quantifier)
		assert.Equal(t, "min 2", nodes[0].Description)
	})

	t.Run("nested target after count", func(t *testing.T) {
		nodes, err := p.Parse("hasPart.exactly(1, hasOwner.some(Person))", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"0:object_property:hasPart",
			"1:object_property:hasOwner",
			"2:entity_reference:Person",
		}, brief(nodes))
		assert.Equal(t, "1", nodes[0].Cardinality)
	})
}

func TestParse_RangePriority(t *testing.T) {
	vocab := stubVocab{ranges: map[string][]string{"p": {"A", "B"}}}
	p := New(vocab)

	nodes, err := p.Parse("p.some(B)", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, nodes[0].Range)

	nodes, err = p.Parse("p.some(B & C)", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, nodes[0].Range, "complex target falls back to declared range")

	nodes, err = p.Parse("p.min(1)", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, nodes[0].Range)
}

func TestParse_Vocabulary(t *testing.T) {
	vocab := stubVocab{
		data: map[string]bool{"hasAmount": true},
		cats: map[string]bool{"Victim": true},
	}
	p := New(vocab, "onto.")

	nodes, err := p.Parse("onto.Victim.hasAmount.some(Money)", 0)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, KindDataProperty, nodes[0].Kind)
	assert.Equal(t, "Victim", nodes[0].Subject)
	assert.Equal(t, KindLiteral, nodes[1].Kind)

	nodes, err = p.Parse("onto.hasVictim.some(Victim)", 0)
	require.NoError(t, err)
	assert.Empty(t, nodes[0].Subject, "namespace qualifier is not a subject")
}

func TestParse_SubjectWithoutVocabulary(t *testing.T) {
	nodes, err := New(nil).Parse("Victim.hasLoss.some(StolenGoods)", 0)
	require.NoError(t, err)
	assert.Equal(t, "Victim", nodes[0].Subject)
	assert.Equal(t, "hasLoss", nodes[0].Element)
}

func TestParse_ConstrainedDatatype(t *testing.T) {
	nodes, err := New(nil).Parse("hasAge.some(ConstrainedDatatype(int, min_inclusive=18, max_exclusive=65))", 0)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, KindDataProperty, nodes[0].Kind)
	lit := nodes[1]
	assert.Equal(t, KindLiteral, lit.Kind)
	assert.Equal(t, "int", lit.Element)
	assert.Equal(t, map[string]string{"min_inclusive": "18", "max_exclusive": "65"}, lit.Constraints)
	assert.Equal(t, 1, lit.Level)
}

func TestParse_Unbalanced(t *testing.T) {
	for _, expr := range []string{"p.some(A", "p.some(A))", "Not((B)", ")A("} {
		t.Run(expr, func(t *testing.T) {
			_, err := New(nil).Parse(expr, 0)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrUnbalanced))
			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, expr, pe.Expression)
		})
	}
}

func TestParse_UnknownTokensDegradeToLeaf(t *testing.T) {
	nodes, err := New(nil).Parse("weird token ~ here", 0)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, KindEntity, nodes[0].Kind)
}

func TestParse_Empty(t *testing.T) {
	nodes, err := New(nil).Parse("  ", 0)
	require.NoError(t, err)
	assert.Empty(t, nodes)
}
