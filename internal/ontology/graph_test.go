// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ontology

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/ontoguide/pkg/types"
)

func TestTraverse_Combined(t *testing.T) {
	g := newGraph(loadFixture(t))

	res, err := g.Traverse("Crime", types.TraversalCombined, NoDepthLimit)
	require.NoError(t, err)

	assert.Equal(t, []string{"Crime", "PropertyCrime", "Theft", "Robbery", "Burglary", "ViolentCrime"}, categories(res.Records))
	assert.Equal(t, 3, res.MaxDepthReached)

	theft := res.ByName["Theft"]
	assert.Equal(t, types.RelationSubclass, theft.Relation, "subclass edge wins over the inverse edge")
	assert.Equal(t, "PropertyCrime", theft.Parent)

	robbery := res.ByName["Robbery"]
	assert.Equal(t, types.RelationEquivalentToInverse, robbery.Relation)
	assert.Equal(t, "Theft", robbery.Parent)
	assert.Equal(t, 3, robbery.Depth)

	burglary := res.ByName["Burglary"]
	assert.Equal(t, types.RelationEquivalentToInverse, burglary.Relation)
	assert.Equal(t, 2, burglary.Depth)

	root := res.Records[0]
	assert.Equal(t, types.RelationRoot, root.Relation)
	assert.Empty(t, root.Parent)

	for i, r := range res.Records {
		assert.Equal(t, i, r.Order)
	}
}

func TestTraverse_SubclassOnly(t *testing.T) {
	g := newGraph(loadFixture(t))

	res, err := g.Traverse("Crime", types.TraversalSubclassOnly, NoDepthLimit)
	require.NoError(t, err)
	assert.Equal(t, []string{"Crime", "PropertyCrime", "Theft", "ViolentCrime"}, categories(res.Records))
	assert.Equal(t, 2, res.MaxDepthReached)
}

func TestTraverse_MaxDepth(t *testing.T) {
	g := newGraph(loadFixture(t))

	res, err := g.Traverse("Crime", types.TraversalCombined, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"Crime", "PropertyCrime", "ViolentCrime"}, categories(res.Records))
	assert.Equal(t, 1, res.MaxDepthReached)
	assert.False(t, res.Contains("Theft"))

	res, err = g.Traverse("Crime", types.TraversalCombined, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"Crime"}, categories(res.Records))
}

func TestTraverse_UnknownRoot(t *testing.T) {
	g := newGraph(loadFixture(t))
	_, err := g.Traverse("Arson", types.TraversalCombined, NoDepthLimit)
	assert.True(t, errors.Is(err, ErrUnknownCategory))
}

func TestTraverse_Cycle(t *testing.T) {
	o, err := Parse([]byte(`
categories:
  - name: A
    subclasses: [B]
  - name: B
    equivalent_to: ["A"]
  - name: C
    equivalent_to: ["B & hasX.some(Y)"]
`))
	require.NoError(t, err)

	res, err := newGraph(o).Traverse("A", types.TraversalCombined, NoDepthLimit)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, categories(res.Records))
}

func TestNarrower(t *testing.T) {
	g := newGraph(loadFixture(t))

	tests := []struct {
		a, b   string
		want   string
		wantOK bool
	}{
		{"Theft", "PropertyCrime", "Theft", true},
		{"Crime", "Theft", "Theft", true},
		{"Victim", "Victim", "Victim", true},
		{"Person", "Victim", "Victim", true},
		{"Victim", "StolenGoods", "", false},
		{"Unknown", "Victim", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.a+"/"+tt.b, func(t *testing.T) {
			got, ok := g.Narrower(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
