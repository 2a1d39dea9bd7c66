// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package expr parses category membership expressions into an ordered,
// level-annotated node list that the extraction engine walks.
//
// The accepted syntax is the textual form of description-logic class
// expressions: intersections (&), unions (|), negation (Not(...)),
// property restrictions (prop.some(X), prop.only(X), prop.value(v),
// prop.min(n, X), prop.max(n, X), prop.exactly(n, X)) and constrained
// literal ranges (ConstrainedDatatype(int, min_inclusive=0)).
package expr

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Kind classifies an ExpressionNode.
type Kind string

const (
	KindEntity         Kind = "entity_reference"
	KindDataProperty   Kind = "data_property"
	KindObjectProperty Kind = "object_property"
	KindOperator       Kind = "operator"
	KindLiteral        Kind = "literal_value"
)

// Operator elements.
const (
	OpAnd = "AND"
	OpOr  = "OR"
	OpNot = "NOT"
)

// Quantifier is the restriction tag of a property node.
type Quantifier string

const (
	QuantNone    Quantifier = ""
	QuantSome    Quantifier = "some"
	QuantOnly    Quantifier = "only"
	QuantValue   Quantifier = "value"
	QuantMin     Quantifier = "min"
	QuantMax     Quantifier = "max"
	QuantExactly Quantifier = "exactly"
)

// IsCardinality reports whether q takes a numeric bound.
func (q Quantifier) IsCardinality() bool {
	return q == QuantMin || q == QuantMax || q == QuantExactly
}

// Node is one element of a parsed expression. Nodes are immutable after
// parsing. A node at level L+1 is always preceded by a property or
// operator node at level <= L that opens it.
type Node struct {
	Level   int    `json:"level" yaml:"level"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Element string `json:"element" yaml:"element"`

	// Range is the expected type of a property's fillers, or the referenced
	// category of an entity node.
	Range []string `json:"range,omitempty" yaml:"range,omitempty"`

	Quantifier Quantifier `json:"quantifier,omitempty" yaml:"quantifier,omitempty"`

	// Cardinality is the numeric bound of a min/max/exactly restriction.
	Cardinality string `json:"cardinality,omitempty" yaml:"cardinality,omitempty"`

	// Description is a readable form of a literal restriction, e.g. "min 2".
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Constraints holds the facets of a constrained datatype.
	Constraints map[string]string `json:"constraints,omitempty" yaml:"constraints,omitempty"`

	// Subject is the category qualifying a property, as in
	// Victim.hasLoss.some(StolenGoods). The question is then asked about
	// individuals of that category.
	Subject string `json:"subject,omitempty" yaml:"subject,omitempty"`
}

// IsProperty reports whether the node asks a question.
func (n Node) IsProperty() bool {
	return n.Kind == KindObjectProperty || n.Kind == KindDataProperty
}

func (n Node) String() string {
	switch {
	case n.IsProperty() && n.Cardinality != "":
		return fmt.Sprintf("%d %s %s.%s(%s) %v", n.Level, n.Kind, n.Element, n.Quantifier, n.Cardinality, n.Range)
	case n.IsProperty():
		return fmt.Sprintf("%d %s %s.%s %v", n.Level, n.Kind, n.Element, n.Quantifier, n.Range)
	default:
		return fmt.Sprintf("%d %s %s", n.Level, n.Kind, n.Element)
	}
}

// ErrUnbalanced is the sentinel wrapped by every ParseError.
var ErrUnbalanced = errors.New("unbalanced parentheses")

// ParseError reports malformed expression text.
type ParseError struct {
	Expression string
	Offset     int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing %q at offset %d: %v", e.Expression, e.Offset, ErrUnbalanced)
}

func (e *ParseError) Unwrap() error { return ErrUnbalanced }

// Vocabulary answers the ontology questions the parser needs. A nil
// Vocabulary is allowed; names are then classified syntactically.
type Vocabulary interface {
	// DeclaredRange returns the ontology-declared range of a property.
	DeclaredRange(property string) []string
	// IsDataProperty reports whether property relates an individual to a literal.
	IsDataProperty(property string) bool
	// IsCategory reports whether name is a known category.
	IsCategory(name string) bool
}
