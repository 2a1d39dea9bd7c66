// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expr

import "strings"

// ShapeKind is the closed set of expression forms.
type ShapeKind int

const (
	ShapeNamed ShapeKind = iota
	ShapeIntersection
	ShapeUnion
	ShapeComplement
	ShapeRestriction
	ShapeLiteral
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeNamed:
		return "named"
	case ShapeIntersection:
		return "intersection"
	case ShapeUnion:
		return "union"
	case ShapeComplement:
		return "complement"
	case ShapeRestriction:
		return "restriction"
	case ShapeLiteral:
		return "literal"
	}
	return "unknown"
}

// Shape is the structural form of an expression, classified once so that
// callers never inspect expression text again.
type Shape struct {
	Kind ShapeKind
	// Name is the category of a named shape, the property of a restriction,
	// or the literal text.
	Name       string
	Quantifier Quantifier
	Operands   []Shape
}

// References reports whether the shape names category directly or as a
// named operand of a top-level intersection or union.
func (s Shape) References(category string) bool {
	switch s.Kind {
	case ShapeNamed:
		return s.Name == category
	case ShapeIntersection, ShapeUnion:
		for _, op := range s.Operands {
			if op.Kind == ShapeNamed && op.Name == category {
				return true
			}
		}
	}
	return false
}

// Classify returns the shape of expression.
func (p *Parser) Classify(expression string) (Shape, error) {
	if off := checkBalanced(expression); off >= 0 {
		return Shape{}, &ParseError{Expression: expression, Offset: off}
	}
	return p.classify(expression), nil
}

func (p *Parser) classify(expression string) Shape {
	s := stripOuterParens(expression)

	if parts := splitTopLevel(s, '&'); len(parts) > 1 {
		return Shape{Kind: ShapeIntersection, Operands: p.classifyAll(parts)}
	}
	if parts := splitTopLevel(s, '|'); len(parts) > 1 {
		return Shape{Kind: ShapeUnion, Operands: p.classifyAll(parts)}
	}
	if inner, ok := negated(s); ok {
		return Shape{Kind: ShapeComplement, Operands: []Shape{p.classify(inner)}}
	}
	if m := restrictionRe.FindStringSubmatchIndex(s); m != nil {
		shape := Shape{
			Kind:       ShapeRestriction,
			Name:       p.clean(s[m[4]:m[5]]),
			Quantifier: Quantifier(s[m[6]:m[7]]),
		}
		if end := matchParen(s, m[1]-1); end > 0 {
			target := strings.TrimSpace(s[m[1]:end])
			if shape.Quantifier.IsCardinality() {
				parts := splitTopLevel(target, ',')
				target = strings.Join(parts[1:], ", ")
			}
			if target != "" {
				shape.Operands = []Shape{p.classify(target)}
			}
		}
		return shape
	}
	if startsLiteral(s) || constrainedRe.MatchString(s) {
		return Shape{Kind: ShapeLiteral, Name: unquote(s)}
	}
	return Shape{Kind: ShapeNamed, Name: p.clean(s)}
}

func (p *Parser) classifyAll(parts []string) []Shape {
	shapes := make([]Shape, len(parts))
	for i, part := range parts {
		shapes[i] = p.classify(part)
	}
	return shapes
}
