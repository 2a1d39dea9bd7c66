// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expr

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

var (
	// restrictionRe matches the head of prop.quantifier( with an optional
	// dotted qualifier (namespace or subject category) before the property.
	restrictionRe = regexp.MustCompile(`^((?:[\w:#-]+\.)*)([\w:#-]+)\.(some|only|value|min|max|exactly)\s*\(`)

	constrainedRe = regexp.MustCompile(`(?i)^ConstrainedDatatype\s*\(`)

	simpleNameRe = regexp.MustCompile(`^[A-Za-z_][\w:#.-]*$`)
)

// xsdNames are the literal datatypes recognized without ontology help.
var xsdNames = map[string]bool{
	"int":              true,
	"integer":          true,
	"decimal":          true,
	"float":            true,
	"double":           true,
	"string":           true,
	"boolean":          true,
	"date":             true,
	"datetime":         true,
	"normalizedstring": true,
}

// Parser turns membership expressions into node lists.
type Parser struct {
	vocab    Vocabulary
	prefixes []string
}

// New returns a parser that resolves declared ranges through vocab and
// strips the given namespace prefixes from names.
func New(vocab Vocabulary, prefixes ...string) *Parser {
	return &Parser{vocab: vocab, prefixes: prefixes}
}

// Parse returns the nodes of expression in emission order, starting at
// level. It fails only on unbalanced parentheses; anything else it does
// not recognize becomes a leaf node.
func (p *Parser) Parse(expression string, level int) ([]Node, error) {
	if off := checkBalanced(expression); off >= 0 {
		return nil, &ParseError{Expression: expression, Offset: off}
	}
	return p.parse(expression, level), nil
}

func (p *Parser) parse(expression string, level int) []Node {
	s := stripOuterParens(expression)
	if s == "" {
		return nil
	}
	conjuncts := splitTopLevel(s, '&')
	if len(conjuncts) == 1 {
		return p.parseConjunct(s, level)
	}
	var nodes []Node
	for i, c := range conjuncts {
		if i > 0 {
			nodes = append(nodes, Node{Level: level, Kind: KindOperator, Element: OpAnd})
		}
		nodes = append(nodes, p.parseConjunct(c, level)...)
	}
	return nodes
}

func (p *Parser) parseConjunct(conjunct string, level int) []Node {
	c := stripOuterParens(conjunct)
	if c == "" {
		return nil
	}
	if len(splitTopLevel(c, '&')) > 1 {
		return p.parse(c, level)
	}

	if disjuncts := splitTopLevel(c, '|'); len(disjuncts) > 1 {
		var nodes []Node
		for i, d := range disjuncts {
			if i > 0 {
				nodes = append(nodes, Node{Level: level, Kind: KindOperator, Element: OpOr})
			}
			nodes = append(nodes, p.parse(d, level)...)
		}
		return nodes
	}

	if inner, ok := negated(c); ok {
		nodes := []Node{{Level: level, Kind: KindOperator, Element: OpNot}}
		return append(nodes, p.parse(inner, level+1)...)
	}

	if restrictionRe.MatchString(c) {
		return p.expandRestriction(c, level)
	}

	return []Node{p.leaf(c, level, false)}
}

// negated returns the content of a conjunct of the form Not(...).
func negated(c string) (string, bool) {
	if !negationAt(c, 0) {
		return "", false
	}
	open := strings.IndexByte(c, '(')
	if matchParen(c, open) != len(c)-1 {
		return "", false
	}
	return c[open+1 : len(c)-1], true
}

// expandRestriction walks a chain of nested restrictions iteratively,
// emitting one property node per link and descending one level each time.
func (p *Parser) expandRestriction(clause string, level int) []Node {
	var nodes []Node
	for {
		m := restrictionRe.FindStringSubmatchIndex(clause)
		if m == nil {
			return append(nodes, p.leaf(clause, level, false))
		}
		qualifier := clause[m[2]:m[3]]
		property := p.clean(clause[m[4]:m[5]])
		quant := Quantifier(clause[m[6]:m[7]])

		open := m[1] - 1
		end := matchParen(clause, open)
		if end < 0 {
			return append(nodes, p.leaf(clause, level, false))
		}
		target := strings.TrimSpace(clause[open+1 : end])

		node := Node{
			Level:      level,
			Element:    property,
			Quantifier: quant,
			Subject:    p.subject(qualifier),
		}
		if quant.IsCardinality() {
			parts := splitTopLevel(target, ',')
			node.Cardinality = parts[0]
			node.Description = fmt.Sprintf("%s %s", quant, parts[0])
			target = strings.Join(parts[1:], ", ")
		}

		dataBranch := p.isDataBranch(property, quant, target)
		node.Kind = KindObjectProperty
		if dataBranch {
			node.Kind = KindDataProperty
		}
		node.Range = p.resolveRange(property, target)
		nodes = append(nodes, node)

		switch {
		case target == "":
			return nodes
		case constrainedRe.MatchString(target):
			return append(nodes, p.constrained(target, level+1))
		case containsLogical(target):
			return append(nodes, p.parse(target, level+1)...)
		case restrictionRe.MatchString(stripOuterParens(target)):
			clause = stripOuterParens(target)
			level++
		default:
			return append(nodes, p.leaf(target, level+1, dataBranch))
		}
	}
}

// constrained parses ConstrainedDatatype(base, facet=value, ...).
func (p *Parser) constrained(target string, level int) Node {
	open := strings.IndexByte(target, '(')
	end := matchParen(target, open)
	if end < 0 {
		end = len(target)
	}
	parts := splitTopLevel(target[open+1:end], ',')
	node := Node{
		Level:       level,
		Kind:        KindLiteral,
		Element:     p.clean(parts[0]),
		Constraints: make(map[string]string, len(parts)-1),
	}
	facets := make([]string, 0, len(parts)-1)
	for _, kv := range parts[1:] {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		k, v = strings.TrimSpace(k), unquote(strings.TrimSpace(v))
		node.Constraints[k] = v
		facets = append(facets, k+"="+v)
	}
	node.Description = node.Element
	if len(facets) > 0 {
		node.Description += "[" + strings.Join(facets, ", ") + "]"
	}
	return node
}

func (p *Parser) leaf(token string, level int, literal bool) Node {
	tok := stripOuterParens(token)
	if literal || startsLiteral(tok) {
		return Node{Level: level, Kind: KindLiteral, Element: p.literal(tok)}
	}
	name := p.clean(tok)
	return Node{Level: level, Kind: KindEntity, Element: name, Range: []string{name}}
}

func (p *Parser) literal(tok string) string {
	if startsLiteral(tok) {
		return unquote(tok)
	}
	return p.clean(tok)
}

func (p *Parser) isDataBranch(property string, quant Quantifier, target string) bool {
	if quant == QuantValue || constrainedRe.MatchString(target) {
		return true
	}
	if isSimpleName(target) && xsdNames[strings.ToLower(p.clean(target))] {
		return true
	}
	return p.vocab != nil && p.vocab.IsDataProperty(property)
}

// resolveRange prefers a simple target name over the declared range.
func (p *Parser) resolveRange(property, target string) []string {
	t := stripOuterParens(target)
	if isSimpleName(t) {
		return []string{p.clean(t)}
	}
	if p.vocab != nil {
		return p.vocab.DeclaredRange(property)
	}
	return nil
}

// subject returns the category named in a qualifier such as "onto.Victim.".
func (p *Parser) subject(qualifier string) string {
	segs := strings.Split(strings.TrimSuffix(qualifier, "."), ".")
	for i := len(segs) - 1; i >= 0; i-- {
		seg := p.clean(segs[i])
		if seg == "" {
			continue
		}
		if p.vocab != nil {
			if p.vocab.IsCategory(seg) {
				return seg
			}
			continue
		}
		if unicode.IsUpper(rune(seg[0])) {
			return seg
		}
	}
	return ""
}

// clean strips configured prefixes and namespace qualifiers from a name.
func (p *Parser) clean(name string) string {
	n := strings.TrimSpace(name)
	for _, pre := range p.prefixes {
		n = strings.TrimPrefix(n, pre)
	}
	if i := strings.LastIndexAny(n, ":#"); i >= 0 {
		n = n[i+1:]
	}
	if i := strings.LastIndexByte(n, '.'); i >= 0 {
		n = n[i+1:]
	}
	return n
}

// Clean exposes name normalization to callers comparing names taken from
// expressions with names taken from the ontology.
func (p *Parser) Clean(name string) string {
	return p.clean(name)
}

func isSimpleName(s string) bool {
	return simpleNameRe.MatchString(s)
}

func startsLiteral(s string) bool {
	if s == "" {
		return false
	}
	c := s[0]
	return c == '"' || c == '\'' || c == '-' || c == '+' || c >= '0' && c <= '9'
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}
