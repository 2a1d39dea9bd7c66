// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package expr

import "strings"

// scanner walks an expression tracking parenthesis depth and skipping
// quoted literals, so separators inside "a & b" or (x | y) are ignored.
type scanner struct {
	s     string
	depth int
	quote byte
}

// step consumes s[i] and reports the depth before it was consumed, and
// whether the byte is structural (outside any quoted literal).
func (sc *scanner) step(i int) (depth int, structural bool) {
	c := sc.s[i]
	if sc.quote != 0 {
		if c == sc.quote {
			sc.quote = 0
		}
		return sc.depth, false
	}
	depth = sc.depth
	switch c {
	case '"', '\'':
		sc.quote = c
		return depth, false
	case '(':
		sc.depth++
	case ')':
		sc.depth--
	}
	return depth, true
}

// checkBalanced returns the offset of the first unmatched parenthesis, or -1.
func checkBalanced(s string) int {
	sc := scanner{s: s}
	var opens []int
	for i := 0; i < len(s); i++ {
		if _, ok := sc.step(i); !ok {
			continue
		}
		switch s[i] {
		case '(':
			opens = append(opens, i)
		case ')':
			if len(opens) == 0 {
				return i
			}
			opens = opens[:len(opens)-1]
		}
	}
	if len(opens) > 0 {
		return opens[0]
	}
	return -1
}

// splitTopLevel splits s on sep occurring at depth zero.
func splitTopLevel(s string, sep byte) []string {
	sc := scanner{s: s}
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		depth, ok := sc.step(i)
		if ok && depth == 0 && s[i] == sep {
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	return append(parts, strings.TrimSpace(s[start:]))
}

// matchParen returns the index of the parenthesis closing the one at open,
// or -1.
func matchParen(s string, open int) int {
	sc := scanner{s: s, depth: 0}
	for i := open; i < len(s); i++ {
		if _, ok := sc.step(i); ok && s[i] == ')' && sc.depth == 0 {
			return i
		}
	}
	return -1
}

// stripOuterParens removes parentheses that enclose the whole of s.
func stripOuterParens(s string) string {
	s = strings.TrimSpace(s)
	for len(s) > 1 && s[0] == '(' && matchParen(s, 0) == len(s)-1 {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// containsLogical reports whether s holds an intersection, union or
// negation anywhere outside quoted literals.
func containsLogical(s string) bool {
	sc := scanner{s: s}
	for i := 0; i < len(s); i++ {
		if _, ok := sc.step(i); !ok {
			continue
		}
		switch s[i] {
		case '&', '|':
			return true
		}
		if negationAt(s, i) {
			return true
		}
	}
	return false
}

// negationAt reports whether a Not( token starts at s[i].
func negationAt(s string, i int) bool {
	if i > 0 && isWordByte(s[i-1]) {
		return false
	}
	if len(s)-i < 4 || !strings.EqualFold(s[i:i+3], "not") {
		return false
	}
	rest := strings.TrimLeft(s[i+3:], " \t")
	return strings.HasPrefix(rest, "(")
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
