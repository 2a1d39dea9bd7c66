// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// Answer is a decoded oracle response of the form
// {"respuesta": [...] | scalar | {...}, "referencia": [[...], ...]}.
type Answer struct {
	// Values are the extracted answers, empty for a negative finding.
	Values []string
	// References holds the evidence for each value, aligned by index.
	References [][]string
	// Fields holds an object-shaped answer keyed by field name.
	Fields map[string]string
	// Malformed is set when the text was not JSON or lacked "respuesta".
	// Values is then empty.
	Malformed bool
}

// Empty reports whether the answer is a negative finding.
func (a Answer) Empty() bool {
	return len(a.Values) == 0
}

// Evidence returns the references of value i joined with "|".
func (a Answer) Evidence(i int) string {
	if i < 0 || i >= len(a.References) {
		return ""
	}
	return strings.Join(a.References[i], "|")
}

type rawAnswer struct {
	Respuesta  *json.RawMessage `json:"respuesta"`
	Referencia json.RawMessage  `json:"referencia"`
}

// ParseAnswer decodes raw oracle text. It never fails: undecodable text
// yields an empty answer flagged Malformed.
func ParseAnswer(raw string) Answer {
	body := extractJSON(raw)
	var ra rawAnswer
	if err := json.Unmarshal([]byte(body), &ra); err != nil || ra.Respuesta == nil {
		return Answer{Malformed: true}
	}

	var a Answer
	var v any
	if err := json.Unmarshal(*ra.Respuesta, &v); err != nil {
		return Answer{Malformed: true}
	}
	switch t := v.(type) {
	case nil:
	case []any:
		for _, item := range t {
			if s := scalar(item); s != "" {
				a.Values = append(a.Values, s)
			}
		}
	case map[string]any:
		a.Fields = make(map[string]string, len(t))
		keys := make([]string, 0, len(t))
		for k, item := range t {
			if s := scalar(item); s != "" {
				a.Fields[k] = s
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			a.Values = append(a.Values, a.Fields[k])
		}
	default:
		if s := scalar(t); s != "" {
			a.Values = []string{s}
		}
	}

	a.References = references(ra.Referencia)
	return a
}

// extractJSON strips code fences and surrounding prose from a JSON object.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			s = s[i+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start, end := strings.IndexByte(s, '{'), strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(t)
		return string(b)
	}
}

// references accepts [[...], ...], [...] or a single string.
func references(raw json.RawMessage) [][]string {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	switch t := v.(type) {
	case string:
		return [][]string{{t}}
	case []any:
		out := make([][]string, len(t))
		for i, item := range t {
			switch it := item.(type) {
			case []any:
				for _, r := range it {
					if s := scalar(r); s != "" {
						out[i] = append(out[i], s)
					}
				}
			default:
				if s := scalar(it); s != "" {
					out[i] = []string{s}
				}
			}
		}
		return out
	}
	return nil
}
