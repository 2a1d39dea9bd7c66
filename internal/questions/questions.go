// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package questions resolves the question templates attached to ontology
// categories.
//
// A category's see_also reference points at a JSON document keyed by
// category name:
//
//	{
//	  "Theft": {
//	    "no_preguntas": false,
//	    "preguntas": [{
//	      "elemento": "hasLoss",
//	      "llm_preferente": "openai/gpt-4o",
//	      "pre_contexto_extracción_objetos": {"default": "Read the report."},
//	      "extracción_objetos": {"default": "What did $_elemento lose?"},
//	      "post_contexto_extracción_objetos": {"default": "Answer with names only."},
//	      "formato_extraccion": {"type": "object", ...}
//	    }]
//	  }
//	}
package questions

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

// InstancePlaceholder is replaced by the individual a question is about.
const InstancePlaceholder = "$_elemento"

// Fallback keys for model-keyed fragments, in lookup order.
var fallbackKeys = []string{"default", "default-llm"}

var (
	// ErrNotRequired means the category explicitly needs no question for a property.
	ErrNotRequired = errors.New("no question required")

	// ErrMissingQuestion means a property has no question and no marker.
	ErrMissingQuestion = errors.New("no question configured")
)

// ConfigurationError reports unusable question configuration.
type ConfigurationError struct {
	Category string
	Element  string
	Err      error
}

func (e *ConfigurationError) Error() string {
	if e.Element != "" {
		return fmt.Sprintf("question configuration for %s.%s: %v", e.Category, e.Element, e.Err)
	}
	return fmt.Sprintf("question configuration for %s: %v", e.Category, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// Fragments maps an oracle model identifier to prompt text.
type Fragments map[string]string

// For returns the fragment for model, falling back to the default keys.
func (f Fragments) For(model string) string {
	if v := f[model]; v != "" {
		return v
	}
	for _, k := range fallbackKeys {
		if v := f[k]; v != "" {
			return v
		}
	}
	return ""
}

// Question is the template for one property of one category.
type Question struct {
	Element        string          `json:"elemento"`
	PreferredModel string          `json:"llm_preferente,omitempty"`
	PreContext     Fragments       `json:"pre_contexto_extracción_objetos,omitempty"`
	Prompt         Fragments       `json:"extracción_objetos"`
	PostContext    Fragments       `json:"post_contexto_extracción_objetos,omitempty"`
	Format         json.RawMessage `json:"formato_extraccion,omitempty"`
}

// Model returns the question's preferred model, or fallback.
func (q Question) Model(fallback string) string {
	if q.PreferredModel != "" {
		return q.PreferredModel
	}
	return fallback
}

// Render builds the prompt for model, asking about instance. An empty
// instance leaves the placeholder untouched.
func (q Question) Render(model, instance string) string {
	body := q.Prompt.For(model)
	if instance != "" {
		body = strings.ReplaceAll(body, InstancePlaceholder, instance)
	}
	return strings.TrimSpace(q.PreContext.For(model) + " " + body + " " + q.PostContext.For(model))
}

// Schema returns the JSON schema the answer must follow.
func (q Question) Schema() json.RawMessage {
	if len(q.Format) > 0 {
		return q.Format
	}
	return DefaultSchema
}

// DefaultSchema describes {"respuesta": [...], "referencia": [[...], ...]}.
var DefaultSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "respuesta": {"type": "array", "items": {"type": "string"}},
    "referencia": {"type": "array", "items": {"type": "array", "items": {"type": "string"}}}
  },
  "required": ["respuesta", "referencia"],
  "additionalProperties": false
}`)

// CategoryQuestions holds every question of one category.
type CategoryQuestions struct {
	Category    string     `json:"-"`
	Questions   []Question `json:"preguntas"`
	NoQuestions bool       `json:"no_preguntas"`
}

// Question returns the question for element. It returns ErrNotRequired
// when the category is marked as needing no questions, and a
// ConfigurationError otherwise.
func (c *CategoryQuestions) Question(element string) (Question, error) {
	for _, q := range c.Questions {
		if q.Element == element {
			return q, nil
		}
	}
	if c.NoQuestions {
		return Question{}, ErrNotRequired
	}
	return Question{}, &ConfigurationError{Category: c.Category, Element: element, Err: ErrMissingQuestion}
}
