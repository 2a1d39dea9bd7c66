// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// DiscoveryRelation records how the traversal reached a category.
type DiscoveryRelation string

const (
	RelationRoot                DiscoveryRelation = "root"
	RelationSubclass            DiscoveryRelation = "subclass"
	RelationEquivalentToInverse DiscoveryRelation = "equivalent_to_inverse"
)

// TraversalRecord is one visit of the category DFS. Records are immutable
// once created.
type TraversalRecord struct {
	// Category is the visited category name.
	Category string `json:"category" yaml:"category"`

	// Depth is the distance from the traversal root (root = 0).
	Depth int `json:"depth" yaml:"depth"`

	// Parent is the category from which this one was discovered. Empty for the root.
	Parent string `json:"parent,omitempty" yaml:"parent,omitempty"`

	// Relation is the edge that led to this category.
	Relation DiscoveryRelation `json:"relation" yaml:"relation"`

	// Order is the monotonically increasing visit counter.
	Order int `json:"order" yaml:"order"`
}

// OutcomeContent is the question and answer behind a QueryOutcome.
type OutcomeContent struct {
	// Element is the property that was asked about.
	Element string `json:"element" yaml:"element"`

	// Domain is the active subject type when the question was asked.
	Domain []string `json:"domain" yaml:"domain"`

	// DomainInstance is the previously extracted individual the question
	// was parameterized with. Empty for an unparameterized question.
	DomainInstance string `json:"domain_instance,omitempty" yaml:"domain_instance,omitempty"`

	// Range is the expected type of the answers.
	Range []string `json:"range" yaml:"range"`

	// Prompt is the rendered question sent to the oracle.
	Prompt string `json:"prompt" yaml:"prompt"`

	// Response holds the extracted answers.
	Response []string `json:"response" yaml:"response"`

	// Evidence holds the supporting references, one entry per answer.
	Evidence []string `json:"evidence,omitempty" yaml:"evidence,omitempty"`
}

// QueryOutcome is the result of one extraction step.
type QueryOutcome struct {
	Category string         `json:"category" yaml:"category"`
	Exists   bool           `json:"exists" yaml:"exists"`
	Content  OutcomeContent `json:"content" yaml:"content"`

	// Inconclusive marks an outcome whose oracle answer could not be decoded.
	Inconclusive bool `json:"inconclusive,omitempty" yaml:"inconclusive,omitempty"`

	// Cached marks an outcome replayed from the session cache.
	Cached bool `json:"cached,omitempty" yaml:"cached,omitempty"`
}

// Instances returns the answers an outcome contributes to the next
// nesting level. Negative outcomes contribute nothing.
func (o QueryOutcome) Instances() []string {
	if !o.Exists {
		return nil
	}
	return o.Content.Response
}

// ContextRecord is a replayable question/answer pair, keyed by
// (element, domain, domain instance, range).
type ContextRecord struct {
	OutcomeContent `yaml:",inline"`

	// Category is the category whose evaluation asked the question.
	Category string `json:"category" yaml:"category"`

	// Positive is false when the oracle had no answer.
	Positive bool `json:"positive" yaml:"positive"`

	// Inconclusive marks an answer that could not be decoded.
	Inconclusive bool `json:"inconclusive,omitempty" yaml:"inconclusive,omitempty"`
}

// PropertyValue is a data-property assertion on an entity.
type PropertyValue struct {
	Name  string   `json:"name" yaml:"name"`
	Value string   `json:"value" yaml:"value"`
	Range []string `json:"range,omitempty" yaml:"range,omitempty"`
}

// EntityRecord is an individual extracted from the document.
type EntityRecord struct {
	// Name is the individual as the oracle named it.
	Name string `json:"name" yaml:"name"`

	// Domain lists the categories the individual belongs to.
	Domain []string `json:"domain" yaml:"domain"`

	// NegativeDomain lists textual negations such as "not (hasWeapon some Weapon)".
	NegativeDomain []string `json:"negative_domain,omitempty" yaml:"negative_domain,omitempty"`

	// Properties holds data-property values.
	Properties []PropertyValue `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// PrimaryDomain returns the first declared domain, or "".
func (e EntityRecord) PrimaryDomain() string {
	if len(e.Domain) == 0 {
		return ""
	}
	return e.Domain[0]
}

// RelationRecord is an object-property assertion between two individuals.
type RelationRecord struct {
	Relation       string   `json:"relation" yaml:"relation"`
	Domain         []string `json:"domain" yaml:"domain"`
	DomainInstance string   `json:"domain_instance" yaml:"domain_instance"`
	Range          []string `json:"range" yaml:"range"`
	RangeInstance  string   `json:"range_instance" yaml:"range_instance"`
	Evidence       string   `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Category       string   `json:"category" yaml:"category"`
}

// CategoryAnalysis is the evaluation result for one visited category.
type CategoryAnalysis struct {
	Category string            `json:"category" yaml:"category"`
	Exists   bool              `json:"exists" yaml:"exists"`
	Excluded bool              `json:"excluded" yaml:"excluded"`
	Depth    int               `json:"depth" yaml:"depth"`
	Order    int               `json:"order" yaml:"order"`
	Parent   string            `json:"parent,omitempty" yaml:"parent,omitempty"`
	Relation DiscoveryRelation `json:"relation" yaml:"relation"`

	Contexts  []ContextRecord  `json:"contexts,omitempty" yaml:"contexts,omitempty"`
	Relations []RelationRecord `json:"relations,omitempty" yaml:"relations,omitempty"`
	Entities  []EntityRecord   `json:"entities,omitempty" yaml:"entities,omitempty"`

	// Error describes the category-scoped failure (parse, configuration,
	// ontology lookup) that aborted this category, if any.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// QueryAnalysis aggregates every category analysis under one root category.
type QueryAnalysis struct {
	Root  string `json:"root" yaml:"root"`
	Model string `json:"model" yaml:"model"`

	PositiveContexts []ContextRecord    `json:"positive_contexts" yaml:"positive_contexts"`
	NegativeContexts []ContextRecord    `json:"negative_contexts" yaml:"negative_contexts"`
	Relations        []RelationRecord   `json:"relations" yaml:"relations"`
	Entities         []EntityRecord     `json:"entities" yaml:"entities"`
	Categories       []CategoryAnalysis `json:"categories" yaml:"categories"`

	// MaxDepthReached is the deepest traversal level visited.
	MaxDepthReached int `json:"max_depth_reached" yaml:"max_depth_reached"`

	// Error is set when the root category failed as a whole (oracle failure).
	// A QueryAnalysis with an error carries no partial results.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Failed reports whether the root category produced an error marker.
func (q QueryAnalysis) Failed() bool {
	return q.Error != ""
}

// Existing returns the names of the categories found to exist.
func (q QueryAnalysis) Existing() []string {
	var names []string
	for _, c := range q.Categories {
		if c.Exists && !c.Excluded {
			names = append(names, c.Category)
		}
	}
	return names
}

// AnalysisBatch is the result of analyzing one document.
type AnalysisBatch struct {
	// ID identifies the document-processing session.
	ID string `json:"id" yaml:"id"`

	// Document is the document name, also used as the subject individual.
	Document string `json:"document" yaml:"document"`

	CreatedAt time.Time       `json:"created_at" yaml:"created_at"`
	Queries   []QueryAnalysis `json:"queries" yaml:"queries"`
}

// HasFailures reports whether any root category failed.
func (b AnalysisBatch) HasFailures() bool {
	for _, q := range b.Queries {
		if q.Failed() {
			return true
		}
	}
	return false
}
