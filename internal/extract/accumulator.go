// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import "github.com/pdiddy/ontoguide/pkg/types"

// Hierarchy resolves conflicting entity domains. ontology.Graph implements it.
type Hierarchy interface {
	// Narrower returns whichever of a and b is a (non-strict) sub-category
	// of the other, or false when neither is.
	Narrower(a, b string) (string, bool)
}

// Merge folds a category analysis into its root-category analysis.
// Contexts are split by polarity and relations appended. An entity whose
// name is already known is merged into the record with the same primary
// domain; failing that, the first same-name record is narrowed when h
// relates the two domains. Otherwise the entity is kept as a separate
// record.
func Merge(query *types.QueryAnalysis, category types.CategoryAnalysis, h Hierarchy) {
	for _, c := range category.Contexts {
		if c.Positive {
			query.PositiveContexts = append(query.PositiveContexts, c)
		} else {
			query.NegativeContexts = append(query.NegativeContexts, c)
		}
	}
	query.Relations = append(query.Relations, category.Relations...)
	for _, e := range category.Entities {
		mergeEntity(query, e, h)
	}
	query.Categories = append(query.Categories, category)
}

func mergeEntity(query *types.QueryAnalysis, in types.EntityRecord, h Hierarchy) {
	first := -1
	for i := range query.Entities {
		stored := &query.Entities[i]
		if stored.Name != in.Name {
			continue
		}
		if stored.PrimaryDomain() == in.PrimaryDomain() {
			absorb(stored, in)
			return
		}
		if first < 0 {
			first = i
		}
	}
	if first < 0 {
		query.Entities = append(query.Entities, cloneEntity(in))
		return
	}

	stored := &query.Entities[first]
	if domain, ok := resolveDomain(stored.PrimaryDomain(), in.PrimaryDomain(), h); ok {
		setPrimaryDomain(stored, domain)
		absorb(stored, in)
		return
	}
	query.Entities = append(query.Entities, cloneEntity(in))
}

func resolveDomain(stored, incoming string, h Hierarchy) (string, bool) {
	switch {
	case stored == "":
		return incoming, true
	case incoming == "":
		return stored, true
	case h == nil:
		return "", false
	}
	return h.Narrower(stored, incoming)
}

func setPrimaryDomain(e *types.EntityRecord, domain string) {
	if len(e.Domain) == 0 {
		e.Domain = []string{domain}
		return
	}
	d := append([]string(nil), e.Domain...)
	d[0] = domain
	e.Domain = d
}

// absorb adds the negative constraints and property values of in that
// stored lacks.
func absorb(stored *types.EntityRecord, in types.EntityRecord) {
	for _, n := range in.NegativeDomain {
		stored.NegativeDomain = appendUnique(stored.NegativeDomain, n)
	}
	for _, p := range in.Properties {
		if !hasProperty(stored.Properties, p) {
			stored.Properties = append(stored.Properties, p)
		}
	}
}

func hasProperty(props []types.PropertyValue, p types.PropertyValue) bool {
	for _, q := range props {
		if q.Name == p.Name && q.Value == p.Value {
			return true
		}
	}
	return false
}

func cloneEntity(e types.EntityRecord) types.EntityRecord {
	return types.EntityRecord{
		Name:           e.Name,
		Domain:         append([]string(nil), e.Domain...),
		NegativeDomain: append([]string(nil), e.NegativeDomain...),
		Properties:     append([]types.PropertyValue(nil), e.Properties...),
	}
}
