// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ontology loads the category graph that drives extraction and
// traverses it.
//
// An ontology file is YAML:
//
//	namespace: onto
//	root_class: PoliceReport
//	prefixes: ["onto."]
//	categories:
//	  - name: Theft
//	    subclass_of: [PropertyCrime]
//	    equivalent_to: ["hasVictim.some(Victim) & hasLoss.some(StolenGoods)"]
//	    see_also: "file://questions/crimes.json#Theft"
//	object_properties:
//	  - name: hasVictim
//	    domain: [Crime]
//	    range: [Victim]
//	data_properties:
//	  - name: hasAmount
//	    domain: [StolenGoods]
//	    range: [decimal]
package ontology

import (
	"fmt"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"go.yaml.in/yaml/v3"
)

const xsdNamespace = "http://www.w3.org/2001/XMLSchema#"

var (
	ErrUnknownCategory = errors.New("unknown category")
	ErrUnknownProperty = errors.New("unknown property")
)

// LookupError reports a category or property missing from the ontology.
type LookupError struct {
	Name string
	Err  error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Name)
}

func (e *LookupError) Unwrap() error { return e.Err }

// Provider is the read-only view of the ontology used by traversal and
// extraction.
type Provider interface {
	Categories() []string
	Subclasses(category string) ([]string, error)
	MembershipExpressions(category string) ([]string, error)
	// QuestionConfigRef returns "" when the category has no question configuration.
	QuestionConfigRef(category string) (string, error)
	PropertyDomain(property string) ([]string, error)
	PropertyRange(property string) ([]string, error)
	LiteralRange(property string) ([]string, error)
}

// Category is a named class and its membership expressions.
type Category struct {
	Name        string
	Subclasses  []string
	Expressions []string
	QuestionRef string
}

// Property is an object or data property declaration.
type Property struct {
	Name   string
	Domain []string
	Range  []string
	Data   bool
}

type fileCategory struct {
	Name         string   `yaml:"name"`
	Subclasses   []string `yaml:"subclasses"`
	SubclassOf   []string `yaml:"subclass_of"`
	EquivalentTo []string `yaml:"equivalent_to"`
	SeeAlso      string   `yaml:"see_also"`
}

type fileProperty struct {
	Name   string   `yaml:"name"`
	Domain []string `yaml:"domain"`
	Range  []string `yaml:"range"`
}

type file struct {
	Namespace        string         `yaml:"namespace"`
	RootClass        string         `yaml:"root_class"`
	Prefixes         []string       `yaml:"prefixes"`
	Categories       []fileCategory `yaml:"categories"`
	ObjectProperties []fileProperty `yaml:"object_properties"`
	DataProperties   []fileProperty `yaml:"data_properties"`
}

// Ontology is an in-memory category graph. It is immutable after loading
// and safe for concurrent reads.
type Ontology struct {
	Namespace string
	Root      string
	Prefixes  []string

	order      []string
	categories map[string]*Category
	properties map[string]*Property
}

// Load reads an ontology YAML file.
func Load(path string) (*Ontology, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading ontology %s", path)
	}
	o, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "loading ontology %s", path)
	}
	return o, nil
}

// Parse decodes an ontology from YAML.
func Parse(data []byte) (*Ontology, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "decoding YAML")
	}

	o := &Ontology{
		Namespace:  f.Namespace,
		Root:       f.RootClass,
		Prefixes:   f.Prefixes,
		categories: make(map[string]*Category),
		properties: make(map[string]*Property),
	}
	if f.Namespace != "" && len(o.Prefixes) == 0 {
		o.Prefixes = []string{f.Namespace + "."}
	}

	for _, fc := range f.Categories {
		if fc.Name == "" {
			return nil, errors.New("category without name")
		}
		c := o.ensure(fc.Name)
		c.Expressions = append(c.Expressions, fc.EquivalentTo...)
		if fc.SeeAlso != "" {
			c.QuestionRef = fc.SeeAlso
		}
		for _, sub := range fc.Subclasses {
			o.link(fc.Name, sub)
		}
		for _, parent := range fc.SubclassOf {
			o.link(parent, fc.Name)
		}
	}

	for _, fp := range f.ObjectProperties {
		if err := o.addProperty(fp, false); err != nil {
			return nil, err
		}
	}
	for _, fp := range f.DataProperties {
		if err := o.addProperty(fp, true); err != nil {
			return nil, err
		}
	}

	if o.Root == "" && len(o.order) > 0 {
		o.Root = o.order[0]
	}
	return o, nil
}

func (o *Ontology) ensure(name string) *Category {
	if c, ok := o.categories[name]; ok {
		return c
	}
	c := &Category{Name: name}
	o.categories[name] = c
	o.order = append(o.order, name)
	return c
}

func (o *Ontology) link(parent, child string) {
	p := o.ensure(parent)
	o.ensure(child)
	for _, s := range p.Subclasses {
		if s == child {
			return
		}
	}
	p.Subclasses = append(p.Subclasses, child)
}

func (o *Ontology) addProperty(fp fileProperty, data bool) error {
	if fp.Name == "" {
		return errors.New("property without name")
	}
	if _, dup := o.properties[fp.Name]; dup {
		return errors.Newf("property %s declared twice", fp.Name)
	}
	o.properties[fp.Name] = &Property{Name: fp.Name, Domain: fp.Domain, Range: fp.Range, Data: data}
	return nil
}

func (o *Ontology) category(name string) (*Category, error) {
	c, ok := o.categories[name]
	if !ok {
		return nil, &LookupError{Name: name, Err: ErrUnknownCategory}
	}
	return c, nil
}

func (o *Ontology) property(name string) (*Property, error) {
	p, ok := o.properties[name]
	if !ok {
		return nil, &LookupError{Name: name, Err: ErrUnknownProperty}
	}
	return p, nil
}

// Categories returns every category in declaration order.
func (o *Ontology) Categories() []string {
	return append([]string(nil), o.order...)
}

func (o *Ontology) Subclasses(category string) ([]string, error) {
	c, err := o.category(category)
	if err != nil {
		return nil, err
	}
	return c.Subclasses, nil
}

func (o *Ontology) MembershipExpressions(category string) ([]string, error) {
	c, err := o.category(category)
	if err != nil {
		return nil, err
	}
	return c.Expressions, nil
}

func (o *Ontology) QuestionConfigRef(category string) (string, error) {
	c, err := o.category(category)
	if err != nil {
		return "", err
	}
	return c.QuestionRef, nil
}

func (o *Ontology) PropertyDomain(property string) ([]string, error) {
	p, err := o.property(property)
	if err != nil {
		return nil, err
	}
	return p.Domain, nil
}

// PropertyRange returns the declared range of an object property.
func (o *Ontology) PropertyRange(property string) ([]string, error) {
	p, err := o.property(property)
	if err != nil {
		return nil, err
	}
	if p.Data {
		return nil, &LookupError{Name: property, Err: errors.Wrap(ErrUnknownProperty, "not an object property")}
	}
	return p.Range, nil
}

// LiteralRange returns the XSD datatype URIs of a data property.
func (o *Ontology) LiteralRange(property string) ([]string, error) {
	p, err := o.property(property)
	if err != nil {
		return nil, err
	}
	if !p.Data {
		return nil, &LookupError{Name: property, Err: errors.Wrap(ErrUnknownProperty, "not a data property")}
	}
	uris := make([]string, len(p.Range))
	for i, r := range p.Range {
		uris[i] = XSDURI(r)
	}
	return uris, nil
}

// XSDURI expands a short datatype name (xsd:int, integer) to its XML Schema URI.
func XSDURI(name string) string {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		return name
	}
	name = strings.TrimPrefix(name, "xsd:")
	if name == "int" {
		name = "integer"
	}
	return xsdNamespace + name
}

// DeclaredRange returns the range of any property, or nil if unknown.
func (o *Ontology) DeclaredRange(property string) []string {
	if p, ok := o.properties[property]; ok {
		return p.Range
	}
	return nil
}

func (o *Ontology) IsDataProperty(property string) bool {
	p, ok := o.properties[property]
	return ok && p.Data
}

func (o *Ontology) IsCategory(name string) bool {
	_, ok := o.categories[name]
	return ok
}
