// Package schema defines per-index field schemas and the registry that
// resolves them by index name. A schema names each field's analyzer factory
// and arguments and marks facet fields, whose raw values are stored verbatim
// on postings instead of being tokenized.
package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// DefaultAnalyzer is used for fields and indexes that configure none.
const DefaultAnalyzer = "standard"

// Field configures how one named field is analyzed.
type Field struct {
	Name         string   `yaml:"name"`
	Facet        bool     `yaml:"facet"`
	Analyzer     string   `yaml:"analyzer"`
	AnalyzerArgs []string `yaml:"analyzerArgs"`
}

// Schema is the analysis configuration of one index.
type Schema struct {
	Index           string  `yaml:"index"`
	DefaultAnalyzer string  `yaml:"defaultAnalyzer"`
	Fields          []Field `yaml:"fields"`

	byName map[string]Field
}

// New builds a Schema in code. Fields without an analyzer get
// defaultAnalyzer, or DefaultAnalyzer when that is empty too.
func New(index, defaultAnalyzer string, fields ...Field) *Schema {
	if defaultAnalyzer == "" {
		defaultAnalyzer = DefaultAnalyzer
	}
	s := &Schema{
		Index:           index,
		DefaultAnalyzer: defaultAnalyzer,
		Fields:          fields,
		byName:          make(map[string]Field, len(fields)),
	}
	for _, f := range fields {
		if f.Analyzer == "" {
			f.Analyzer = defaultAnalyzer
		}
		s.byName[f.Name] = f
	}
	return s
}

// Parse reads a YAML schema definition and validates it.
func Parse(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	if s.Index == "" {
		return nil, fmt.Errorf("schema has no index name")
	}
	if s.DefaultAnalyzer == "" {
		s.DefaultAnalyzer = DefaultAnalyzer
	}
	s.byName = make(map[string]Field, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("schema %s: field %d has no name", s.Index, i)
		}
		if f.Analyzer == "" {
			f.Analyzer = s.DefaultAnalyzer
		}
		s.byName[f.Name] = f
	}
	return &s, nil
}

// FindField returns the configuration for the named field. Unknown fields
// get the index's default analyzer and are not facets.
func (s *Schema) FindField(name string) Field {
	if f, ok := s.byName[name]; ok {
		return f
	}
	return Field{Name: name, Analyzer: s.DefaultAnalyzer}
}

// IsFieldFacet reports whether the named field is a facet field.
func (s *Schema) IsFieldFacet(name string) bool {
	return s.FindField(name).Facet
}
