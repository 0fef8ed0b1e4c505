// Package manifest declares models and instances in a YAML document and
// builds them, so graphs can be described without writing Go.
//
//	models:
//	  - name: Human
//	    primaryKey: name
//	    fields:
//	      - {name: name, type: String}
//	      - {name: born, type: Date, optional: true}
//	  - name: Knows
//	    kind: edge
//	nodes:
//	  - {ref: ann, model: Human, properties: {name: Ann}}
//	  - {ref: bob, model: Human, labels: [Admin], properties: {name: Bob}}
//	edges:
//	  - {model: Knows, from: ann, to: bob}
package manifest

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/models"
	"github.com/bratushka/cypher/pkg/values"
)

type Document struct {
	Models []ModelSpec `yaml:"models"`
	Nodes  []NodeSpec  `yaml:"nodes"`
	Edges  []EdgeSpec  `yaml:"edges"`
}

type ModelSpec struct {
	Name string `yaml:"name"`
	// Kind is "node" (the default) or "edge".
	Kind       string      `yaml:"kind,omitempty"`
	Extends    string      `yaml:"extends,omitempty"`
	PrimaryKey string      `yaml:"primaryKey,omitempty"`
	Fields     []FieldSpec `yaml:"fields,omitempty"`
}

type FieldSpec struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Optional bool   `yaml:"optional,omitempty"`
	Default  any    `yaml:"default,omitempty"`
}

type NodeSpec struct {
	Ref        string         `yaml:"ref,omitempty"`
	Model      string         `yaml:"model"`
	Labels     []string       `yaml:"labels,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

type EdgeSpec struct {
	Model      string         `yaml:"model"`
	From       string         `yaml:"from"`
	To         string         `yaml:"to"`
	Labels     []string       `yaml:"labels,omitempty"`
	Properties map[string]any `yaml:"properties,omitempty"`
}

// Graph is a built document.
type Graph struct {
	Schemas map[string]*models.Schema
	// Instances holds nodes then edges, in document order.
	Instances []*models.Instance

	refs map[string]*models.Instance
}

// Node returns the node declared with ref.
func (g *Graph) Node(ref string) (*models.Instance, bool) {
	n, ok := g.refs[ref]
	return n, ok
}

// Load reads and parses the document at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a document. Unknown keys are rejected.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	return &doc, nil
}

// Build defines the models and creates the instances. A model may only
// extend a model declared before it.
func (d *Document) Build() (*Graph, error) {
	g := &Graph{
		Schemas: make(map[string]*models.Schema, len(d.Models)),
		refs:    make(map[string]*models.Instance),
	}

	for _, m := range d.Models {
		s, err := d.define(g, m)
		if err != nil {
			return nil, err
		}
		g.Schemas[m.Name] = s
	}

	for i, n := range d.Nodes {
		s, err := g.schema(n.Model, models.KindNode)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		inst, err := s.New(coerce(s, n.Properties), models.WithLabels(n.Labels...))
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		if n.Ref != "" {
			if _, dup := g.refs[n.Ref]; dup {
				return nil, errdefs.Integrity("manifest", "node ref %q is used twice", n.Ref)
			}
			g.refs[n.Ref] = inst
		}
		g.Instances = append(g.Instances, inst)
	}

	for i, e := range d.Edges {
		s, err := g.schema(e.Model, models.KindEdge)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		from, ok := g.refs[e.From]
		if !ok {
			return nil, errdefs.Integrity("manifest", "edge %d: unknown node ref %q", i, e.From)
		}
		to, ok := g.refs[e.To]
		if !ok {
			return nil, errdefs.Integrity("manifest", "edge %d: unknown node ref %q", i, e.To)
		}
		inst, err := s.New(coerce(s, e.Properties), models.WithLabels(e.Labels...), models.Between(from, to))
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		g.Instances = append(g.Instances, inst)
	}
	return g, nil
}

func (d *Document) define(g *Graph, m ModelSpec) (*models.Schema, error) {
	if _, dup := g.Schemas[m.Name]; dup {
		return nil, errdefs.Integrity("manifest", "model %q is declared twice", m.Name)
	}

	var opts []models.SchemaOption
	for _, f := range m.Fields {
		p, err := prop(f)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", m.Name, err)
		}
		opts = append(opts, models.Field(f.Name, p))
	}
	if m.PrimaryKey != "" {
		opts = append(opts, models.PrimaryKey(m.PrimaryKey))
	}

	switch strings.ToLower(m.Kind) {
	case "", "node":
		if m.Extends != "" {
			parent, err := g.schema(m.Extends, models.KindNode)
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Name, err)
			}
			opts = append(opts, models.Extends(parent))
		}
		return models.DefineNode(m.Name, opts...)
	case "edge":
		if m.Extends != "" {
			parent, err := g.schema(m.Extends, models.KindEdge)
			if err != nil {
				return nil, fmt.Errorf("model %s: %w", m.Name, err)
			}
			opts = append(opts, models.Extends(parent))
		}
		return models.DefineEdge(m.Name, opts...)
	}
	return nil, &errdefs.ConstraintError{Value: m.Kind, Property: m.Name + ".kind", Reason: "Kinds are node or edge."}
}

func (g *Graph) schema(name string, kind models.EntityKind) (*models.Schema, error) {
	s, ok := g.Schemas[name]
	if !ok {
		return nil, errdefs.Integrity("manifest", "unknown model %q", name)
	}
	if s.Kind() != kind {
		return nil, errdefs.Integrity("manifest", "%s is a %s, not a %s", name, s.Kind(), kind)
	}
	return s, nil
}

func prop(f FieldSpec) (*models.Prop, error) {
	t, ok := values.Lookup(f.Type)
	if !ok {
		return nil, &errdefs.ConstraintError{Value: f.Type, Property: f.Name, Reason: "Unknown property type."}
	}
	var opts []models.PropOption
	if f.Optional {
		opts = append(opts, models.Optional())
	}
	if f.Default != nil {
		opts = append(opts, models.Default(coerceValue(t, f.Default)))
	}
	if t == values.UID {
		return models.UID(opts...), nil
	}
	return models.NewProp(t, opts...), nil
}

// coerce turns YAML scalars into the Go values the declared types expect.
// Only dates and timestamps need it.
func coerce(s *models.Schema, props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if p, ok := s.Prop(k); ok {
			v = coerceValue(p.Type(), v)
		}
		out[k] = v
	}
	return out
}

func coerceValue(t values.Type, v any) any {
	str, ok := v.(string)
	if !ok {
		return v
	}
	switch t {
	case values.Date:
		if d, err := time.Parse(time.DateOnly, str); err == nil {
			return d
		}
	case values.DateTime:
		if d, err := time.Parse(time.RFC3339Nano, str); err == nil {
			return d
		}
		if d, err := time.Parse(time.DateOnly, str); err == nil {
			return d
		}
	}
	return v
}

// ParseValue reads a scalar written on a command line, like "42", "true" or
// "1990-04-01", and converts it for t.
func ParseValue(t values.Type, raw string) (any, error) {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &errdefs.ConstraintError{Value: raw, Reason: err.Error()}
	}
	if t == values.String || t == values.UID {
		if _, ok := v.(string); !ok {
			v = raw
		}
	}
	return coerceValue(t, v), nil
}
