// Package models declares graph node and edge types and builds validated
// instances of them.
package models

import (
	"fmt"
	"sort"

	"github.com/bratushka/cypher/pkg/errdefs"
)

// EntityKind tells nodes and edges apart.
type EntityKind int

const (
	KindNode EntityKind = iota
	KindEdge
)

func (k EntityKind) String() string {
	if k == KindEdge {
		return "Edge"
	}
	return "Node"
}

// Schema is a node or edge model type.
type Schema struct {
	name       string
	kind       EntityKind
	parent     *Schema
	base       bool
	primaryKey string

	// own and inherited declarations, built once at definition time
	props map[string]*Prop
	names map[*Prop]string
	order []string
}

var (
	// AnyNode matches any node and carries no label.
	AnyNode = &Schema{name: "Node", kind: KindNode, base: true, props: map[string]*Prop{}, names: map[*Prop]string{}}
	// AnyEdge matches any edge and carries no label.
	AnyEdge = &Schema{name: "Edge", kind: KindEdge, base: true, props: map[string]*Prop{}, names: map[*Prop]string{}}
)

// SchemaOption configures a schema being defined.
type SchemaOption func(*schemaDef)

type schemaDef struct {
	parent     *Schema
	fields     []field
	primaryKey string
}

type field struct {
	name string
	prop *Prop
}

// Field declares a property under name.
func Field(name string, p *Prop) SchemaOption {
	return func(d *schemaDef) { d.fields = append(d.fields, field{name: name, prop: p}) }
}

// PrimaryKey names the property used when matching by instance.
func PrimaryKey(name string) SchemaOption {
	return func(d *schemaDef) { d.primaryKey = name }
}

// Extends inherits the properties and primary key of parent.
func Extends(parent *Schema) SchemaOption {
	return func(d *schemaDef) { d.parent = parent }
}

// DefineNode declares a node type.
func DefineNode(name string, opts ...SchemaOption) (*Schema, error) {
	return define(name, KindNode, opts)
}

// DefineEdge declares an edge type.
func DefineEdge(name string, opts ...SchemaOption) (*Schema, error) {
	return define(name, KindEdge, opts)
}

// MustDefineNode is like DefineNode but panics on error. It is meant for
// package level declarations.
func MustDefineNode(name string, opts ...SchemaOption) *Schema {
	return must(DefineNode(name, opts...))
}

// MustDefineEdge is like DefineEdge but panics on error.
func MustDefineEdge(name string, opts ...SchemaOption) *Schema {
	return must(DefineEdge(name, opts...))
}

func must(s *Schema, err error) *Schema {
	if err != nil {
		panic(err)
	}
	return s
}

func define(name string, kind EntityKind, opts []SchemaOption) (*Schema, error) {
	if name == "" {
		return nil, &errdefs.ConstraintError{Value: name, Reason: "Model names cannot be empty."}
	}
	def := &schemaDef{}
	for _, opt := range opts {
		opt(def)
	}

	s := &Schema{
		name:   name,
		kind:   kind,
		parent: def.parent,
		props:  make(map[string]*Prop),
		names:  make(map[*Prop]string),
	}

	if p := def.parent; p != nil {
		if p.kind != kind {
			return nil, fmt.Errorf("%w: %s %q cannot extend %s %q",
				errdefs.ErrIntegrity, kind, name, p.kind, p.name)
		}
		for n, prop := range p.props {
			s.props[n] = prop
			s.names[prop] = n
		}
		s.primaryKey = p.primaryKey
	}

	for _, f := range def.fields {
		if f.prop == nil {
			return nil, errdefs.Integrity("define "+name, "property %q is nil", f.name)
		}
		if f.prop.owner != nil {
			return nil, errdefs.Integrity("define "+name, "property %q is already declared on %s", f.name, f.prop.owner.name)
		}
		if _, dup := s.names[f.prop]; dup {
			return nil, errdefs.Integrity("define "+name, "property %q is declared twice", f.name)
		}
		if old, ok := s.props[f.name]; ok {
			delete(s.names, old)
		}
		s.props[f.name] = f.prop
		s.names[f.prop] = f.name
	}

	if def.primaryKey != "" {
		if _, ok := s.props[def.primaryKey]; !ok {
			return nil, errdefs.Integrity("define "+name, "primary key %q is not a declared property", def.primaryKey)
		}
		s.primaryKey = def.primaryKey
	}

	// Bind only after every check passed so a failed definition leaves the
	// descriptors reusable.
	for _, f := range def.fields {
		f.prop.owner = s
	}

	s.order = make([]string, 0, len(s.props))
	for n := range s.props {
		s.order = append(s.order, n)
	}
	sort.Strings(s.order)
	return s, nil
}

func (s *Schema) Name() string       { return s.name }
func (s *Schema) Kind() EntityKind   { return s.kind }
func (s *Schema) Parent() *Schema    { return s.parent }
func (s *Schema) IsBase() bool       { return s.base }
func (s *Schema) PrimaryKey() string { return s.primaryKey }

// Prop returns the property declared (or inherited) under name.
func (s *Schema) Prop(name string) (*Prop, bool) {
	p, ok := s.props[name]
	return p, ok
}

// MustProp is like Prop but panics when name is not declared.
func (s *Schema) MustProp(name string) *Prop {
	p, ok := s.props[name]
	if !ok {
		panic(fmt.Sprintf("models: %s has no property %q", s.name, name))
	}
	return p
}

// NameOf finds the declared name of p by identity.
func (s *Schema) NameOf(p *Prop) (string, bool) {
	n, ok := s.names[p]
	return n, ok
}

// PropNames lists every visible property name in sorted order.
func (s *Schema) PropNames() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Labels returns the labels used when matching by type. Base schemas have
// none.
func (s *Schema) Labels() []string {
	if s.base {
		return nil
	}
	return []string{s.name}
}

// Is reports whether s is other or inherits from it.
func (s *Schema) Is(other *Schema) bool {
	for cur := s; cur != nil; cur = cur.parent {
		if cur == other {
			return true
		}
	}
	return false
}

func (s *Schema) String() string { return s.name }
