package models

import (
	"github.com/bratushka/cypher/pkg/values"
)

// Prop describes one declared property of a model. A Prop binds to a single
// schema when the schema is defined and does not change afterwards.
type Prop struct {
	value    values.Type
	required bool
	def      func() any
	owner    *Schema
}

// PropOption configures a Prop at declaration time.
type PropOption func(*Prop)

// Optional marks the property as not required.
func Optional() PropOption {
	return func(p *Prop) { p.required = false }
}

// Default sets the default used when no value is supplied. A func() any is
// called once per instance.
func Default(v any) PropOption {
	return func(p *Prop) {
		if f, ok := v.(func() any); ok {
			p.def = f
			return
		}
		p.def = func() any { return v }
	}
}

// NewProp declares a property of the given value type.
func NewProp(t values.Type, opts ...PropOption) *Prop {
	p := &Prop{value: t, required: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func Boolean(opts ...PropOption) *Prop  { return NewProp(values.Boolean, opts...) }
func Integer(opts ...PropOption) *Prop  { return NewProp(values.Integer, opts...) }
func Float(opts ...PropOption) *Prop    { return NewProp(values.Float, opts...) }
func String(opts ...PropOption) *Prop   { return NewProp(values.String, opts...) }
func Date(opts ...PropOption) *Prop     { return NewProp(values.Date, opts...) }
func DateTime(opts ...PropOption) *Prop { return NewProp(values.DateTime, opts...) }
func Generic(opts ...PropOption) *Prop  { return NewProp(values.Generic, opts...) }

// UID declares an identifier property that defaults to a random UUID.
func UID(opts ...PropOption) *Prop {
	return NewProp(values.UID, append([]PropOption{Default(values.NewUID)}, opts...)...)
}

func (p *Prop) Type() values.Type { return p.value }
func (p *Prop) Required() bool    { return p.required }
func (p *Prop) Owner() *Schema    { return p.owner }

// Default evaluates the default producer. ok is false when none is set.
func (p *Prop) Default() (v any, ok bool) {
	if p.def == nil {
		return nil, false
	}
	return p.def(), true
}

// Name returns the name the property is declared under on its owner.
func (p *Prop) Name() (string, bool) {
	if p.owner == nil {
		return "", false
	}
	return p.owner.NameOf(p)
}
