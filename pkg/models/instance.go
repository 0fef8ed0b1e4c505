package models

import (
	"sort"

	"github.com/bratushka/cypher/pkg/errdefs"
)

// Instance is a validated node or edge.
type Instance struct {
	schema *Schema
	labels map[string]struct{}
	values map[string]any
	extras map[string]any
	from   *Instance
	to     *Instance
}

// InstanceOption configures an instance under construction.
type InstanceOption func(*instanceDef)

type instanceDef struct {
	labels   []string
	from, to *Instance
}

// WithLabels adds labels besides the type name.
func WithLabels(labels ...string) InstanceOption {
	return func(d *instanceDef) { d.labels = append(d.labels, labels...) }
}

// Between records the endpoints of an edge. The edge does not own them.
func Between(from, to *Instance) InstanceOption {
	return func(d *instanceDef) { d.from, d.to = from, to }
}

// New builds an instance of s. Every declared property is resolved from
// fields or its default, normalized and validated; the first failure aborts
// construction. Keys that match no declared property are kept as extras
// without validation.
func (s *Schema) New(fields map[string]any, opts ...InstanceOption) (*Instance, error) {
	def := &instanceDef{}
	for _, opt := range opts {
		opt(def)
	}

	inst := &Instance{
		schema: s,
		values: make(map[string]any, len(s.props)),
		extras: make(map[string]any),
	}

	for _, name := range s.order {
		prop := s.props[name]
		value, supplied := fields[name]
		if !supplied || value == nil {
			value, _ = prop.Default()
		}
		if value == nil {
			if prop.required {
				return nil, &errdefs.MissingFieldError{Model: s.name, Field: name}
			}
			inst.values[name] = nil
			continue
		}
		normalized := prop.value.Normalize(value)
		if err := prop.value.Validate(normalized); err != nil {
			return nil, errdefs.WithProperty(err, s.name, name)
		}
		inst.values[name] = normalized
	}

	for k, v := range fields {
		if _, declared := s.props[k]; !declared {
			inst.extras[k] = v
		}
	}

	if err := inst.SetLabels(def.labels); err != nil {
		return nil, err
	}

	if def.from != nil || def.to != nil {
		if s.kind != KindEdge {
			return nil, errdefs.Integrity("new "+s.name, "only edges have endpoints")
		}
		if def.from == nil || def.to == nil {
			return nil, errdefs.Integrity("new "+s.name, "an edge needs both endpoints")
		}
		if def.from.schema.kind != KindNode || def.to.schema.kind != KindNode {
			return nil, errdefs.Integrity("new "+s.name, "edge endpoints must be nodes")
		}
		inst.from, inst.to = def.from, def.to
	}
	return inst, nil
}

// MustNew is like New but panics on error.
func (s *Schema) MustNew(fields map[string]any, opts ...InstanceOption) *Instance {
	inst, err := s.New(fields, opts...)
	if err != nil {
		panic(err)
	}
	return inst
}

func (i *Instance) Schema() *Schema { return i.schema }
func (i *Instance) IsEdge() bool    { return i.schema.kind == KindEdge }

// Get returns a declared property value. Absent optional properties are
// present with a nil value.
func (i *Instance) Get(name string) (any, bool) {
	v, ok := i.values[name]
	return v, ok
}

// Extras returns a copy of the undeclared properties.
func (i *Instance) Extras() map[string]any {
	out := make(map[string]any, len(i.extras))
	for k, v := range i.extras {
		out[k] = v
	}
	return out
}

// SetExtras replaces the undeclared properties wholesale.
func (i *Instance) SetExtras(extras map[string]any) {
	i.extras = make(map[string]any, len(extras))
	for k, v := range extras {
		i.extras[k] = v
	}
}

// Endpoints returns the nodes an edge connects, or nils.
func (i *Instance) Endpoints() (from, to *Instance) {
	return i.from, i.to
}

// Labels returns the distinct labels in sorted order.
func (i *Instance) Labels() []string {
	out := make([]string, 0, len(i.labels))
	for l := range i.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

// SetLabels replaces the labels. The type name is always kept.
func (i *Instance) SetLabels(labels []string) error {
	set := map[string]struct{}{i.schema.name: {}}
	for _, l := range labels {
		if l == "" {
			return &errdefs.ConstraintError{Value: l, Reason: "Labels cannot be empty."}
		}
		set[l] = struct{}{}
	}
	i.labels = set
	return nil
}

// SetLabelsFrom accepts labels from loosely typed data such as decoded YAML
// or JSON. Entries that are not strings are rejected.
func (i *Instance) SetLabelsFrom(v any) error {
	if v == nil {
		return i.SetLabels(nil)
	}
	if ls, ok := v.([]string); ok {
		return i.SetLabels(ls)
	}
	items, ok := v.([]any)
	if !ok {
		return errdefs.TypeMismatch(v, "Labels", "[]string")
	}
	labels := make([]string, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			return &errdefs.TypeMismatchError{Got: errdefs.TypeName(item), Kind: "Label", Accepted: []string{"string"}}
		}
		labels = append(labels, s)
	}
	return i.SetLabels(labels)
}

// PrimaryKey returns the primary key name and value of the instance.
func (i *Instance) PrimaryKey() (string, any, error) {
	pk := i.schema.primaryKey
	if pk == "" {
		return "", nil, errdefs.Integrity("match "+i.schema.name, "%s declares no primary key", i.schema.name)
	}
	v := i.values[pk]
	if v == nil {
		return "", nil, errdefs.Integrity("match "+i.schema.name, "primary key %q of %s is not set", pk, i.schema.name)
	}
	return pk, v, nil
}
