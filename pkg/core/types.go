package core

import (
	"regexp"
	"strconv"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/models"
	"github.com/bratushka/cypher/pkg/values"
)

// Direction represents the direction of a relationship
type Direction string

const (
	Left  Direction = "left"
	Right Direction = "right"
	None  Direction = "none"
)

// IdentifierKind tells what a match identifier refers to.
type IdentifierKind int

const (
	Wildcard IdentifierKind = iota
	TypeMatch
	InstanceMatch
)

func (k IdentifierKind) String() string {
	switch k {
	case TypeMatch:
		return "type"
	case InstanceMatch:
		return "instance"
	default:
		return "wildcard"
	}
}

// Identifier is what a pattern element matches: anything, every entity of a
// schema, or one concrete instance.
type Identifier struct {
	kind     IdentifierKind
	schema   *models.Schema
	instance *models.Instance
}

// IdentifierOf classifies v. nil and the base schemas are wildcards.
func IdentifierOf(v any) (Identifier, error) {
	switch t := v.(type) {
	case nil:
		return Identifier{kind: Wildcard}, nil
	case Identifier:
		return t, nil
	case *models.Schema:
		if t == nil || t.IsBase() {
			return Identifier{kind: Wildcard, schema: t}, nil
		}
		return Identifier{kind: TypeMatch, schema: t}, nil
	case *models.Instance:
		if t == nil {
			return Identifier{kind: Wildcard}, nil
		}
		return Identifier{kind: InstanceMatch, schema: t.Schema(), instance: t}, nil
	default:
		return Identifier{}, &errdefs.TypeMismatchError{
			Got:      errdefs.TypeName(v),
			Kind:     "match identifier",
			Accepted: []string{"nil", "*models.Schema", "*models.Instance"},
		}
	}
}

func (id Identifier) Kind() IdentifierKind        { return id.kind }
func (id Identifier) Instance() *models.Instance { return id.instance }

// Schema returns the matched schema, or nil for a wildcard.
func (id Identifier) Schema() *models.Schema {
	if id.kind == Wildcard {
		return nil
	}
	return id.schema
}

// Labels returns the labels rendered in the pattern. A node instance brings
// all of its own labels; relationships have a single type.
func (id Identifier) Labels() []string {
	switch {
	case id.kind == Wildcard:
		return nil
	case id.kind == InstanceMatch && id.schema.Kind() == models.KindNode:
		return id.instance.Labels()
	}
	return id.schema.Labels()
}

// admits reports whether a variable bound to id may be reused with other.
// A wildcard reuse adds nothing; otherwise the schema must match and two
// instances must be the same one.
func (id Identifier) admits(other Identifier) bool {
	if other.kind == Wildcard {
		return true
	}
	if id.Schema() != other.schema {
		return false
	}
	return id.instance == nil || other.instance == nil || id.instance == other.instance
}

func (id Identifier) String() string {
	switch id.kind {
	case Wildcard:
		return "any"
	case InstanceMatch:
		return "an instance of " + id.schema.Name()
	}
	return id.schema.Name()
}

// fits reports whether the identifier may stand in a slot of the given kind.
// Wildcards carrying a base schema must agree on the kind too.
func (id Identifier) fits(kind models.EntityKind) bool {
	if id.schema == nil {
		return true
	}
	return id.schema.Kind() == kind
}

// Length bounds a variable-length relationship. Nil bounds are open.
type Length struct {
	Min *int
	Max *int
}

func (l Length) String() string {
	if l.Min == nil && l.Max == nil {
		return "*"
	}
	s := "*"
	if l.Min != nil {
		s += strconv.Itoa(*l.Min)
	}
	s += ".."
	if l.Max != nil {
		s += strconv.Itoa(*l.Max)
	}
	return s
}

func (l Length) validate() error {
	if (l.Min != nil && *l.Min < 0) || (l.Max != nil && *l.Max < 0) {
		return &errdefs.ConstraintError{Value: l.String(), Reason: "Relationship lengths cannot be negative."}
	}
	if l.Min != nil && l.Max != nil && *l.Min > *l.Max {
		return &errdefs.ConstraintError{Value: l.String(), Reason: "The lower bound exceeds the upper bound."}
	}
	return nil
}

var variablePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkVariable validates a caller supplied variable name. Names starting
// with an underscore belong to the generators.
func checkVariable(name string) error {
	if !variablePattern.MatchString(name) {
		return &errdefs.ConstraintError{Value: name, Reason: "Variables must be identifiers."}
	}
	if name[0] == '_' {
		return &errdefs.ConstraintError{Value: name, Reason: "Variables starting with `_` are reserved."}
	}
	return nil
}

// label renders a label inside a pattern. Plain identifiers stay bare.
func label(name string) string {
	if variablePattern.MatchString(name) {
		return name
	}
	return values.QuoteName(name)
}
