package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/models"
	"github.com/bratushka/cypher/pkg/values"
)

// Operator is the comparison placed between the two sides of a condition.
type Operator string

const (
	OpEqual   Operator = "="
	OpGreater Operator = ">"
	OpIn      Operator = "IN"
)

// listVariable iterates over the relationships of a variable-length hop.
const listVariable = "_r0"

var exprPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Value references a property for use in a condition: either a declared
// property, named once the owning variable is known, or a free expression.
// A free expression without a dot is a property of the current variable.
type Value struct {
	prop     *models.Prop
	expr     string
	typ      values.Type
	wrappers []string
	err      error
}

// Ref references a declared property.
func Ref(p *models.Prop) *Value {
	if p == nil {
		return &Value{typ: values.Generic, err: errdefs.Integrity("reference", "property is nil")}
	}
	return &Value{prop: p, typ: p.Type()}
}

// Expr references a property by path, like "a.job" or "job". Literals
// compared against it are rendered as generic values.
func Expr(path string) *Value {
	return exprOf(path, values.Generic)
}

// StringExpr is like Expr but renders literals as strings.
func StringExpr(path string) *Value {
	return exprOf(path, values.String)
}

func exprOf(path string, t values.Type) *Value {
	v := &Value{expr: path, typ: t}
	if !exprPattern.MatchString(path) {
		v.err = &errdefs.ConstraintError{Value: path, Reason: "Expressions must look like `variable.property`."}
	}
	return v
}

func (v *Value) wrap(fn string, t values.Type) *Value {
	cp := *v
	cp.wrappers = append(append([]string(nil), v.wrappers...), fn)
	if t != nil {
		cp.typ = t
	}
	return &cp
}

// Lower wraps the reference in toLower.
func (v *Value) Lower() *Value { return v.wrap("toLower", nil) }

// ToBoolean wraps the reference in toBoolean. Literals become booleans.
func (v *Value) ToBoolean() *Value { return v.wrap("toBoolean", values.Boolean) }

// ToString wraps the reference in toString. Literals become strings.
func (v *Value) ToString() *Value { return v.wrap("toString", values.String) }

// Type is the value type literals are serialized through.
func (v *Value) Type() values.Type { return v.typ }

func (v *Value) Eq(right any) *Condition    { return Compare(OpEqual, v, right) }
func (v *Value) Gt(right any) *Condition    { return Compare(OpGreater, v, right) }
func (v *Value) In(items ...any) *Condition { return In(v, items...) }

func (v *Value) Compare(op Operator, right any) *Condition { return Compare(op, v, right) }

// current reports whether v is a property of the variable the condition is
// attached to, as opposed to an explicit "variable.property" path.
func (v *Value) current() bool {
	return v.prop != nil || !strings.Contains(v.expr, ".")
}

func (v *Value) resolve(reg *Registry, b *Binding, subject string) (string, error) {
	var text string
	switch {
	case v.prop != nil:
		name, err := propName(b, v.prop)
		if err != nil {
			return "", err
		}
		text = subject + "." + name
	case v.current():
		text = subject + "." + v.expr
	default:
		variable, _, _ := strings.Cut(v.expr, ".")
		if _, ok := reg.Lookup(variable); !ok && variable != listVariable {
			return "", errdefs.Integrity("resolve condition", "variable %q is not bound", variable)
		}
		text = v.expr
	}
	for _, fn := range v.wrappers {
		text = fn + "(" + text + ")"
	}
	return text, nil
}

// owner finds the binding a right-hand property belongs to: the subject when
// its schema declares it, otherwise the latest binding whose schema does.
// With no declaring binding the subject is kept.
func (v *Value) owner(reg *Registry, b *Binding, subject string) (*Binding, string) {
	if v.prop == nil {
		return b, subject
	}
	if s := b.Schema(); s != nil {
		if _, ok := s.NameOf(v.prop); ok {
			return b, subject
		}
	}
	vars := reg.Variables()
	for i := len(vars) - 1; i >= 0; i-- {
		other, _ := reg.Lookup(vars[i])
		if other == b || other.Length != nil {
			continue
		}
		if s := other.Schema(); s != nil {
			if _, ok := s.NameOf(v.prop); ok {
				return other, other.Variable
			}
		}
	}
	return b, subject
}

func propName(b *Binding, p *models.Prop) (string, error) {
	if s := b.Schema(); s != nil {
		if name, ok := s.NameOf(p); ok {
			return name, nil
		}
		return "", errdefs.Integrity("resolve condition", "%s declares no such property", s.Name())
	}
	if name, ok := p.Name(); ok {
		return name, nil
	}
	return "", errdefs.Integrity("resolve condition", "property of %s belongs to no model", b.Variable)
}

// Condition is a comparison whose text is produced once the variable it is
// attached to is known. Literals are validated when the condition is built.
type Condition struct {
	op      Operator
	left    *Value
	right   *Value
	literal string
	err     error
}

// Eq compares left and right with =.
func Eq(left, right any) *Condition { return Compare(OpEqual, left, right) }

// Gt compares left and right with >.
func Gt(left, right any) *Condition { return Compare(OpGreater, left, right) }

// In tests membership of left in items. A single slice argument is
// expanded; a single reference compares against a list property.
func In(left any, items ...any) *Condition {
	c := &Condition{op: OpIn}
	if c.left, c.err = asValue(left); c.err != nil {
		return c
	}
	if len(items) == 1 {
		if ref, ok := asRef(items[0]); ok {
			c.right, c.err = ref, ref.err
			return c
		}
		if list, ok := values.Items(items[0]); ok {
			items = list
		}
	}
	c.literal, c.err = values.ListLiteral(c.left.typ, items)
	c.err = c.left.annotate(c.err)
	return c
}

// Compare builds a condition with an arbitrary operator, rendered verbatim.
// Left is a *models.Prop, a *Value or a property path. Right is a literal,
// a *models.Prop or a *Value.
func Compare(op Operator, left, right any) *Condition {
	c := &Condition{op: op}
	if strings.TrimSpace(string(op)) == "" || strings.ContainsAny(string(op), "\r\n") {
		c.err = &errdefs.ConstraintError{Value: string(op), Reason: "Operators must be a single non-empty line."}
		return c
	}
	if c.left, c.err = asValue(left); c.err != nil {
		return c
	}
	if ref, ok := asRef(right); ok {
		c.right, c.err = ref, ref.err
		return c
	}
	c.literal, c.err = values.Literal(c.left.typ, right)
	c.err = c.left.annotate(c.err)
	return c
}

func (v *Value) annotate(err error) error {
	if err == nil || v.prop == nil || v.prop.Owner() == nil {
		return err
	}
	name, _ := v.prop.Name()
	return errdefs.WithProperty(err, v.prop.Owner().Name(), name)
}

func asValue(x any) (*Value, error) {
	switch t := x.(type) {
	case *Value:
		if t == nil {
			break
		}
		return t, t.err
	case *models.Prop:
		v := Ref(t)
		return v, v.err
	case string:
		v := Expr(t)
		return v, v.err
	}
	return nil, errdefs.TypeMismatch(x, "condition operand", "*models.Prop", "*core.Value", "string")
}

func asRef(x any) (*Value, bool) {
	switch t := x.(type) {
	case *Value:
		return t, t != nil
	case *models.Prop:
		return Ref(t), t != nil
	}
	return nil, false
}

// Err returns the error recorded while building the condition.
func (c *Condition) Err() error { return c.err }

// Operator returns the comparison operator.
func (c *Condition) Operator() Operator { return c.op }

// Resolve renders the condition for the given variable. Conditions on a
// variable-length relationship must hold for every relationship on the path.
func (c *Condition) Resolve(reg *Registry, variable string) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	b, ok := reg.Lookup(variable)
	if !ok {
		return "", errdefs.Integrity("resolve condition", "variable %q is not bound", variable)
	}

	subject := variable
	listed := b.Length != nil && c.left.current()
	if listed {
		subject = listVariable
	}

	left, err := c.left.resolve(reg, b, subject)
	if err != nil {
		return "", err
	}
	right := c.literal
	if c.right != nil {
		rb, rsubject := c.right.owner(reg, b, subject)
		if right, err = c.right.resolve(reg, rb, rsubject); err != nil {
			return "", err
		}
	}

	text := fmt.Sprintf("%s %s %s", left, c.op, right)
	if listed {
		text = fmt.Sprintf("all(%s IN %s WHERE %s)", listVariable, variable, text)
	}
	return text, nil
}

func (c *Condition) apply(o *unitOptions) { o.conds = append(o.conds, c) }
