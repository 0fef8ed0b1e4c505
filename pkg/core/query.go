package core

import (
	"context"
	"strings"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/logging"
	"github.com/bratushka/cypher/pkg/models"
	"github.com/bratushka/cypher/pkg/provider"
)

// Option configures one pattern element. Conditions are options too.
type Option interface {
	apply(*unitOptions)
}

type unitOptions struct {
	variable string
	conds    []*Condition
	length   *Length
}

type optionFunc func(*unitOptions)

func (f optionFunc) apply(o *unitOptions) { f(o) }

// As names the variable of the element instead of generating one. Naming a
// variable that is already bound refers to the same entity.
func As(variable string) Option {
	return optionFunc(func(o *unitOptions) { o.variable = variable })
}

// AnyLength makes a relationship variable-length without bounds.
func AnyLength() Option { return withLength(nil, nil) }

// AtLeast makes a relationship variable-length with a lower bound.
func AtLeast(n int) Option { return withLength(&n, nil) }

// AtMost makes a relationship variable-length with an upper bound.
func AtMost(n int) Option { return withLength(nil, &n) }

// Between makes a relationship variable-length with both bounds.
func Between(min, max int) Option { return withLength(&min, &max) }

func withLength(min, max *int) Option {
	return optionFunc(func(o *unitOptions) { o.length = &Length{Min: min, Max: max} })
}

type executor struct {
	provider provider.Provider
	database string
}

// QueryOption configures a Query.
type QueryOption func(*Query)

// WithExecutor sends rendered queries to p, against the named database.
func WithExecutor(p provider.Provider, database string) QueryOption {
	return func(q *Query) { q.exec = &executor{provider: p, database: database} }
}

type unit struct {
	variable string
	ident    Identifier
	length   *Length
}

type boundCondition struct {
	cond     *Condition
	variable string
}

// chain is one MATCH clause: node, edge, node, edge, node...
type chain struct {
	units []*unit
	dirs  []Direction
	paths []string
	conds []boundCondition
}

func (c *chain) open() bool { return len(c.units)%2 == 0 }

// Query builds a MATCH query. The first failing call is recorded and every
// later call is a no-op; Err, Render and Result report it.
type Query struct {
	vars   VariableGenerator
	paths  PathGenerator
	reg    *Registry
	chains []*chain
	exec   *executor
	err    error
}

func NewQuery(opts ...QueryOption) *Query {
	q := &Query{reg: NewRegistry()}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Err returns the first error recorded while building.
func (q *Query) Err() error { return q.err }

// Registry exposes the variable bindings collected so far.
func (q *Query) Registry() *Registry { return q.reg }

func (q *Query) fail(err error) *Query {
	q.err = err
	logging.L().Debugw("query builder failed", "error", err)
	return q
}

// Match starts a new chain at a node. ident is nil, a base schema, a node
// schema or a node instance; an instance adds a primary key condition.
func (q *Query) Match(ident any, opts ...Option) *Query {
	if q.err != nil {
		return q
	}
	u, conds, err := q.prepare(ident, models.KindNode, opts)
	if err != nil {
		return q.fail(err)
	}
	c := &chain{}
	q.chains = append(q.chains, c)
	q.attach(c, u, conds, "")
	return q
}

// ConnectedThrough adds a relationship to the current chain. It must follow
// a node.
func (q *Query) ConnectedThrough(ident any, opts ...Option) *Query {
	if q.err != nil {
		return q
	}
	c := q.current()
	if c == nil {
		return q.fail(errdefs.Integrity("connected through", "no chain to extend, call Match first"))
	}
	if c.open() {
		return q.fail(errdefs.Integrity("connected through", "the previous relationship has no end node"))
	}
	u, conds, err := q.prepare(ident, models.KindEdge, opts)
	if err != nil {
		return q.fail(err)
	}
	path := q.paths.Next()
	c.paths = append(c.paths, path)
	q.attach(c, u, conds, path)
	return q
}

// To closes the open relationship pointing away from the previous node.
func (q *Query) To(ident any, opts ...Option) *Query {
	return q.closeHop("to", Right, ident, opts)
}

// By closes the open relationship pointing towards the previous node.
func (q *Query) By(ident any, opts ...Option) *Query {
	return q.closeHop("by", Left, ident, opts)
}

// WithUndirected closes the open relationship without a direction.
func (q *Query) WithUndirected(ident any, opts ...Option) *Query {
	return q.closeHop("with undirected", None, ident, opts)
}

func (q *Query) closeHop(op string, dir Direction, ident any, opts []Option) *Query {
	if q.err != nil {
		return q
	}
	c := q.current()
	if c == nil || !c.open() {
		return q.fail(errdefs.Integrity(op, "no open relationship, call ConnectedThrough first"))
	}
	u, conds, err := q.prepare(ident, models.KindNode, opts)
	if err != nil {
		return q.fail(err)
	}
	c.dirs = append(c.dirs, dir)
	q.attach(c, u, conds, "")
	return q
}

// Where adds conditions to the current chain. A condition on a declared
// property applies to the last element whose schema declares it, any other
// condition to the last element.
func (q *Query) Where(conds ...*Condition) *Query {
	if q.err != nil {
		return q
	}
	c := q.current()
	if c == nil {
		return q.fail(errdefs.Integrity("where", "no chain to constrain, call Match first"))
	}
	for _, cond := range conds {
		if cond == nil {
			return q.fail(errdefs.Integrity("where", "condition is nil"))
		}
		if cond.err != nil {
			return q.fail(cond.err)
		}
	}
	for _, cond := range conds {
		c.conds = append(c.conds, boundCondition{cond: cond, variable: q.target(c, cond)})
	}
	return q
}

// Set is not supported by the builder.
func (q *Query) Set(...any) *Query { return q.unsupported("SET") }

// Delete is not supported by the builder.
func (q *Query) Delete(...string) *Query { return q.unsupported("DELETE") }

// Merge is not supported by the builder.
func (q *Query) Merge(...any) *Query { return q.unsupported("MERGE") }

func (q *Query) unsupported(op string) *Query {
	if q.err != nil {
		return q
	}
	return q.fail(errdefs.NotImplemented(op))
}

func (q *Query) current() *chain {
	if len(q.chains) == 0 {
		return nil
	}
	return q.chains[len(q.chains)-1]
}

func (q *Query) target(c *chain, cond *Condition) string {
	last := c.units[len(c.units)-1].variable
	if cond.left.prop == nil {
		return last
	}
	for i := len(c.units) - 1; i >= 0; i-- {
		b, _ := q.reg.Lookup(c.units[i].variable)
		if s := b.Schema(); s != nil {
			if _, ok := s.NameOf(cond.left.prop); ok {
				return b.Variable
			}
		}
	}
	return last
}

// prepare validates everything a call needs before the query is touched.
// Generated variables are assigned later, in attach.
func (q *Query) prepare(ident any, kind models.EntityKind, opts []Option) (*unit, []*Condition, error) {
	id, err := IdentifierOf(ident)
	if err != nil {
		return nil, nil, err
	}
	if !id.fits(kind) {
		return nil, nil, &errdefs.TypeMismatchError{
			Got:      id.schema.Kind().String() + " " + id.schema.Name(),
			Kind:     kind.String() + " identifier",
			Accepted: []string{kind.String()},
		}
	}

	o := &unitOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(o)
	}
	for _, cond := range o.conds {
		if cond.err != nil {
			return nil, nil, cond.err
		}
	}

	if o.length != nil {
		if kind != models.KindEdge {
			return nil, nil, errdefs.Integrity("match", "only relationships have a length")
		}
		if err := o.length.validate(); err != nil {
			return nil, nil, err
		}
	}

	if o.variable != "" {
		if err := checkVariable(o.variable); err != nil {
			return nil, nil, err
		}
		if b, ok := q.reg.Lookup(o.variable); ok {
			if b.Kind != kind {
				return nil, nil, errdefs.Integrity("match", "%s is bound to a %s", o.variable, b.Kind)
			}
			if b.Length != nil || o.length != nil {
				return nil, nil, errdefs.Integrity("match", "variable-length relationship %s cannot be reused", o.variable)
			}
			if !b.Ident.admits(id) {
				return nil, nil, errdefs.Integrity("match", "%s is bound to %s, not %s", o.variable, b.Ident, id)
			}
		}
	}

	var conds []*Condition
	if id.kind == InstanceMatch {
		name, v, err := id.instance.PrimaryKey()
		if err != nil {
			return nil, nil, err
		}
		pk := Eq(id.schema.MustProp(name), v)
		if pk.err != nil {
			return nil, nil, pk.err
		}
		conds = append(conds, pk)
	}
	conds = append(conds, o.conds...)

	return &unit{variable: o.variable, ident: id, length: o.length}, conds, nil
}

func (q *Query) attach(c *chain, u *unit, conds []*Condition, path string) {
	if u.variable == "" {
		u.variable = q.vars.Next()
	}
	kind := models.KindNode
	if path != "" {
		kind = models.KindEdge
	}
	q.reg.Add(&Binding{Variable: u.variable, Kind: kind, Ident: u.ident, Length: u.length, Path: path})
	c.units = append(c.units, u)
	for _, cond := range conds {
		c.conds = append(c.conds, boundCondition{cond: cond, variable: u.variable})
	}
}

// Render returns the query text without running it. With no variables the
// RETURN clause lists every bound variable in registration order.
func (q *Query) Render(variables ...string) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	if len(q.chains) == 0 {
		return "", errdefs.Integrity("render", "the query matches nothing")
	}

	declared := make(map[string]bool)
	var lines []string
	for _, c := range q.chains {
		chainLines, err := q.renderChain(c, declared)
		if err != nil {
			return "", err
		}
		lines = append(lines, chainLines...)
	}

	if len(variables) == 0 {
		variables = q.reg.Variables()
	}
	for _, v := range variables {
		if _, ok := q.reg.Lookup(v); !ok {
			return "", errdefs.Integrity("render", "cannot return unbound variable %q", v)
		}
	}
	lines = append(lines, "RETURN "+strings.Join(variables, ", "))
	return strings.Join(lines, "\n"), nil
}

// Result renders the query and runs it through the configured executor.
// Rows are returned as the executor produced them.
func (q *Query) Result(ctx context.Context, variables ...string) (*provider.Result, error) {
	text, err := q.Render(variables...)
	if err != nil {
		return nil, err
	}
	return q.exec.run(ctx, text)
}

func (e *executor) run(ctx context.Context, text string) (*provider.Result, error) {
	if e == nil || e.provider == nil {
		return nil, errdefs.ErrExecutorNotConfigured
	}
	logging.L().Debugw("running query", "database", e.database, "query", text)
	return e.provider.Run(ctx, e.database, text)
}
