package core

import (
	"strconv"

	"github.com/bratushka/cypher/pkg/models"
)

// VariableGenerator yields _a.._z, _aa, _ab, ... skipping names that start
// with p so they never look like path names.
type VariableGenerator struct {
	digits []int
}

func (g *VariableGenerator) Next() string {
	for {
		if g.digits == nil {
			g.digits = []int{0}
		}
		name := g.current()
		g.advance()
		if name[1] != 'p' {
			return name
		}
	}
}

func (g *VariableGenerator) current() string {
	b := make([]byte, 0, len(g.digits)+1)
	b = append(b, '_')
	for _, d := range g.digits {
		b = append(b, byte('a'+d))
	}
	return string(b)
}

func (g *VariableGenerator) advance() {
	for i := len(g.digits) - 1; i >= 0; i-- {
		g.digits[i]++
		if g.digits[i] < 26 {
			return
		}
		g.digits[i] = 0
	}
	g.digits = append([]int{0}, g.digits...)
}

// PathGenerator yields _p1, _p2, ...
type PathGenerator struct {
	n int
}

func (g *PathGenerator) Next() string {
	g.n++
	return "_p" + strconv.Itoa(g.n)
}

// Binding is what the registry knows about one variable.
type Binding struct {
	Variable string
	Kind     models.EntityKind
	Ident    Identifier
	// Length is set for variable-length relationships, whose variable holds
	// a list of relationships.
	Length *Length
	// Path is the named path a relationship belongs to.
	Path string
}

// Schema returns the bound schema, or nil for wildcards.
func (b *Binding) Schema() *models.Schema { return b.Ident.Schema() }

// Registry maps variables to bindings and remembers registration order.
type Registry struct {
	bindings map[string]*Binding
	order    []string
}

func NewRegistry() *Registry {
	return &Registry{bindings: make(map[string]*Binding)}
}

// Add registers b. It reports false when the variable is already bound.
func (r *Registry) Add(b *Binding) bool {
	if _, ok := r.bindings[b.Variable]; ok {
		return false
	}
	r.bindings[b.Variable] = b
	r.order = append(r.order, b.Variable)
	return true
}

func (r *Registry) Lookup(variable string) (*Binding, bool) {
	b, ok := r.bindings[variable]
	return b, ok
}

// Variables returns every registered variable in registration order.
func (r *Registry) Variables() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
