package core

import (
	"context"
	"strings"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/models"
	"github.com/bratushka/cypher/pkg/provider"
)

// CreateStatement renders a CREATE for a set of instances. Nodes come first,
// then the endpoints of edges that were not listed, then the edges.
type CreateStatement struct {
	instances []*models.Instance
	opts      models.RenderOptions
	exec      *executor
}

func Create(instances ...*models.Instance) *CreateStatement {
	return &CreateStatement{instances: instances}
}

// WithExtras includes undeclared properties in the rendered maps.
func (c *CreateStatement) WithExtras() *CreateStatement {
	c.opts.IncludeExtras = true
	return c
}

// WithExecutor sends the statement to p, against the named database.
func (c *CreateStatement) WithExecutor(p provider.Provider, database string) *CreateStatement {
	c.exec = &executor{provider: p, database: database}
	return c
}

func (c *CreateStatement) Render() (string, error) {
	if len(c.instances) == 0 {
		return "", errdefs.Integrity("create", "nothing to create")
	}

	var nodes, edges []*models.Instance
	for _, inst := range c.instances {
		switch {
		case inst == nil:
			return "", errdefs.Integrity("create", "instance is nil")
		case inst.IsEdge():
			edges = append(edges, inst)
		default:
			nodes = append(nodes, inst)
		}
	}

	var gen VariableGenerator
	tags := make(map[*models.Instance]string)
	var order []string
	var parts []string

	addNode := func(n *models.Instance) error {
		if _, ok := tags[n]; ok {
			return nil
		}
		repr, err := n.Repr(c.opts)
		if err != nil {
			return err
		}
		tag := gen.Next()
		tags[n] = tag
		order = append(order, tag)
		parts = append(parts, "("+tag+repr+")")
		return nil
	}

	for _, n := range nodes {
		if err := addNode(n); err != nil {
			return "", err
		}
	}
	for _, e := range edges {
		from, to := e.Endpoints()
		if from == nil || to == nil {
			return "", errdefs.Integrity("create", "%s has no endpoints", e.Schema().Name())
		}
		if err := addNode(from); err != nil {
			return "", err
		}
		if err := addNode(to); err != nil {
			return "", err
		}
	}
	for _, e := range edges {
		if _, ok := tags[e]; ok {
			continue
		}
		repr, err := e.Repr(c.opts)
		if err != nil {
			return "", err
		}
		tag := gen.Next()
		tags[e] = tag
		order = append(order, tag)
		from, to := e.Endpoints()
		parts = append(parts, "("+tags[from]+")-["+tag+repr+"]->("+tags[to]+")")
	}

	return "CREATE " + strings.Join(parts, ", ") + "\nRETURN " + strings.Join(order, ", "), nil
}

// Result renders the statement and runs it through the configured executor.
func (c *CreateStatement) Result(ctx context.Context) (*provider.Result, error) {
	text, err := c.Render()
	if err != nil {
		return nil, err
	}
	return c.exec.run(ctx, text)
}
