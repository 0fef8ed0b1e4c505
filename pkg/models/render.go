package models

import (
	"sort"
	"strings"

	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/values"
)

// RenderOptions controls how instances are embedded into patterns.
type RenderOptions struct {
	// IncludeExtras adds undeclared properties to the property map.
	IncludeExtras bool
}

// LabelClause renders labels as ":`A`:`B`".
func LabelClause(labels []string) string {
	var b strings.Builder
	for _, l := range labels {
		b.WriteByte(':')
		b.WriteString(values.QuoteName(l))
	}
	return b.String()
}

// PropertiesClause renders the set properties of i as "{ `k`: v }", sorted by
// key. It returns "" when there is nothing to render.
func (i *Instance) PropertiesClause(opts RenderOptions) (string, error) {
	type entry struct {
		key string
		lit string
	}
	var entries []entry

	for _, name := range i.schema.order {
		v := i.values[name]
		if v == nil {
			continue
		}
		lit, err := i.schema.props[name].value.ToQueryLiteral(v)
		if err != nil {
			return "", errdefs.WithProperty(err, i.schema.name, name)
		}
		entries = append(entries, entry{key: name, lit: lit})
	}

	if opts.IncludeExtras {
		for k, v := range i.extras {
			if _, declared := i.schema.props[k]; declared {
				continue
			}
			lit, err := values.Literal(values.Generic, v)
			if err != nil {
				return "", errdefs.WithProperty(err, i.schema.name, k)
			}
			entries = append(entries, entry{key: k, lit: lit})
		}
		sort.Slice(entries, func(a, b int) bool { return entries[a].key < entries[b].key })
	}

	if len(entries) == 0 {
		return "", nil
	}
	parts := make([]string, len(entries))
	for n, e := range entries {
		parts[n] = values.QuoteName(e.key) + ": " + e.lit
	}
	return "{ " + strings.Join(parts, ", ") + " }", nil
}

// Repr renders the labels and properties of i for use inside a node or
// relationship pattern, e.g. ":`Human` { `age`: 21 }".
func (i *Instance) Repr(opts RenderOptions) (string, error) {
	props, err := i.PropertiesClause(opts)
	if err != nil {
		return "", err
	}
	labels := LabelClause(i.Labels())
	if props == "" {
		return labels, nil
	}
	return labels + " " + props, nil
}
