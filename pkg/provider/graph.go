package provider

import "sort"

// Graph is the set of nodes and relationships found in a result.
type Graph struct {
	Nodes []Node         `json:"nodes"`
	Edges []Relationship `json:"edges"`
}

// ExtractGraph collects every node and relationship in res, including those
// nested in paths and lists. Entities are de-duplicated by ID in order of
// first appearance, and edges whose endpoints were not returned are dropped.
func ExtractGraph(res *Result) Graph {
	var g Graph
	if res == nil {
		return g
	}
	seenNodes := make(map[string]bool)
	seenEdges := make(map[string]bool)

	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case Node:
			if !seenNodes[t.ID] {
				seenNodes[t.ID] = true
				g.Nodes = append(g.Nodes, t)
			}
		case Relationship:
			if !seenEdges[t.ID] {
				seenEdges[t.ID] = true
				g.Edges = append(g.Edges, t)
			}
		case Path:
			for _, n := range t.Nodes {
				walk(n)
			}
			for _, r := range t.Relationships {
				walk(r)
			}
		case []any:
			for _, item := range t {
				walk(item)
			}
		case map[string]any:
			keys := make([]string, 0, len(t))
			for k := range t {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				walk(t[k])
			}
		}
	}
	for _, rec := range res.Records {
		for _, v := range rec.Values {
			walk(v)
		}
	}

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if seenNodes[e.StartID] && seenNodes[e.EndID] {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
	return g
}
