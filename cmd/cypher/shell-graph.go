package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/bratushka/cypher/pkg/provider"
)

// nameKeys are tried in order to caption a node.
var nameKeys = []string{"name", "title", "uid", "id"}

// mergeGraphs appends newGraph to graph, skipping entities already present.
func mergeGraphs(graph provider.Graph, newGraph provider.Graph) provider.Graph {
	nodes := make(map[string]bool, len(graph.Nodes))
	for _, n := range graph.Nodes {
		nodes[n.ID] = true
	}
	edges := make(map[string]bool, len(graph.Edges))
	for _, e := range graph.Edges {
		edges[e.ID] = true
	}

	for _, n := range newGraph.Nodes {
		if !nodes[n.ID] {
			nodes[n.ID] = true
			graph.Nodes = append(graph.Nodes, n)
		}
	}
	for _, e := range newGraph.Edges {
		if !edges[e.ID] {
			edges[e.ID] = true
			graph.Edges = append(graph.Edges, e)
		}
	}
	return graph
}

// drawGraph renders graph in Graphviz DOT.
func drawGraph(graph provider.Graph) string {
	var b strings.Builder
	b.WriteString("digraph {\n")
	if graphLayoutLR {
		b.WriteString("\trankdir = LR;\n")
	}
	b.WriteString("\n")

	for _, n := range graph.Nodes {
		fmt.Fprintf(&b, "\t%q [label=%q];\n", n.ID, nodeCaption(n))
	}
	for _, e := range graph.Edges {
		fmt.Fprintf(&b, "\t%q -> %q [label=%q];\n", e.StartID, e.EndID, ":"+e.Type)
	}

	b.WriteString("}")
	return b.String()
}

// nodeCaption reads like "*Human:Admin* Ann".
func nodeCaption(n provider.Node) string {
	labels := append([]string(nil), n.Labels...)
	sort.Strings(labels)
	caption := n.ID
	for _, key := range nameKeys {
		if v, ok := n.Properties[key]; ok && v != nil {
			caption = fmt.Sprint(v)
			break
		}
	}
	if len(labels) == 0 {
		return caption
	}
	return fmt.Sprintf("*%s* %s", strings.Join(labels, ":"), caption)
}
