package provider

import (
	"context"
)

// Provider defines the interface for graph database backends. A provider
// owns its connections; callers only hand it query text.
type Provider interface {
	// Run executes query against the named database and returns every row.
	// An empty database selects the server default.
	Run(ctx context.Context, database, query string) (*Result, error)

	// Close releases every connection held by the provider.
	Close(ctx context.Context) error
}

// Result holds the rows returned by a query, unmapped.
type Result struct {
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

// Record is one row. Values line up with Keys.
type Record struct {
	Keys   []string `json:"keys"`
	Values []any    `json:"values"`
}

// Get returns the value of the named column.
func (r Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key && i < len(r.Values) {
			return r.Values[i], true
		}
	}
	return nil, false
}

// AsMap returns the row keyed by column.
func (r Record) AsMap() map[string]any {
	out := make(map[string]any, len(r.Keys))
	for i, k := range r.Keys {
		if i < len(r.Values) {
			out[k] = r.Values[i]
		}
	}
	return out
}

// Rows returns every record as a map keyed by column.
func (r *Result) Rows() []map[string]any {
	out := make([]map[string]any, len(r.Records))
	for i, rec := range r.Records {
		out[i] = rec.AsMap()
	}
	return out
}

// Node is a node returned by a provider.
type Node struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// Relationship is a relationship returned by a provider.
type Relationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	StartID    string         `json:"start"`
	EndID      string         `json:"end"`
	Properties map[string]any `json:"properties"`
}

// Path is a path returned by a provider.
type Path struct {
	Nodes         []Node         `json:"nodes"`
	Relationships []Relationship `json:"relationships"`
}
