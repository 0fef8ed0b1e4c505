package core

import (
	"strings"

	"github.com/oliveagle/jsonpath"
)

// JsonPathCompileAndLookup compiles the given query and executes it against
// resource. Queries without the leading "$." get it added.
func JsonPathCompileAndLookup(resource interface{}, query string) (interface{}, error) {
	query = strings.TrimSpace(query)
	if !strings.HasPrefix(query, "$") {
		query = "$." + strings.TrimPrefix(query, ".")
	}
	compiled, err := jsonpath.Compile(query)
	if err != nil {
		return nil, err
	}
	return compiled.Lookup(resource)
}

// Project applies a JSONPath query to the document form of a result, e.g.
// "$._a[*].properties.name".
func (t *TabularResult) Project(query string) (interface{}, error) {
	return JsonPathCompileAndLookup(t.Document(), query)
}
