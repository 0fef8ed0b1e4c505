package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	colorjson "github.com/TylerBrock/colorjson"
	"gopkg.in/yaml.v3"

	"github.com/bratushka/cypher/pkg/core"
	"github.com/bratushka/cypher/pkg/provider"
)

// outputOptions controls how a result is printed.
type outputOptions struct {
	Format   string
	JSONPath string
	Raw      bool
}

func validateFormat(f string) error {
	switch f {
	case "json", "yaml", "table":
		return nil
	}
	return fmt.Errorf("invalid value for --format: must be 'json', 'yaml' or 'table'")
}

// formatResult renders res according to opts. An empty result renders as
// "{}".
func formatResult(res *provider.Result, opts outputOptions) (string, error) {
	tabular, err := core.ResultToTabular(res)
	if err != nil {
		return "", fmt.Errorf("error converting result: %w", err)
	}
	if len(tabular.Columns) == 0 {
		return "{}", nil
	}

	var data interface{} = tabular.Document()
	if opts.JSONPath != "" {
		data, err = tabular.Project(opts.JSONPath)
		if err != nil {
			return "", fmt.Errorf("error applying jsonpath %q: %w", opts.JSONPath, err)
		}
	}

	switch opts.Format {
	case "yaml":
		out, err := yaml.Marshal(data)
		if err != nil {
			return "", fmt.Errorf("error marshalling data: %w", err)
		}
		return strings.TrimSuffix(string(out), "\n"), nil
	case "table":
		if opts.JSONPath != "" {
			return "", fmt.Errorf("--jsonpath cannot be combined with table output")
		}
		var buf bytes.Buffer
		if err := tabular.WriteTable(&buf); err != nil {
			return "", err
		}
		return strings.TrimSuffix(buf.String(), "\n"), nil
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error marshalling data: %w", err)
	}
	if opts.Raw {
		return string(out), nil
	}
	return formatJson(string(out)), nil
}

// formatJson colours a JSON document. Anything that does not parse is
// returned untouched.
func formatJson(jsonString string) string {
	var obj interface{}
	if err := json.Unmarshal([]byte(jsonString), &obj); err != nil {
		return jsonString
	}

	if NoColor {
		s, err := json.MarshalIndent(obj, "", "  ")
		if err != nil {
			return jsonString
		}
		return string(s)
	}

	f := colorjson.NewFormatter()
	f.Indent = 2
	s, err := f.Marshal(obj)
	if err != nil {
		fmt.Println("Error marshalling colorized json: ", err)
		return jsonString
	}
	return string(s)
}
