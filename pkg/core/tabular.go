package core

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/bratushka/cypher/pkg/provider"
	"github.com/bratushka/cypher/pkg/values"
)

// TabularResult represents data in a table format with columns and rows
type TabularResult struct {
	Columns []string                 // Column names
	Rows    []map[string]interface{} // Each row is a map of column name to value
}

// NewTabularResult creates a new TabularResult
func NewTabularResult() *TabularResult {
	return &TabularResult{
		Columns: make([]string, 0),
		Rows:    make([]map[string]interface{}, 0),
	}
}

// ResultToTabular flattens a provider result into rows of plain values, the
// way they would look once encoded as JSON.
func ResultToTabular(res *provider.Result) (*TabularResult, error) {
	tabular := NewTabularResult()
	if res == nil {
		return tabular, nil
	}
	tabular.Columns = append(tabular.Columns, res.Columns...)

	for _, rec := range res.Records {
		row := make(map[string]interface{}, len(rec.Keys))
		for i, key := range rec.Keys {
			if i >= len(rec.Values) {
				break
			}
			value, err := plain(rec.Values[i])
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", key, err)
			}
			row[key] = value
		}
		tabular.Rows = append(tabular.Rows, row)
	}
	return tabular, nil
}

// Document returns the result keyed by column, each holding the column's
// values in row order.
func (t *TabularResult) Document() map[string]interface{} {
	doc := make(map[string]interface{}, len(t.Columns))
	for _, col := range t.Columns {
		column := make([]interface{}, 0, len(t.Rows))
		for _, row := range t.Rows {
			column = append(column, row[col])
		}
		doc[col] = column
	}
	return doc
}

// ApplyLimitAndSkip applies LIMIT and SKIP operations to the rows
func (t *TabularResult) ApplyLimitAndSkip(limit, skip int) {
	if skip > 0 {
		if skip >= len(t.Rows) {
			t.Rows = nil
			return
		}
		t.Rows = t.Rows[skip:]
	}
	if limit > 0 && limit < len(t.Rows) {
		t.Rows = t.Rows[:limit]
	}
}

// WriteTable prints the rows as aligned text columns.
func (t *TabularResult) WriteTable(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))
	for _, row := range t.Rows {
		cells := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			cells[i] = cellString(row[col])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func cellString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// plain converts provider values into maps, slices and scalars.
func plain(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil, bool, string, int64, float64:
		return t, nil
	case values.CalendarDate:
		return t.String(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return fromNumbers(out), nil
}

func fromNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []interface{}:
		for i := range t {
			t[i] = fromNumbers(t[i])
		}
	case map[string]interface{}:
		for k := range t {
			t[k] = fromNumbers(t[k])
		}
	}
	return v
}
