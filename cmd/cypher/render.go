package main

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bratushka/cypher/pkg/core"
	"github.com/bratushka/cypher/pkg/manifest"
	"github.com/bratushka/cypher/pkg/models"
	"github.com/bratushka/cypher/pkg/provider"
)

var (
	manifestPath  string
	renderExtras  bool
	renderExecute bool
	renderOutput  = outputOptions{Format: "json"}

	matchNode    string
	matchHops    []string
	matchWhere   []string
	matchReturns []string
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render Cypher from a model document",
	Long: `Render Cypher statements from a YAML document declaring models, nodes and
edges. With --execute the statement is also run against the configured
database.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateGlobalFlags(cmd, args); err != nil {
			return err
		}
		return validateFormat(renderOutput.Format)
	},
}

var renderCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Render a CREATE statement for every node and edge of the document",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadManifest()
		if err != nil {
			return err
		}
		stmt := core.Create(g.Instances...)
		if renderExtras {
			stmt.WithExtras()
		}
		text, err := stmt.Render()
		if err != nil {
			return fmt.Errorf("error rendering statement: %w", err)
		}
		return emit(cmd, text)
	},
}

var renderMatchCmd = &cobra.Command{
	Use:   "match",
	Short: "Render a MATCH query over the document's models",
	Long: `Render a MATCH query. The pattern starts at --node and follows every --hop.

Nodes are model names, "@ref" for a node of the document (matched by primary
key) or empty for any node. Hops are written EDGE>NODE, EDGE<NODE or
EDGE-NODE; the edge may carry a length such as Knows*1..3>Human.

Conditions are written prop=value or prop>value and constrain the last
element declaring the property.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := loadManifest()
		if err != nil {
			return err
		}
		q, err := buildMatch(g, matchNode, matchHops, matchWhere)
		if err != nil {
			return err
		}
		text, err := q.Render(matchReturns...)
		if err != nil {
			return fmt.Errorf("error rendering query: %w", err)
		}
		return emit(cmd, text)
	},
}

func loadManifest() (*manifest.Graph, error) {
	if manifestPath == "" {
		return nil, fmt.Errorf("--file is required")
	}
	doc, err := manifest.Load(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("error loading %s: %w", manifestPath, err)
	}
	g, err := doc.Build()
	if err != nil {
		return nil, fmt.Errorf("error building %s: %w", manifestPath, err)
	}
	return g, nil
}

// emit prints the statement and, with --execute, runs it.
func emit(cmd *cobra.Command, text string) error {
	fmt.Fprintln(cmd.OutOrStdout(), text)
	if !renderExecute {
		return nil
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, db, err := openProviderFunc(cfg, DatabaseName)
	if err != nil {
		return err
	}
	defer p.Close(context.Background())

	res, err := runText(cmd.Context(), p, db.Name, text)
	if err != nil {
		return err
	}
	out, err := formatResult(res, renderOutput)
	if err != nil {
		return err
	}
	if out != "{}" {
		fmt.Fprintln(cmd.OutOrStdout(), out)
	}
	return nil
}

func runText(ctx context.Context, p provider.Provider, database, text string) (*provider.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	res, err := p.Run(ctx, database, text)
	if err != nil {
		return nil, fmt.Errorf("error executing query: %w", err)
	}
	return res, nil
}

var (
	hopPattern  = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)?(\*(\d*)(\.\.(\d*))?)?([<>-])(@?[A-Za-z_][A-Za-z0-9_]*)?$`)
	condPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*(=|>)\s*(.*)$`)
)

// buildMatch turns the match flags into a query. Schemas are looked up in g.
func buildMatch(g *manifest.Graph, node string, hops, where []string) (*core.Query, error) {
	start, err := nodeIdent(g, node)
	if err != nil {
		return nil, err
	}
	q := core.NewQuery().Match(start)
	var pattern []*models.Schema
	if s := schemaOf(start); s != nil {
		pattern = append(pattern, s)
	}

	for _, hop := range hops {
		m := hopPattern.FindStringSubmatch(strings.TrimSpace(hop))
		if m == nil {
			return nil, fmt.Errorf("invalid hop %q: expected EDGE>NODE, EDGE<NODE or EDGE-NODE", hop)
		}
		var edge any
		if m[1] != "" {
			s, ok := g.Schemas[m[1]]
			if !ok {
				return nil, fmt.Errorf("unknown model %q", m[1])
			}
			edge = s
			pattern = append(pattern, s)
		}
		var opts []core.Option
		if m[2] != "" {
			opt, err := lengthOption(m[3], m[4] != "", m[5])
			if err != nil {
				return nil, fmt.Errorf("invalid hop %q: %w", hop, err)
			}
			opts = append(opts, opt)
		}
		end, err := nodeIdent(g, m[7])
		if err != nil {
			return nil, err
		}
		if s := schemaOf(end); s != nil {
			pattern = append(pattern, s)
		}

		q = q.ConnectedThrough(edge, opts...)
		switch m[6] {
		case ">":
			q = q.To(end)
		case "<":
			q = q.By(end)
		default:
			q = q.WithUndirected(end)
		}
	}

	conds := make([]*core.Condition, 0, len(where))
	for _, w := range where {
		c, err := condition(pattern, w)
		if err != nil {
			return nil, err
		}
		conds = append(conds, c)
	}
	if len(conds) > 0 {
		q = q.Where(conds...)
	}
	return q, q.Err()
}

// nodeIdent resolves a node position: a model name, "@ref" or empty.
func nodeIdent(g *manifest.Graph, name string) (any, error) {
	switch {
	case name == "":
		return nil, nil
	case strings.HasPrefix(name, "@"):
		inst, ok := g.Node(name[1:])
		if !ok {
			return nil, fmt.Errorf("unknown node ref %q", name[1:])
		}
		return inst, nil
	}
	s, ok := g.Schemas[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return s, nil
}

func schemaOf(ident any) *models.Schema {
	switch x := ident.(type) {
	case *models.Schema:
		return x
	case *models.Instance:
		return x.Schema()
	}
	return nil
}

func lengthOption(min string, ranged bool, max string) (core.Option, error) {
	atoi := func(s string) (int, error) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("bad length bound %q", s)
		}
		return n, nil
	}
	switch {
	case min == "" && max == "":
		return core.AnyLength(), nil
	case !ranged:
		n, err := atoi(min)
		if err != nil {
			return nil, err
		}
		return core.Between(n, n), nil
	case max == "":
		n, err := atoi(min)
		if err != nil {
			return nil, err
		}
		return core.AtLeast(n), nil
	case min == "":
		n, err := atoi(max)
		if err != nil {
			return nil, err
		}
		return core.AtMost(n), nil
	}
	lo, err := atoi(min)
	if err != nil {
		return nil, err
	}
	hi, err := atoi(max)
	if err != nil {
		return nil, err
	}
	return core.Between(lo, hi), nil
}

// condition parses prop=value or prop>value. The property is looked up on
// the pattern's schemas, last first, so the literal is typed like the
// property; undeclared properties compare as generic values.
func condition(pattern []*models.Schema, text string) (*core.Condition, error) {
	m := condPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return nil, fmt.Errorf("invalid condition %q: expected prop=value or prop>value", text)
	}
	name, op, raw := m[1], core.Operator(m[2]), m[3]

	left := core.Expr(name)
	for i := len(pattern) - 1; i >= 0; i-- {
		if p, ok := pattern[i].Prop(name); ok {
			left = core.Ref(p)
			break
		}
	}
	v, err := manifest.ParseValue(left.Type(), raw)
	if err != nil {
		return nil, fmt.Errorf("invalid condition %q: %w", text, err)
	}
	c := left.Compare(op, v)
	return c, c.Err()
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.AddCommand(renderCreateCmd)
	renderCmd.AddCommand(renderMatchCmd)

	renderCmd.PersistentFlags().StringVarP(&manifestPath, "file", "f", "", "Model document to read")
	renderCmd.PersistentFlags().BoolVar(&renderExecute, "execute", false, "Run the rendered statement against the configured database")
	renderCmd.PersistentFlags().StringVar(&renderOutput.Format, "format", "json", "Output format of executed statements (json, yaml or table)")
	renderCmd.PersistentFlags().BoolVarP(&renderOutput.Raw, "raw-output", "r", false, "Disable colorized JSON output")

	renderCreateCmd.Flags().BoolVar(&renderExtras, "extras", false, "Include properties the models do not declare")

	renderMatchCmd.Flags().StringVar(&matchNode, "node", "", "Model, @ref or empty for the first node")
	renderMatchCmd.Flags().StringArrayVar(&matchHops, "hop", nil, "Hop to follow, e.g. Knows>Human (repeatable)")
	renderMatchCmd.Flags().StringArrayVar(&matchWhere, "where", nil, "Condition, e.g. name=Ann (repeatable)")
	renderMatchCmd.Flags().StringSliceVar(&matchReturns, "return", nil, "Variables to return (default all)")
}
