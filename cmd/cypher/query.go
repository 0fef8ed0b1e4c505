package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	queryOutput  = outputOptions{Format: "json"}
	queryTimeout time.Duration
)

var queryCmd = &cobra.Command{
	Use:   "query [Cypher query]",
	Short: "Run a Cypher query against the configured database",
	Long: `Use the 'query' subcommand to run a single Cypher statement against a
configured database and print the returned columns.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(queryOutput.Format)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		p, db, err := openProviderFunc(cfg, DatabaseName)
		if err != nil {
			return err
		}
		defer p.Close(context.Background())

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if queryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, queryTimeout)
			defer cancel()
		}

		res, err := p.Run(ctx, db.Name, args[0])
		if err != nil {
			return fmt.Errorf("error executing query: %w", err)
		}
		out, err := formatResult(res, queryOutput)
		if err != nil {
			return err
		}
		if out != "{}" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().StringVar(&queryOutput.Format, "format", "json", "Output format (json, yaml or table)")
	queryCmd.Flags().StringVar(&queryOutput.JSONPath, "jsonpath", "", "JSONPath applied to the result, e.g. '$.n[*].properties.name'")
	queryCmd.Flags().BoolVarP(&queryOutput.Raw, "raw-output", "r", false, "Disable colorized JSON output")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 0, "Abort the query after this long (0 waits forever)")
}
