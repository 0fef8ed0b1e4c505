package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bratushka/cypher/pkg/config"
)

var (
	setUsername  string
	setPassword  string
	setGraph     string
	setAsDefault bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and edit the database configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configured databases",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		for _, name := range cfg.Names() {
			db, _ := cfg.Database(name)
			marker := " "
			if name == cfg.Default {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s\t%s\n", marker, name, db.Engine(), db.URL)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set NAME URL",
	Short: "Add or replace a database",
	Long: `Add or replace a database. URLs without a scheme use bolt, and the default
port of the scheme is added when missing. Passwords may reference
environment variables as $VAR; they are stored as given and expanded when
connecting.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db := config.Database{URL: args[1], Username: setUsername, Password: setPassword, Name: setGraph}
		if err := cfg.Set(args[0], db); err != nil {
			return err
		}
		if setAsDefault {
			cfg.Default = args[0]
		}

		path := ConfigPath
		if path == "" {
			path = config.DefaultPath()
		}
		if err := cfg.Write(path); err != nil {
			return fmt.Errorf("error writing %s: %w", path, err)
		}
		saved, _ := cfg.Database(args[0])
		fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", args[0], saved.URL)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configSetCmd)

	configSetCmd.Flags().StringVarP(&setUsername, "username", "u", "", "User name")
	configSetCmd.Flags().StringVarP(&setPassword, "password", "p", "", "Password, or $VAR to read it from the environment")
	configSetCmd.Flags().StringVar(&setGraph, "name", "", "Database on a Neo4j server or graph key on RedisGraph")
	configSetCmd.Flags().BoolVar(&setAsDefault, "default", false, "Make this the default database")
}
