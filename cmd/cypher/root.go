/*
Copyright © 2024 Oleksandr Bratushka
*/
package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/logging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	Version = "dev"

	LogLevel     = "info"
	ConfigPath   = ""
	DatabaseName = ""
	NoColor      = false
)

func getVersionInfo() string {
	return fmt.Sprintf(
		"cypher %s\n"+
			"Go Version: %s\n"+
			"Source: https://github.com/bratushka/cypher\n",
		Version,
		runtime.Version(),
	)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cypher",
	Short: "cypher renders and runs Cypher queries against graph databases",
	Long: `cypher is the command line companion of the cypher object-to-graph mapper.
It runs Cypher against Neo4j (bolt) or RedisGraph databases, renders CREATE
statements from model documents and offers an interactive shell.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			fmt.Fprint(cmd.OutOrStdout(), getVersionInfo())
			return
		}
		cmd.Help()
	},
	PersistentPreRunE: validateGlobalFlags,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// TestExecute runs the root command with args and returns its error instead
// of exiting.
func TestExecute(args []string) error {
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&LogLevel, "loglevel", "l", "info", "The log level to use (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&ConfigPath, "config", "", "Path of the database configuration file (default $HOME/.cypher/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&DatabaseName, "database", "d", "", "Name of the configured database to use")
	rootCmd.PersistentFlags().BoolVar(&NoColor, "no-color", false, "Disable colored output in shell and query results")
	rootCmd.Flags().BoolP("version", "v", false, "Show version and exit")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), getVersionInfo())
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate completion script",
		Long: `To load completions:

Bash:
  $ source <(cypher completion bash)

Zsh:
  $ source <(cypher completion zsh)

fish:
  $ cypher completion fish | source

PowerShell:
  PS> cypher completion powershell | Out-String | Invoke-Expression
`,
		ValidArgs: []string{"bash", "zsh", "fish", "powershell"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	})
}

// validateGlobalFlags configures logging and colour from the persistent flags.
func validateGlobalFlags(cmd *cobra.Command, args []string) error {
	if err := logging.Init(LogLevel); err != nil {
		return fmt.Errorf("invalid value for --loglevel: %w", err)
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		NoColor = true
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		NoColor = true
	}
	color.NoColor = NoColor
	return nil
}

// loadConfig reads the configuration named by --config, or the default file.
func loadConfig() (*config.Config, error) {
	path := ConfigPath
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config %s: %w", path, err)
	}
	logDebug("loaded config", path, "databases", cfg.Names())
	return cfg, nil
}

func logDebug(v ...interface{}) {
	logging.L().Debug(v...)
}
