package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/logging"
	"github.com/bratushka/cypher/pkg/provider"
)

//go:embed default_macros.txt
var defaultMacros string

var executeStatementFunc = executeStatement

var (
	shellConfig   *config.Config
	shellDatabase string
	shellDB       config.Database
	shellProvider provider.Provider
	metricsAddr   string
)

var (
	execTime                = time.Duration(0)
	printQueryExecutionTime = true
	multiLineInput          = true
	disableGraphOutput      = true
	graphLayoutLR           = true
	shellOutput             = outputOptions{Format: "json"}
	macroManager            = NewMacroManager()

	// cancelRunning aborts the statement in flight, if any.
	runningMu     sync.Mutex
	cancelRunning context.CancelFunc
)

var ShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Launch an interactive shell",
	Long:  `Start an interactive shell for running Cypher against the configured databases.`,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(shellOutput.Format); err != nil {
			return err
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		shellConfig = cfg
		return useDatabase(DatabaseName)
	},
	Run: func(cmd *cobra.Command, args []string) {
		defer shellProvider.Close(context.Background())
		if metricsAddr != "" {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			serveMetrics(ctx, metricsAddr)
		}
		showSplash()
		initAndRunShell()
	},
}

// useDatabase switches the shell to the named database, closing the
// previous provider once the new one is open.
func useDatabase(name string) error {
	p, db, err := openProviderFunc(shellConfig, name)
	if err != nil {
		return err
	}
	if shellProvider != nil {
		shellProvider.Close(context.Background())
	}
	if name == "" {
		name = shellConfig.Default
	}
	shellProvider, shellDB, shellDatabase = p, db, name
	return nil
}

func cypherHome() string {
	return filepath.Join(os.Getenv("HOME"), ".cypher")
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func shellPrompt() string {
	graph := shellDB.Name
	if graph == "" {
		graph = "default"
	}
	prompt := fmt.Sprintf("(%s) %s »", shellDatabase, graph)
	return wrapInColor(prompt, getPromptColor()) + " "
}

func multiLinePrompt() string {
	shellPromptLength := len([]rune(ansiRegex.ReplaceAllString(shellPrompt(), "")))
	prompt := fmt.Sprintf("%s»", strings.Repeat(" ", shellPromptLength-3))
	return wrapInColor(prompt, getPromptColor()) + " "
}

func getPromptColor() color.Attribute {
	if shellDB.Engine() == config.RedisGraph {
		return color.FgRed
	}
	return color.FgGreen
}

type syntaxHighlighter struct{}

var (
	ansiRegex       = regexp.MustCompile(`\033\[[0-9;]*m`)
	keywordsRegex   = regexp.MustCompile(`(?i)\b(match|optional|where|and|or|not|with|set|delete|detach|create|merge|count|sum|as|in|all|limit|skip|order|by|return)\b`)
	identifierRegex = regexp.MustCompile(`\(([^:)]*?)(?::([^)]+))?\)`)
	relationRegex   = regexp.MustCompile(`\[([^:\]]*?)(:([^\]]+))?\]`)
	propertiesRegex = regexp.MustCompile(`{([^{}]+)}`)
	propertyRegex   = regexp.MustCompile(`((?:` + "`" + `[^` + "`" + `]*` + "`" + `|[^:,{}]+)\s*:\s*)("[^"]*"|[^,{}]+)`)
)

func (h *syntaxHighlighter) Paint(line []rune, pos int) []rune {
	lineStr := string(line)

	lineStr = keywordsRegex.ReplaceAllStringFunc(lineStr, func(match string) string {
		return wrapInColor(strings.ToUpper(match), color.FgMagenta)
	})

	// node patterns come before properties
	lineStr = identifierRegex.ReplaceAllStringFunc(lineStr, func(match string) string {
		parts := identifierRegex.FindStringSubmatch(match)
		switch {
		case parts[1] == "" && parts[2] != "":
			return wrapInColor("(", color.FgWhite) + ":" + wrapInColor(parts[2], color.FgHiBlue) + wrapInColor(")", color.FgWhite)
		case parts[1] != "" && parts[2] == "":
			return wrapInColor("(", color.FgWhite) + wrapInColor(parts[1], color.FgYellow) + wrapInColor(")", color.FgWhite)
		case parts[1] != "" && parts[2] != "":
			return wrapInColor("(", color.FgWhite) + wrapInColor(parts[1], color.FgYellow) + ":" + wrapInColor(parts[2], color.FgHiBlue) + wrapInColor(")", color.FgWhite)
		}
		return match
	})

	lineStr = relationRegex.ReplaceAllStringFunc(lineStr, func(match string) string {
		parts := relationRegex.FindStringSubmatch(match)
		if parts[3] == "" {
			return match
		}
		return wrapInColor("[", color.FgWhite) + wrapInColor(parts[1], color.FgYellow) + wrapInColor(":"+parts[3], color.FgHiBlue) + wrapInColor("]", color.FgWhite)
	})

	lineStr = propertiesRegex.ReplaceAllStringFunc(lineStr, func(match string) string {
		inner := match[1 : len(match)-1]
		return wrapInColor("{", color.FgWhite) + colorizePropertyContent(inner) + wrapInColor("}", color.FgWhite)
	})

	return []rune(lineStr)
}

func colorizePropertyContent(content string) string {
	return propertyRegex.ReplaceAllStringFunc(content, func(prop string) string {
		parts := propertyRegex.FindStringSubmatch(prop)
		return wrapInColor(parts[1], color.FgYellow) + wrapInColor(parts[2], color.FgCyan)
	})
}

func loadMacros() {
	macroManager = NewMacroManager()
	if err := macroManager.LoadMacrosFromString("default_macros.txt", defaultMacros); err != nil {
		fmt.Println("Error loading default macros:", err)
	}

	userMacrosFile := filepath.Join(cypherHome(), "macros")
	if _, err := os.Stat(userMacrosFile); err == nil {
		if err := macroManager.LoadMacrosFromFile(userMacrosFile); err != nil {
			fmt.Printf("Error loading user macros: %v\n", err)
		}
	}
}

func initAndRunShell() {
	if err := os.MkdirAll(cypherHome(), 0o755); err != nil {
		fmt.Println("Error creating", cypherHome()+":", err)
	}
	loadMacros()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:                 shellPrompt(),
		HistoryFile:            filepath.Join(cypherHome(), "history"),
		AutoComplete:           newCompleter(),
		InterruptPrompt:        "",
		EOFPrompt:              "exit",
		Painter:                &syntaxHighlighter{},
		DisableAutoSaveHistory: true,
		HistorySearchFold:      true,
		FuncFilterInputRune:    filterInput,
		UniqueEditLine:         true,
	})
	if err != nil {
		fmt.Println("Error starting shell:", err)
		return
	}
	defer rl.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	fmt.Println("")
	fmt.Println("Type 'exit' or press Ctrl-D to exit")
	fmt.Println("Type 'help' for information on how to use the shell")
	fmt.Println("")

	go func() {
		for range sigChan {
			handleInterrupt()
		}
	}()

	var cmds []string

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 && len(cmds) == 0 {
					fmt.Println("\nExiting...")
					return
				}
				cmds = cmds[:0]
				rl.SetPrompt(shellPrompt())
				continue
			} else if errors.Is(err, io.EOF) {
				break
			}
			fmt.Println("Error reading input:", err)
			continue
		}

		var input string
		if multiLineInput {
			line = strings.TrimSpace(line)
			if len(line) == 0 {
				continue
			}
			cmds = append(cmds, line)
			if !isComplete(line) {
				rl.SetPrompt(multiLinePrompt())
				continue
			}
			input = strings.TrimSpace(strings.TrimSuffix(strings.Join(cmds, " "), ";"))
			cmds = cmds[:0]
			rl.SetPrompt(shellPrompt())
		} else {
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}
		rl.SaveHistory(input)

		if input == "exit" || input == "\\q" {
			break
		}
		if handled := handleCommand(rl, input); handled {
			continue
		}

		result, graph, err := processQuery(input)
		if err != nil {
			fmt.Printf("Error >> %s\n", err)
			continue
		}
		if !disableGraphOutput && len(graph.Nodes) > 0 {
			fmt.Println(drawGraph(graph))
		}
		if result != "{}" {
			fmt.Println(result)
		}
		if printQueryExecutionTime {
			fmt.Printf("\nQuery executed in %s\n\n", execTime)
		}
	}
}

// isComplete reports whether a line ends the statement being typed.
func isComplete(line string) bool {
	return strings.HasSuffix(line, ";") ||
		strings.HasPrefix(line, "\\") ||
		strings.HasPrefix(line, ":") ||
		line == "exit" || line == "help"
}

// handleCommand runs the backslash commands and help. It reports whether
// input was one of them.
func handleCommand(rl *readline.Instance, input string) bool {
	switch {
	case input == "help" || input == "\\h":
		printHelp()
	case input == "\\d":
		level := "debug"
		if LogLevel == "debug" {
			level = "info"
		}
		if err := logging.Init(level); err != nil {
			fmt.Printf("Error >> %s\n", err)
			break
		}
		LogLevel = level
		fmt.Printf("Log level: %s\n", LogLevel)
	case input == "\\t":
		printQueryExecutionTime = !printQueryExecutionTime
		fmt.Printf("Print query execution time: %t\n", printQueryExecutionTime)
	case input == "\\r":
		shellOutput.Raw = !shellOutput.Raw
		fmt.Printf("Raw output mode: %t\n", shellOutput.Raw)
	case input == "\\m":
		multiLineInput = !multiLineInput
		fmt.Printf("Multi-line input mode: %t\n", multiLineInput)
	case input == "\\g":
		disableGraphOutput = !disableGraphOutput
		fmt.Printf("Graph output: %t\n", !disableGraphOutput)
	case input == "\\gl":
		graphLayoutLR = !graphLayoutLR
		if graphLayoutLR {
			fmt.Println("Graph layout: Left to Right")
		} else {
			fmt.Println("Graph layout: Top to Bottom")
		}
	case input == "\\lm":
		printMacros()
	case input == "\\db":
		for _, name := range shellConfig.Names() {
			marker := "  "
			if name == shellDatabase {
				marker = "* "
			}
			db, _ := shellConfig.Database(name)
			fmt.Printf("%s%s %s\n", marker, wrapInColor(name, color.FgYellow), wrapInColor(db.URL, color.FgCyan))
		}
	case strings.HasPrefix(input, "\\db "):
		if err := useDatabase(strings.TrimSpace(strings.TrimPrefix(input, "\\db "))); err != nil {
			fmt.Printf("Error >> %s\n", err)
			break
		}
		rl.SetPrompt(shellPrompt())
	case strings.HasPrefix(input, "\\f"):
		format := strings.TrimSpace(strings.TrimPrefix(input, "\\f"))
		if err := validateFormat(format); err != nil {
			fmt.Println("Usage: \\f json|yaml|table")
			break
		}
		shellOutput.Format = format
		fmt.Printf("Output format: %s\n", format)
	case strings.HasPrefix(input, "\\"):
		fmt.Printf("Unknown command %s, type 'help' for the list of commands\n", input)
	default:
		return false
	}
	return true
}

func printMacros() {
	names := make([]string, 0, len(macroManager.Macros))
	for name := range macroManager.Macros {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Print("Registered macros:\n\n")
	for _, name := range names {
		macro := macroManager.Macros[name]
		description := macro.Description
		if description == "" {
			description = "No description provided"
		}
		fmt.Printf("%s %s - %s\n",
			wrapInColor(":"+name, color.FgYellow),
			wrapInColor(fmt.Sprint(macro.Args), color.FgCyan),
			wrapInColor(description, color.FgMagenta))
	}
	fmt.Println("")
}

// processQuery runs a statement, or every statement of a ":macro args"
// call, and returns the formatted output with the graph of the results.
func processQuery(query string) (string, provider.Graph, error) {
	startTime := time.Now()
	defer func() { execTime = time.Since(startTime) }()

	query = strings.TrimSuffix(strings.TrimSpace(query), ";")

	statements := []string{query}
	if strings.HasPrefix(query, ":") {
		parts := strings.Fields(strings.TrimPrefix(query, ":"))
		if len(parts) == 0 {
			return "", provider.Graph{}, fmt.Errorf("macro name is missing")
		}
		var err error
		statements, err = macroManager.ExecuteMacro(parts[0], parts[1:])
		if err != nil {
			return "", provider.Graph{}, err
		}
	}

	var outputs []string
	var graph provider.Graph
	for i, stmt := range statements {
		res, err := executeStatementFunc(strings.TrimSuffix(stmt, ";"))
		if err != nil {
			if len(statements) > 1 {
				return "", provider.Graph{}, fmt.Errorf("error executing statement %d: %w", i+1, err)
			}
			return "", provider.Graph{}, err
		}
		found := provider.ExtractGraph(res)
		knownLabels.observe(found)
		graph = mergeGraphs(graph, found)

		out, err := formatResult(res, shellOutput)
		if err != nil {
			return "", provider.Graph{}, err
		}
		if out != "{}" {
			outputs = append(outputs, out)
		}
	}
	if len(outputs) == 0 {
		return "{}", graph, nil
	}
	return strings.Join(outputs, "\n"), graph, nil
}

func executeStatement(query string) (*provider.Result, error) {
	ctx, cancel := context.WithCancel(context.Background())
	runningMu.Lock()
	cancelRunning = cancel
	runningMu.Unlock()
	defer func() {
		runningMu.Lock()
		cancelRunning = nil
		runningMu.Unlock()
		cancel()
	}()

	logDebug("running statement: ", query)
	res, err := shellProvider.Run(ctx, shellDB.Name, query)
	if err != nil {
		return nil, fmt.Errorf("error executing query >> %w", err)
	}
	return res, nil
}

// handleInterrupt cancels the statement in flight. Interrupts while
// editing reach readline as ErrInterrupt instead.
func handleInterrupt() {
	runningMu.Lock()
	defer runningMu.Unlock()
	if cancelRunning != nil {
		cancelRunning()
	}
}

func wrapInColor(input string, attr color.Attribute) string {
	return color.New(attr).Sprint(input)
}

func showSplash() {
	logDebug("showing splash")
	splash := `
                 __
  _______ _____  / /  ___ ____
 / __/ // / _ \/ _ \/ -_) __/
 \__/\_, / .__/_//_/\__/_/
    /___/_/ Interactive Shell`
	fmt.Println(wrapInColor(splash, color.FgCyan))
	fmt.Println("")
}

func printHelp() {
	formatCmd := func(cmd, desc string) string {
		return fmt.Sprintf("  %s %s", wrapInColor(cmd, color.FgMagenta), wrapInColor(desc, color.FgCyan))
	}
	formatSection := func(title string) string {
		return wrapInColor(title, color.FgYellow)
	}

	lines := []string{
		formatSection("Commands:"),
		formatCmd("help, \\h", "Show this help"),
		formatCmd("exit, \\q", "Exit the shell"),
		formatCmd("\\db [name]", "List the configured databases or switch to one"),
		formatCmd("\\f json|yaml|table", "Set the output format"),
		formatCmd("\\lm", "List available macros"),
		formatCmd("\\t", "Toggle query execution time display"),
		formatCmd("\\g", "Toggle graph output"),
		formatCmd("\\gl", "Toggle graph layout direction"),
		formatCmd("\\m", "Toggle multiline input mode"),
		formatCmd("\\r", "Toggle raw JSON output"),
		formatCmd("\\d", "Toggle debug logging"),
		"",
		formatSection("Query syntax:"),
		wrapInColor("  MATCH (n:Human) RETURN n;", color.FgCyan),
		wrapInColor("  MATCH (a:Human)-[:Knows]->(b:Human) WHERE a.name = \"Ann\" RETURN b;", color.FgCyan),
		"",
		formatSection("Macros:"),
		formatCmd(":nodes", "List some nodes"),
		formatCmd(":labels", "Count nodes by label"),
		wrapInColor("  ... and more, use \\lm to list all available macros", color.FgCyan),
		"",
		wrapInColor("Press Ctrl+D or type exit to leave", color.FgCyan),
		wrapInColor("Press Ctrl+C to cancel the current input or query", color.FgCyan),
	}
	fmt.Println(strings.Join(lines, "\n"))
	fmt.Println("")
}

func init() {
	rootCmd.AddCommand(ShellCmd)

	ShellCmd.Flags().StringVar(&shellOutput.Format, "format", "json", "Output format (json, yaml or table)")
	ShellCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
}
