package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/provider"
)

// stubStatements replaces statement execution for the duration of the test
// and records every statement run.
func stubStatements(t *testing.T, res *provider.Result, err error) *[]string {
	t.Helper()
	var ran []string
	original := executeStatementFunc
	executeStatementFunc = func(query string) (*provider.Result, error) {
		ran = append(ran, query)
		return res, err
	}
	t.Cleanup(func() { executeStatementFunc = original })
	return &ran
}

func withShellOutput(t *testing.T, opts outputOptions) {
	t.Helper()
	original := shellOutput
	shellOutput = opts
	t.Cleanup(func() { shellOutput = original })
}

func TestProcessQuery(t *testing.T) {
	ran := stubStatements(t, oneNodeResult(), nil)
	withShellOutput(t, outputOptions{Format: "json", Raw: true, JSONPath: "$.n[*].properties.name"})

	out, graph, err := processQuery("  MATCH (n) RETURN n;  ")
	require.NoError(t, err)
	assert.Equal(t, "[\n  \"Ann\"\n]", out)
	assert.Equal(t, []string{"MATCH (n) RETURN n"}, *ran)
	require.Len(t, graph.Nodes, 1)
	assert.Equal(t, "1", graph.Nodes[0].ID)
	assert.Contains(t, knownLabels.list(), "Human")
}

func TestProcessQueryMacro(t *testing.T) {
	macroManager = NewMacroManager()
	require.NoError(t, macroManager.LoadMacrosFromString("default_macros.txt", defaultMacros))
	t.Cleanup(func() { macroManager = NewMacroManager() })

	ran := stubStatements(t, &provider.Result{}, nil)

	out, _, err := processQuery(":stats")
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, []string{
		"MATCH (n) RETURN count(n) AS nodes",
		"MATCH ()-[r]->() RETURN count(r) AS relationships",
	}, *ran)

	_, _, err = processQuery(":find Human name")
	assert.EqualError(t, err, "macro 'find' expects 3 arguments, got 2")

	_, _, err = processQuery(":")
	assert.EqualError(t, err, "macro name is missing")
}

func TestProcessQueryErrors(t *testing.T) {
	macroManager = NewMacroManager()
	require.NoError(t, macroManager.LoadMacrosFromString("default_macros.txt", defaultMacros))
	t.Cleanup(func() { macroManager = NewMacroManager() })

	stubStatements(t, nil, errors.New("boom"))

	_, _, err := processQuery("RETURN 1;")
	assert.EqualError(t, err, "boom")

	_, _, err = processQuery(":stats")
	assert.EqualError(t, err, "error executing statement 1: boom")
}

func TestExecuteStatement(t *testing.T) {
	stub := &stubProvider{result: oneNodeResult()}
	defer func(p provider.Provider, db config.Database) { shellProvider, shellDB = p, db }(shellProvider, shellDB)
	shellProvider, shellDB = stub, config.Database{Name: "social"}

	res, err := executeStatement("MATCH (n) RETURN n")
	require.NoError(t, err)
	assert.Equal(t, []string{"n"}, res.Columns)
	assert.Equal(t, "social", stub.database)

	stub.err = errors.New("down")
	_, err = executeStatement("RETURN 1")
	assert.EqualError(t, err, "error executing query >> down")
}

type blockingProvider struct {
	started chan struct{}
}

func (b *blockingProvider) Run(ctx context.Context, _, _ string) (*provider.Result, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingProvider) Close(context.Context) error { return nil }

func TestInterruptCancelsRunningStatement(t *testing.T) {
	blocking := &blockingProvider{started: make(chan struct{})}
	defer func(p provider.Provider) { shellProvider = p }(shellProvider)
	shellProvider = blocking

	go func() {
		<-blocking.started
		handleInterrupt()
	}()

	_, err := executeStatement("MATCH (n) RETURN n")
	assert.ErrorIs(t, err, context.Canceled)

	// nothing in flight
	handleInterrupt()
}

func TestUseDatabase(t *testing.T) {
	first, second := &stubProvider{}, &stubProvider{}
	current := provider.Provider(first)
	original := openProviderFunc
	openProviderFunc = func(cfg *config.Config, name string) (provider.Provider, config.Database, error) {
		db, err := cfg.Database(name)
		return current, db, err
	}
	t.Cleanup(func() { openProviderFunc = original })

	defer func(c *config.Config, p provider.Provider, name string) {
		shellConfig, shellProvider, shellDatabase = c, p, name
	}(shellConfig, shellProvider, shellDatabase)

	cfg := &config.Config{}
	require.NoError(t, cfg.Set("local", config.Database{URL: "bolt://localhost"}))
	require.NoError(t, cfg.Set("graph", config.Database{URL: "redis://localhost"}))
	cfg.Default = "local"
	shellConfig, shellProvider = cfg, nil

	require.NoError(t, useDatabase(""))
	assert.Equal(t, "local", shellDatabase)
	assert.Same(t, first, shellProvider)

	current = second
	require.NoError(t, useDatabase("graph"))
	assert.Equal(t, "graph", shellDatabase)
	assert.Equal(t, config.RedisGraph, shellDB.Engine())
	assert.True(t, first.closed)

	assert.Error(t, useDatabase("nope"))
	assert.Equal(t, "graph", shellDatabase)
}

func TestHandleCommand(t *testing.T) {
	defer func(timing, multi, graph, lr bool, out outputOptions) {
		printQueryExecutionTime, multiLineInput, disableGraphOutput, graphLayoutLR, shellOutput = timing, multi, graph, lr, out
	}(printQueryExecutionTime, multiLineInput, disableGraphOutput, graphLayoutLR, shellOutput)

	printQueryExecutionTime, multiLineInput, disableGraphOutput, graphLayoutLR = true, true, true, true
	shellOutput = outputOptions{Format: "json"}

	assert.True(t, handleCommand(nil, "\\t"))
	assert.False(t, printQueryExecutionTime)
	assert.True(t, handleCommand(nil, "\\m"))
	assert.False(t, multiLineInput)
	assert.True(t, handleCommand(nil, "\\g"))
	assert.False(t, disableGraphOutput)
	assert.True(t, handleCommand(nil, "\\gl"))
	assert.False(t, graphLayoutLR)
	assert.True(t, handleCommand(nil, "\\r"))
	assert.True(t, shellOutput.Raw)

	assert.True(t, handleCommand(nil, "\\f yaml"))
	assert.Equal(t, "yaml", shellOutput.Format)
	assert.True(t, handleCommand(nil, "\\f xml"))
	assert.Equal(t, "yaml", shellOutput.Format)

	assert.True(t, handleCommand(nil, "\\nope"))
	assert.False(t, handleCommand(nil, "MATCH (n) RETURN n;"))
}

func TestIsComplete(t *testing.T) {
	tests := map[string]bool{
		"MATCH (n)":           false,
		"MATCH (n) RETURN n;": true,
		"\\t":                 true,
		":nodes":              true,
		"exit":                true,
		"help":                true,
		"RETURN 1 ":           false,
	}
	for line, want := range tests {
		assert.Equal(t, want, isComplete(line), line)
	}
}

func TestCypherCompleter(t *testing.T) {
	macroManager = NewMacroManager()
	require.NoError(t, macroManager.LoadMacrosFromString("default_macros.txt", defaultMacros))
	t.Cleanup(func() { macroManager = NewMacroManager() })

	knownLabels.observe(provider.Graph{Nodes: []provider.Node{{ID: "1", Labels: []string{"Human"}}}})

	defer func(c *config.Config) { shellConfig = c }(shellConfig)
	shellConfig = &config.Config{}
	require.NoError(t, shellConfig.Set("local", config.Database{URL: "bolt://localhost"}))

	tests := []struct {
		line       string
		suggestion string
		length     int
	}{
		{"MAT", "CH", 3},
		{"MATCH (n) RET", "URN", 3},
		{"MATCH (n:Hu", "man", 2},
		{"\\gl", "", 3},
		{":fi", "nd", 3},
		{"\\db lo", "cal", 2},
	}

	completer := newCompleter()
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			line := []rune(tt.line)
			got, length := completer.Do(line, len(line))
			assert.Equal(t, tt.length, length)
			if tt.suggestion == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, []rune(tt.suggestion))
		})
	}

	got, _ := completer.Do([]rune("MATCH "), 6)
	assert.Empty(t, got)
}
