package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/provider"
)

type stubProvider struct {
	result   *provider.Result
	err      error
	queries  []string
	database string
	closed   bool
}

func (s *stubProvider) Run(_ context.Context, database, query string) (*provider.Result, error) {
	s.database = database
	s.queries = append(s.queries, query)
	if s.err != nil {
		return nil, s.err
	}
	if s.result == nil {
		return &provider.Result{}, nil
	}
	return s.result, nil
}

func (s *stubProvider) Close(context.Context) error {
	s.closed = true
	return nil
}

// withProvider makes every command use p.
func withProvider(t *testing.T, p provider.Provider) {
	t.Helper()
	original := openProviderFunc
	openProviderFunc = func(cfg *config.Config, name string) (provider.Provider, config.Database, error) {
		db, err := cfg.Database(name)
		if err != nil {
			return nil, config.Database{}, err
		}
		return p, db, nil
	}
	t.Cleanup(func() { openProviderFunc = original })
}

// runCLI executes the root command against a config file in a temporary
// directory and returns what it printed.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	// flag variables survive between executions
	DatabaseName, LogLevel = "", "info"
	queryOutput = outputOptions{Format: "json"}
	renderOutput = outputOptions{Format: "json"}
	renderExecute, renderExtras, waitAll = false, false, false
	setUsername, setPassword, setGraph, setAsDefault = "", "", "", false
	manifestPath, matchNode, matchHops, matchWhere, matchReturns = "", "", nil, nil, nil

	if !hasFlag(args, "--config") {
		args = append(args, "--config", filepath.Join(t.TempDir(), "config.yaml"))
	}
	err := TestExecute(args)
	return out.String(), err
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

func oneNodeResult() *provider.Result {
	return &provider.Result{
		Columns: []string{"n"},
		Records: []provider.Record{{
			Keys: []string{"n"},
			Values: []any{provider.Node{
				ID:         "1",
				Labels:     []string{"Human"},
				Properties: map[string]any{"name": "Ann", "age": int64(30)},
			}},
		}},
	}
}
