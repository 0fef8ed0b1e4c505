package main

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/bratushka/cypher/pkg/provider"
)

var shellCommands = []string{"\\db", "\\d", "\\f", "\\g", "\\gl", "\\h", "\\lm", "\\m", "\\q", "\\r", "\\t", "exit", "help"}

var cypherKeywords = []string{"MATCH", "OPTIONAL", "WHERE", "WITH", "RETURN", "CREATE", "MERGE", "DELETE", "DETACH", "SET", "LIMIT", "SKIP", "ORDER", "AND", "OR", "NOT", "IN", "AS", "count", "relationships", "toLower", "toString", "toBoolean"}

var labelRegex = regexp.MustCompile(`[(\[]\w*:(\w*)$`)

// labelCache remembers the labels and relationship types seen in results.
type labelCache struct {
	mu     sync.Mutex
	labels map[string]bool
}

func (c *labelCache) observe(g provider.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.labels == nil {
		c.labels = make(map[string]bool)
	}
	for _, n := range g.Nodes {
		for _, l := range n.Labels {
			c.labels[l] = true
		}
	}
	for _, e := range g.Edges {
		c.labels[e.Type] = true
	}
}

func (c *labelCache) list() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.labels))
	for l := range c.labels {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

var knownLabels = &labelCache{}

type CypherCompleter struct{}

func newCompleter() *CypherCompleter {
	return &CypherCompleter{}
}

// Do returns the suffixes completing the word before pos.
func (c *CypherCompleter) Do(line []rune, pos int) ([][]rune, int) {
	lineStr := string(line[:pos])
	if strings.TrimSpace(lineStr) == "" || strings.HasSuffix(lineStr, " ") && !strings.HasPrefix(lineStr, "\\db ") {
		return nil, 0
	}

	var candidates []string
	var word string
	switch {
	case strings.HasPrefix(lineStr, "\\db "):
		word = strings.TrimPrefix(lineStr, "\\db ")
		if shellConfig != nil {
			candidates = shellConfig.Names()
		}
	case labelRegex.MatchString(lineStr):
		word = labelRegex.FindStringSubmatch(lineStr)[1]
		candidates = knownLabels.list()
	default:
		words := strings.Fields(lineStr)
		word = words[len(words)-1]
		switch {
		case strings.HasPrefix(word, "\\"):
			candidates = shellCommands
		case strings.HasPrefix(word, ":"):
			for name := range macroManager.Macros {
				candidates = append(candidates, ":"+name)
			}
			sort.Strings(candidates)
		default:
			candidates = cypherKeywords
		}
	}

	return suffixes(candidates, word), len([]rune(word))
}

func suffixes(candidates []string, word string) [][]rune {
	var out [][]rune
	for _, cand := range candidates {
		if len(cand) > len(word) && strings.HasPrefix(strings.ToLower(cand), strings.ToLower(word)) {
			out = append(out, []rune(cand[len(word):]))
		}
	}
	return out
}
