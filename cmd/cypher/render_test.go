package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bratushka/cypher/pkg/manifest"
)

const testManifest = `
models:
  - name: Human
    primaryKey: name
    fields:
      - {name: name, type: String}
      - {name: age, type: Integer, optional: true}
  - name: Knows
    kind: edge
    fields:
      - {name: reason, type: String, optional: true}
nodes:
  - {ref: ann, model: Human, properties: {name: ann, age: 30, nick: a}}
  - {ref: bob, model: Human, properties: {name: bob}}
edges:
  - {model: Knows, from: ann, to: bob, properties: {reason: work}}
`

const createAnnBob = "CREATE (_a:`Human` { `age`: 30, `name`: \"ann\" }), (_b:`Human` { `name`: \"bob\" }), " +
	"(_a)-[_c:`Knows` { `reason`: \"work\" }]->(_b)\nRETURN _a, _b, _c"

func writeManifest(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testManifest), 0o644))
	return path
}

func testGraph(t *testing.T) *manifest.Graph {
	t.Helper()
	doc, err := manifest.Parse([]byte(testManifest))
	require.NoError(t, err)
	g, err := doc.Build()
	require.NoError(t, err)
	return g
}

func TestBuildMatch(t *testing.T) {
	g := testGraph(t)

	tests := []struct {
		name  string
		node  string
		hops  []string
		where []string
		want  string
	}{
		{
			name: "any node",
			want: "MATCH (_a)\nRETURN _a",
		},
		{
			name:  "typed condition",
			node:  "Human",
			where: []string{"age>30"},
			want:  "MATCH (_a:Human)\nWHERE _a.age > 30\nRETURN _a",
		},
		{
			name: "node reference",
			node: "@ann",
			want: "MATCH (_a:Human)\nWHERE _a.name = \"ann\"\nRETURN _a",
		},
		{
			name:  "hop with condition on the last declaring element",
			node:  "Human",
			hops:  []string{"Knows>Human"},
			where: []string{"name=Ann"},
			want: "MATCH _p1 = (_a:Human)-[_b:Knows]->(_c:Human)\n" +
				"WHERE _c.name = \"Ann\"\n" +
				"RETURN _a, _b, _c",
		},
		{
			name: "incoming hop to any node",
			hops: []string{"<"},
			want: "MATCH _p1 = (_a)<-[_b]-(_c)\nRETURN _a, _b, _c",
		},
		{
			name: "variable length",
			hops: []string{"Knows*1..3-Human"},
			want: "MATCH _p1 = (_a)-[:Knows *1..3]-(_c:Human)\n" +
				"WITH *, relationships(_p1) as _b\n" +
				"RETURN _a, _b, _c",
		},
		{
			name: "open lengths",
			node: "Human",
			hops: []string{"Knows*>", "*..3-"},
			want: "MATCH _p1 = (_a:Human)-[:Knows *]->(_c)\n" +
				"WITH *, relationships(_p1) as _b\n" +
				"MATCH _p2 = (_c)-[*..3]-(_e)\n" +
				"WITH *, relationships(_p2) as _d\n" +
				"RETURN _a, _b, _c, _d, _e",
		},
		{
			name:  "undeclared property",
			node:  "Human",
			where: []string{"legs=4"},
			want:  "MATCH (_a:Human)\nWHERE _a.legs = 4\nRETURN _a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := buildMatch(g, tt.node, tt.hops, tt.where)
			require.NoError(t, err)
			got, err := q.Render()
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Render() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBuildMatchErrors(t *testing.T) {
	g := testGraph(t)

	tests := []struct {
		name  string
		node  string
		hops  []string
		where []string
	}{
		{name: "unknown model", node: "Ghost"},
		{name: "unknown ref", node: "@zed"},
		{name: "malformed hop", hops: []string{"Knows>>Human"}},
		{name: "unknown edge model", hops: []string{"Likes>Human"}},
		{name: "malformed condition", where: []string{"name~ann"}},
		{name: "value of the wrong type", node: "Human", where: []string{"age=old"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := buildMatch(g, tt.node, tt.hops, tt.where)
			assert.Error(t, err)
		})
	}
}

func TestLengthOption(t *testing.T) {
	for _, tc := range []struct {
		min    string
		ranged bool
		max    string
		ok     bool
	}{
		{"", false, "", true},
		{"2", false, "", true},
		{"2", true, "", true},
		{"", true, "4", true},
		{"2", true, "4", true},
		{"99999999999999999999", false, "", false},
	} {
		_, err := lengthOption(tc.min, tc.ranged, tc.max)
		assert.Equal(t, tc.ok, err == nil, "%+v", tc)
	}
}

func TestRenderCommands(t *testing.T) {
	path := writeManifest(t)

	out, err := runCLI(t, "render", "create", "-f", path)
	require.NoError(t, err)
	assert.Equal(t, createAnnBob+"\n", out)

	out, err = runCLI(t, "render", "create", "-f", path, "--extras")
	require.NoError(t, err)
	assert.Contains(t, out, "`nick`: \"a\"")

	out, err = runCLI(t, "render", "match", "-f", path, "--node", "Human", "--hop", "Knows>Human", "--return", "_a,_c")
	require.NoError(t, err)
	assert.Equal(t, "MATCH _p1 = (_a:Human)-[_b:Knows]->(_c:Human)\nRETURN _a, _c\n", out)

	_, err = runCLI(t, "render", "create")
	assert.EqualError(t, err, "--file is required")

	_, err = runCLI(t, "render", "create", "-f", path, "--format", "csv")
	assert.Error(t, err)
}

func TestRenderExecute(t *testing.T) {
	path := writeManifest(t)
	stub := &stubProvider{result: oneNodeResult()}
	withProvider(t, stub)

	out, err := runCLI(t, "render", "create", "-f", path, "--execute", "-r")
	require.NoError(t, err)

	require.Len(t, stub.queries, 1)
	assert.Equal(t, createAnnBob, stub.queries[0])
	assert.True(t, stub.closed)
	assert.Contains(t, out, createAnnBob+"\n")
	assert.Contains(t, out, `"name": "Ann"`)
}
