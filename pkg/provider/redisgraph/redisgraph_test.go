package redisgraph

import (
	"context"
	"errors"
	"testing"

	"github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/provider"
)

// fakeConn answers every command with a canned reply and records the
// arguments it was given.
type fakeConn struct {
	reply any
	err   error
	args  []any
}

func (c *fakeConn) Close() error { return nil }
func (c *fakeConn) Err() error   { return nil }
func (c *fakeConn) Do(cmd string, args ...any) (any, error) {
	c.args = append([]any{cmd}, args...)
	return c.reply, c.err
}
func (c *fakeConn) DoContext(_ context.Context, cmd string, args ...any) (any, error) {
	return c.Do(cmd, args...)
}
func (c *fakeConn) Send(string, ...any) error                   { return nil }
func (c *fakeConn) Flush() error                                { return nil }
func (c *fakeConn) Receive() (any, error)                       { return nil, nil }
func (c *fakeConn) ReceiveContext(context.Context) (any, error) { return nil, nil }

func pair(k string, v any) []any { return []any{[]byte(k), v} }

func nodeReply(id int64, label string, props ...[]any) []any {
	return []any{
		pair("id", id),
		pair("labels", []any{[]byte(label)}),
		pair("properties", toAny(props)),
	}
}

func toAny(items [][]any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

func TestDecodeReply(t *testing.T) {
	reply := []any{
		[]any{[]byte("_a"), []byte("_b"), []byte("_c"), []byte("n")},
		[]any{
			[]any{
				nodeReply(0, "User", pair("name", []byte("ann"))),
				[]any{
					pair("id", int64(7)),
					pair("type", []byte("Knows")),
					pair("src_node", int64(0)),
					pair("dest_node", int64(1)),
					pair("properties", []any{}),
				},
				nodeReply(1, "User"),
				int64(3),
			},
		},
		[]any{[]byte("Cached execution: 0"), []byte("Query internal execution time: 0.1 milliseconds")},
	}

	res, stats, err := decodeReply(reply)
	require.NoError(t, err)
	assert.Len(t, stats, 2)
	assert.Equal(t, []string{"_a", "_b", "_c", "n"}, res.Columns)
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	a, _ := rec.Get("_a")
	assert.Equal(t, provider.Node{ID: "0", Labels: []string{"User"}, Properties: map[string]any{"name": "ann"}}, a)

	b, _ := rec.Get("_b")
	assert.Equal(t, provider.Relationship{ID: "7", Type: "Knows", StartID: "0", EndID: "1", Properties: map[string]any{}}, b)

	n, _ := rec.Get("n")
	assert.Equal(t, int64(3), n)

	g := provider.ExtractGraph(res)
	assert.Len(t, g.Nodes, 2)
	assert.Len(t, g.Edges, 1)
}

func TestDecodeReplyStatsOnly(t *testing.T) {
	res, stats, err := decodeReply([]any{[]any{[]byte("Nodes created: 2")}})
	require.NoError(t, err)
	assert.Empty(t, res.Records)
	assert.Equal(t, []string{"Nodes created: 2"}, stats)
}

func TestDecodeReplyErrors(t *testing.T) {
	_, _, err := decodeReply([]any{[]any{}, []any{}})
	assert.Error(t, err)

	_, _, err = decodeReply([]byte("OK"))
	assert.Error(t, err)
}

func TestRun(t *testing.T) {
	conn := &fakeConn{reply: []any{
		[]any{[]byte("x")},
		[]any{[]any{[]byte("1.5")}},
		[]any{},
	}}
	pool := &redis.Pool{Dial: func() (redis.Conn, error) { return conn, nil }}
	p := NewWithPool(config.Database{URL: "redis://graph:6379", Name: "social"}, pool)
	defer p.Close(context.Background())

	res, err := p.Run(context.Background(), "", "MATCH (x) RETURN x")
	require.NoError(t, err)
	assert.Equal(t, []any{"GRAPH.QUERY", "social", "MATCH (x) RETURN x"}, conn.args)
	x, _ := res.Records[0].Get("x")
	assert.Equal(t, "1.5", x)

	_, err = p.Run(context.Background(), "other", "RETURN 1")
	require.NoError(t, err)
	assert.Equal(t, "other", conn.args[1])

	conn.err = errors.New("boom")
	_, err = p.Run(context.Background(), "", "RETURN 1")
	assert.ErrorContains(t, err, "boom")
}

func TestNewRejectsBolt(t *testing.T) {
	_, err := New(config.Database{URL: "bolt://db:7687"})
	assert.Error(t, err)
}
