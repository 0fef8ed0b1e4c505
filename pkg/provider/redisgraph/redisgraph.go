// Package redisgraph runs queries on RedisGraph compatible servers through
// the GRAPH.QUERY command.
package redisgraph

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/gomodule/redigo/redis"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/logging"
	"github.com/bratushka/cypher/pkg/provider"
)

// DefaultGraph is the graph key used when neither the call nor the
// descriptor names one.
const DefaultGraph = "cypher"

// Provider sends queries over a pool of Redis connections.
type Provider struct {
	db   config.Database
	pool *redis.Pool
}

var _ provider.Provider = (*Provider)(nil)

func New(db config.Database) (*Provider, error) {
	if db.Engine() != config.RedisGraph {
		return nil, fmt.Errorf("%w: %s is not a redis url", errdefs.ErrDatabaseAddress, db.URL)
	}
	u, err := url.Parse(db.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrDatabaseAddress, err)
	}
	opts := []redis.DialOption{redis.DialConnectTimeout(5 * time.Second)}
	if u.Scheme == "rediss" {
		opts = append(opts, redis.DialUseTLS(true))
	}
	if db.Username != "" {
		opts = append(opts, redis.DialUsername(db.Username))
	}
	if db.Password != "" {
		opts = append(opts, redis.DialPassword(db.Secret()))
	}

	pool := &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 5 * time.Minute,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, db.URL, opts...)
		},
	}
	return NewWithPool(db, pool), nil
}

// NewWithPool uses an existing pool.
func NewWithPool(db config.Database, pool *redis.Pool) *Provider {
	return &Provider{db: db, pool: pool}
}

// Run executes query against the graph key database, falling back to the
// descriptor's name and then DefaultGraph.
func (p *Provider) Run(ctx context.Context, database, query string) (*provider.Result, error) {
	graph := database
	if graph == "" {
		graph = p.db.Name
	}
	if graph == "" {
		graph = DefaultGraph
	}

	conn, err := p.pool.GetContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", p.db.URL, err)
	}
	defer conn.Close()

	reply, err := redis.DoContext(conn, ctx, "GRAPH.QUERY", graph, query)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	res, stats, err := decodeReply(reply)
	if err != nil {
		return nil, err
	}
	logging.L().Debugw("query done", "graph", graph, "records", len(res.Records), "stats", stats)
	return res, nil
}

func (p *Provider) Close(context.Context) error {
	return p.pool.Close()
}

// decodeReply turns a verbose GRAPH.QUERY reply into a result. Replies are
// [header, rows, stats], or just [stats] for queries returning nothing.
func decodeReply(reply any) (*provider.Result, []string, error) {
	parts, err := redis.Values(reply, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding reply: %w", err)
	}
	res := &provider.Result{}
	switch len(parts) {
	case 1:
		stats, err := redis.Strings(parts[0], nil)
		return res, stats, err
	case 3:
	default:
		return nil, nil, fmt.Errorf("decoding reply: unexpected %d sections", len(parts))
	}

	header, err := redis.Values(parts[0], nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding header: %w", err)
	}
	for _, h := range header {
		res.Columns = append(res.Columns, columnName(h))
	}

	rows, err := redis.Values(parts[1], nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding rows: %w", err)
	}
	for _, row := range rows {
		cells, err := redis.Values(row, nil)
		if err != nil {
			return nil, nil, fmt.Errorf("decoding row: %w", err)
		}
		rec := provider.Record{Keys: res.Columns, Values: make([]any, len(cells))}
		for i, cell := range cells {
			rec.Values[i] = decodeValue(cell)
		}
		res.Records = append(res.Records, rec)
	}

	stats, err := redis.Strings(parts[2], nil)
	if err != nil {
		return nil, nil, fmt.Errorf("decoding stats: %w", err)
	}
	return res, stats, nil
}

// columnName accepts both plain names and [type, name] header entries.
func columnName(h any) string {
	if pair, ok := h.([]any); ok && len(pair) == 2 {
		h = pair[1]
	}
	s, _ := scalar(h).(string)
	return s
}

func decodeValue(v any) any {
	items, ok := v.([]any)
	if !ok {
		return scalar(v)
	}
	if fields, ok := pairs(items); ok {
		if _, isEdge := fields["type"]; isEdge {
			return relationship(fields)
		}
		if _, isNode := fields["labels"]; isNode {
			return node(fields)
		}
	}
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = decodeValue(item)
	}
	return out
}

// pairs reads [[key, value], ...] when every entry has that shape.
func pairs(items []any) (map[string]any, bool) {
	if len(items) == 0 {
		return nil, false
	}
	out := make(map[string]any, len(items))
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			return nil, false
		}
		key, ok := scalar(pair[0]).(string)
		if !ok {
			return nil, false
		}
		out[key] = pair[1]
	}
	_, hasID := out["id"]
	return out, hasID
}

func node(fields map[string]any) provider.Node {
	n := provider.Node{ID: idString(fields["id"]), Properties: properties(fields["properties"])}
	if labels, ok := fields["labels"].([]any); ok {
		for _, l := range labels {
			if s, ok := scalar(l).(string); ok {
				n.Labels = append(n.Labels, s)
			}
		}
	}
	return n
}

func relationship(fields map[string]any) provider.Relationship {
	typ, _ := scalar(fields["type"]).(string)
	return provider.Relationship{
		ID:         idString(fields["id"]),
		Type:       typ,
		StartID:    idString(fields["src_node"]),
		EndID:      idString(fields["dest_node"]),
		Properties: properties(fields["properties"]),
	}
}

func properties(v any) map[string]any {
	out := make(map[string]any)
	items, ok := v.([]any)
	if !ok {
		return out
	}
	for _, item := range items {
		pair, ok := item.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		if key, ok := scalar(pair[0]).(string); ok {
			out[key] = decodeValue(pair[1])
		}
	}
	return out
}

func idString(v any) string {
	switch t := scalar(v).(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}

func scalar(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
