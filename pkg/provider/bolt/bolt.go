// Package bolt runs queries on Neo4j compatible servers over the Bolt
// protocol.
package bolt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/bratushka/cypher/pkg/config"
	"github.com/bratushka/cypher/pkg/errdefs"
	"github.com/bratushka/cypher/pkg/logging"
	"github.com/bratushka/cypher/pkg/provider"
	"github.com/bratushka/cypher/pkg/values"
)

// Provider talks to one server. The driver is created on first use and
// shared by every session.
type Provider struct {
	db config.Database

	mu     sync.Mutex
	driver neo4j.DriverWithContext
}

var _ provider.Provider = (*Provider)(nil)

func New(db config.Database) (*Provider, error) {
	if db.Engine() != config.Bolt {
		return nil, fmt.Errorf("%w: %s is not a bolt url", errdefs.ErrDatabaseAddress, db.URL)
	}
	return &Provider{db: db}, nil
}

func (p *Provider) getDriver() (neo4j.DriverWithContext, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.driver != nil {
		return p.driver, nil
	}
	d, err := neo4j.NewDriverWithContext(p.db.URL, neo4j.BasicAuth(p.db.Username, p.db.Secret(), ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrDatabaseAddress, err)
	}
	logging.L().Debugw("created bolt driver", "url", p.db.URL)
	p.driver = d
	return d, nil
}

// Run executes query in a write session on database, or on the descriptor's
// database when empty.
func (p *Provider) Run(ctx context.Context, database, query string) (*provider.Result, error) {
	driver, err := p.getDriver()
	if err != nil {
		return nil, err
	}
	if database == "" {
		database = p.db.Name
	}

	session := driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	start := time.Now()
	res, err := session.Run(ctx, query, nil)
	if err != nil {
		return nil, fmt.Errorf("running query: %w", err)
	}
	keys, err := res.Keys()
	if err != nil {
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	out := &provider.Result{Columns: keys}
	for res.Next(ctx) {
		rec := res.Record()
		row := provider.Record{Keys: rec.Keys, Values: make([]any, len(rec.Values))}
		for i, v := range rec.Values {
			row.Values[i] = convert(v)
		}
		out.Records = append(out.Records, row)
	}
	if err := res.Err(); err != nil {
		return nil, fmt.Errorf("reading records: %w", err)
	}
	logging.L().Debugw("query done", "database", database, "records", len(out.Records), "took", time.Since(start))
	return out, nil
}

// Ping verifies the server can be reached with the configured credentials.
func (p *Provider) Ping(ctx context.Context) error {
	driver, err := p.getDriver()
	if err != nil {
		return err
	}
	return driver.VerifyConnectivity(ctx)
}

func (p *Provider) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.driver == nil {
		return nil
	}
	err := p.driver.Close(ctx)
	p.driver = nil
	return err
}

func convert(v any) any {
	switch t := v.(type) {
	case neo4j.Node:
		return node(t)
	case neo4j.Relationship:
		return relationship(t)
	case neo4j.Path:
		path := provider.Path{
			Nodes:         make([]provider.Node, len(t.Nodes)),
			Relationships: make([]provider.Relationship, len(t.Relationships)),
		}
		for i, n := range t.Nodes {
			path.Nodes[i] = node(n)
		}
		for i, r := range t.Relationships {
			path.Relationships[i] = relationship(r)
		}
		return path
	case neo4j.Date:
		return values.DateOf(t.Time())
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = convert(item)
		}
		return out
	case map[string]any:
		return convertProps(t)
	default:
		return v
	}
}

func node(n neo4j.Node) provider.Node {
	return provider.Node{ID: n.ElementId, Labels: n.Labels, Properties: convertProps(n.Props)}
}

func relationship(r neo4j.Relationship) provider.Relationship {
	return provider.Relationship{
		ID:         r.ElementId,
		Type:       r.Type,
		StartID:    r.StartElementId,
		EndID:      r.EndElementId,
		Properties: convertProps(r.Props),
	}
}

func convertProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = convert(v)
	}
	return out
}
