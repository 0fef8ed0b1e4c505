// Package config describes the databases queries can be sent to.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bratushka/cypher/pkg/errdefs"
)

const (
	DefaultName     = "default"
	DefaultURL      = "bolt://cypher-db:7687"
	DefaultUsername = "neo4j"
	DefaultPassword = "cypher"
)

// Engine names the wire protocol used to reach a database.
type Engine string

const (
	Bolt       Engine = "bolt"
	RedisGraph Engine = "redisgraph"
)

var defaultPorts = map[string]string{
	"bolt":      "7687",
	"bolt+s":    "7687",
	"bolt+ssc":  "7687",
	"neo4j":     "7687",
	"neo4j+s":   "7687",
	"neo4j+ssc": "7687",
	"redis":     "6379",
	"rediss":    "6379",
}

// Database is one named connection descriptor.
type Database struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	// Name selects the database on a Neo4j server or the graph key on a
	// RedisGraph server. Empty means the server default.
	Name string `yaml:"name,omitempty"`
}

// Config is the set of databases known to the process. It is loaded once
// and passed explicitly to whatever runs queries.
type Config struct {
	Default   string              `yaml:"default,omitempty"`
	Databases map[string]Database `yaml:"databases"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Default: DefaultName,
		Databases: map[string]Database{
			DefaultName: {URL: DefaultURL, Username: DefaultUsername, Password: DefaultPassword},
		},
	}
}

// DefaultPath returns $HOME/.cypher/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".cypher", "config.yaml")
}

// Load reads the configuration at path. A missing file yields Default.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML configuration and normalizes every URL. Passwords
// keep their $ENV references; see Database.Secret.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if len(cfg.Databases) == 0 {
		return Default(), nil
	}
	for name, db := range cfg.Databases {
		u, err := NormalizeURL(db.URL)
		if err != nil {
			return nil, fmt.Errorf("database %q: %w", name, err)
		}
		db.URL = u
		cfg.Databases[name] = db
	}
	if cfg.Default == "" {
		if _, ok := cfg.Databases[DefaultName]; ok {
			cfg.Default = DefaultName
		} else {
			cfg.Default = cfg.Names()[0]
		}
	}
	if _, ok := cfg.Databases[cfg.Default]; !ok {
		return nil, fmt.Errorf("%w: default %q", errdefs.ErrUnknownDatabase, cfg.Default)
	}
	return cfg, nil
}

// Names lists the configured databases in sorted order.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Databases))
	for n := range c.Databases {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Database returns the descriptor called name, or the default one when
// name is empty.
func (c *Config) Database(name string) (Database, error) {
	if name == "" {
		name = c.Default
	}
	db, ok := c.Databases[name]
	if !ok {
		return Database{}, fmt.Errorf("%w: %q", errdefs.ErrUnknownDatabase, name)
	}
	return db, nil
}

// Set replaces or adds the descriptor called name.
func (c *Config) Set(name string, db Database) error {
	u, err := NormalizeURL(db.URL)
	if err != nil {
		return err
	}
	db.URL = u
	if c.Databases == nil {
		c.Databases = make(map[string]Database)
	}
	c.Databases[name] = db
	if c.Default == "" {
		c.Default = name
	}
	return nil
}

// NormalizeURL adds the bolt scheme and the default port when missing.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty url", errdefs.ErrDatabaseAddress)
	}
	if !strings.Contains(raw, "://") {
		raw = "bolt://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrDatabaseAddress, err)
	}
	port, known := defaultPorts[u.Scheme]
	if !known {
		return "", fmt.Errorf("%w: unsupported scheme %q", errdefs.ErrDatabaseAddress, u.Scheme)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("%w: %q has no host", errdefs.ErrDatabaseAddress, raw)
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), port)
	}
	return u.String(), nil
}

// Secret returns the password with $ENV references expanded.
func (d Database) Secret() string {
	return os.ExpandEnv(d.Password)
}

// Engine tells which provider serves the database.
func (d Database) Engine() Engine {
	if strings.HasPrefix(d.URL, "redis") {
		return RedisGraph
	}
	return Bolt
}

// Address returns host:port of the database.
func (d Database) Address() (string, error) {
	normalized, err := NormalizeURL(d.URL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errdefs.ErrDatabaseAddress, err)
	}
	return u.Host, nil
}

// Write stores c at path as YAML, creating the directory if needed.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
