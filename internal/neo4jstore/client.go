// Package neo4jstore implements graph.Store on Neo4j.
package neo4jstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
)

// Config holds the connection settings.
type Config struct {
	URI         string        `env:"NEO4J_URI"`
	User        string        `env:"NEO4J_USER" envDefault:"neo4j"`
	Password    string        `env:"NEO4J_PASSWORD"`
	Database    string        `env:"NEO4J_DATABASE"`
	Timeout     time.Duration `env:"NEO4J_TIMEOUT" envDefault:"10s"`
	MaxPoolSize int           `env:"NEO4J_MAX_POOL_SIZE" envDefault:"50"`
}

// Enabled reports whether a URI is configured.
func (c Config) Enabled() bool { return strings.TrimSpace(c.URI) != "" }

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// NewClient opens a driver and verifies connectivity.
func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if log == nil {
		log = logger.Nop()
	}
	if !cfg.Enabled() {
		return nil, fmt.Errorf("neo4jstore: NEO4J_URI is not set")
	}
	user := cfg.User
	if user == "" {
		user = "neo4j"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(user, cfg.Password, ""), func(c *neo4j.Config) {
		if cfg.MaxPoolSize > 0 {
			c.MaxConnectionPoolSize = cfg.MaxPoolSize
		}
		c.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jstore: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jstore: verify connectivity: %w", err)
	}

	return &Client{Driver: driver, Database: cfg.Database, log: log.With("client", "Neo4j")}, nil
}

func (c *Client) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return c.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: c.Database})
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
