package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/logger"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// DBManager is the libSQL graph store. Its vector index is reached through
// Vectors.
type DBManager struct {
	config   *Config
	db       *sql.DB
	provider embeddings.Provider
	log      *logger.Logger

	stmtMu    sync.RWMutex
	stmtCache map[string]*sql.Stmt

	capMu sync.RWMutex
	caps  capFlags
}

// NewDBManager opens the database, applies the schema and wires the
// embeddings provider used by the vector index. A nil provider disables
// vector writes and search.
func NewDBManager(config *Config, provider embeddings.Provider, log *logger.Logger) (*DBManager, error) {
	if config.EmbeddingDims <= 0 || config.EmbeddingDims > 65536 {
		return nil, fmt.Errorf("EMBEDDING_DIMS must be between 1 and 65536 inclusive, got %d", config.EmbeddingDims)
	}
	if log == nil {
		log = logger.Nop()
	}
	dm := &DBManager{
		config:    config,
		log:       log.With("component", "libsql"),
		stmtCache: make(map[string]*sql.Stmt),
	}

	db, err := sql.Open("libsql", connectionURL(config))
	if err != nil {
		return nil, fmt.Errorf("failed to create database connector: %w", err)
	}
	if err := dm.initialize(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	// Apply connection pool tuning from config
	if config.MaxOpenConns > 0 {
		db.SetMaxOpenConns(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		db.SetMaxIdleConns(config.MaxIdleConns)
	}
	if config.ConnMaxIdleSec > 0 {
		db.SetConnMaxIdleTime(time.Duration(config.ConnMaxIdleSec) * time.Second)
	}
	if config.ConnMaxLifeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(config.ConnMaxLifeSec) * time.Second)
	}
	dm.db = db

	// Reconcile embedding dims with an existing DB to avoid env drift.
	if dbDims := detectDBEmbeddingDims(db); dbDims > 0 && dbDims != config.EmbeddingDims {
		dm.log.Warn("embedding dims mismatch, adopting DB dims", "db", dbDims, "config", config.EmbeddingDims)
		config.EmbeddingDims = dbDims
	}
	if provider != nil && provider.Dimensions() != config.EmbeddingDims {
		provider = embeddings.WrapToDims(provider, config.EmbeddingDims, "")
	}
	dm.provider = provider

	dm.detectCapabilities(context.Background())
	dm.ObservePool()
	return dm, nil
}

func connectionURL(config *Config) string {
	if strings.HasPrefix(config.URL, "file:") || config.AuthToken == "" {
		return config.URL
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		sep := "?"
		if strings.Contains(config.URL, "?") {
			sep = "&"
		}
		return config.URL + sep + "authToken=" + url.QueryEscape(config.AuthToken)
	}
	q := u.Query()
	q.Set("authToken", config.AuthToken)
	u.RawQuery = q.Encode()
	return u.String()
}

// detectDBEmbeddingDims reads the F32_BLOB size from the vectors table DDL
func detectDBEmbeddingDims(db *sql.DB) int {
	var sqlText string
	_ = db.QueryRow("SELECT sql FROM sqlite_master WHERE type='table' AND name='vectors'").Scan(&sqlText)
	return parseBlobDims(sqlText)
}

func parseBlobDims(ddl string) int {
	low := strings.ToLower(ddl)
	idx := strings.Index(low, "f32_blob(")
	if idx < 0 {
		return 0
	}
	rest := low[idx+len("f32_blob("):]
	end := strings.Index(rest, ")")
	if end <= 0 {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// initialize creates tables and indexes if they don't exist
func (dm *DBManager) initialize(db *sql.DB) error {
	done := metrics.TimeOp("db_initialize")
	success := false
	defer func() { done(success) }()
	tx, err := db.BeginTx(context.Background(), nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for initialization: %w", err)
	}
	defer tx.Rollback()

	for _, statement := range dynamicSchema(dm.config.EmbeddingDims) {
		if _, err := tx.Exec(statement); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// ObservePool reports connection pool usage to the metrics recorder.
func (dm *DBManager) ObservePool() {
	stats := dm.db.Stats()
	metrics.Default().ObservePoolStats(stats.InUse, stats.Idle)
}

// Ping checks that the database answers queries.
func (dm *DBManager) Ping(ctx context.Context) error {
	return dm.db.PingContext(ctx)
}

// Close releases cached statements and the connection pool.
func (dm *DBManager) Close() error {
	dm.closeStatements()
	if err := dm.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}
