package database

import (
	"os"
	"strconv"
)

// Config holds the libSQL configuration
type Config struct {
	URL           string `env:"LIBSQL_URL" envDefault:"file:./medkg.db"`
	AuthToken     string `env:"LIBSQL_AUTH_TOKEN"`
	EmbeddingDims int    `env:"EMBEDDING_DIMS" envDefault:"384"`
	// ANNOversample multiplies k for vector_top_k candidate sets before the
	// entity type filter is applied.
	ANNOversample int `env:"VECTOR_ANN_OVERSAMPLE" envDefault:"8"`

	MaxOpenConns   int `env:"DB_MAX_OPEN_CONNS"`
	MaxIdleConns   int `env:"DB_MAX_IDLE_CONNS"`
	ConnMaxIdleSec int `env:"DB_CONN_MAX_IDLE_SEC"`
	ConnMaxLifeSec int `env:"DB_CONN_MAX_LIFETIME_SEC"`
}

// NewConfig creates a new Config from environment variables
func NewConfig() *Config {
	url := os.Getenv("LIBSQL_URL")
	if url == "" {
		url = "file:./medkg.db"
	}
	return &Config{
		URL:            url,
		AuthToken:      os.Getenv("LIBSQL_AUTH_TOKEN"),
		EmbeddingDims:  envInt("EMBEDDING_DIMS", 384),
		ANNOversample:  envInt("VECTOR_ANN_OVERSAMPLE", 8),
		MaxOpenConns:   envInt("DB_MAX_OPEN_CONNS", 0),
		MaxIdleConns:   envInt("DB_MAX_IDLE_CONNS", 0),
		ConnMaxIdleSec: envInt("DB_CONN_MAX_IDLE_SEC", 0),
		ConnMaxLifeSec: envInt("DB_CONN_MAX_LIFETIME_SEC", 0),
	}
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
