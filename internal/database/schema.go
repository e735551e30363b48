package database

import "fmt"

// dynamicSchema returns schema DDL using the configured embedding dimension
func dynamicSchema(embeddingDims int) []string {
	if embeddingDims <= 0 {
		embeddingDims = 4
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS nodes (
        id TEXT PRIMARY KEY,
        label TEXT NOT NULL,
        name TEXT NOT NULL,
        properties TEXT NOT NULL DEFAULT '{}',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (label, name)
    )`,

		`CREATE TABLE IF NOT EXISTS relationships (
        id TEXT PRIMARY KEY,
        source_id TEXT NOT NULL,
        target_id TEXT NOT NULL,
        rel_type TEXT NOT NULL,
        properties TEXT NOT NULL DEFAULT '{}',
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        UNIQUE (source_id, target_id, rel_type),
        FOREIGN KEY (source_id) REFERENCES nodes(id),
        FOREIGN KEY (target_id) REFERENCES nodes(id)
    )`,

		// Vector index entries, one per indexed node or relationship
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vectors (
        id TEXT PRIMARY KEY,
        entity_type TEXT NOT NULL,
        content TEXT NOT NULL,
        embedding F32_BLOB(%d),
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`, embeddingDims),

		`CREATE INDEX IF NOT EXISTS idx_nodes_label ON nodes(label)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_source_type ON relationships(source_id, rel_type)`,
		`CREATE INDEX IF NOT EXISTS idx_relationships_target_type ON relationships(target_id, rel_type)`,
		`CREATE INDEX IF NOT EXISTS idx_vectors_type ON vectors(entity_type)`,

		`CREATE INDEX IF NOT EXISTS idx_vectors_embedding ON vectors(libsql_vector_idx(embedding))`,
	}
}
