package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/metrics"
)

// ErrNoProvider is returned by vector operations when no embeddings provider is configured.
var ErrNoProvider = errors.New("no embeddings provider configured")

// VectorIndex stores embedded entity texts in the vectors table.
type VectorIndex struct {
	dm *DBManager
}

// Vectors returns the vector index backed by the same database.
func (dm *DBManager) Vectors() *VectorIndex {
	return &VectorIndex{dm: dm}
}

// Index embeds and upserts records by ID. Records with blank text are skipped.
func (v *VectorIndex) Index(ctx context.Context, recs ...apptype.VectorRecord) error {
	done := metrics.TimeOp("db_vector_index")
	success := false
	defer func() { done(success) }()

	dm := v.dm
	if dm.provider == nil {
		return ErrNoProvider
	}
	keep := make([]apptype.VectorRecord, 0, len(recs))
	texts := make([]string, 0, len(recs))
	for _, r := range recs {
		if strings.TrimSpace(r.Text) == "" || r.ID == "" {
			continue
		}
		keep = append(keep, r)
		texts = append(texts, r.Text)
	}
	if len(keep) == 0 {
		success = true
		return nil
	}
	vecs, err := dm.provider.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed %d texts: %w", len(texts), err)
	}
	if len(vecs) != len(keep) {
		return fmt.Errorf("embeddings provider returned %d vectors for %d texts", len(vecs), len(keep))
	}

	tx, err := dm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (id, entity_type, content, embedding)
        VALUES (?, ?, ?, vector32(?))
        ON CONFLICT(id) DO UPDATE SET entity_type = excluded.entity_type, content = excluded.content, embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("failed to prepare vector upsert: %w", err)
	}
	defer stmt.Close()
	for i, r := range keep {
		vs, err := dm.vectorToString(vecs[i])
		if err != nil {
			return fmt.Errorf("vector for %q: %w", r.Text, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Type, r.Text, vs); err != nil {
			return fmt.Errorf("failed to upsert vector for %q: %w", r.Text, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit vectors: %w", err)
	}
	success = true
	return nil
}

// Search returns up to k texts tagged typ ordered by cosine distance to text.
// When vector_top_k is available an oversampled ANN candidate set is used
// first; exact search covers the case where the type filter leaves fewer
// than k candidates.
func (v *VectorIndex) Search(ctx context.Context, text string, typ string, k int) ([]string, error) {
	done := metrics.TimeOp("db_vector_search")
	success := false
	defer func() { done(success) }()

	dm := v.dm
	if strings.TrimSpace(text) == "" || k <= 0 {
		success = true
		return []string{}, nil
	}
	if dm.provider == nil {
		return nil, ErrNoProvider
	}
	vecs, err := dm.provider.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embeddings provider returned %d vectors for 1 text", len(vecs))
	}
	vs, err := dm.vectorToString(vecs[0])
	if err != nil {
		return nil, err
	}

	if dm.hasVectorTopK() {
		out, err := v.searchANN(ctx, vs, typ, k)
		if err != nil {
			dm.log.Warn("vector_top_k search failed, using exact search", "error", err)
		} else if len(out) >= k {
			success = true
			return out, nil
		}
	}
	out, err := v.searchExact(ctx, vs, typ, k)
	if err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

func (v *VectorIndex) searchANN(ctx context.Context, vs, typ string, k int) ([]string, error) {
	over := v.dm.config.ANNOversample
	if over < 1 {
		over = 1
	}
	stmt, err := v.dm.getPreparedStmt(ctx, `WITH vt AS (
            SELECT id FROM vector_top_k('idx_vectors_embedding', vector32(?), ?)
        )
        SELECT v.content FROM vt JOIN vectors v ON v.rowid = vt.id
        WHERE v.entity_type = ?
        ORDER BY vector_distance_cos(v.embedding, vector32(?)) ASC
        LIMIT ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, vs, k*over, typ, vs, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTexts(rows)
}

func (v *VectorIndex) searchExact(ctx context.Context, vs, typ string, k int) ([]string, error) {
	stmt, err := v.dm.getPreparedStmt(ctx, `SELECT content FROM vectors
        WHERE entity_type = ? AND embedding IS NOT NULL
        ORDER BY vector_distance_cos(embedding, vector32(?)) ASC, rowid ASC
        LIMIT ?`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx, typ, vs, k)
	if err != nil {
		return nil, fmt.Errorf("failed to execute similarity search: %w", err)
	}
	defer rows.Close()
	return scanTexts(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanTexts(rows rowScanner) ([]string, error) {
	out := make([]string, 0)
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ClearAll removes every vector entry.
func (v *VectorIndex) ClearAll(ctx context.Context) error {
	done := metrics.TimeOp("db_vector_clear")
	success := false
	defer func() { done(success) }()
	if _, err := v.dm.db.ExecContext(ctx, "DELETE FROM vectors"); err != nil {
		return fmt.Errorf("failed to clear vectors: %w", err)
	}
	success = true
	return nil
}

// Count returns the number of stored vectors.
func (v *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := v.dm.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count vectors: %w", err)
	}
	return n, nil
}
