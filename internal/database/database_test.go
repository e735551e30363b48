package database

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/embeddings"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
)

var (
	_ graph.Store       = (*DBManager)(nil)
	_ graph.VectorIndex = (*VectorIndex)(nil)
)

func setupTestDB(t *testing.T) *DBManager {
	t.Helper()
	config := NewConfig()
	// Use an in-memory database per test. `cache=shared` lets every pooled
	// connection see the same database.
	config.URL = fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	config.EmbeddingDims = 64
	db, err := NewDBManager(config, embeddings.NewHashProvider(64), nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, db.Close()) })
	return db
}

func ref(label apptype.EntityType, name string) apptype.EntityRef {
	return apptype.EntityRef{Label: label, Name: name}
}

func TestCreateNodeDuplicate(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	n, err := db.CreateNode(ctx, apptype.Disease, "感冒", map[string]any{"desc": "常见病", "cure_way": []string{"药物治疗"}})
	require.NoError(t, err)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, "感冒", n.Name)

	_, err = db.CreateNode(ctx, apptype.Disease, "感冒", nil)
	assert.ErrorIs(t, err, graph.ErrDuplicate)

	// Same name under another label is a different node
	_, err = db.CreateNode(ctx, apptype.Symptom, "感冒", nil)
	assert.NoError(t, err)

	_, err = db.CreateNode(ctx, apptype.EntityType("bad label"), "x", nil)
	assert.ErrorIs(t, err, graph.ErrInvalidQuery)
}

func TestFindNodes(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateNode(ctx, apptype.Disease, "感冒", map[string]any{"desc": "常见病", "cure_way": []string{"药物治疗", "休息"}})
	require.NoError(t, err)
	_, err = db.CreateNode(ctx, apptype.Disease, "鼻炎", map[string]any{"desc": "鼻部炎症"})
	require.NoError(t, err)

	all, err := db.FindNodes(ctx, apptype.Disease, nil, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "感冒", all[0].Name)
	assert.Equal(t, []any{"药物治疗", "休息"}, all[0].Properties["cure_way"])

	byName, err := db.FindNodes(ctx, apptype.Disease, map[string]any{"name": "鼻炎"}, 0)
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "鼻部炎症", byName[0].Properties["desc"])

	byProp, err := db.FindNodes(ctx, apptype.Disease, map[string]any{"desc": "常见病"}, 1)
	require.NoError(t, err)
	require.Len(t, byProp, 1)
	assert.Equal(t, "感冒", byProp[0].Name)

	_, err = db.FindNodes(ctx, apptype.Disease, map[string]any{"desc') OR 1=1 --": "x"}, 0)
	assert.ErrorIs(t, err, graph.ErrInvalidQuery)
}

func TestCreateRelationship(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	_, err := db.CreateNode(ctx, apptype.Disease, "感冒", nil)
	require.NoError(t, err)
	_, err = db.CreateNode(ctx, apptype.Symptom, "头痛", nil)
	require.NoError(t, err)

	r, err := db.CreateRelationship(ctx, ref(apptype.Disease, "感冒"), apptype.HasSymptom, ref(apptype.Symptom, "头痛"), map[string]any{"label": "症状"})
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)

	_, err = db.CreateRelationship(ctx, ref(apptype.Disease, "感冒"), apptype.HasSymptom, ref(apptype.Symptom, "头痛"), nil)
	assert.ErrorIs(t, err, graph.ErrDuplicate)

	_, err = db.CreateRelationship(ctx, ref(apptype.Disease, "感冒"), apptype.HasSymptom, ref(apptype.Symptom, "发烧"), nil)
	require.ErrorIs(t, err, graph.ErrMissingEndpoint)
	var ee *graph.EndpointError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, []apptype.EntityRef{ref(apptype.Symptom, "发烧")}, ee.Missing)
}

func TestTraverseAndStats(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, d := range []string{"感冒", "鼻炎"} {
		_, err := db.CreateNode(ctx, apptype.Disease, d, map[string]any{"desc": d + "描述"})
		require.NoError(t, err)
	}
	for _, s := range []string{"流鼻涕", "头痛"} {
		_, err := db.CreateNode(ctx, apptype.Symptom, s, nil)
		require.NoError(t, err)
	}
	_, err := db.CreateNode(ctx, apptype.Drug, "感冒灵", nil)
	require.NoError(t, err)

	edges := []struct {
		from apptype.EntityRef
		rel  apptype.RelationType
		to   apptype.EntityRef
	}{
		{ref(apptype.Disease, "鼻炎"), apptype.HasSymptom, ref(apptype.Symptom, "流鼻涕")},
		{ref(apptype.Disease, "感冒"), apptype.HasSymptom, ref(apptype.Symptom, "流鼻涕")},
		{ref(apptype.Disease, "感冒"), apptype.HasSymptom, ref(apptype.Symptom, "头痛")},
		{ref(apptype.Disease, "感冒"), apptype.RecommendDrug, ref(apptype.Drug, "感冒灵")},
	}
	for _, e := range edges {
		_, err := db.CreateRelationship(ctx, e.from, e.rel, e.to, nil)
		require.NoError(t, err)
	}

	in, err := db.Traverse(ctx, graph.TraversalQuery{From: ref(apptype.Symptom, "流鼻涕"), Relation: apptype.HasSymptom, Direction: graph.Incoming, TargetLabel: apptype.Disease})
	require.NoError(t, err)
	require.Len(t, in, 2)
	assert.Equal(t, "鼻炎", in[0].Name)
	assert.Equal(t, "感冒", in[1].Name)
	assert.Equal(t, "感冒描述", in[1].Properties["desc"])

	limited, err := db.Traverse(ctx, graph.TraversalQuery{From: ref(apptype.Symptom, "流鼻涕"), Relation: apptype.HasSymptom, Direction: graph.Incoming, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	out, err := db.Traverse(ctx, graph.TraversalQuery{From: ref(apptype.Disease, "感冒"), Relation: apptype.RecommendDrug})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, apptype.Drug, out[0].Label)

	none, err := db.Traverse(ctx, graph.TraversalQuery{From: ref(apptype.Symptom, "不存在"), Relation: apptype.HasSymptom, Direction: graph.Incoming})
	require.NoError(t, err)
	assert.Empty(t, none)

	stats, err := db.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalNodes())
	assert.Equal(t, 3, stats.Relationships[apptype.HasSymptom])

	require.NoError(t, db.ClearAll(ctx))
	stats, err = db.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalNodes())
	assert.Zero(t, stats.TotalRelationships())
}

func TestVectorSearchIsTypeScoped(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	idx := db.Vectors()

	require.NoError(t, idx.Index(ctx,
		apptype.VectorRecord{ID: "s1", Text: "咳嗽", Type: string(apptype.Symptom)},
		apptype.VectorRecord{ID: "s2", Text: "头痛", Type: string(apptype.Symptom)},
		apptype.VectorRecord{ID: "d1", Text: "咳嗽糖浆", Type: string(apptype.Drug)},
		apptype.VectorRecord{ID: "blank", Text: "  ", Type: string(apptype.Drug)},
	))
	n, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := idx.Search(ctx, "咳嗽糖浆", string(apptype.Symptom), 5)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"咳嗽", "头痛"}, got)
	assert.Equal(t, "咳嗽", got[0])

	got, err = idx.Search(ctx, "咳嗽", string(apptype.Drug), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"咳嗽糖浆"}, got)

	got, err = idx.Search(ctx, " ", string(apptype.Drug), 1)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Upsert by id replaces the text
	require.NoError(t, idx.Index(ctx, apptype.VectorRecord{ID: "s2", Text: "偏头痛", Type: string(apptype.Symptom)}))
	got, err = idx.Search(ctx, "偏头痛", string(apptype.Symptom), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"偏头痛"}, got)

	require.NoError(t, idx.ClearAll(ctx))
	got, err = idx.Search(ctx, "咳嗽", string(apptype.Symptom), 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestVectorIndexWithoutProvider(t *testing.T) {
	config := NewConfig()
	config.URL = "file:noprovider?mode=memory&cache=shared"
	config.EmbeddingDims = 8
	db, err := NewDBManager(config, nil, nil)
	require.NoError(t, err)
	defer db.Close()

	err = db.Vectors().Index(context.Background(), apptype.VectorRecord{ID: "x", Text: "x", Type: "Drug"})
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestNewDBManagerRejectsBadDims(t *testing.T) {
	config := NewConfig()
	config.URL = "file:baddims?mode=memory&cache=shared"
	config.EmbeddingDims = 0
	_, err := NewDBManager(config, nil, nil)
	assert.Error(t, err)
}

func TestConnectionURL(t *testing.T) {
	assert.Equal(t, "file:./x.db", connectionURL(&Config{URL: "file:./x.db", AuthToken: "t"}))
	assert.Equal(t, "libsql://db.turso.io?authToken=t%2Bk", connectionURL(&Config{URL: "libsql://db.turso.io", AuthToken: "t+k"}))
	assert.Equal(t, "libsql://db.turso.io", connectionURL(&Config{URL: "libsql://db.turso.io"}))
}
