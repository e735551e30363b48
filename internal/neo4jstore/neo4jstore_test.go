package neo4jstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph"
)

func TestTraverseCypher(t *testing.T) {
	q, params, err := traverseCypher(graph.TraversalQuery{
		From:        apptype.EntityRef{Label: apptype.Symptom, Name: "头痛"},
		Relation:    apptype.HasSymptom,
		Direction:   graph.Incoming,
		TargetLabel: apptype.Disease,
		Limit:       5,
	})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (a:`Symptom` {name: $name})<-[r:`has_symptom`]-(b:`Disease`) RETURN b ORDER BY r.seq LIMIT $limit", q)
	assert.Equal(t, map[string]any{"name": "头痛", "limit": int64(5)}, params)

	q, params, err = traverseCypher(graph.TraversalQuery{
		From:     apptype.EntityRef{Label: apptype.Disease, Name: "感冒"},
		Relation: apptype.RecommendDrug,
	})
	require.NoError(t, err)
	assert.Equal(t, "MATCH (a:`Disease` {name: $name})-[r:`recommend_drug`]->(b) RETURN b ORDER BY r.seq", q)
	assert.NotContains(t, params, "limit")
}

func TestCypherRejectsUnsafeIdentifiers(t *testing.T) {
	_, _, err := traverseCypher(graph.TraversalQuery{
		From:     apptype.EntityRef{Label: "Disease`) DETACH DELETE (x", Name: "感冒"},
		Relation: apptype.RecommendDrug,
	})
	assert.ErrorIs(t, err, graph.ErrInvalidQuery)

	_, err = mergeRelCypher(apptype.Disease, "has symptom", apptype.Symptom)
	assert.ErrorIs(t, err, graph.ErrInvalidQuery)

	_, _, err = findNodesCypher(apptype.Disease, map[string]any{"desc = '' OR 1=1": 1}, 0)
	assert.ErrorIs(t, err, graph.ErrInvalidQuery)
}

func TestFindNodesCypherSortsKeys(t *testing.T) {
	q, params, err := findNodesCypher(apptype.Disease, map[string]any{"name": "感冒", "cause": "病毒"}, 1)
	require.NoError(t, err)
	assert.Equal(t, "MATCH (n:`Disease`) WHERE n.`cause` = $p0 AND n.`name` = $p1 RETURN n ORDER BY n.name LIMIT $limit", q)
	assert.Equal(t, "病毒", params["p0"])
	assert.Equal(t, "感冒", params["p1"])
	assert.Equal(t, int64(1), params["limit"])
}

func TestMergeNodeAndConstraintCypher(t *testing.T) {
	q, err := mergeNodeCypher(apptype.Drug)
	require.NoError(t, err)
	assert.Contains(t, q, "MERGE (n:`Drug` {name: $name})")
	assert.Contains(t, q, "ON CREATE SET")

	c, err := constraintCypher(apptype.Producer)
	require.NoError(t, err)
	assert.Equal(t, "CREATE CONSTRAINT medkg_producer_name IF NOT EXISTS FOR (n:`Producer`) REQUIRE n.name IS UNIQUE", c)
}

func TestClearAndStatsScopedToEntityLabels(t *testing.T) {
	for _, q := range []string{clearCypher(), nodeStatsCypher(), relStatsCypher()} {
		for _, l := range apptype.AllEntityTypes() {
			assert.Contains(t, q, "`"+string(l)+"`")
		}
	}
}

func TestFlattenProps(t *testing.T) {
	out, err := flattenProps(map[string]any{
		"id":       "x",
		"name":     "感冒",
		"desc":     "常见病",
		"cure_way": []string{"药物治疗"},
		"meta":     map[string]any{"a": 1},
		"empty":    nil,
		"prob":     float32(0.5),
	})
	require.NoError(t, err)
	assert.NotContains(t, out, "id")
	assert.NotContains(t, out, "name")
	assert.NotContains(t, out, "empty")
	assert.Equal(t, "常见病", out["desc"])
	assert.Equal(t, []string{"药物治疗"}, out["cure_way"])
	assert.Equal(t, `{"a":1}`, out["meta"])
	assert.Equal(t, 0.5, out["prob"])

	_, err = flattenProps(map[string]any{"bad key": 1})
	assert.ErrorIs(t, err, graph.ErrInvalidQuery)
}

func TestDecodeNode(t *testing.T) {
	n := decodeNode(neo4j.Node{
		Labels: []string{"Disease"},
		Props:  map[string]any{"id": "42", "name": "感冒", "desc": "常见病", "cure_way": []any{"休息"}},
	}, "")
	assert.Equal(t, apptype.Disease, n.Label)
	assert.Equal(t, "42", n.ID)
	assert.Equal(t, "感冒", n.Name)
	assert.Equal(t, map[string]any{"desc": "常见病", "cure_way": []any{"休息"}}, n.Properties)

	n = decodeNode(neo4j.Node{Labels: []string{"Other"}, Props: map[string]any{"name": "x"}}, apptype.Drug)
	assert.Equal(t, apptype.Drug, n.Label)
}

func TestNewClientRequiresURI(t *testing.T) {
	_, err := NewClient(context.Background(), Config{}, nil)
	assert.Error(t, err)
	assert.False(t, Config{}.Enabled())
}

// TestStoreAgainstNeo4j runs only when NEO4J_TEST_URI points at a disposable database.
func TestStoreAgainstNeo4j(t *testing.T) {
	uri := os.Getenv("NEO4J_TEST_URI")
	if uri == "" {
		t.Skip("NEO4J_TEST_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c, err := NewClient(ctx, Config{URI: uri, User: os.Getenv("NEO4J_TEST_USER"), Password: os.Getenv("NEO4J_TEST_PASSWORD")}, nil)
	require.NoError(t, err)
	defer c.Close(ctx)

	s := NewStore(c)
	s.EnsureSchema(ctx)
	require.NoError(t, s.ClearAll(ctx))

	_, err = s.CreateNode(ctx, apptype.Disease, "感冒", map[string]any{"desc": "常见病"})
	require.NoError(t, err)
	_, err = s.CreateNode(ctx, apptype.Disease, "感冒", nil)
	assert.ErrorIs(t, err, graph.ErrDuplicate)
	for _, sym := range []string{"头痛", "咽痛"} {
		_, err = s.CreateNode(ctx, apptype.Symptom, sym, nil)
		require.NoError(t, err)
	}

	disease := apptype.EntityRef{Label: apptype.Disease, Name: "感冒"}
	for _, sym := range []string{"咽痛", "头痛"} {
		_, err = s.CreateRelationship(ctx, disease, apptype.HasSymptom, apptype.EntityRef{Label: apptype.Symptom, Name: sym}, map[string]any{"label": "症状"})
		require.NoError(t, err)
	}
	_, err = s.CreateRelationship(ctx, disease, apptype.HasSymptom, apptype.EntityRef{Label: apptype.Symptom, Name: "头痛"}, nil)
	assert.ErrorIs(t, err, graph.ErrDuplicate)
	_, err = s.CreateRelationship(ctx, disease, apptype.HasSymptom, apptype.EntityRef{Label: apptype.Symptom, Name: "发热"}, nil)
	var ee *graph.EndpointError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "发热", ee.Missing[0].Name)

	nodes, err := s.Traverse(ctx, graph.TraversalQuery{From: disease, Relation: apptype.HasSymptom})
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "咽痛", nodes[0].Name)
	assert.Equal(t, "头痛", nodes[1].Name)

	back, err := s.Traverse(ctx, graph.TraversalQuery{
		From:      apptype.EntityRef{Label: apptype.Symptom, Name: "头痛"},
		Relation:  apptype.HasSymptom,
		Direction: graph.Incoming,
	})
	require.NoError(t, err)
	require.Len(t, back, 1)
	assert.Equal(t, "常见病", back[0].Properties["desc"])

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, st.Nodes[apptype.Disease])
	assert.Equal(t, 2, st.Relationships[apptype.HasSymptom])

	require.NoError(t, s.ClearAll(ctx))
}
