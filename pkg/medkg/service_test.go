package medkg

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/builder"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph/graphtest"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/llm"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/qa"
)

const sampleJSONL = `{"name":"感冒","desc":"常见的上呼吸道感染","symptom":["流鼻涕","咽痛","头痛"],"recommand_drug":["感冒灵","板蓝根"],"cure_department":["内科","呼吸内科"]}
{"name":"鼻炎","symptom":["流鼻涕"],"recommand_drug":["鼻炎康"]}
not json
`

func newTestService(t *testing.T, client llm.Client, opts qa.Options) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "medical.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSONL), 0o600))
	s := NewWithDeps(context.Background(), Deps{
		Store:   graphtest.NewStore(),
		Index:   graphtest.NewIndex(),
		LLM:     client,
		Options: opts,
		Info:    Info{Backend: "memory"},
	})
	return s, path
}

func TestServiceBuildAndAsk(t *testing.T) {
	ctx := context.Background()
	client := llm.ClientFunc(func(_ context.Context, system, user string, opts llm.Options) (string, error) {
		if opts.JSON {
			return `{"Disease":[""],"Symptom":["流鼻涕","头痛"],"Drug":[],"relationship":["has_symptom"]}`, nil
		}
		return "建议多休息，可服用感冒灵。", nil
	})
	s, path := newTestService(t, client, qa.DefaultOptions())

	rep, err := s.BuildFromFile(ctx, path, builder.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Read.Malformed)
	assert.Equal(t, 2, rep.Normalized.Records)
	assert.Equal(t, rep.Nodes, rep.Counts.NodesCreated)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Nodes[apptype.Disease])
	assert.Equal(t, 4, st.Relationships[apptype.HasSymptom])

	ans, err := s.Ask(ctx, "流鼻涕头痛怎么办")
	require.NoError(t, err)
	assert.Equal(t, "感冒", ans.Diseases.Top[0])
	assert.Equal(t, "建议多休息，可服用感冒灵。", ans.Text)

	assert.Equal(t, []string{"感冒"}, s.Ground(ctx, []string{"感冒"}, apptype.Disease))
	assert.Equal(t, []string{"感冒灵", "板蓝根"}, s.DrugsByDiseases(ctx, []string{"感冒"}))

	_, err = s.Ask(ctx, "   ")
	assert.Error(t, err)
}

func TestServiceDictionaryReloadsAfterBuild(t *testing.T) {
	ctx := context.Background()
	client := llm.ClientFunc(func(_ context.Context, _, _ string, opts llm.Options) (string, error) {
		if opts.JSON {
			return "", assert.AnError
		}
		return "ok", nil
	})
	opts := qa.DefaultOptions()
	opts.DictionaryFallback = true
	s, path := newTestService(t, client, opts)

	ans, err := s.Ask(ctx, "咽痛")
	require.NoError(t, err)
	assert.True(t, ans.Fallback)

	_, err = s.BuildFromFile(ctx, path, builder.DefaultOptions())
	require.NoError(t, err)
	ans, err = s.Ask(ctx, "咽痛")
	require.NoError(t, err)
	assert.False(t, ans.Fallback)
	assert.Equal(t, []string{"感冒"}, ans.Diseases.Top)
}

func TestServiceClear(t *testing.T) {
	ctx := context.Background()
	s, path := newTestService(t, llm.ClientFunc(func(context.Context, string, string, llm.Options) (string, error) { return "", nil }), qa.DefaultOptions())
	_, err := s.BuildFromFile(ctx, path, builder.DefaultOptions())
	require.NoError(t, err)

	require.NoError(t, s.Clear(ctx))
	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.TotalNodes())
	assert.Empty(t, s.Ground(ctx, []string{"感冒"}, apptype.Disease))
	assert.NoError(t, s.Ping(ctx))
	assert.NoError(t, s.Close(ctx))
}

func TestBuildFromMissingFile(t *testing.T) {
	s, _ := newTestService(t, nil, qa.DefaultOptions())
	_, err := s.BuildFromFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"), builder.DefaultOptions())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "nope.json"))
}
