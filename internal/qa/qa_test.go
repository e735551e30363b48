package qa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/builder"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/graph/graphtest"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/llm"
	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/records"
)

type fakeLLM struct {
	mu         sync.Mutex
	extraction string
	extractErr error
	summary    string
	summaryErr error
	summaries  []string
}

func (f *fakeLLM) Complete(_ context.Context, system, user string, opts llm.Options) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if opts.JSON {
		return f.extraction, f.extractErr
	}
	f.summaries = append(f.summaries, user)
	return f.summary, f.summaryErr
}

func fixture(t *testing.T) (*graphtest.Store, *graphtest.Index) {
	t.Helper()
	n := records.NewNormalizer()
	n.Add(records.Record{
		Name:          "感冒",
		Description:   "病毒感染引起的上呼吸道炎症",
		Symptom:       records.StringList{"流鼻涕", "咽痛", "头痛"},
		RecommandDrug: records.StringList{"感冒灵", "板蓝根", "维C银翘片", "连花清瘟"},
	})
	n.Add(records.Record{Name: "鼻炎", Symptom: records.StringList{"流鼻涕"}, RecommandDrug: records.StringList{"鼻炎康", "感冒灵"}})
	n.Add(records.Record{Name: "偏头痛", Symptom: records.StringList{"头痛"}, RecommandDrug: records.StringList{"布洛芬"}})

	store, index := graphtest.NewStore(), graphtest.NewIndex()
	_, err := builder.New(store, index, nil, builder.DefaultOptions()).Build(context.Background(), n.Result())
	require.NoError(t, err)
	return store, index
}

func TestDiseasesBySymptomsRanksByOverlap(t *testing.T) {
	store, _ := fixture(t)
	r := NewRetriever(store, nil, 3)

	got := r.DiseasesBySymptoms(context.Background(), []string{"流鼻涕", "咽痛", "头痛"})
	require.Len(t, got.Ranked, 3)
	assert.Equal(t, "感冒", got.Ranked[0].Name)
	assert.Equal(t, 3, got.Ranked[0].Count)
	assert.Equal(t, []string{"感冒", "鼻炎", "偏头痛"}, got.Top)
	assert.Equal(t, "病毒感染引起的上呼吸道炎症", got.Ranked[0].Attributes["desc"])
}

func TestRankingTieBreakKeepsFirstSeen(t *testing.T) {
	ctx := context.Background()
	store := graphtest.NewStore()
	for _, d := range []string{"乙", "甲", "丙"} {
		_, err := store.CreateNode(ctx, apptype.Disease, d, nil)
		require.NoError(t, err)
	}
	for _, s := range []string{"咳嗽", "头痛"} {
		_, err := store.CreateNode(ctx, apptype.Symptom, s, nil)
		require.NoError(t, err)
	}
	link := func(d, s string) {
		_, err := store.CreateRelationship(ctx,
			apptype.EntityRef{Label: apptype.Disease, Name: d}, apptype.HasSymptom,
			apptype.EntityRef{Label: apptype.Symptom, Name: s}, nil)
		require.NoError(t, err)
	}
	link("乙", "咳嗽")
	link("甲", "咳嗽")
	link("甲", "头痛")
	link("丙", "头痛")

	got := NewRetriever(store, nil, 3).DiseasesBySymptoms(ctx, []string{"咳嗽", "头痛"})
	assert.Equal(t, []string{"甲", "乙", "丙"}, got.Top)
	assert.Equal(t, []int{2, 1, 1}, []int{got.Ranked[0].Count, got.Ranked[1].Count, got.Ranked[2].Count})
}

func TestDiseasesBySymptomsEmptyInput(t *testing.T) {
	store, _ := fixture(t)
	got := NewRetriever(store, nil, 3).DiseasesBySymptoms(context.Background(), nil)
	assert.NotNil(t, got.Ranked)
	assert.NotNil(t, got.Top)
	assert.Empty(t, got.Ranked)
	assert.Empty(t, got.Top)
}

func TestDrugsByDiseasesTopThree(t *testing.T) {
	store, _ := fixture(t)
	r := NewRetriever(store, nil, 3)

	drugs := r.DrugsByDiseases(context.Background(), []string{"感冒"})
	assert.Len(t, drugs, 3)
	for _, d := range drugs {
		assert.Contains(t, []string{"感冒灵", "板蓝根", "维C银翘片", "连花清瘟"}, d)
	}

	drugs = r.DrugsByDiseases(context.Background(), []string{"感冒", "鼻炎"})
	require.NotEmpty(t, drugs)
	assert.Equal(t, "感冒灵", drugs[0])
	assert.LessOrEqual(t, len(drugs), 3)
}

func TestRetrieverStoreFailureYieldsEmpty(t *testing.T) {
	store, _ := fixture(t)
	store.TraverseErr = errors.New("connection refused")
	r := NewRetriever(store, nil, 3)

	got := r.DiseasesBySymptoms(context.Background(), []string{"头痛"})
	assert.Empty(t, got.Ranked)
	assert.Empty(t, r.DrugsByDiseases(context.Background(), []string{"感冒"}))
}

func TestGroundSkipsBlankAndScopesType(t *testing.T) {
	_, index := fixture(t)
	g := NewGrounder(index, nil, false)

	got := g.Ground(context.Background(), []string{"", "  ", "感冒灵"}, apptype.Symptom)
	require.Len(t, got, 1)
	assert.Equal(t, "Symptom", index.Types()[got[0]])
	assert.Equal(t, 1, index.Searches)
}

func TestGroundKeepsDuplicatesUnlessDeduped(t *testing.T) {
	_, index := fixture(t)
	in := []string{"头痛", "咽痛", "头痛"}

	got := NewGrounder(index, nil, false).Ground(context.Background(), in, apptype.Symptom)
	assert.Equal(t, []string{"头痛", "咽痛", "头痛"}, got)

	got = NewGrounder(index, nil, true).Ground(context.Background(), in, apptype.Symptom)
	assert.Equal(t, []string{"头痛", "咽痛"}, got)
}

func TestGroundSearchFailureDropsMention(t *testing.T) {
	index := graphtest.NewIndex()
	index.SearchErr = errors.New("index offline")
	got := NewGrounder(index, nil, false).Ground(context.Background(), []string{"头痛"}, apptype.Symptom)
	assert.Empty(t, got)
}

func TestExtractorToleratesMalformedOutput(t *testing.T) {
	ctx := context.Background()
	f := &fakeLLM{extraction: "抱歉，我无法回答"}
	ext, err := NewExtractor(f, nil).Extract(ctx, "头痛怎么办")
	require.NoError(t, err)
	assert.True(t, ext.Empty())

	f.extraction = "```json\n{\"Disease\":[\"\"],\"Symptom\":[\"咳嗽\",\" 头痛 \"],\"relationship\":[\"has_symptom\"]}\n```"
	ext, err = NewExtractor(f, nil).Extract(ctx, "咳嗽头痛是什么病")
	require.NoError(t, err)
	assert.Nil(t, ext.Drug)
	clean := ext.Clean()
	assert.Empty(t, clean.Disease)
	assert.Equal(t, []string{"咳嗽", "头痛"}, []string(clean.Symptom))
	assert.Empty(t, clean.Drug)
}

func TestExtractorSurfacesModelFailure(t *testing.T) {
	f := &fakeLLM{extractErr: errors.New("503")}
	ext, err := NewExtractor(f, nil).Extract(context.Background(), "头痛")
	assert.Error(t, err)
	assert.True(t, ext.Empty())
}

func TestAskSymptomScenario(t *testing.T) {
	store, index := fixture(t)
	f := &fakeLLM{
		extraction: `{"Disease":[""],"Symptom":["流鼻涕","咽痛","头痛"],"Drug":[],"relationship":["has_symptom"]}`,
		summary:    "您可能患有感冒。",
	}
	p := New(store, index, f, nil, DefaultOptions())

	ans, err := p.Ask(context.Background(), "我流鼻涕、咽痛、头痛，是什么病？")
	require.NoError(t, err)
	assert.False(t, ans.Fallback)
	assert.Equal(t, "您可能患有感冒。", ans.Text)
	assert.Equal(t, []string{"流鼻涕", "咽痛", "头痛"}, ans.Grounded.Symptom)
	assert.Equal(t, "感冒", ans.Diseases.Top[0])
	assert.Equal(t, []string{"感冒", "鼻炎", "偏头痛"}, ans.DiseaseNames)
	require.NotEmpty(t, ans.Drugs)
	assert.Equal(t, "感冒灵", ans.Drugs[0])
	assert.LessOrEqual(t, len(ans.Drugs), 3)

	require.Len(t, f.summaries, 1)
	prompt := f.summaries[0]
	assert.Contains(t, prompt, "用户问题: 我流鼻涕、咽痛、头痛，是什么病？")
	assert.Contains(t, prompt, "可能患的疾病: 感冒、鼻炎、偏头痛")
	assert.Contains(t, prompt, "病毒感染引起的上呼吸道炎症")
}

func TestAskDiseaseAndDrugMentions(t *testing.T) {
	store, index := fixture(t)
	f := &fakeLLM{
		extraction: `{"Disease":["感冒"],"Symptom":[],"Drug":["感冒灵"],"relationship":["recommand_drug"]}`,
		summary:    "可以服用感冒灵。",
	}
	ans, err := New(store, index, f, nil, DefaultOptions()).Ask(context.Background(), "感冒应该吃什么药，吃感冒灵可以吗?")
	require.NoError(t, err)
	assert.Equal(t, []string{"感冒"}, ans.DiseaseNames)
	assert.Empty(t, ans.Diseases.Ranked)
	assert.Len(t, ans.Drugs, 3)
	// attributes of a grounded disease still reach the prompt
	assert.Contains(t, f.summaries[0], "病毒感染引起的上呼吸道炎症")
}

func TestAskFallbackWhenNothingGrounds(t *testing.T) {
	f := &fakeLLM{extraction: `{"Disease":[""],"Symptom":[],"Drug":[],"relationship":[]}`}
	p := New(graphtest.NewStore(), graphtest.NewIndex(), f, nil, DefaultOptions())

	ans, err := p.Ask(context.Background(), "你好")
	require.NoError(t, err)
	assert.True(t, ans.Fallback)
	assert.Equal(t, DefaultFallbackMessage, ans.Text)
	assert.Empty(t, f.summaries)

	// an empty index grounds nothing either
	f.extraction = `{"Symptom":["头痛"]}`
	ans, err = p.Ask(context.Background(), "头痛")
	require.NoError(t, err)
	assert.True(t, ans.Fallback)
}

func TestAskExtractionFailureDegradesToFallback(t *testing.T) {
	store, index := fixture(t)
	f := &fakeLLM{extractErr: errors.New("timeout")}
	ans, err := New(store, index, f, nil, DefaultOptions()).Ask(context.Background(), "头痛")
	require.NoError(t, err)
	assert.True(t, ans.Fallback)
}

func TestAskSynthesisFailureIsReturned(t *testing.T) {
	store, index := fixture(t)
	f := &fakeLLM{extraction: `{"Symptom":["头痛"]}`, summaryErr: errors.New("quota exceeded")}
	ans, err := New(store, index, f, nil, DefaultOptions()).Ask(context.Background(), "头痛")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Empty(t, ans.Text)
	assert.NotEmpty(t, ans.Diseases.Top)
}

func TestAskDictionaryFallback(t *testing.T) {
	store, index := fixture(t)
	dict, err := LoadDictionary(context.Background(), store)
	require.NoError(t, err)

	f := &fakeLLM{extraction: "not json", summary: "ok"}
	p := New(store, index, f, nil, DefaultOptions()).WithDictionary(dict)
	ans, err := p.Ask(context.Background(), "最近咽痛还头痛")
	require.NoError(t, err)
	assert.False(t, ans.Fallback)
	assert.Equal(t, []string{"咽痛", "头痛"}, ans.Grounded.Symptom)
	assert.Equal(t, "感冒", ans.Diseases.Top[0])
}

func TestDictionaryLongestMatch(t *testing.T) {
	d := NewDictionary(map[apptype.EntityType][]string{
		apptype.Disease: {"感冒", "偏头痛"},
		apptype.Symptom: {"头痛"},
		apptype.Drug:    {"感冒灵"},
	})
	assert.Equal(t, 4, d.Len())

	ext, err := d.Extract(context.Background(), "感冒了能吃感冒灵吗，偏头痛呢")
	require.NoError(t, err)
	assert.Equal(t, []string{"感冒", "偏头痛"}, []string(ext.Disease))
	assert.Equal(t, []string{"感冒灵"}, []string(ext.Drug))
	assert.Empty(t, ext.Symptom)
	assert.Equal(t, []string{"recommend_drug"}, []string(ext.Relationship))
}

func TestSummaryPromptFormatsAttributes(t *testing.T) {
	ranked := []RankedCandidate{{
		Name:  "感冒",
		Count: 2,
		Attributes: map[string]any{
			"desc":            "常见病",
			"cure_way":        []any{"药物治疗", "支持性治疗"},
			"cure_department": []string{"内科"},
		},
	}}
	p := summaryPrompt("头痛", ranked, []string{"感冒"}, nil)
	assert.Contains(t, p, "[感冒] 描述: 常见病；治疗方式: 药物治疗、支持性治疗；就诊科室: 内科")
	assert.True(t, strings.HasSuffix(p, "可能需要的药品: 无"))
}
