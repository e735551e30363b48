package qa

import (
	"fmt"
	"sort"
	"strings"
)

const extractionSystemPrompt = `你是一个具有多年问诊经验的中医医生，具有丰富的中医知识，能够根据问题，提取出问题中的实体和关系。
实体有可能是疾病Disease、症状Symptom、药品Drug。
关系有可能是recommand_eat(推荐食谱)、recommand_drug(推荐药品)、has_symptom(症状)。`

const extractionUserTemplate = `问题: %s
请根据问题，提取出问题中的实体和关系。不能包含其他内容。

返回json数据格式如下：
{"Disease":[],
"Symptom":[],
"Drug":[],
"relationship":[]}

example:
问题1: 咳嗽、头疼、流鼻涕是什么病?
返回: {"Disease":[""],
"Symptom":["咳嗽","头疼","流鼻涕"],
"Drug":[],
"relationship":["has_symptom"]}

问题2: 感冒应该吃什么药，吃感冒灵胶囊可以吗?
返回: {"Disease":["感冒"],
"Symptom":[],
"Drug":["感冒灵胶囊"],
"relationship":["recommand_drug"]}`

const summarySystemPrompt = `你是一个具有多年问诊经验的西医医生，具有丰富的中医知识。
你能够根据问题，以及我提供的可能性疾病，需要治疗的药物，来给患者一个完整的诊断。
你给出的诊断需要包含疾病名称，疾病描述，疾病治疗方案，疾病治疗药物。`

const summaryUserTemplate = `用户问题: %s
可能患的疾病: %s
可能患的疾病详情: %s
可能需要的药品: %s`

func extractionPrompt(question string) string {
	return fmt.Sprintf(extractionUserTemplate, strings.TrimSpace(question))
}

// digestKeys are the disease properties passed to the summary prompt, in order.
var digestKeys = []struct{ key, label string }{
	{"desc", "描述"},
	{"cause", "病因"},
	{"cure_way", "治疗方式"},
	{"cure_lasttime", "治疗周期"},
	{"cured_prob", "治愈概率"},
	{"cure_department", "就诊科室"},
}

func summaryPrompt(question string, ranked []RankedCandidate, diseaseNames, drugNames []string) string {
	return fmt.Sprintf(summaryUserTemplate,
		strings.TrimSpace(question),
		listText(diseaseNames),
		diseaseDigest(ranked, diseaseNames),
		listText(drugNames))
}

func listText(names []string) string {
	if len(names) == 0 {
		return "无"
	}
	return strings.Join(names, "、")
}

// diseaseDigest renders the attributes of the named diseases found in ranked.
func diseaseDigest(ranked []RankedCandidate, names []string) string {
	byName := make(map[string]RankedCandidate, len(ranked))
	for _, c := range ranked {
		byName[c.Name] = c
	}
	var b strings.Builder
	for _, name := range names {
		c, ok := byName[name]
		if !ok || len(c.Attributes) == 0 {
			continue
		}
		parts := make([]string, 0, len(digestKeys))
		for _, k := range digestKeys {
			if v := propText(c.Attributes[k.key]); v != "" {
				parts = append(parts, k.label+": "+v)
			}
		}
		if len(parts) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n[%s] %s", name, strings.Join(parts, "；"))
	}
	if b.Len() == 0 {
		return "无"
	}
	return b.String()
}

func propText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []string:
		return strings.Join(t, "、")
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := propText(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "、")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+"="+propText(t[k]))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(t)
	}
}
