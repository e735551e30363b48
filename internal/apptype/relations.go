package apptype

import "fmt"

// RelationType tags a directed edge between two entities
type RelationType string

const (
	HasSymptom        RelationType = "has_symptom"
	ComplicationOf    RelationType = "complication_of"
	RecommendDrug     RelationType = "recommend_drug"
	CommonDrug        RelationType = "common_drug"
	NoEat             RelationType = "no_eat"
	DoEat             RelationType = "do_eat"
	RecommendEat      RelationType = "recommend_eat"
	NeedCheck         RelationType = "need_check"
	BelongsTo         RelationType = "belongs_to"
	BelongsToCategory RelationType = "belongs_to_category"
	Produces          RelationType = "produces"
)

type relationSpec struct {
	label  string
	source EntityType
	target EntityType
}

var relationSpecs = map[RelationType]relationSpec{
	HasSymptom:        {"症状", Disease, Symptom},
	ComplicationOf:    {"并发症", Disease, Disease},
	RecommendDrug:     {"好评药品", Disease, Drug},
	CommonDrug:        {"常用药品", Disease, Drug},
	NoEat:             {"忌吃", Disease, Food},
	DoEat:             {"宜吃", Disease, Food},
	RecommendEat:      {"推荐食谱", Disease, Food},
	NeedCheck:         {"诊断检查", Disease, Check},
	BelongsTo:         {"属于", Department, Department},
	BelongsToCategory: {"所属科室", Disease, Department},
	Produces:          {"生产药品", Producer, Drug},
}

// AllRelationTypes returns every relation type in edge construction order.
func AllRelationTypes() []RelationType {
	return []RelationType{
		HasSymptom, ComplicationOf, RecommendDrug, CommonDrug,
		NoEat, DoEat, RecommendEat, NeedCheck,
		BelongsTo, BelongsToCategory, Produces,
	}
}

// ParseRelationType validates a relation type tag.
func ParseRelationType(s string) (RelationType, error) {
	rt := RelationType(s)
	if _, ok := relationSpecs[rt]; !ok {
		return "", fmt.Errorf("unknown relation type: %q", s)
	}
	return rt, nil
}

func (r RelationType) String() string { return string(r) }

// Label returns the human-readable label stored on the edge.
func (r RelationType) Label() string {
	if spec, ok := relationSpecs[r]; ok {
		return spec.label
	}
	return string(r)
}

// Endpoints returns the source and target entity types of the relation.
func (r RelationType) Endpoints() (EntityType, EntityType, bool) {
	spec, ok := relationSpecs[r]
	return spec.source, spec.target, ok
}
