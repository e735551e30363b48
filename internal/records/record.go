// Package records turns raw medical knowledge-base records into
// deduplicated node sets, disease attribute records and typed edges.
package records

import (
	"strconv"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/ZanzyTHEbar/medkg-libsql-go/internal/apptype"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is one line of the input knowledge base.
type Record struct {
	Name           string     `json:"name"`
	Disease        string     `json:"disease"`
	Description    Text       `json:"desc"`
	Prevention     Text       `json:"prevent"`
	Cause          Text       `json:"cause"`
	Prevalence     Text       `json:"get_prob"`
	EasyGet        Text       `json:"easy_get"`
	GetWay         Text       `json:"get_way"`
	CureDepartment StringList `json:"cure_department"`
	CureWay        StringList `json:"cure_way"`
	CureLastTime   Text       `json:"cure_lasttime"`
	CuredProb      Text       `json:"cured_prob"`
	CostMoney      Text       `json:"cost_money"`
	YibaoStatus    Text       `json:"yibao_status"`
	Category       StringList `json:"category"`
	Symptom        StringList `json:"symptom"`
	Acompany       StringList `json:"acompany"`
	CommonDrug     StringList `json:"common_drug"`
	RecommandDrug  StringList `json:"recommand_drug"`
	NotEat         StringList `json:"not_eat"`
	DoEat          StringList `json:"do_eat"`
	RecommandEat   StringList `json:"recommand_eat"`
	Check          StringList `json:"check"`
	DrugDetail     StringList `json:"drug_detail"`
}

// PrimaryName is the disease name, preferring "name" over "disease".
func (r Record) PrimaryName() string {
	if n := strings.TrimSpace(r.Name); n != "" {
		return n
	}
	return strings.TrimSpace(r.Disease)
}

// Attributes returns the canonical attribute record for the disease.
func (r Record) Attributes() apptype.DiseaseAttributes {
	return apptype.DiseaseAttributes{
		Name:                  r.PrimaryName(),
		Description:           string(r.Description),
		Prevention:            string(r.Prevention),
		Cause:                 string(r.Cause),
		Prevalence:            string(r.Prevalence),
		SusceptiblePopulation: string(r.EasyGet),
		TransmissionWay:       string(r.GetWay),
		CureDepartment:        r.CureDepartment.Clean(),
		CureMethod:            r.CureWay.Clean(),
		CureDuration:          string(r.CureLastTime),
		CureProbability:       string(r.CuredProb),
		CostMoney:             string(r.CostMoney),
		InsuranceStatus:       string(r.YibaoStatus),
		Category:              r.Category.Clean(),
	}
}

// StringList decodes a JSON list of strings, also accepting null, a single
// string or numbers.
type StringList []string

func (l *StringList) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*l = nil
	case string:
		*l = StringList{v}
	case []any:
		out := make(StringList, 0, len(v))
		for _, e := range v {
			if e == nil {
				continue
			}
			out = append(out, scalarString(e))
		}
		*l = out
	default:
		*l = StringList{scalarString(v)}
	}
	return nil
}

// Clean trims values and drops blanks.
func (l StringList) Clean() []string {
	out := make([]string, 0, len(l))
	for _, s := range l {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Text decodes a JSON string, also accepting null, numbers or a list of
// strings (joined with newlines).
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*t = ""
	case []any:
		parts := make([]string, 0, len(v))
		for _, e := range v {
			if e == nil {
				continue
			}
			parts = append(parts, scalarString(e))
		}
		*t = Text(strings.TrimSpace(strings.Join(parts, "\n")))
	default:
		*t = Text(strings.TrimSpace(scalarString(v)))
	}
	return nil
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		s, _ := json.MarshalToString(x)
		return s
	}
}
