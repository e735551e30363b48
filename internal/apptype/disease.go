package apptype

import "strings"

// DiseaseAttributes holds the free-text fields carried by a Disease node
type DiseaseAttributes struct {
	Name                  string   `json:"name"`
	Description           string   `json:"desc,omitempty"`
	Prevention            string   `json:"prevent,omitempty"`
	Cause                 string   `json:"cause,omitempty"`
	Prevalence            string   `json:"get_prob,omitempty"`
	SusceptiblePopulation string   `json:"easy_get,omitempty"`
	TransmissionWay       string   `json:"get_way,omitempty"`
	CureDepartment        []string `json:"cure_department,omitempty"`
	CureMethod            []string `json:"cure_way,omitempty"`
	CureDuration          string   `json:"cure_lasttime,omitempty"`
	CureProbability       string   `json:"cured_prob,omitempty"`
	CostMoney             string   `json:"cost_money,omitempty"`
	InsuranceStatus       string   `json:"yibao_status,omitempty"`
	Category              []string `json:"category,omitempty"`
}

// Properties returns the node property map; empty fields are omitted.
func (d DiseaseAttributes) Properties() map[string]any {
	props := make(map[string]any, 14)
	setString := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			props[k] = v
		}
	}
	setList := func(k string, v []string) {
		if len(v) > 0 {
			props[k] = append([]string(nil), v...)
		}
	}
	setString("desc", d.Description)
	setString("prevent", d.Prevention)
	setString("cause", d.Cause)
	setString("get_prob", d.Prevalence)
	setString("easy_get", d.SusceptiblePopulation)
	setString("get_way", d.TransmissionWay)
	setList("cure_department", d.CureDepartment)
	setList("cure_way", d.CureMethod)
	setString("cure_lasttime", d.CureDuration)
	setString("cured_prob", d.CureProbability)
	setString("cost_money", d.CostMoney)
	setString("yibao_status", d.InsuranceStatus)
	setList("category", d.Category)
	return props
}
