package apptype

// QuestionArgs carries a free-text medical question.
type QuestionArgs struct {
	Question string `json:"question" jsonschema:"The medical question in natural language, e.g. 感冒应该吃什么药?"`
}

// RankedName is a name and the number of query entities that reached it.
type RankedName struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// AskQuestionResult is the structured output of ask_question.
type AskQuestionResult struct {
	Answer       string       `json:"answer"`
	Fallback     bool         `json:"fallback"`
	Symptoms     []string     `json:"symptoms"`
	Diseases     []RankedName `json:"diseases"`
	DiseaseNames []string     `json:"diseaseNames"`
	Drugs        []string     `json:"drugs"`
}

// EntitySet is the typed output of extract_entities.
type EntitySet struct {
	Disease      []string `json:"Disease"`
	Symptom      []string `json:"Symptom"`
	Drug         []string `json:"Drug"`
	Relationship []string `json:"relationship"`
}

// GroundEntitiesArgs represents the arguments for the ground_entities tool
type GroundEntitiesArgs struct {
	Mentions []string `json:"mentions" jsonschema:"Raw entity mentions to resolve."`
	Type     string   `json:"type" jsonschema:"Entity type to search: Disease, Symptom, Drug, Food, Check, Department or Producer."`
}

type GroundEntitiesResult struct {
	Type  string   `json:"type"`
	Names []string `json:"names"`
}

// DiseasesBySymptomsArgs represents the arguments for the diseases_by_symptoms tool
type DiseasesBySymptomsArgs struct {
	Symptoms []string `json:"symptoms" jsonschema:"Canonical symptom names."`
}

type DiseasesBySymptomsResult struct {
	Ranked []RankedName `json:"ranked"`
	Top    []string     `json:"top"`
}

// DrugsByDiseasesArgs represents the arguments for the drugs_by_diseases tool
type DrugsByDiseasesArgs struct {
	Diseases []string `json:"diseases" jsonschema:"Canonical disease names."`
}

type DrugsByDiseasesResult struct {
	Drugs []string `json:"drugs"`
}

// BuildGraphArgs represents the arguments for the build_graph tool
type BuildGraphArgs struct {
	Path  string `json:"path,omitempty" jsonschema:"JSONL file of medical records. Defaults to the configured data file."`
	Reset bool   `json:"reset,omitempty" jsonschema:"Clear the graph and vector index first."`
}

type BuildGraphResult struct {
	Records        int `json:"records"`
	Malformed      int `json:"malformed"`
	NodesCreated   int `json:"nodesCreated"`
	NodesDuplicate int `json:"nodesDuplicate"`
	NodesFailed    int `json:"nodesFailed"`
	EdgesCreated   int `json:"edgesCreated"`
	EdgesDuplicate int `json:"edgesDuplicate"`
	EdgesFailed    int `json:"edgesFailed"`
	VectorsIndexed int `json:"vectorsIndexed"`
}

// ClearGraphArgs requires explicit confirmation.
type ClearGraphArgs struct {
	Confirm bool `json:"confirm" jsonschema:"Must be true to delete every node, relationship and vector record."`
}

type GraphStatsArgs struct{}

type GraphStatsResult struct {
	Nodes              map[string]int `json:"nodes"`
	Relationships      map[string]int `json:"relationships"`
	TotalNodes         int            `json:"totalNodes"`
	TotalRelationships int            `json:"totalRelationships"`
}

type HealthArgs struct{}

type HealthResult struct {
	Name               string `json:"name"`
	Version            string `json:"version"`
	Revision           string `json:"revision"`
	BuildDate          string `json:"buildDate"`
	Backend            string `json:"backend"`
	EmbeddingsProvider string `json:"embeddingsProvider"`
	EmbeddingDims      int    `json:"embeddingDims"`
	LLMModel           string `json:"llmModel"`
	Status             string `json:"status"`
}
