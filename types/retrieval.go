package types

// ExtractedEntities is the structured output of query entity extraction.
// The extractor is an LLM, so every field is untrusted until validated.
type ExtractedEntities struct {
	Project      string   `json:"project,omitempty"`
	Contractor   string   `json:"contractor,omitempty"`
	DocumentType string   `json:"document_type,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
	SpecificFile string   `json:"specific_file,omitempty"`
}

// Ordered returns the entities as an ordered terms list, most specific first.
func (e ExtractedEntities) Ordered() []string {
	var terms []string
	if e.Project != "" {
		terms = append(terms, e.Project)
	}
	if e.Contractor != "" {
		terms = append(terms, e.Contractor)
	}
	if e.DocumentType != "" {
		terms = append(terms, e.DocumentType)
	}
	if e.SpecificFile != "" {
		terms = append(terms, e.SpecificFile)
	}
	terms = append(terms, e.Keywords...)
	return terms
}

// Metadata filter keys understood by the vector index.
const (
	FilterProject      = "project"
	FilterContractor   = "contractor"
	FilterDocumentType = "document_type"
	FilterPath         = "path"
)

// RetrievalPlan describes one hybrid search. It lives only for the
// duration of a single query resolution and is never persisted.
type RetrievalPlan struct {
	Query    string            `json:"query"`
	Entities []string          `json:"entities"`
	// Alpha is the lexical-vs-vector blend weight: 0 is pure BM25,
	// 1 is pure vector. Always clamped to [0,1] before execution.
	Alpha     float64           `json:"alpha"`
	Filters   map[string]string `json:"filters,omitempty"`
	Extracted ExtractedEntities `json:"extracted"`
}
