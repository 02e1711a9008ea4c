package types

// Knowledge source identifiers.
const (
	SourceNotes   = "notes"
	SourceDropbox = "dropbox"
)

// Document represents one indexed unit of knowledge. Source items larger
// than the chunk size are split into several Documents sharing ParentID;
// each chunk carries the metadata of its parent.
type Document struct {
	ID          string   `json:"id"`
	SourceID    string   `json:"source_id"`
	Source      string   `json:"source"`
	ParentID    string   `json:"parent_id,omitempty"`
	ChunkIndex  int      `json:"chunk_index"`
	TotalChunks int      `json:"total_chunks"`
	Content     string   `json:"content"`
	Fingerprint string   `json:"fingerprint"`
	Metadata    Metadata `json:"metadata"`
	// Score is only populated on query results, by the hybrid search or
	// the reranker. It is never stored.
	Score     float64 `json:"score,omitempty"`
	CreatedAt int64   `json:"created_at"`
}

// Metadata contains the structured document properties used for filtering.
type Metadata struct {
	Title        string   `json:"title"`
	Path         string   `json:"path"`
	Project      string   `json:"project,omitempty"`
	Contractor   string   `json:"contractor,omitempty"`
	DocumentType string   `json:"document_type,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	ModifiedAt   int64    `json:"modified_at,omitempty"`
}

// DocumentServiceConfig contains chunking options for document ingestion.
type DocumentServiceConfig struct {
	MaxChunkSize int // Maximum size for text chunks
	OverlapSize  int // Size of overlap between chunks
}
