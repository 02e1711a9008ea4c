package database

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/northbuild/north-be/config"
	"github.com/northbuild/north-be/types"
	"github.com/weaviate/weaviate-go-client/v4/weaviate"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/auth"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/filters"
	"github.com/weaviate/weaviate-go-client/v4/weaviate/graphql"
	"github.com/weaviate/weaviate/entities/models"
)

const BATCH_SIZE = 200

var (
	DOCUMENT_CLASS        = "Document"
	DOCUMENT_CLASS_OBJECT = &models.Class{
		Class: DOCUMENT_CLASS,
		Properties: []*models.Property{
			{Name: "sourceId", DataType: []string{"text"}},
			{Name: "source", DataType: []string{"text"}},
			{Name: "parentId", DataType: []string{"text"}},
			{Name: "chunkIndex", DataType: []string{"int"}},
			{Name: "totalChunks", DataType: []string{"int"}},
			{Name: "content", DataType: []string{"text"}},
			{Name: "fingerprint", DataType: []string{"text"}},
			{Name: "title", DataType: []string{"text"}},
			{Name: "path", DataType: []string{"text"}},
			{Name: "project", DataType: []string{"text"}},
			{Name: "contractor", DataType: []string{"text"}},
			{Name: "documentType", DataType: []string{"text"}},
			{Name: "tags", DataType: []string{"text[]"}},
			{Name: "modifiedAt", DataType: []string{"int"}},
			{Name: "createdAt", DataType: []string{"int"}},
		},
		VectorIndexType: "hnsw",
	}

	documentFields = []graphql.Field{
		{Name: "sourceId"},
		{Name: "source"},
		{Name: "parentId"},
		{Name: "chunkIndex"},
		{Name: "totalChunks"},
		{Name: "content"},
		{Name: "fingerprint"},
		{Name: "title"},
		{Name: "path"},
		{Name: "project"},
		{Name: "contractor"},
		{Name: "documentType"},
		{Name: "tags"},
		{Name: "modifiedAt"},
		{Name: "createdAt"},
		{Name: "_additional", Fields: []graphql.Field{{Name: "score"}, {Name: "id"}}},
	}
)

type WeaviateStore struct {
	client *weaviate.Client
}

func NewWeaviateStore(config config.WeaviateStoreConfig) (*WeaviateStore, error) {
	var scheme string
	if strings.Contains(config.Host, "https") {
		scheme = "https"
	} else {
		scheme = "http"
	}
	host := strings.TrimPrefix(config.Host, scheme+"://")
	cfg := weaviate.Config{
		Host:   host,
		Scheme: scheme,
	}
	if config.APIKey != "" {
		cfg.AuthConfig = auth.ApiKey{
			Value: config.APIKey,
		}
		cfg.Headers = map[string]string{
			"X-Weaviate-Api-Key":     config.APIKey,
			"X-Weaviate-Cluster-Url": fmt.Sprintf("%s://%s", scheme, host),
		}
	}
	DOCUMENT_CLASS_OBJECT.Vectorizer = config.Text2Vec
	DOCUMENT_CLASS_OBJECT.ModuleConfig = config.ModuleConfig
	client, err := weaviate.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create weaviate client: %v", err)
	}

	schema, err := client.Schema().Getter().Do(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %v", err)
	}

	hasDocumentClass := false
	for _, class := range schema.Classes {
		if class.Class == DOCUMENT_CLASS {
			hasDocumentClass = true
			break
		}
	}
	// Create Document class if it doesn't exist
	if !hasDocumentClass {
		err = client.Schema().ClassCreator().WithClass(DOCUMENT_CLASS_OBJECT).Do(context.Background())
		if err != nil {
			return nil, fmt.Errorf("failed to create Document class: %v", err)
		}
	}
	return &WeaviateStore{
		client: client,
	}, nil
}

func (s *WeaviateStore) ReInit() error {
	err := s.client.Schema().ClassDeleter().WithClassName(DOCUMENT_CLASS).Do(context.Background())
	if err != nil {
		return fmt.Errorf("failed to delete Document class: %v", err)
	}

	err = s.client.Schema().ClassCreator().WithClass(DOCUMENT_CLASS_OBJECT).Do(context.Background())
	if err != nil {
		return fmt.Errorf("failed to create Document class: %v", err)
	}
	return nil
}

// UpsertChunks replaces the indexed records of one source item with the
// given chunk set. Existing chunks for the source id are removed first so
// a shrinking document never leaves stale trailing chunks behind.
func (s *WeaviateStore) UpsertChunks(ctx context.Context, docs []types.Document, embeddings [][]float32) error {
	if len(docs) == 0 {
		return nil
	}
	if err := s.DeleteBySourceID(ctx, docs[0].Source, docs[0].SourceID); err != nil {
		return fmt.Errorf("failed to clear existing chunks: %v", err)
	}

	total := len(docs)
	for i := 0; i < total; i += BATCH_SIZE {
		end := i + BATCH_SIZE
		if end > total {
			end = total
		}

		batcher := s.client.Batch().ObjectsBatcher()
		for j := i; j < end; j++ {
			properties := chunkProperties(docs[j])
			obj := &models.Object{
				Class:      DOCUMENT_CLASS,
				Properties: properties,
			}
			if embeddings != nil && j < len(embeddings) {
				obj.Vector = embeddings[j]
			}
			batcher = batcher.WithObjects(obj)
		}

		if _, err := batcher.Do(ctx); err != nil {
			return fmt.Errorf("failed to insert batch %d-%d: %v", i, end, err)
		}
	}
	log.Printf("Indexed %d chunks for %s/%s", total, docs[0].Source, docs[0].SourceID)

	return nil
}

// DeleteBySourceID removes every chunk indexed for one source item.
func (s *WeaviateStore) DeleteBySourceID(ctx context.Context, source, sourceID string) error {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().WithPath([]string{"source"}).WithOperator(filters.Equal).WithValueString(source),
			filters.Where().WithPath([]string{"sourceId"}).WithOperator(filters.Equal).WithValueString(sourceID),
		})
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(DOCUMENT_CLASS).
		WithWhere(where).
		Do(ctx)
	return err
}

// PurgeSource removes every record of one source. Used by the full
// rebuild path only.
func (s *WeaviateStore) PurgeSource(ctx context.Context, source string) error {
	where := filters.Where().
		WithPath([]string{"source"}).
		WithOperator(filters.Equal).
		WithValueString(source)
	_, err := s.client.Batch().ObjectsBatchDeleter().
		WithClassName(DOCUMENT_CLASS).
		WithWhere(where).
		Do(ctx)
	return err
}

// GetFingerprint returns the stored fingerprint for a source item, if any.
func (s *WeaviateStore) GetFingerprint(ctx context.Context, source, sourceID string) (string, bool, error) {
	where := filters.Where().
		WithOperator(filters.And).
		WithOperands([]*filters.WhereBuilder{
			filters.Where().WithPath([]string{"source"}).WithOperator(filters.Equal).WithValueString(source),
			filters.Where().WithPath([]string{"sourceId"}).WithOperator(filters.Equal).WithValueString(sourceID),
		})
	result, err := s.client.GraphQL().Get().
		WithClassName(DOCUMENT_CLASS).
		WithFields(graphql.Field{Name: "fingerprint"}).
		WithWhere(where).
		WithLimit(1).
		Do(ctx)
	if err != nil {
		return "", false, err
	}
	if result.Errors != nil {
		return "", false, fmt.Errorf("fingerprint lookup failed: %v", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})[DOCUMENT_CLASS].([]interface{})
	if !ok || len(data) == 0 {
		return "", false, nil
	}
	doc, ok := data[0].(map[string]interface{})
	if !ok {
		return "", false, nil
	}
	fingerprint, _ := doc["fingerprint"].(string)
	return fingerprint, fingerprint != "", nil
}

// HybridSearch runs a blended BM25 + vector query. Alpha 0 is pure
// lexical, alpha 1 pure vector. Filters are metadata-key to value and
// match with Like so partial names still hit. Results come back in
// Weaviate's fused ranking order.
func (s *WeaviateStore) HybridSearch(ctx context.Context, query string, alpha float64, searchFilters map[string]string, source string, limit int) ([]types.Document, error) {
	hybrid := s.client.GraphQL().HybridArgumentBuilder().
		WithQuery(query).
		WithAlpha(float32(alpha)).
		WithFusionType(graphql.RelativeScore)

	getBuilder := s.client.GraphQL().Get().
		WithClassName(DOCUMENT_CLASS).
		WithFields(documentFields...).
		WithHybrid(hybrid)
	if limit > 0 {
		getBuilder = getBuilder.WithLimit(limit)
	}
	if where := buildSearchFilter(searchFilters, source); where != nil {
		getBuilder = getBuilder.WithWhere(where)
	}

	result, err := getBuilder.Do(ctx)
	if err != nil {
		return nil, err
	}
	if result.Errors != nil {
		return nil, fmt.Errorf("search failed: %v", result.Errors[0].Message)
	}

	var docs []types.Document
	if data, ok := result.Data["Get"].(map[string]interface{})[DOCUMENT_CLASS].([]interface{}); ok {
		for _, item := range data {
			if props, ok := item.(map[string]interface{}); ok {
				docs = append(docs, parseDocument(props))
			}
		}
	}
	return docs, nil
}

func chunkProperties(doc types.Document) map[string]interface{} {
	return map[string]interface{}{
		"sourceId":     doc.SourceID,
		"source":       doc.Source,
		"parentId":     doc.ParentID,
		"chunkIndex":   doc.ChunkIndex,
		"totalChunks":  doc.TotalChunks,
		"content":      doc.Content,
		"fingerprint":  doc.Fingerprint,
		"title":        doc.Metadata.Title,
		"path":         doc.Metadata.Path,
		"project":      doc.Metadata.Project,
		"contractor":   doc.Metadata.Contractor,
		"documentType": doc.Metadata.DocumentType,
		"tags":         doc.Metadata.Tags,
		"modifiedAt":   doc.Metadata.ModifiedAt,
		"createdAt":    doc.CreatedAt,
	}
}

func parseDocument(props map[string]interface{}) types.Document {
	doc := types.Document{
		SourceID:    parseString(props["sourceId"]),
		Source:      parseString(props["source"]),
		ParentID:    parseString(props["parentId"]),
		ChunkIndex:  parseInt(props["chunkIndex"]),
		TotalChunks: parseInt(props["totalChunks"]),
		Content:     parseString(props["content"]),
		Fingerprint: parseString(props["fingerprint"]),
		Metadata: types.Metadata{
			Title:        parseString(props["title"]),
			Path:         parseString(props["path"]),
			Project:      parseString(props["project"]),
			Contractor:   parseString(props["contractor"]),
			DocumentType: parseString(props["documentType"]),
			Tags:         parseStringArray(props["tags"]),
			ModifiedAt:   int64(parseInt(props["modifiedAt"])),
		},
		CreatedAt: int64(parseInt(props["createdAt"])),
	}
	if additional, ok := props["_additional"].(map[string]interface{}); ok {
		doc.ID = parseString(additional["id"])
		doc.Score = parseScore(additional["score"])
	}
	return doc
}

// Helper functions
func parseString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func parseInt(v interface{}) int {
	f, ok := v.(float64)
	if !ok {
		return 0
	}
	return int(f)
}

// parseScore handles both representations Weaviate uses for the hybrid
// score (a JSON string in GraphQL responses, a number elsewhere).
func parseScore(v interface{}) float64 {
	switch s := v.(type) {
	case string:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return f
	case float64:
		return s
	default:
		return 0
	}
}

func parseStringArray(v interface{}) []string {
	if v == nil {
		return nil
	}
	arr, ok := v.([]interface{})
	if !ok {
		return nil
	}
	result := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			result = append(result, s)
		}
	}
	return result
}

func buildSearchFilter(searchFilters map[string]string, source string) *filters.WhereBuilder {
	var operands []*filters.WhereBuilder

	if source != "" {
		operands = append(operands, filters.Where().
			WithPath([]string{"source"}).
			WithOperator(filters.Equal).
			WithValueString(source))
	}
	for _, key := range []string{types.FilterProject, types.FilterContractor, types.FilterDocumentType, types.FilterPath} {
		value := searchFilters[key]
		if value == "" {
			continue
		}
		operands = append(operands, filters.Where().
			WithPath([]string{filterProperty(key)}).
			WithOperator(filters.Like).
			WithValueString("*" + value + "*"))
	}

	if len(operands) == 0 {
		return nil
	}
	if len(operands) == 1 {
		return operands[0]
	}
	return filters.Where().WithOperator(filters.And).WithOperands(operands)
}

func filterProperty(key string) string {
	if key == types.FilterDocumentType {
		return "documentType"
	}
	return key
}
