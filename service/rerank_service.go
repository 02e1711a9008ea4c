package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/northbuild/north-be/types"
)

// RerankResult scores one candidate document. Index points back into the
// candidate slice passed to Rerank.
type RerankResult struct {
	Index int
	Score float64
}

type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error)
}

// VoyageReranker calls the Voyage AI rerank endpoint. There is no official
// Go SDK, so this speaks the HTTP API directly.
type VoyageReranker struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

const defaultVoyageEndpoint = "https://api.voyageai.com/v1/rerank"

func NewVoyageReranker(endpoint, apiKey, model string) *VoyageReranker {
	if endpoint == "" {
		endpoint = defaultVoyageEndpoint
	}
	return &VoyageReranker{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type voyageRerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	Model     string   `json:"model"`
	TopK      int      `json:"top_k,omitempty"`
}

type voyageRerankResponse struct {
	Data []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"data"`
}

func (r *VoyageReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(voyageRerankRequest{
		Query:     query,
		Documents: documents,
		Model:     r.model,
		TopK:      topK,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrRerankUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: rerank returned status %d", types.ErrRerankUnavailable, resp.StatusCode)
	}

	var parsed voyageRerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", types.ErrRerankUnavailable, err)
	}
	results := make([]RerankResult, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(documents) {
			return nil, fmt.Errorf("%w: index %d out of range", types.ErrRerankUnavailable, item.Index)
		}
		results = append(results, RerankResult{Index: item.Index, Score: item.RelevanceScore})
	}
	return results, nil
}
