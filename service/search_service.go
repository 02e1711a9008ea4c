package service

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/northbuild/north-be/config"
	"github.com/northbuild/north-be/types"
)

// DocumentIndex is the slice of the vector store the search service needs.
type DocumentIndex interface {
	HybridSearch(ctx context.Context, query string, alpha float64, searchFilters map[string]string, source string, limit int) ([]types.Document, error)
}

const entityExtractionPrompt = `You extract search entities from construction-business queries.
Known projects are street addresses like "305 Regency" or "12 Oak Lane".
Contractors are company or person names. Document types include invoice,
contract, agreement, proposal, insurance, w9, receipt, change order.
Return only fields you are confident about, leave the rest empty.`

// SearchService plans and executes hybrid retrieval: entity extraction,
// blend-weight selection, over-fetch, rerank, truncate.
type SearchService struct {
	index    DocumentIndex
	ai       AIService
	reranker Reranker
	cfg      config.SearchConfig
}

func NewSearchService(index DocumentIndex, ai AIService, reranker Reranker, cfg config.SearchConfig) *SearchService {
	return &SearchService{
		index:    index,
		ai:       ai,
		reranker: reranker,
		cfg:      cfg,
	}
}

// Plan validates the query and builds a retrieval plan for it. Entity
// extraction failures degrade to an unfiltered plan; only an empty query
// is an error.
func (s *SearchService) Plan(ctx context.Context, query string) (*types.RetrievalPlan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.ErrInvalidQuery
	}

	var extracted types.ExtractedEntities
	if s.ai != nil {
		if err := s.ai.ChatStructured(ctx, entityExtractionPrompt, query, &extracted); err != nil {
			log.Println("entity extraction failed, searching without filters:", err)
			extracted = types.ExtractedEntities{}
		}
	}

	planFilters := make(map[string]string)
	if extracted.Project != "" {
		planFilters[types.FilterProject] = extracted.Project
	}
	if extracted.Contractor != "" {
		planFilters[types.FilterContractor] = extracted.Contractor
	}
	if extracted.DocumentType != "" {
		planFilters[types.FilterDocumentType] = extracted.DocumentType
	}
	if extracted.SpecificFile != "" {
		planFilters[types.FilterPath] = extracted.SpecificFile
	}

	return &types.RetrievalPlan{
		Query:     query,
		Entities:  extracted.Ordered(),
		Alpha:     s.chooseAlpha(query, extracted),
		Filters:   planFilters,
		Extracted: extracted,
	}, nil
}

// Execute runs one planned search against a single source. The result is
// always a subset of the hybrid candidates, at most limit long, sorted by
// relevance. Rerank failures fall back to the hybrid order.
func (s *SearchService) Execute(ctx context.Context, plan *types.RetrievalPlan, source string, limit int) ([]types.Document, error) {
	if limit <= 0 {
		limit = s.cfg.TopK
	}
	overfetch := limit * s.cfg.OverfetchFactor
	if overfetch < limit {
		overfetch = limit
	}

	searchCtx := ctx
	if s.cfg.CallTimeoutSec > 0 {
		var cancel context.CancelFunc
		searchCtx, cancel = context.WithTimeout(ctx, time.Duration(s.cfg.CallTimeoutSec)*time.Second)
		defer cancel()
	}

	candidates, err := s.index.HybridSearch(searchCtx, plan.Query, plan.Alpha, plan.Filters, source, overfetch)
	if err != nil {
		return nil, fmt.Errorf("hybrid search: %w", err)
	}
	if len(candidates) == 0 {
		return []types.Document{}, nil
	}

	ranked := s.rerankCandidates(searchCtx, plan.Query, candidates)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// Search is the one-shot path used by the search endpoint and the agents.
func (s *SearchService) Search(ctx context.Context, query, source string, limit int) ([]types.Document, *types.RetrievalPlan, error) {
	plan, err := s.Plan(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	docs, err := s.Execute(ctx, plan, source, limit)
	if err != nil {
		return nil, nil, err
	}
	return docs, plan, nil
}

// rerankCandidates reorders candidates by cross-encoder relevance. Any
// rerank failure keeps the hybrid order so a degraded scorer never takes
// search down with it.
func (s *SearchService) rerankCandidates(ctx context.Context, query string, candidates []types.Document) []types.Document {
	ordered := make([]types.Document, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	if s.reranker == nil {
		return ordered
	}
	texts := make([]string, len(candidates))
	for i, doc := range candidates {
		texts[i] = doc.Content
	}
	results, err := s.reranker.Rerank(ctx, query, texts, len(candidates))
	if err != nil {
		log.Println("rerank unavailable, keeping hybrid order:", err)
		return ordered
	}

	scores := make(map[int]float64, len(results))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		if _, ok := scores[r.Index]; !ok {
			scores[r.Index] = r.Score
		}
	}
	// Walk the candidates in hybrid order so equal rerank scores keep
	// that order under the stable sort. A partial rerank response still
	// covers every candidate: the unscored remainder trails behind.
	reranked := make([]types.Document, 0, len(candidates))
	unscored := make([]types.Document, 0)
	for i, doc := range candidates {
		score, ok := scores[i]
		if !ok {
			unscored = append(unscored, doc)
			continue
		}
		doc.Score = score
		reranked = append(reranked, doc)
	}
	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].Score > reranked[j].Score
	})
	return append(reranked, unscored...)
}

// chooseAlpha picks the lexical-vs-vector blend weight. Exact-looking
// queries (quoted phrases, file names, id-like tokens) lean lexical,
// descriptive questions lean semantic, everything else uses the default.
func (s *SearchService) chooseAlpha(query string, extracted types.ExtractedEntities) float64 {
	alpha := s.cfg.DefaultAlpha
	switch {
	case looksExact(query) || extracted.SpecificFile != "":
		alpha = s.cfg.LexicalAlpha
	case looksDescriptive(query):
		alpha = s.cfg.SemanticAlpha
	}
	return clampAlpha(alpha)
}

func looksExact(query string) bool {
	if strings.ContainsAny(query, `"'`) {
		return true
	}
	for _, token := range strings.Fields(query) {
		if strings.Contains(token, ".") && len(token) > 3 {
			return true
		}
		var hasDigit, hasLetter bool
		for _, r := range token {
			if unicode.IsDigit(r) {
				hasDigit = true
			}
			if unicode.IsLetter(r) {
				hasLetter = true
			}
		}
		if hasDigit && hasLetter {
			return true
		}
	}
	return false
}

var descriptiveLeads = []string{"how", "why", "what", "when", "explain", "summarize", "tell me"}

func looksDescriptive(query string) bool {
	lower := strings.ToLower(query)
	for _, lead := range descriptiveLeads {
		if strings.HasPrefix(lower, lead) {
			return true
		}
	}
	return len(strings.Fields(query)) >= 8
}

func clampAlpha(alpha float64) float64 {
	if alpha < 0 {
		return 0
	}
	if alpha > 1 {
		return 1
	}
	return alpha
}
