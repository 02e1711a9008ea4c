package service

import (
	"strings"
	"sync"

	"github.com/northbuild/north-be/types"
)

type cachedResult struct {
	key    string
	result types.QueryResult
}

// ContextService keeps the rolling conversation window per user. The
// window is bounded: appending past the limit evicts the oldest turn.
// Durable history lives in Mongo, this is only the working set the
// orchestrator feeds back into the model. A small per-user result cache
// rides along so a repeated query inside the window skips the agents.
type ContextService struct {
	maxTurns int
	mu       sync.Mutex
	turns    map[string][]types.Turn
	cache    map[string][]cachedResult
}

func NewContextService(maxTurns int) *ContextService {
	if maxTurns <= 0 {
		maxTurns = 8
	}
	return &ContextService{
		maxTurns: maxTurns,
		turns:    make(map[string][]types.Turn),
		cache:    make(map[string][]cachedResult),
	}
}

func (s *ContextService) Append(userID string, turn types.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := append(s.turns[userID], turn)
	if len(window) > s.maxTurns {
		window = window[len(window)-s.maxTurns:]
	}
	s.turns[userID] = window
}

// Get returns the user's window oldest first. The returned slice is a
// copy, callers can hold it across later appends.
func (s *ContextService) Get(userID string) []types.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	window := s.turns[userID]
	out := make([]types.Turn, len(window))
	copy(out, window)
	return out
}

func (s *ContextService) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.turns, userID)
	delete(s.cache, userID)
}

// CacheResult stores the answer for a query so an identical repeat can
// be served without dispatching agents again. The cache is bounded like
// the turn window and cleared with it.
func (s *ContextService) CacheResult(userID, query string, result *types.QueryResult) {
	key := cacheKey(query)
	if key == "" || result == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cache[userID]
	for i := range entries {
		if entries[i].key == key {
			entries[i].result = *result
			return
		}
	}
	entries = append(entries, cachedResult{key: key, result: *result})
	if len(entries) > s.maxTurns {
		entries = entries[len(entries)-s.maxTurns:]
	}
	s.cache[userID] = entries
}

// CachedResult returns the stored answer for a repeated query, if any.
func (s *ContextService) CachedResult(userID, query string) (*types.QueryResult, bool) {
	key := cacheKey(query)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, entry := range s.cache[userID] {
		if entry.key == key {
			result := entry.result
			return &result, true
		}
	}
	return nil, false
}

func cacheKey(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}
