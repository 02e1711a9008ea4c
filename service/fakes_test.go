package service

import (
	"context"
	"errors"
	"sync"

	"github.com/northbuild/north-be/types"
)

type fakeAI struct {
	chatFn       func(ctx context.Context, prompt string, messages []types.Message) (string, error)
	structuredFn func(ctx context.Context, prompt string, input string, out any) error
	embedFn      func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeAI) Chat(ctx context.Context, prompt string, messages []types.Message) (string, error) {
	if f.chatFn != nil {
		return f.chatFn(ctx, prompt, messages)
	}
	return "ok", nil
}

func (f *fakeAI) ChatStream(ctx context.Context, prompt string, messages []types.Message, streamHandler types.StreamHandler) error {
	answer, err := f.Chat(ctx, prompt, messages)
	if err != nil {
		return err
	}
	streamHandler(answer)
	return nil
}

func (f *fakeAI) ChatStructured(ctx context.Context, prompt string, input string, out any) error {
	if f.structuredFn != nil {
		return f.structuredFn(ctx, prompt, input, out)
	}
	return nil
}

func (f *fakeAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if f.embedFn != nil {
		return f.embedFn(ctx, texts)
	}
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{float32(len(texts[i]))}
	}
	return vectors, nil
}

type fakeIndex struct {
	docs      []types.Document
	err       error
	lastQuery string
	lastAlpha float64
	lastLimit int
	lastWhere map[string]string
}

func (f *fakeIndex) HybridSearch(ctx context.Context, query string, alpha float64, searchFilters map[string]string, source string, limit int) ([]types.Document, error) {
	f.lastQuery = query
	f.lastAlpha = alpha
	f.lastLimit = limit
	f.lastWhere = searchFilters
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.docs) {
		return f.docs[:limit], nil
	}
	return f.docs, nil
}

type fakeReranker struct {
	results []RerankResult
	err     error
	calls   int
}

func (f *fakeReranker) Rerank(ctx context.Context, query string, documents []string, topK int) ([]RerankResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

// fakeStore is an in-memory DocumentStore tracking fingerprints per
// source item, with switchable failure injection.
type fakeStore struct {
	mu           sync.Mutex
	fingerprints map[string]string
	chunks       map[string][]types.Document
	failUpserts  bool
	purged       []string
	upsertCalls  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fingerprints: make(map[string]string),
		chunks:       make(map[string][]types.Document),
	}
}

func storeKey(source, sourceID string) string {
	return source + "/" + sourceID
}

func (f *fakeStore) UpsertChunks(ctx context.Context, docs []types.Document, embeddings [][]float32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upsertCalls++
	if f.failUpserts {
		return errors.New("store down")
	}
	key := storeKey(docs[0].Source, docs[0].SourceID)
	f.fingerprints[key] = docs[0].Fingerprint
	f.chunks[key] = docs
	return nil
}

func (f *fakeStore) DeleteBySourceID(ctx context.Context, source, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := storeKey(source, sourceID)
	delete(f.fingerprints, key)
	delete(f.chunks, key)
	return nil
}

func (f *fakeStore) PurgeSource(ctx context.Context, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged = append(f.purged, source)
	for key := range f.fingerprints {
		delete(f.fingerprints, key)
		delete(f.chunks, key)
	}
	return nil
}

func (f *fakeStore) GetFingerprint(ctx context.Context, source, sourceID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp, ok := f.fingerprints[storeKey(source, sourceID)]
	return fp, ok, nil
}

// fakeSource serves a scripted sequence of change pages keyed by cursor.
type fakeSource struct {
	name    string
	pages   map[string]*types.ChangePage
	content map[string]string
	meta    map[string]types.Metadata
	err     error
}

func (f *fakeSource) Name() string {
	return f.name
}

func (f *fakeSource) Changes(ctx context.Context, cursor string) (*types.ChangePage, error) {
	if f.err != nil {
		return nil, f.err
	}
	page, ok := f.pages[cursor]
	if !ok {
		return &types.ChangePage{Cursor: cursor}, nil
	}
	return page, nil
}

func (f *fakeSource) Fetch(ctx context.Context, change types.Change) (string, types.Metadata, error) {
	content, ok := f.content[change.SourceID]
	if !ok {
		return "", types.Metadata{}, errors.New("not found: " + change.SourceID)
	}
	return content, f.meta[change.SourceID], nil
}

type fakeCursorRepo struct {
	mu      sync.Mutex
	cursors map[string]string
	saves   int
}

func newFakeCursorRepo() *fakeCursorRepo {
	return &fakeCursorRepo{cursors: make(map[string]string)}
}

func (f *fakeCursorRepo) Get(ctx context.Context, source string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursors[source], nil
}

func (f *fakeCursorRepo) Save(ctx context.Context, source, cursor string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursors[source] = cursor
	f.saves++
	return nil
}

func (f *fakeCursorRepo) Clear(ctx context.Context, source string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cursors, source)
	return nil
}

// fakeAgent answers with a canned result or error.
type fakeAgent struct {
	name   string
	result *types.AgentResult
	err    error
	block  bool
	calls  int
}

func (f *fakeAgent) Name() string {
	return f.name
}

func (f *fakeAgent) Answer(ctx context.Context, query string, history []types.Turn) (*types.AgentResult, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		res := *f.result
		res.Agent = f.name
		return &res, nil
	}
	return &types.AgentResult{Agent: f.name, Answer: "answer from " + f.name}, nil
}

type fakeConversationRepo struct {
	mu      sync.Mutex
	records []*types.ConversationRecord
	recents int
}

func (f *fakeConversationRepo) Append(ctx context.Context, record *types.ConversationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, record)
	return nil
}

func (f *fakeConversationRepo) Recent(ctx context.Context, userID string, limit int) ([]*types.ConversationRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recents++
	var out []*types.ConversationRecord
	for i := len(f.records) - 1; i >= 0 && len(out) < limit; i-- {
		if f.records[i].UserID == userID {
			out = append(out, f.records[i])
		}
	}
	return out, nil
}
