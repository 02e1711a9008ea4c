package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/northbuild/north-be/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func routingAI(decision types.RoutingDecision) *fakeAI {
	return &fakeAI{
		structuredFn: func(ctx context.Context, prompt, input string, out any) error {
			if d, ok := out.(*types.RoutingDecision); ok {
				*d = decision
			}
			return nil
		},
	}
}

func newTestOrchestrator(ai AIService, agents ...Agent) (*OrchestratorService, *ContextService) {
	contextStore := NewContextService(4)
	return NewOrchestratorService(ai, agents, contextStore, nil, time.Second), contextStore
}

func TestQueryRejectsEmptyInput(t *testing.T) {
	orch, _ := newTestOrchestrator(&fakeAI{})

	_, err := orch.Query(context.Background(), "u1", "  ")
	require.ErrorIs(t, err, types.ErrInvalidQuery)
}

func TestQueryDispatchesSelectedAgents(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	docs := &fakeAgent{name: types.AgentDocuments}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase}})
	orch, _ := newTestOrchestrator(ai, kb, docs)

	result, err := orch.Query(context.Background(), "u1", "what did I note about the roof")
	require.NoError(t, err)
	assert.Equal(t, 1, kb.calls)
	assert.Equal(t, 0, docs.calls)
	assert.Equal(t, []string{types.AgentKnowledgeBase}, result.Routing.Agents)
	assert.False(t, result.Degraded)
	assert.NotEmpty(t, result.Answer)
}

func TestQueryDegradesOnAgentFailure(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase, result: &types.AgentResult{
		Answer:    "the roof was redone in June",
		Citations: []types.Document{{ID: "doc-1"}},
	}}
	docs := &fakeAgent{name: types.AgentDocuments, err: errors.New("weaviate down")}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase, types.AgentDocuments}})
	orch, _ := newTestOrchestrator(ai, kb, docs)

	result, err := orch.Query(context.Background(), "u1", "roof work history")
	require.NoError(t, err, "one failing agent must not fail the query")
	assert.True(t, result.Degraded)
	assert.Contains(t, result.Answer, "the roof was redone in June")
	assert.Contains(t, result.Answer, "unreachable")
	assert.Len(t, result.Citations, 1)
}

func TestQueryAllAgentsUnavailable(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase, err: errors.New("down")}
	docs := &fakeAgent{name: types.AgentDocuments, err: errors.New("down")}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase, types.AgentDocuments}})
	orch, _ := newTestOrchestrator(ai, kb, docs)

	_, err := orch.Query(context.Background(), "u1", "anything")
	require.ErrorIs(t, err, types.ErrAgentUnavailable)
}

func TestQueryConversationalSkipsAgents(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	ai := routingAI(types.RoutingDecision{Conversational: true})
	ai.chatFn = func(ctx context.Context, prompt string, messages []types.Message) (string, error) {
		return "hello there", nil
	}
	orch, _ := newTestOrchestrator(ai, kb)

	result, err := orch.Query(context.Background(), "u1", "good morning")
	require.NoError(t, err)
	assert.Equal(t, "hello there", result.Answer)
	assert.Equal(t, 0, kb.calls)
}

func TestQueryClassificationFailureFallsBack(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	docs := &fakeAgent{name: types.AgentDocuments}
	ai := &fakeAI{
		structuredFn: func(ctx context.Context, prompt, input string, out any) error {
			return errors.New("classifier down")
		},
	}
	orch, _ := newTestOrchestrator(ai, kb, docs)

	result, err := orch.Query(context.Background(), "u1", "acme invoices")
	require.NoError(t, err)
	assert.Equal(t, 1, kb.calls, "fallback dispatches every retrieval agent")
	assert.Equal(t, 1, docs.calls)
	assert.NotEmpty(t, result.Answer)
}

func TestQueryUnknownAgentNamesIgnored(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	ai := routingAI(types.RoutingDecision{Agents: []string{"sql_agent", types.AgentKnowledgeBase}})
	orch, _ := newTestOrchestrator(ai, kb)

	result, err := orch.Query(context.Background(), "u1", "notes please")
	require.NoError(t, err)
	assert.Equal(t, []string{types.AgentKnowledgeBase}, result.Routing.Agents)
}

func TestQueryRemembersTurn(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase}})
	orch, contextStore := newTestOrchestrator(ai, kb)

	_, err := orch.Query(context.Background(), "u1", "first question")
	require.NoError(t, err)

	window := contextStore.Get("u1")
	require.Len(t, window, 1)
	assert.Equal(t, "first question", window[0].Query)

	orch.ClearContext(context.Background(), "u1")
	assert.Empty(t, contextStore.Get("u1"))
}

func TestQueryCancelledNotRemembered(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase, block: true}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase}})
	orch, contextStore := newTestOrchestrator(ai, kb)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := orch.Query(ctx, "u1", "slow question")
	require.Error(t, err)
	assert.Empty(t, contextStore.Get("u1"), "a cancelled query must not enter the context window")
}

func TestQuerySynthesizesMultipleAgents(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase, result: &types.AgentResult{Answer: "notes say June"}}
	docs := &fakeAgent{name: types.AgentDocuments, result: &types.AgentResult{Answer: "invoice dated June 12"}}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase, types.AgentDocuments}})
	ai.chatFn = func(ctx context.Context, prompt string, messages []types.Message) (string, error) {
		return "the roof was redone in June, invoiced on the 12th", nil
	}
	orch, _ := newTestOrchestrator(ai, kb, docs)

	result, err := orch.Query(context.Background(), "u1", "when was the roof redone")
	require.NoError(t, err)
	assert.Equal(t, "the roof was redone in June, invoiced on the 12th", result.Answer)
	assert.False(t, result.Degraded)
}

func TestQueryProjectContractorScenario(t *testing.T) {
	index := &fakeIndex{docs: []types.Document{{
		ID:      "doc-te",
		Source:  types.SourceNotes,
		Content: "Triple Eagle Electric handled all electrical work on 305 Regency.",
		Metadata: types.Metadata{
			Project:    "305 Regency",
			Contractor: "Triple Eagle Electric",
		},
		Score: 0.9,
	}}}
	ai := &fakeAI{
		structuredFn: func(ctx context.Context, prompt, input string, out any) error {
			switch v := out.(type) {
			case *types.RoutingDecision:
				v.Agents = []string{types.AgentKnowledgeBase}
			case *types.ExtractedEntities:
				v.Project = "305 Regency"
				v.Keywords = []string{"electrical"}
			}
			return nil
		},
		chatFn: func(ctx context.Context, prompt string, messages []types.Message) (string, error) {
			return "Triple Eagle Electric did the electrical work on 305 Regency [1].", nil
		},
	}
	search := NewSearchService(index, ai, nil, testSearchConfig)
	kb := NewKnowledgeBaseAgent(search, ai)
	docs := &fakeAgent{name: types.AgentDocuments}
	orch, _ := newTestOrchestrator(ai, kb, docs)

	result, err := orch.Query(context.Background(), "u1", "Who did electrical work on 305 Regency?")
	require.NoError(t, err)
	assert.Equal(t, []string{types.AgentKnowledgeBase}, result.Routing.Agents)
	assert.Equal(t, 0, docs.calls, "routing picked the knowledge base only")
	assert.Contains(t, result.Answer, "Triple Eagle Electric")
	require.NotEmpty(t, result.Citations)
	assert.Equal(t, "doc-te", result.Citations[0].ID)
	assert.Equal(t, "305 Regency", index.lastWhere[types.FilterProject])
}

func TestQueryStreamEmitsAnswerChunks(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase, result: &types.AgentResult{
		Answer: "the roof was redone in June",
	}}
	docs := &fakeAgent{name: types.AgentDocuments, err: errors.New("weaviate down")}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase, types.AgentDocuments}})
	orch, _ := newTestOrchestrator(ai, kb, docs)

	var chunks []string
	result, err := orch.QueryStream(context.Background(), "u1", "what happened to the roof", func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, result.Answer, strings.Join(chunks, ""), "streamed text must add up to the final answer")
	assert.True(t, result.Degraded)
}

func TestQueryStreamSynthesisChunks(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	docs := &fakeAgent{name: types.AgentDocuments}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase, types.AgentDocuments}})
	orch, _ := newTestOrchestrator(ai, kb, docs)

	var chunks []string
	result, err := orch.QueryStream(context.Background(), "u1", "what do the records say", func(chunk string) {
		chunks = append(chunks, chunk)
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Equal(t, result.Answer, strings.Join(chunks, ""))
}

func TestRepeatedQueryServedFromCache(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase}})
	orch, _ := newTestOrchestrator(ai, kb)

	first, err := orch.Query(context.Background(), "u1", "What about the roof?")
	require.NoError(t, err)

	second, err := orch.Query(context.Background(), "u1", "  what about the roof? ")
	require.NoError(t, err)
	assert.Equal(t, 1, kb.calls, "a repeated query must not dispatch agents again")
	assert.Equal(t, first.Answer, second.Answer)

	orch.ClearContext(context.Background(), "u1")
	_, err = orch.Query(context.Background(), "u1", "what about the roof?")
	require.NoError(t, err)
	assert.Equal(t, 2, kb.calls, "clearing context must drop the cache")
}

func TestDegradedAnswerNotCached(t *testing.T) {
	kb := &fakeAgent{name: types.AgentKnowledgeBase, result: &types.AgentResult{Answer: "partial answer"}}
	docs := &fakeAgent{name: types.AgentDocuments, err: errors.New("weaviate down")}
	ai := routingAI(types.RoutingDecision{Agents: []string{types.AgentKnowledgeBase, types.AgentDocuments}})
	orch, _ := newTestOrchestrator(ai, kb, docs)

	result, err := orch.Query(context.Background(), "u1", "what about the roof")
	require.NoError(t, err)
	require.True(t, result.Degraded)

	_, err = orch.Query(context.Background(), "u1", "what about the roof")
	require.NoError(t, err)
	assert.Equal(t, 2, docs.calls, "a degraded answer must be retried, not served from cache")
}

func TestHistorySeededFromDurableHistory(t *testing.T) {
	conversations := &fakeConversationRepo{records: []*types.ConversationRecord{{
		UserID:      "u1",
		Query:       "earlier question",
		Response:    "earlier answer",
		CompletedAt: 1,
	}}}
	var routingInput string
	ai := &fakeAI{
		structuredFn: func(ctx context.Context, prompt, input string, out any) error {
			if d, ok := out.(*types.RoutingDecision); ok {
				routingInput = input
				d.Agents = []string{types.AgentKnowledgeBase}
			}
			return nil
		},
	}
	kb := &fakeAgent{name: types.AgentKnowledgeBase}
	contextStore := NewContextService(4)
	orch := NewOrchestratorService(ai, []Agent{kb}, contextStore, conversations, time.Second)

	_, err := orch.Query(context.Background(), "u1", "and after that?")
	require.NoError(t, err)
	assert.Contains(t, routingInput, "earlier question", "restored history must feed classification")
	assert.Equal(t, 1, conversations.recents)

	_, err = orch.Query(context.Background(), "u1", "anything else?")
	require.NoError(t, err)
	assert.Equal(t, 1, conversations.recents, "seeding happens once per user")

	orch.ClearContext(context.Background(), "u1")
	_, err = orch.Query(context.Background(), "u1", "and now?")
	require.NoError(t, err)
	window := contextStore.Get("u1")
	require.Len(t, window, 1, "an explicit clear must not be undone by reseeding")
	assert.Equal(t, "and now?", window[0].Query)
}
