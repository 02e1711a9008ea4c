package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/northbuild/north-be/repository"
	"github.com/northbuild/north-be/types"
	"golang.org/x/sync/errgroup"
)

const routingPrompt = `You route queries for an assistant over a construction business's
records. Available agents:
- knowledge_base: personal notes, work logs, company notes
- documents: invoices, contracts and files in cloud storage
- web_search: the public web, for anything outside the business records
Pick every agent likely to hold the answer. Set conversational=true only
for greetings and chit-chat that need no records at all.`

const synthesisPrompt = `Combine the agent findings below into one direct answer. Prefer
specifics from the findings over generalities. Do not mention the agents
themselves.`

// OrchestratorService resolves a query end to end: classify, dispatch to
// agents in parallel, synthesize, remember. One unreachable agent
// degrades the answer instead of failing it.
type OrchestratorService struct {
	ai            AIService
	agents        map[string]Agent
	contextStore  *ContextService
	conversations repository.ConversationRepo
	agentTimeout  time.Duration
	seeded        sync.Map
}

func NewOrchestratorService(ai AIService, agents []Agent, contextStore *ContextService, conversations repository.ConversationRepo, agentTimeout time.Duration) *OrchestratorService {
	byName := make(map[string]Agent, len(agents))
	for _, agent := range agents {
		byName[agent.Name()] = agent
	}
	if agentTimeout <= 0 {
		agentTimeout = 30 * time.Second
	}
	return &OrchestratorService{
		ai:            ai,
		agents:        byName,
		contextStore:  contextStore,
		conversations: conversations,
		agentTimeout:  agentTimeout,
	}
}

func (s *OrchestratorService) Query(ctx context.Context, userID, query string) (*types.QueryResult, error) {
	return s.run(ctx, userID, query, nil)
}

// QueryStream behaves like Query but forwards answer text to handler in
// chunks as the model produces it. The returned result is the complete
// answer either way.
func (s *OrchestratorService) QueryStream(ctx context.Context, userID, query string, handler types.StreamHandler) (*types.QueryResult, error) {
	return s.run(ctx, userID, query, handler)
}

func (s *OrchestratorService) run(ctx context.Context, userID, query string, handler types.StreamHandler) (*types.QueryResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, types.ErrInvalidQuery
	}

	if cached, ok := s.contextStore.CachedResult(userID, query); ok {
		if handler != nil {
			handler(cached.Answer)
		}
		return cached, nil
	}

	history := s.loadHistory(ctx, userID)
	routing := s.classify(ctx, query, history)

	var result *types.QueryResult
	if routing.Conversational {
		answer, err := s.chat(ctx, "", append(historyMessages(history), types.Message{Role: "user", Content: query}), handler)
		if err != nil {
			return nil, err
		}
		result = &types.QueryResult{Answer: answer, Routing: routing}
	} else {
		results := s.dispatch(ctx, routing.Agents, query, history)
		var err error
		result, err = s.synthesize(ctx, query, routing, results, handler)
		if err != nil {
			return nil, err
		}
	}

	// A cancelled query never becomes context: the caller gave up before
	// the answer existed.
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	s.remember(userID, query, result)
	return result, nil
}

// chat answers via the model, streaming through handler when one is set.
func (s *OrchestratorService) chat(ctx context.Context, prompt string, messages []types.Message, handler types.StreamHandler) (string, error) {
	if handler == nil {
		return s.ai.Chat(ctx, prompt, messages)
	}
	var sb strings.Builder
	err := s.ai.ChatStream(ctx, prompt, messages, func(chunk string) {
		sb.WriteString(chunk)
		handler(chunk)
	})
	return sb.String(), err
}

// loadHistory returns the user's context window, seeding it once from
// the durable conversation history so context survives a restart. An
// explicit Clear is final: it never reseeds.
func (s *OrchestratorService) loadHistory(ctx context.Context, userID string) []types.Turn {
	history := s.contextStore.Get(userID)
	if len(history) > 0 || s.conversations == nil {
		return history
	}
	if _, alreadyTried := s.seeded.LoadOrStore(userID, true); alreadyTried {
		return history
	}
	records, err := s.conversations.Recent(ctx, userID, s.contextStore.maxTurns)
	if err != nil {
		log.Println("could not load conversation history:", err)
		return history
	}
	// Recent returns newest first.
	for i := len(records) - 1; i >= 0; i-- {
		s.contextStore.Append(userID, types.Turn{
			Query:       records[i].Query,
			Response:    records[i].Response,
			CompletedAt: records[i].CompletedAt,
		})
	}
	return s.contextStore.Get(userID)
}

func (s *OrchestratorService) ClearContext(ctx context.Context, userID string) {
	s.contextStore.Clear(userID)
	s.seeded.Store(userID, true)
}

// classify picks the agents for a query. Any failure or invalid output
// falls back to dispatching every retrieval agent, which is always safe.
func (s *OrchestratorService) classify(ctx context.Context, query string, history []types.Turn) types.RoutingDecision {
	input := query
	if len(history) > 0 {
		last := history[len(history)-1]
		input = fmt.Sprintf("Previous question: %s\nCurrent question: %s", last.Query, query)
	}

	var decision types.RoutingDecision
	if err := s.ai.ChatStructured(ctx, routingPrompt, input, &decision); err != nil {
		log.Println("routing classification failed, dispatching all agents:", err)
		return s.fallbackRouting("classification failed")
	}
	if decision.Conversational {
		return decision
	}

	valid := decision.Agents[:0]
	for _, name := range decision.Agents {
		if _, ok := s.agents[name]; ok {
			valid = append(valid, name)
		}
	}
	decision.Agents = valid
	if len(decision.Agents) == 0 {
		return s.fallbackRouting("no valid agents selected")
	}
	return decision
}

func (s *OrchestratorService) fallbackRouting(reason string) types.RoutingDecision {
	decision := types.RoutingDecision{Reason: reason}
	for _, name := range []string{types.AgentKnowledgeBase, types.AgentDocuments} {
		if _, ok := s.agents[name]; ok {
			decision.Agents = append(decision.Agents, name)
		}
	}
	return decision
}

// dispatch fans the query out to the selected agents. An agent error is
// recorded as an unavailable result and never cancels its siblings.
func (s *OrchestratorService) dispatch(ctx context.Context, names []string, query string, history []types.Turn) []types.AgentResult {
	results := make([]types.AgentResult, len(names))
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			agentCtx, cancel := context.WithTimeout(gctx, s.agentTimeout)
			defer cancel()

			res, err := s.agents[name].Answer(agentCtx, query, history)
			if err != nil {
				log.Printf("agent %s unavailable: %v", name, err)
				results[i] = types.AgentResult{
					Agent:       name,
					Unavailable: true,
					Detail:      err.Error(),
				}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	g.Wait()
	return results
}

func (s *OrchestratorService) synthesize(ctx context.Context, query string, routing types.RoutingDecision, results []types.AgentResult, handler types.StreamHandler) (*types.QueryResult, error) {
	var available []types.AgentResult
	degraded := false
	for _, res := range results {
		if res.Unavailable {
			degraded = true
			continue
		}
		available = append(available, res)
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("%w: no agent could answer", types.ErrAgentUnavailable)
	}

	var citations []types.Document
	var sb strings.Builder
	answered := 0
	for _, res := range available {
		citations = append(citations, res.Citations...)
		if res.Answer != "" {
			fmt.Fprintf(&sb, "Findings from %s:\n%s\n\n", res.Agent, res.Answer)
			answered++
		}
	}

	out := &types.QueryResult{
		Routing:   routing,
		Citations: citations,
		Degraded:  degraded,
	}
	switch {
	case answered == 0:
		out.Answer = "I could not find anything about that in the notes or documents."
		emit(handler, out.Answer)
	case answered == 1:
		for _, res := range available {
			if res.Answer != "" {
				out.Answer = res.Answer
			}
		}
		emit(handler, out.Answer)
	default:
		input := fmt.Sprintf("Question: %s\n\n%s", query, sb.String())
		answer, err := s.chat(ctx, synthesisPrompt, []types.Message{{Role: "user", Content: input}}, handler)
		if err != nil {
			// Raw findings beat no answer.
			log.Println("synthesis failed, returning raw findings:", err)
			answer = sb.String()
			emit(handler, answer)
		}
		out.Answer = answer
	}
	if degraded {
		const note = "\n\nNote: some sources were unreachable, this answer may be incomplete."
		out.Answer += note
		emit(handler, note)
	}
	return out, nil
}

func emit(handler types.StreamHandler, text string) {
	if handler != nil {
		handler(text)
	}
}

func (s *OrchestratorService) remember(userID, query string, result *types.QueryResult) {
	turn := types.Turn{
		Query:       query,
		Response:    result.Answer,
		CompletedAt: time.Now().Unix(),
	}
	s.contextStore.Append(userID, turn)
	// Degraded answers are not cached: the next ask should retry the
	// unreachable sources.
	if !result.Degraded {
		s.contextStore.CacheResult(userID, query, result)
	}
	if s.conversations != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		record := &types.ConversationRecord{
			UserID:      userID,
			Query:       query,
			Response:    result.Answer,
			CompletedAt: turn.CompletedAt,
		}
		if err := s.conversations.Append(ctx, record); err != nil {
			log.Println("failed to persist conversation turn:", err)
		}
	}
}
