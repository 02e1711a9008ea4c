package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/northbuild/north-be/types"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/option"
)

// Agent answers one query against one backing service. A returned error
// means the agent is unavailable; the orchestrator degrades around it
// instead of failing the whole query.
type Agent interface {
	Name() string
	Answer(ctx context.Context, query string, history []types.Turn) (*types.AgentResult, error)
}

const groundedAnswerPrompt = `You answer questions for a construction business using only the
numbered context passages below. Cite passages as [1], [2] where used.
If the context does not contain the answer, say so plainly instead of
guessing.`

// retrievalAgent grounds answers in one indexed source.
type retrievalAgent struct {
	name   string
	source string
	search *SearchService
	ai     AIService
}

func NewKnowledgeBaseAgent(search *SearchService, ai AIService) Agent {
	return &retrievalAgent{
		name:   types.AgentKnowledgeBase,
		source: types.SourceNotes,
		search: search,
		ai:     ai,
	}
}

func NewDocumentAgent(search *SearchService, ai AIService) Agent {
	return &retrievalAgent{
		name:   types.AgentDocuments,
		source: types.SourceDropbox,
		search: search,
		ai:     ai,
	}
}

func (a *retrievalAgent) Name() string {
	return a.name
}

func (a *retrievalAgent) Answer(ctx context.Context, query string, history []types.Turn) (*types.AgentResult, error) {
	docs, _, err := a.search.Search(ctx, query, a.source, 0)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", a.name, err)
	}
	if len(docs) == 0 {
		return &types.AgentResult{
			Agent:  a.name,
			Answer: "",
		}, nil
	}

	var sb strings.Builder
	for i, doc := range docs {
		fmt.Fprintf(&sb, "[%d] %s (%s)\n%s\n\n", i+1, doc.Metadata.Title, doc.Metadata.Path, doc.Content)
	}
	messages := historyMessages(history)
	messages = append(messages, types.Message{
		Role:    "user",
		Content: fmt.Sprintf("Context:\n%s\nQuestion: %s", sb.String(), query),
	})

	answer, err := a.ai.Chat(ctx, groundedAnswerPrompt, messages)
	if err != nil {
		return nil, fmt.Errorf("%s answer: %w", a.name, err)
	}
	return &types.AgentResult{
		Agent:     a.name,
		Answer:    answer,
		Citations: docs,
	}, nil
}

// webSearchAgent answers from Google Programmable Search results. It is
// optional: the orchestrator only routes to it when it is registered.
type webSearchAgent struct {
	service  *customsearch.Service
	engineID string
}

func NewWebSearchAgent(ctx context.Context, apiKey, engineID string) (Agent, error) {
	service, err := customsearch.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &webSearchAgent{
		service:  service,
		engineID: engineID,
	}, nil
}

func (a *webSearchAgent) Name() string {
	return types.AgentWebSearch
}

func (a *webSearchAgent) Answer(ctx context.Context, query string, history []types.Turn) (*types.AgentResult, error) {
	resp, err := a.service.Cse.List().Q(query).Cx(a.engineID).Num(5).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}

	var sb strings.Builder
	citations := make([]types.Document, 0, len(resp.Items))
	for _, item := range resp.Items {
		fmt.Fprintf(&sb, "%s: %s\n", item.Title, item.Snippet)
		citations = append(citations, types.Document{
			Source:  "web",
			Content: item.Snippet,
			Metadata: types.Metadata{
				Title: item.Title,
				Path:  item.Link,
			},
		})
	}
	return &types.AgentResult{
		Agent:     types.AgentWebSearch,
		Answer:    sb.String(),
		Citations: citations,
	}, nil
}

func historyMessages(history []types.Turn) []types.Message {
	messages := make([]types.Message, 0, len(history)*2)
	for _, turn := range history {
		messages = append(messages, types.Message{Role: "user", Content: turn.Query})
		messages = append(messages, types.Message{Role: "assistant", Content: turn.Response})
	}
	return messages
}
