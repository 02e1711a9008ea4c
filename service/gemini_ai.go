package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"github.com/northbuild/north-be/types"
	"google.golang.org/api/option"
)

type GeminiService struct {
	apiKeys        []string
	currentKey     int
	client         *genai.Client
	modelName      string
	embeddingModel string
	mu             sync.Mutex
}

var _ AIService = (*GeminiService)(nil)

func NewGeminiService(apiKeys []string, modelName, embeddingModel string) (*GeminiService, error) {
	if len(apiKeys) == 0 {
		return nil, errors.New("no API keys provided")
	}
	service := &GeminiService{
		apiKeys:        apiKeys,
		currentKey:     0,
		modelName:      modelName,
		embeddingModel: embeddingModel,
	}
	if err := service.initClient(); err != nil {
		return nil, err
	}
	return service, nil
}

func (s *GeminiService) initClient() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) rotateAPIKey() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentKey = (s.currentKey + 1) % len(s.apiKeys)
	if err := s.client.Close(); err != nil {
		return err
	}
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(s.apiKeys[s.currentKey]))
	if err != nil {
		return err
	}
	s.client = client
	return nil
}

func (s *GeminiService) Chat(ctx context.Context, prompt string, messages []types.Message) (string, error) {
	model := s.client.GenerativeModel(s.modelName)
	if prompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(prompt)},
		}
	}
	history, last := splitHistory(messages)

	chat := model.StartChat()
	chat.History = history
	resp, err := chat.SendMessage(ctx, genai.Text(last))
	if err != nil {
		// Try rotating API key if there's an error
		if rotateErr := s.rotateAPIKey(); rotateErr != nil {
			return "", rotateErr
		}
		chat = s.client.GenerativeModel(s.modelName).StartChat()
		chat.History = history
		resp, err = chat.SendMessage(ctx, genai.Text(last))
		if err != nil {
			return "", err
		}
	}
	return collectText(resp)
}

func (s *GeminiService) ChatStream(ctx context.Context, prompt string, messages []types.Message, streamHandler types.StreamHandler) error {
	content, err := s.Chat(ctx, prompt, messages)
	if err != nil {
		return err
	}
	streamHandler(content)
	return nil
}

func (s *GeminiService) ChatStructured(ctx context.Context, prompt string, input string, out any) error {
	model := s.client.GenerativeModel(s.modelName)
	model.ResponseMIMEType = "application/json"
	if prompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(prompt)},
		}
	}
	resp, err := model.GenerateContent(ctx, genai.Text(input))
	if err != nil {
		return err
	}
	content, err := collectText(resp)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(strings.TrimSpace(content)), out)
}

func (s *GeminiService) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	em := s.client.EmbeddingModel(s.embeddingModel)
	batch := em.NewBatch()
	for _, text := range texts {
		batch.AddContent(genai.Text(text))
	}
	res, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, err
	}
	vectors := make([][]float32, 0, len(res.Embeddings))
	for _, emb := range res.Embeddings {
		vectors = append(vectors, emb.Values)
	}
	return vectors, nil
}

// splitHistory separates the trailing user message, which Gemini takes as
// the live turn, from the rest of the conversation.
func splitHistory(messages []types.Message) ([]*genai.Content, string) {
	if len(messages) == 0 {
		return nil, ""
	}
	history := make([]*genai.Content, 0, len(messages)-1)
	for _, msg := range messages[:len(messages)-1] {
		role := "user"
		if msg.Role == "assistant" {
			role = "model"
		}
		history = append(history, &genai.Content{
			Parts: []genai.Part{genai.Text(msg.Content)},
			Role:  role,
		})
	}
	return history, messages[len(messages)-1].Content
}

func collectText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", errors.New("no response generated")
	}
	content := ""
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					content += string(text)
				}
			}
		}
	}
	return content, nil
}
