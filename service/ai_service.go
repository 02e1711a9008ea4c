package service

import (
	"context"

	"github.com/northbuild/north-be/types"
)

type AIService interface {
	Chat(ctx context.Context, prompt string, messages []types.Message) (string, error)
	ChatStream(ctx context.Context, prompt string, messages []types.Message, streamHandler types.StreamHandler) error
	// ChatStructured asks the model for a JSON object matching the shape
	// of out and unmarshals the response into it.
	ChatStructured(ctx context.Context, prompt string, input string, out any) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
