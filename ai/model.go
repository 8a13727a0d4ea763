package ai

import (
	"context"

	"kmle-tutor/backend/pkg/config"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// NewChatModel builds the single configured chat model. There is exactly one
// model identifier and no fallback list; if the credential is missing the
// caller fails startup.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ChatModel, error) {
	temperature := float32(cfg.AI.Temperature)
	maxTokens := cfg.AI.MaxTokens

	return ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     cfg.AI.BaseURL,
		Region:      cfg.AI.Region,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
}
