package ai

import (
	"context"
	"fmt"

	"kmle-tutor/backend/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Request is one single-turn tutoring question: the active subject, the
// free-text prompt and an optional attached image (as a data URL).
type Request struct {
	Subject  models.Subject
	Prompt   string
	ImageURL string
}

// Generator produces one tutor answer for one request. Implementations make
// exactly one model call with no retry and no fallback.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// TutorService generates tutor responses through the configured chat model
// and rewrites image-search tags into links.
type TutorService struct {
	chatModel model.ChatModel
}

// NewTutorService creates the tutor response pipeline over an existing model.
func NewTutorService(chatModel model.ChatModel) *TutorService {
	return &TutorService{chatModel: chatModel}
}

// Generate issues the single model call and post-processes the answer. A
// failure surfaces with the underlying message attached; the caller must not
// persist anything on error.
func (s *TutorService) Generate(ctx context.Context, req Request) (string, error) {
	messages := []*schema.Message{
		schema.SystemMessage(BuildInstruction(req.Subject)),
		buildUserMessage(req),
	}

	response, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("model call failed: %w", err)
	}

	return ConvertImageSearchTags(response.Content), nil
}

// buildUserMessage attaches the optional image as a multimodal part.
func buildUserMessage(req Request) *schema.Message {
	if req.ImageURL == "" {
		return schema.UserMessage(req.Prompt)
	}

	return &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type: schema.ChatMessagePartTypeText,
				Text: req.Prompt,
			},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL:    req.ImageURL,
					Detail: schema.ImageURLDetailAuto,
				},
			},
		},
	}
}
