package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/veridian-network/veridian-api/internal/ai"
	"github.com/veridian-network/veridian-api/internal/models"
)

// OpenAIVerifier implements the Verifier interface using an OpenAI-compatible
// vision endpoint
type OpenAIVerifier struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAIVerifier creates a new OpenAI verifier instance. baseURL may be
// empty to use the public API.
func NewOpenAIVerifier(apiKey, baseURL, model string, temperature float64) *OpenAIVerifier {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIVerifier{
		client:      openai.NewClientWithConfig(config),
		model:       model,
		temperature: float32(temperature),
	}
}

// VerifyIdentity implements the Verifier interface
func (v *OpenAIVerifier) VerifyIdentity(ctx context.Context, idImage, selfieImage string) (*models.VerificationResult, error) {
	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: ai.SystemPrompt,
		},
		{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: "Analyze this ID image to extract identity data and detect fakes:",
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:image/jpeg;base64," + idImage,
					},
				},
			},
		},
	}

	if selfieImage != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role: openai.ChatMessageRoleUser,
			MultiContent: []openai.ChatMessagePart{
				{
					Type: openai.ChatMessagePartTypeText,
					Text: "Verify if this selfie matches the previously provided ID:",
				},
				{
					Type: openai.ChatMessagePartTypeImageURL,
					ImageURL: &openai.ChatMessageImageURL{
						URL: "data:image/jpeg;base64," + selfieImage,
					},
				},
			},
		})
	}

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       v.model,
		Messages:    messages,
		Temperature: v.temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to call vision model: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("empty response from vision model")
	}

	result, err := ai.ParseVerdict(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification verdict: %w", err)
	}
	return result, nil
}
