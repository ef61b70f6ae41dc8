package secretai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	"github.com/veridian-network/veridian-api/internal/ai"
	"github.com/veridian-network/veridian-api/internal/models"
	"github.com/veridian-network/veridian-api/internal/utils/request"
)

const (
	defaultModel = "llama3.2-vision"
)

// SecretAIVerifier implements the Verifier interface against an ollama-style
// confidential inference endpoint (generate API, bearer auth).
type SecretAIVerifier struct {
	apiKey      string
	endpoint    string
	model       string
	temperature float64
	httpClient  *resty.Client
}

// NewSecretAIVerifier creates a new SecretAI verifier instance
func NewSecretAIVerifier(apiKey, endpoint, model string, temperature float64) *SecretAIVerifier {
	if model == "" {
		model = defaultModel
	}
	return &SecretAIVerifier{
		apiKey:      apiKey,
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		httpClient:  request.Request,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system"`
	Images  []string       `json:"images"`
	Format  string         `json:"format"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
}

// VerifyIdentity implements the Verifier interface
func (v *SecretAIVerifier) VerifyIdentity(ctx context.Context, idImage, selfieImage string) (*models.VerificationResult, error) {
	prompt := "[ID IMAGE] Extract identity and detect fakes according to the system prompt rules."
	images := []string{idImage}
	if selfieImage != "" {
		prompt = "[FIRST IMAGE: ID], [SECOND IMAGE: Selfie]. Extract identity, detect fakes and verify the faces belong to the same person."
		images = append(images, selfieImage)
	}

	body := generateRequest{
		Model:   v.model,
		Prompt:  prompt,
		System:  ai.SystemPrompt,
		Images:  images,
		Format:  "json",
		Stream:  false,
		Options: map[string]any{"temperature": v.temperature},
	}

	resp, err := v.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+v.apiKey).
		SetBody(body).
		Post(v.endpoint + "/api/generate")
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode())
	}

	var reply generateResponse
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("inference error: %s", reply.Error)
	}

	result, err := ai.ParseVerdict(reply.Response)
	if err != nil {
		return nil, fmt.Errorf("failed to parse verification verdict: %w", err)
	}
	return result, nil
}
