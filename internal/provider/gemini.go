package provider

import (
	"context"
	"fmt"

	"github.com/phrazzld/forge-api/internal/domain"
	"github.com/phrazzld/forge-api/internal/platform/secrets"
	"google.golang.org/genai"
)

// GeminiIntegration generates text content through Google's Gemini API.
type GeminiIntegration struct {
	cipher *secrets.Cipher
	model  string
}

// NewGeminiIntegration creates the Gemini integration using the given
// model name.
func NewGeminiIntegration(cipher *secrets.Cipher, model string) *GeminiIntegration {
	return &GeminiIntegration{
		cipher: cipher,
		model:  model,
	}
}

// client builds a genai client from the account's decrypted API key. The
// key lives only for the duration of the call.
func (g *GeminiIntegration) client(ctx context.Context, encryptedCredentials string) (*genai.Client, error) {
	apiKey, err := decryptAPIKey(g.cipher, encryptedCredentials)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gemini client: %w", err)
	}

	return client, nil
}

// Authenticate verifies the API key by constructing a client and issuing a
// minimal generation request.
func (g *GeminiIntegration) Authenticate(ctx context.Context, encryptedCredentials string, provider *domain.Provider) error {
	client, err := g.client(ctx, encryptedCredentials)
	if err != nil {
		return err
	}

	if _, err := client.Models.GenerateContent(ctx, g.model, genai.Text("ping"), nil); err != nil {
		return fmt.Errorf("gemini auth check failed: %w", err)
	}

	return nil
}

// Generate produces text content for the task prompt.
func (g *GeminiIntegration) Generate(ctx context.Context, task *domain.Task, provider *domain.Provider, account *domain.Account) (*Result, error) {
	client, err := g.client(ctx, account.Credentials)
	if err != nil {
		return nil, err
	}

	params := taskParams(task)
	prompt := stringParam(params, "prompt", task.Title)

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini generation failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini returned no content")
	}
	if resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("gemini blocked content by safety filters")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		text += part.Text
	}
	if text == "" {
		return nil, fmt.Errorf("gemini returned empty text")
	}

	content, err := domain.NewContent(
		task.ID,
		fmt.Sprintf("Generated text for %s", task.Title),
		domain.ContentTypeText,
		text,
		"",
		map[string]any{
			"prompt":   prompt,
			"model":    g.model,
			"provider": "GEMINI",
		},
		domain.ContentStatusFinal,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build content artifact: %w", err)
	}

	return &Result{Content: content, TokensUsed: int64(len(prompt) + len(text))}, nil
}

// CheckUsage reports a static budget; Gemini consumption is tracked in the
// account store.
func (g *GeminiIntegration) CheckUsage(ctx context.Context, encryptedCredentials string, provider *domain.Provider) (*Usage, error) {
	if _, err := decryptAPIKey(g.cipher, encryptedCredentials); err != nil {
		return nil, err
	}
	return &Usage{Available: true, Limit: 1000000, Used: 0}, nil
}
